// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"encoding/hex"
	"fmt"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// RtpPacket rtp包，所有字段都直接在内存块上读写
//
// 结构性的修改（增删csrc、扩展头）会挪动内存块中的字节，甚至更换内存块，
// 之前通过Bytes、Payload、扩展头句柄等拿到的切片都会失效，需要重新获取。
//
type RtpPacket struct {
	Packet
}

// ParseRtpPacket 解析rtp包，不拷贝，内存块的所有权转移给返回的RtpPacket
//
func ParseRtpPacket(buf []byte, offset, length int) (*RtpPacket, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return nil, base.NewErrRtpRtcpShortBuffer(offset+length, len(buf), "rtp packet window")
	}
	if err := checkRtpPacket(buf[offset : offset+length]); err != nil {
		if base.RtpRtcpLogParseFailedFlag {
			Log.Warnf("parse rtp packet failed. err=%+v, hex=%s", err, hex.Dump(nazabytes.Prefix(buf[offset:offset+length], base.RtpRtcpDebugDumpLen)))
		}
		return nil, err
	}
	return &RtpPacket{
		Packet: *NewPacket(buf, offset, length),
	}, nil
}

// ParseEncryptedRtpPacket 解析payload被加密的rtp包（srtp），只检查头部，不检查padding
//
// 注意，payload解密前，Payload、PaddingSize等和padding相关的函数返回值没有意义
//
func ParseEncryptedRtpPacket(buf []byte, offset, length int) (*RtpPacket, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return nil, base.NewErrRtpRtcpShortBuffer(offset+length, len(buf), "rtp packet window")
	}
	if _, err := checkRtpHeader(buf[offset : offset+length]); err != nil {
		return nil, err
	}
	return &RtpPacket{
		Packet: *NewPacket(buf, offset, length),
	}, nil
}

// NewRtpPacket 由头部字段和payload构造rtp包，内存块从内存池申请
//
// 注意，`h`中的Extension字段被忽略，扩展头通过 RtpPacket.AddHeaderExtension 添加
//
func NewRtpPacket(h RtpHeader, payload []byte) *RtpPacket {
	h.Extension = 0
	pkt := &RtpPacket{
		Packet: *newPooledPacket(h.Length() + len(payload)),
	}
	b := pkt.Bytes()
	h.PackTo(b)
	copy(b[h.Length():], payload)
	return pkt
}

func (p *RtpPacket) Clone() *RtpPacket {
	return &RtpPacket{
		Packet: *p.Packet.Clone(),
	}
}

// ----- 固定头部字段 ----------------------------------------------------------------------------------------------------

func (p *RtpPacket) Version() uint8 {
	return p.buf[p.offset] >> 6
}

func (p *RtpPacket) HasPadding() bool {
	return p.buf[p.offset]&0x20 != 0
}

func (p *RtpPacket) HasExtension() bool {
	return p.buf[p.offset]&0x10 != 0
}

func (p *RtpPacket) CsrcCount() int {
	return int(p.buf[p.offset] & 0x0F)
}

func (p *RtpPacket) IsMarked() bool {
	return p.buf[p.offset+1]&0x80 != 0
}

func (p *RtpPacket) PayloadType() uint8 {
	return p.buf[p.offset+1] & 0x7F
}

func (p *RtpPacket) SequenceNumber() uint16 {
	return bele.BeUint16(p.buf[p.offset+2:])
}

func (p *RtpPacket) Timestamp() uint32 {
	return bele.BeUint32(p.buf[p.offset+4:])
}

func (p *RtpPacket) Ssrc() uint32 {
	return bele.BeUint32(p.buf[p.offset+8:])
}

func (p *RtpPacket) SetMarker(v bool) {
	if v {
		p.buf[p.offset+1] |= 0x80
	} else {
		p.buf[p.offset+1] &= 0x7F
	}
}

func (p *RtpPacket) SetPayloadType(pt uint8) {
	p.buf[p.offset+1] = p.buf[p.offset+1]&0x80 | pt&0x7F
}

func (p *RtpPacket) SetSequenceNumber(seq uint16) {
	bele.BePutUint16(p.buf[p.offset+2:], seq)
}

func (p *RtpPacket) SetTimestamp(ts uint32) {
	bele.BePutUint32(p.buf[p.offset+4:], ts)
}

func (p *RtpPacket) SetSsrc(ssrc uint32) {
	bele.BePutUint32(p.buf[p.offset+8:], ssrc)
}

// Header 一次性读取固定头部和csrc列表
func (p *RtpPacket) Header() RtpHeader {
	h, _ := ParseRtpHeader(p.Bytes())
	return h
}

// ----- 长度相关 ------------------------------------------------------------------------------------------------------

// HeaderLength 固定头部、csrc列表、扩展头的总长度
func (p *RtpPacket) HeaderLength() int {
	n := p.extensionBlockOffset()
	if p.HasExtension() {
		n += p.extensionBlockLength()
	}
	return n
}

// PaddingSize padding的字节数，包括最后一个记录padding长度的字节
func (p *RtpPacket) PaddingSize() int {
	if !p.HasPadding() || p.length <= p.HeaderLength() {
		return 0
	}
	return int(p.buf[p.offset+p.length-1])
}

func (p *RtpPacket) PayloadOffset() int {
	return p.HeaderLength()
}

// PayloadLength payload的长度，不包含padding
func (p *RtpPacket) PayloadLength() int {
	return p.length - p.HeaderLength() - p.PaddingSize()
}

// Payload 不拷贝，不包含padding
func (p *RtpPacket) Payload() []byte {
	start := p.offset + p.HeaderLength()
	return p.buf[start : start+p.PayloadLength()]
}

// RemovePadding 去掉padding，并清除padding标志
func (p *RtpPacket) RemovePadding() {
	if !p.HasPadding() {
		return
	}
	p.ShrinkTail(p.PaddingSize())
	p.buf[p.offset] &^= 0x20
}

// ----- csrc ----------------------------------------------------------------------------------------------------------

func (p *RtpPacket) Csrcs() []uint32 {
	cc := p.CsrcCount()
	if cc == 0 {
		return nil
	}
	ret := make([]uint32, cc)
	for i := range ret {
		ret[i] = bele.BeUint32(p.buf[p.offset+RtpFixedHeaderLength+4*i:])
	}
	return ret
}

// AddCsrc 在csrc列表末尾（扩展头之前）增加一个csrc
func (p *RtpPacket) AddCsrc(csrc uint32) error {
	cc := p.CsrcCount()
	if cc >= RtpMaxCsrcCount {
		return base.ErrRtpCsrcOverflow
	}
	pos := RtpFixedHeaderLength + 4*cc
	p.growAt(pos, 4)
	bele.BePutUint32(p.buf[p.offset+pos:], csrc)
	p.setCsrcCount(cc + 1)
	return nil
}

// RemoveCsrc 删除csrc，不存在时返回false
func (p *RtpPacket) RemoveCsrc(csrc uint32) bool {
	cc := p.CsrcCount()
	for i := 0; i < cc; i++ {
		pos := RtpFixedHeaderLength + 4*i
		if bele.BeUint32(p.buf[p.offset+pos:]) == csrc {
			p.shrinkAt(pos, 4)
			p.setCsrcCount(cc - 1)
			return true
		}
	}
	return false
}

func (p *RtpPacket) setCsrcCount(cc int) {
	p.buf[p.offset] = p.buf[p.offset]&0xF0 | uint8(cc)&0x0F
}

// ---------------------------------------------------------------------------------------------------------------------

func (p *RtpPacket) DebugString() string {
	return fmt.Sprintf("v=%d, p=%t, x=%t, cc=%d, m=%t, pt=%d, seq=%d, ts=%d, ssrc=%d, header=%d, payload=%d, padding=%d",
		p.Version(), p.HasPadding(), p.HasExtension(), p.CsrcCount(), p.IsMarked(), p.PayloadType(),
		p.SequenceNumber(), p.Timestamp(), p.Ssrc(), p.HeaderLength(), p.PayloadLength(), p.PaddingSize())
}

// ---------------------------------------------------------------------------------------------------------------------

// checkRtpPacket 检查rtp包结构的合法性，通过检查后，所有字段访问都不会越界
func checkRtpPacket(b []byte) error {
	n, err := checkRtpHeader(b)
	if err != nil {
		return err
	}

	if b[0]&0x20 != 0 {
		if len(b) == n {
			return nazaerrors.Wrap(base.ErrRtpMalformed, "padding flag without padding")
		}
		padding := int(b[len(b)-1])
		if padding == 0 || padding > len(b)-n {
			return nazaerrors.Wrap(base.ErrRtpMalformed, fmt.Sprintf("invalid padding. padding=%d, available=%d", padding, len(b)-n))
		}
	}
	return nil
}

// checkRtpHeader 检查固定头部、csrc列表、扩展头没有越界
//
// @return n: 头部总长度
//
func checkRtpHeader(b []byte) (n int, err error) {
	if len(b) < RtpFixedHeaderLength {
		return 0, base.NewErrRtpRtcpShortBuffer(RtpFixedHeaderLength, len(b), "rtp fixed header")
	}
	if b[0]>>6 != DefaultRtpVersion {
		return 0, nazaerrors.Wrap(base.ErrRtpMalformed, fmt.Sprintf("version=%d", b[0]>>6))
	}

	n = RtpFixedHeaderLength + 4*int(b[0]&0x0F)
	if len(b) < n {
		return 0, nazaerrors.Wrap(base.ErrRtpMalformed, fmt.Sprintf("csrc beyond packet. need=%d, actual=%d", n, len(b)))
	}

	if b[0]&0x10 != 0 {
		if len(b) < n+4 {
			return 0, nazaerrors.Wrap(base.ErrRtpMalformed, fmt.Sprintf("extension header beyond packet. need=%d, actual=%d", n+4, len(b)))
		}
		n += 4 + 4*int(bele.BeUint16(b[n+2:]))
		if len(b) < n {
			return 0, nazaerrors.Wrap(base.ErrRtpMalformed, fmt.Sprintf("extension beyond packet. need=%d, actual=%d", n, len(b)))
		}
	}
	return n, nil
}
