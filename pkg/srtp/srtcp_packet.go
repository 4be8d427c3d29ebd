// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srtp

import (
	"fmt"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc3711 3.4. Secure RTCP
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+<+
// |V=2|P|    RC   |   PT=SR or RR   |             length          | |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |                         SSRC of sender                        | |
// +>+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// | ~                          sender info                          ~ |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// | ~                         report block 1                        ~ |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |                              ...                                  |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// | |E|                         SRTCP index                         | |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+<+
// | ~                     SRTCP MKI (OPTIONAL)                      ~ |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// | :                     authentication tag                        : |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |                                                                   |
// +-- Encrypted Portion                    Authenticated Portion -----+
//
// 注意，E+index以及tag不计入rtcp头部的length字段
//

const (
	SrtcpIndexLength = 4

	srtcpEncryptedMask = 0x80000000
	srtcpIndexMask     = 0x7FFFFFFF
)

// SrtcpPacket 加密后的rtcp包（也可以是compound包），rtcp部分不做解析
type SrtcpPacket struct {
	*rtprtcp.Packet
}

// ParseSrtcpPacket 不拷贝，内存块的所有权转移给返回的包。只检查rtcp头部
//
func ParseSrtcpPacket(buf []byte, offset, length int) (*SrtcpPacket, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return nil, base.NewErrRtpRtcpShortBuffer(offset+length, len(buf), "srtcp packet window")
	}
	b := buf[offset : offset+length]
	if len(b) < rtprtcp.RtcpHeaderLength {
		return nil, base.NewErrSrtpShortPacket(rtprtcp.RtcpHeaderLength, len(b))
	}
	if b[0]>>6 != rtprtcp.RtcpVersion {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("version=%d", b[0]>>6))
	}
	return &SrtcpPacket{Packet: rtprtcp.NewPacket(buf, offset, length)}, nil
}

// NewSrtcpPacket 包装一个加密前的rtcp包，之后通过 ProtectSrtcp 加上E+index以及tag
func NewSrtcpPacket(pkt *rtprtcp.Packet) *SrtcpPacket {
	return &SrtcpPacket{Packet: pkt}
}

// AuthTag 不拷贝
func (p *SrtcpPacket) AuthTag(tagLen int) ([]byte, error) {
	if err := p.check(tagLen, 0); err != nil {
		return nil, err
	}
	b := p.Bytes()
	return b[len(b)-tagLen:], nil
}

func (p *SrtcpPacket) RemoveAuthTag(tagLen int) error {
	if err := p.check(tagLen, 0); err != nil {
		return err
	}
	p.ShrinkTail(tagLen)
	return nil
}

func (p *SrtcpPacket) AddAuthTag(tag []byte) {
	copy(p.GrowTail(len(tag)), tag)
}

// IsEncrypted E标志
func (p *SrtcpPacket) IsEncrypted(tagLen int) (bool, error) {
	v, err := p.indexWord(tagLen)
	if err != nil {
		return false, err
	}
	return v&srtcpEncryptedMask != 0, nil
}

func (p *SrtcpPacket) SetEncrypted(tagLen int, encrypted bool) error {
	v, err := p.indexWord(tagLen)
	if err != nil {
		return err
	}
	if encrypted {
		v |= srtcpEncryptedMask
	} else {
		v &^= srtcpEncryptedMask
	}
	p.putIndexWord(tagLen, v)
	return nil
}

// SrtcpIndex 31位
func (p *SrtcpPacket) SrtcpIndex(tagLen int) (uint32, error) {
	v, err := p.indexWord(tagLen)
	if err != nil {
		return 0, err
	}
	return v & srtcpIndexMask, nil
}

// SetSrtcpIndex 只修改低31位，E标志不变
func (p *SrtcpPacket) SetSrtcpIndex(tagLen int, index uint32) error {
	v, err := p.indexWord(tagLen)
	if err != nil {
		return err
	}
	p.putIndexWord(tagLen, v&srtcpEncryptedMask|index&srtcpIndexMask)
	return nil
}

// RemoveEncryptedIndex 去掉E+index，调用方保证tag已经去掉
func (p *SrtcpPacket) RemoveEncryptedIndex() error {
	if err := p.check(0, SrtcpIndexLength); err != nil {
		return err
	}
	p.ShrinkTail(SrtcpIndexLength)
	return nil
}

// AddEncryptedIndex 在尾部追加E+index，调用方保证此时还没有tag
func (p *SrtcpPacket) AddEncryptedIndex(encrypted bool, index uint32) {
	v := index & srtcpIndexMask
	if encrypted {
		v |= srtcpEncryptedMask
	}
	bele.BePutUint32(p.GrowTail(SrtcpIndexLength), v)
}

// Spans 划分参与加密和认证的区域，调用方保证E+index已经存在
//
// @param tagLen: 包中已有的tag长度，加密前为0
//
func (p *SrtcpPacket) Spans(tagLen int) (CryptoSpans, error) {
	if err := p.check(tagLen, SrtcpIndexLength); err != nil {
		return CryptoSpans{}, err
	}
	b := p.Bytes()
	indexPos := len(b) - tagLen - SrtcpIndexLength
	return CryptoSpans{
		Header:      b[:rtprtcp.RtcpHeaderLength],
		Encryptable: b[rtprtcp.RtcpHeaderLength:indexPos],
		Index:       b[indexPos : indexPos+SrtcpIndexLength],
		AuthTag:     b[len(b)-tagLen:],
	}, nil
}

func (p *SrtcpPacket) indexWord(tagLen int) (uint32, error) {
	if err := p.check(tagLen, SrtcpIndexLength); err != nil {
		return 0, err
	}
	b := p.Bytes()
	return bele.BeUint32(b[len(b)-tagLen-SrtcpIndexLength:]), nil
}

func (p *SrtcpPacket) putIndexWord(tagLen int, v uint32) {
	b := p.Bytes()
	bele.BePutUint32(b[len(b)-tagLen-SrtcpIndexLength:], v)
}

// check 检查包的长度足够容纳rtcp头、E+index（`indexLen`为0时不要求）以及tag
func (p *SrtcpPacket) check(tagLen int, indexLen int) error {
	need := rtprtcp.RtcpHeaderLength + indexLen + tagLen
	if tagLen < 0 || p.Length() < need {
		return base.NewErrSrtpShortPacket(need, p.Length())
	}
	return nil
}
