// Copyright 2020, Chef.  All rights reserved.
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

// ---------------------------------
// rfc3550 6.4.1 RTCP common header
// ---------------------------------
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|  RC/FMT |       PT      |             length            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                     SSRC of packet sender                     |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// length: 整个包（包含头部和padding）的长度，单位是4字节，再减1
//
// 对于反馈包（rfc4585 205和206），RC字段表示FMT，用于区分具体的反馈类型
//

const (
	RtcpPacketTypeSr    = 200 // 0xc8 Sender Report
	RtcpPacketTypeRr    = 201 // 0xc9 Receiver Report
	RtcpPacketTypeSdes  = 202 // 0xca Source Description
	RtcpPacketTypeBye   = 203 // 0xcb Goodbye
	RtcpPacketTypeApp   = 204 // 0xcc Application-Defined
	RtcpPacketTypeRtpfb = 205 // 0xcd Transport layer FB message
	RtcpPacketTypePsfb  = 206 // 0xce Payload-specific FB message

	RtcpFmtNack = 1  // RtcpPacketTypeRtpfb
	RtcpFmtTcc  = 15 // RtcpPacketTypeRtpfb

	RtcpFmtPli  = 1  // RtcpPacketTypePsfb
	RtcpFmtFir  = 4  // RtcpPacketTypePsfb
	RtcpFmtRemb = 15 // RtcpPacketTypePsfb, Application layer FB (AFB) message，通过"REMB"标识区分

	RtcpCommonHeaderLength = 4
	RtcpHeaderLength       = 8 // 包含sender ssrc

	RtcpVersion = 2

	RtcpMaxCount = 31

	// RtcpMaxPacketLength length字段是16位，单位为4字节
	RtcpMaxPacketLength = (1 << 16) * 4
)

// RtcpHeader rtcp头部的值类型
type RtcpHeader struct {
	Version       uint8  // 2b
	Padding       uint8  // 1b
	CountOrFormat uint8  // 5b
	PacketType    uint8  // 8b
	Length        uint16 // 16b, whole packet byte length = (Length+1) * 4
	SenderSsrc    uint32 // 32b
}

// RtcpPacket 所有具体rtcp包类型的集合，不能在包外实现
//
// 具体类型：
// - RtcpSrPacket
// - RtcpRrPacket
// - RtcpSdesPacket
// - RtcpByePacket
// - RtcpFbNackPacket
// - RtcpFbTccPacket
// - RtcpFbPliPacket
// - RtcpFbFirPacket
// - RtcpFbRembPacket
//
type RtcpPacket interface {
	Header() RtcpHeader
	PacketType() uint8
	SenderSsrc() uint32

	// Bytes 序列化后的包，不拷贝
	Bytes() []byte
	Length() int

	// Release 将内存块归还内存池，从compound包中拆分出来的子包调用时不归还
	Release()

	isRtcpPacket()
}

// ParseRtcpHeader 解析8字节的rtcp头部
//
func ParseRtcpHeader(b []byte) (h RtcpHeader, err error) {
	if len(b) < RtcpHeaderLength {
		err = base.NewErrRtpRtcpShortBuffer(RtcpHeaderLength, len(b), "rtcp header")
		return
	}
	h.Version = b[0] >> 6
	h.Padding = (b[0] >> 5) & 0x1
	h.CountOrFormat = b[0] & 0x1F
	h.PacketType = b[1]
	h.Length = bele.BeUint16(b[2:])
	h.SenderSsrc = bele.BeUint32(b[4:])
	return
}

// PackTo @param out 传出参数，注意，调用方保证长度>=8
func (r *RtcpHeader) PackTo(out []byte) {
	out[0] = r.Version<<6 | (r.Padding&0x1)<<5 | r.CountOrFormat&0x1F
	out[1] = r.PacketType
	bele.BePutUint16(out[2:], r.Length)
	bele.BePutUint32(out[4:], r.SenderSsrc)
}

// CalcRtcpLengthField 由包的字节长度计算length字段
//
// 注意，`sizeBytes`必须是4的倍数，否则说明代码有bug，直接panic
//
func CalcRtcpLengthField(sizeBytes int) uint16 {
	if sizeBytes%4 != 0 || sizeBytes < RtcpCommonHeaderLength || sizeBytes > RtcpMaxPacketLength {
		panic(fmt.Sprintf("lalrtp.rtprtcp: invalid rtcp packet size. size=%d", sizeBytes))
	}
	return uint16(sizeBytes/4 - 1)
}

// ParseRtcpPacket 解析一个rtcp包，不拷贝，内存块的所有权转移给返回的包
//
// 根据packet type（反馈包还包括fmt）构造具体的包类型，不认识的类型返回错误。
// `length`必须和包头中length字段表示的长度完全一致。
//
// 解析失败时，内存块的所有权仍属于调用方
//
func ParseRtcpPacket(buf []byte, offset, length int) (RtcpPacket, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return nil, base.NewErrRtpRtcpShortBuffer(offset+length, len(buf), "rtcp packet window")
	}
	pkt, err := parseRtcpPacket(*NewPacket(buf, offset, length))
	if err != nil {
		logRtcpParseFailed(buf[offset:offset+length], err)
		return nil, err
	}
	return pkt, nil
}

func parseRtcpPacket(pkt Packet) (RtcpPacket, error) {
	b := pkt.Bytes()
	if len(b) < RtcpCommonHeaderLength {
		return nil, base.NewErrRtpRtcpShortBuffer(RtcpCommonHeaderLength, len(b), "rtcp common header")
	}
	if b[0]>>6 != RtcpVersion {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("version=%d", b[0]>>6))
	}
	declared := (int(bele.BeUint16(b[2:])) + 1) * 4
	if declared != len(b) {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("length field mismatch. declared=%d, actual=%d", declared, len(b)))
	}

	rpb := rtcpPacketBase{Packet: pkt}
	if rpb.HasPadding() {
		padding := int(b[len(b)-1])
		if padding == 0 || padding > len(b)-RtcpCommonHeaderLength {
			return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("invalid padding. padding=%d, length=%d", padding, len(b)))
		}
	}

	pt := b[1]
	count := b[0] & 0x1F
	switch pt {
	case RtcpPacketTypeSdes:
		return newRtcpSdesPacket(rpb)
	case RtcpPacketTypeBye:
		return newRtcpByePacket(rpb)
	}

	// 以下类型都包含sender ssrc
	if len(b) < RtcpHeaderLength {
		return nil, base.NewErrRtpRtcpShortBuffer(RtcpHeaderLength, len(b), "rtcp header")
	}
	switch pt {
	case RtcpPacketTypeSr:
		return newRtcpSrPacket(rpb)
	case RtcpPacketTypeRr:
		return newRtcpRrPacket(rpb)
	case RtcpPacketTypeRtpfb:
		switch count {
		case RtcpFmtNack:
			return newRtcpFbNackPacket(rpb)
		case RtcpFmtTcc:
			return newRtcpFbTccPacket(rpb)
		}
	case RtcpPacketTypePsfb:
		switch count {
		case RtcpFmtPli:
			return newRtcpFbPliPacket(rpb)
		case RtcpFmtFir:
			return newRtcpFbFirPacket(rpb)
		case RtcpFmtRemb:
			if isRemb(b) {
				return newRtcpFbRembPacket(rpb)
			}
		}
	}
	return nil, base.NewErrRtcpUnsupportedPacket(pt, count)
}

func logRtcpParseFailed(b []byte, err error) {
	if base.RtpRtcpLogParseFailedFlag {
		Log.Warnf("parse rtcp packet failed. err=%+v, hex=%s", err, hex.Dump(nazabytes.Prefix(b, base.RtpRtcpDebugDumpLen)))
	}
}

// ---------------------------------------------------------------------------------------------------------------------

// rtcpPacketBase 所有rtcp包类型共用的头部读写
type rtcpPacketBase struct {
	Packet
}

// newRtcpPacketBase 从内存池申请内存块，并写入头部
//
// @param sizeBytes: 整个包的长度，必须是4的倍数
//
func newRtcpPacketBase(packetType uint8, countOrFormat uint8, senderSsrc uint32, sizeBytes int) rtcpPacketBase {
	h := RtcpHeader{
		Version:       RtcpVersion,
		CountOrFormat: countOrFormat,
		PacketType:    packetType,
		Length:        CalcRtcpLengthField(sizeBytes),
		SenderSsrc:    senderSsrc,
	}
	rpb := rtcpPacketBase{Packet: *newPooledPacket(sizeBytes)}
	b := rpb.Bytes()
	zero(b)
	if sizeBytes >= RtcpHeaderLength {
		h.PackTo(b)
	} else {
		tmp := make([]byte, RtcpHeaderLength)
		h.PackTo(tmp)
		copy(b, tmp[:RtcpCommonHeaderLength])
	}
	return rpb
}

func (p *rtcpPacketBase) Version() uint8 {
	return p.buf[p.offset] >> 6
}

func (p *rtcpPacketBase) HasPadding() bool {
	return p.buf[p.offset]&0x20 != 0
}

// ReportCount RC字段，对于反馈包是FMT
func (p *rtcpPacketBase) ReportCount() int {
	return int(p.buf[p.offset] & 0x1F)
}

func (p *rtcpPacketBase) PacketType() uint8 {
	return p.buf[p.offset+1]
}

func (p *rtcpPacketBase) LengthField() uint16 {
	return bele.BeUint16(p.buf[p.offset+2:])
}

// SenderSsrc 对于没有sender ssrc字段的包（比如不包含任何chunk的sdes包），返回0
func (p *rtcpPacketBase) SenderSsrc() uint32 {
	if p.length < RtcpHeaderLength {
		return 0
	}
	return bele.BeUint32(p.buf[p.offset+4:])
}

func (p *rtcpPacketBase) SetSenderSsrc(ssrc uint32) {
	bele.BePutUint32(p.buf[p.offset+4:], ssrc)
}

func (p *rtcpPacketBase) Header() RtcpHeader {
	b := p.Bytes()
	if len(b) >= RtcpHeaderLength {
		h, _ := ParseRtcpHeader(b)
		return h
	}
	tmp := make([]byte, RtcpHeaderLength)
	copy(tmp, b)
	h, _ := ParseRtcpHeader(tmp)
	return h
}

// payloadEnd 去掉padding后，包内容结束的相对位置
func (p *rtcpPacketBase) payloadEnd() int {
	if !p.HasPadding() {
		return p.length
	}
	return p.length - int(p.buf[p.offset+p.length-1])
}

func (p *rtcpPacketBase) isRtcpPacket() {}
