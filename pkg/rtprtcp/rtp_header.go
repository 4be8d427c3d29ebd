// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// -----------------------------------
// rfc3550 5.1 RTP Fixed Header Fields
// -----------------------------------
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|X|  CC   |M|     PT      |       sequence number         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                           timestamp                           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |           synchronization source (SSRC) identifier            |
// +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// |            contributing source (CSRC) identifiers             |
// |                             ....                              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const (
	RtpFixedHeaderLength = 12

	RtpMaxCsrcCount = 15

	DefaultRtpVersion = 2
)

// RtpHeader rtp固定头部加csrc列表的值类型，用于构造包，以及一次性读取所有固定字段
//
// 注意，扩展头部分不在这个结构体中，由 RtpPacket 在内存块上直接读写
//
type RtpHeader struct {
	Version     uint8  // 2b  *
	Padding     uint8  // 1b
	Extension   uint8  // 1
	CsrcCount   uint8  // 4b
	Mark        uint8  // 1b  *
	PayloadType uint8  // 7b
	Seq         uint16 // 16b **
	Timestamp   uint32 // 32b **** samples
	Ssrc        uint32 // 32b **** Synchronization source

	Csrcs []uint32
}

func MakeDefaultRtpHeader() RtpHeader {
	return RtpHeader{
		Version: DefaultRtpVersion,
	}
}

// Length 序列化后的长度，固定头加csrc列表
func (h *RtpHeader) Length() int {
	return RtpFixedHeaderLength + 4*len(h.Csrcs)
}

// PackTo
//
// @param out: 传出参数，注意，调用方保证长度>=h.Length()
//
// 注意，CsrcCount字段使用len(h.Csrcs)
//
func (h *RtpHeader) PackTo(out []byte) {
	out[0] = uint8(len(h.Csrcs))&0xF | (h.Extension&0x1)<<4 | (h.Padding&0x1)<<5 | h.Version<<6
	out[1] = h.PayloadType&0x7F | h.Mark<<7
	bele.BePutUint16(out[2:], h.Seq)
	bele.BePutUint32(out[4:], h.Timestamp)
	bele.BePutUint32(out[8:], h.Ssrc)
	for i, csrc := range h.Csrcs {
		bele.BePutUint32(out[RtpFixedHeaderLength+4*i:], csrc)
	}
}

// ParseRtpHeader 解析固定头部和csrc列表
//
func ParseRtpHeader(b []byte) (h RtpHeader, err error) {
	if len(b) < RtpFixedHeaderLength {
		err = base.NewErrRtpRtcpShortBuffer(RtpFixedHeaderLength, len(b), "rtp fixed header")
		return
	}

	h.Version = b[0] >> 6
	h.Padding = (b[0] >> 5) & 0x1
	h.Extension = (b[0] >> 4) & 0x1
	h.CsrcCount = b[0] & 0xF
	h.Mark = b[1] >> 7
	h.PayloadType = b[1] & 0x7F
	h.Seq = bele.BeUint16(b[2:])
	h.Timestamp = bele.BeUint32(b[4:])
	h.Ssrc = bele.BeUint32(b[8:])

	need := RtpFixedHeaderLength + 4*int(h.CsrcCount)
	if len(b) < need {
		err = base.NewErrRtpRtcpShortBuffer(need, len(b), "rtp csrc list")
		return
	}
	if h.CsrcCount > 0 {
		h.Csrcs = make([]uint32, h.CsrcCount)
		for i := range h.Csrcs {
			h.Csrcs[i] = bele.BeUint32(b[RtpFixedHeaderLength+4*i:])
		}
	}
	return
}
