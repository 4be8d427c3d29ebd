// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import "github.com/q191201771/naza/pkg/bele"

// rfc3550 6.4.1 report block
//
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// report |                 SSRC_1 (SSRC of first source)                 |
// block  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   1    | fraction lost |       cumulative number of packets lost       |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |           extended highest sequence number received           |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                      interarrival jitter                      |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                         last SR (LSR)                         |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                   delay since last SR (DLSR)                  |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+

const RtcpReportBlockLength = 24

type RtcpReportBlock struct {
	Ssrc               uint32
	FractionLost       uint8
	CumulativeLost     int32 // 24b，有符号
	ExtendedHighestSeq uint32
	Jitter             uint32
	Lsr                uint32
	Dlsr               uint32
}

// ParseRtcpReportBlock 调用方保证`b`的长度>=24
func ParseRtcpReportBlock(b []byte) (rb RtcpReportBlock) {
	rb.Ssrc = bele.BeUint32(b)
	rb.FractionLost = b[4]
	lost := bele.BeUint24(b[5:])
	if lost&0x800000 != 0 {
		rb.CumulativeLost = int32(lost | 0xFF000000)
	} else {
		rb.CumulativeLost = int32(lost)
	}
	rb.ExtendedHighestSeq = bele.BeUint32(b[8:])
	rb.Jitter = bele.BeUint32(b[12:])
	rb.Lsr = bele.BeUint32(b[16:])
	rb.Dlsr = bele.BeUint32(b[20:])
	return
}

// PackTo 调用方保证`out`的长度>=24
func (rb *RtcpReportBlock) PackTo(out []byte) {
	bele.BePutUint32(out, rb.Ssrc)
	out[4] = rb.FractionLost
	bele.BePutUint24(out[5:], uint32(rb.CumulativeLost)&0xFFFFFF)
	bele.BePutUint32(out[8:], rb.ExtendedHighestSeq)
	bele.BePutUint32(out[12:], rb.Jitter)
	bele.BePutUint32(out[16:], rb.Lsr)
	bele.BePutUint32(out[20:], rb.Dlsr)
}

func parseRtcpReportBlocks(b []byte, count int) []RtcpReportBlock {
	if count == 0 {
		return nil
	}
	ret := make([]RtcpReportBlock, count)
	for i := range ret {
		ret[i] = ParseRtcpReportBlock(b[i*RtcpReportBlockLength:])
	}
	return ret
}
