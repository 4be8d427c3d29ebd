// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"fmt"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc3550 6.6 BYE: Goodbye RTCP Packet
//
//        0                   1                   2                   3
//        0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       |V=2|P|    SC   |   PT=BYE=203  |             length            |
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       |                           SSRC/CSRC                           |
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       :                              ...                              :
//       +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// (opt) |     length    |               reason for leaving            ...
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

type RtcpByePacket struct {
	rtcpPacketBase
}

// NewRtcpByePacket
//
// @param reason: 可以为空，超过255字节时被截断
//
func NewRtcpByePacket(ssrcs []uint32, reason string) *RtcpByePacket {
	if len(ssrcs) > RtcpMaxCount {
		ssrcs = ssrcs[:RtcpMaxCount]
	}
	if len(reason) > 255 {
		reason = reason[:255]
	}
	size := RtcpCommonHeaderLength + 4*len(ssrcs)
	if len(reason) > 0 {
		size += roundUp4(1 + len(reason))
	}

	var ssrc uint32
	if len(ssrcs) > 0 {
		ssrc = ssrcs[0]
	}
	p := &RtcpByePacket{
		rtcpPacketBase: newRtcpPacketBase(RtcpPacketTypeBye, uint8(len(ssrcs)), ssrc, size),
	}
	b := p.Bytes()
	pos := RtcpCommonHeaderLength
	for _, s := range ssrcs {
		bele.BePutUint32(b[pos:], s)
		pos += 4
	}
	if len(reason) > 0 {
		b[pos] = uint8(len(reason))
		copy(b[pos+1:], reason)
	}
	return p
}

func newRtcpByePacket(rpb rtcpPacketBase) (*RtcpByePacket, error) {
	end := rpb.payloadEnd()
	pos := RtcpCommonHeaderLength + 4*rpb.ReportCount()
	if pos > end {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("bye ssrc list truncated. need=%d, actual=%d", pos, end))
	}
	if pos < end {
		l := int(rpb.Bytes()[pos])
		if pos+1+l > end {
			return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("bye reason truncated. need=%d, actual=%d", pos+1+l, end))
		}
	}
	return &RtcpByePacket{rtcpPacketBase: rpb}, nil
}

func (p *RtcpByePacket) Ssrcs() []uint32 {
	n := p.ReportCount()
	ret := make([]uint32, n)
	b := p.Bytes()
	for i := range ret {
		ret[i] = bele.BeUint32(b[RtcpCommonHeaderLength+4*i:])
	}
	return ret
}

// Reason 没有时返回空字符串
func (p *RtcpByePacket) Reason() string {
	pos := RtcpCommonHeaderLength + 4*p.ReportCount()
	if pos >= p.payloadEnd() {
		return ""
	}
	b := p.Bytes()
	l := int(b[pos])
	return string(b[pos+1 : pos+1+l])
}
