// Copyright 2020, Chef.  All rights reserved.
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
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// ---------------------------------------------
// rfc3550 6.4.2 RR: Receiver Report RTCP Packet
// ---------------------------------------------
//
//        0                   1                   2                   3
//        0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// header |V=2|P|    RC   |   PT=RR=201   |             length            |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                     SSRC of packet sender                     |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// report |                 SSRC_1 (SSRC of first source)                 |
// block  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   1    :                               ...                             :
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//        |                  profile-specific extensions                  |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

type RtcpRrPacket struct {
	rtcpPacketBase
}

func NewRtcpRrPacket(senderSsrc uint32, blocks []RtcpReportBlock) *RtcpRrPacket {
	if len(blocks) > RtcpMaxCount {
		blocks = blocks[:RtcpMaxCount]
	}
	size := RtcpHeaderLength + RtcpReportBlockLength*len(blocks)
	p := &RtcpRrPacket{
		rtcpPacketBase: newRtcpPacketBase(RtcpPacketTypeRr, uint8(len(blocks)), senderSsrc, size),
	}
	b := p.Bytes()
	for i := range blocks {
		blocks[i].PackTo(b[RtcpHeaderLength+i*RtcpReportBlockLength:])
	}
	return p
}

func newRtcpRrPacket(rpb rtcpPacketBase) (*RtcpRrPacket, error) {
	need := RtcpHeaderLength + RtcpReportBlockLength*rpb.ReportCount()
	if rpb.payloadEnd() < need {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("rr too short. need=%d, actual=%d", need, rpb.payloadEnd()))
	}
	return &RtcpRrPacket{rtcpPacketBase: rpb}, nil
}

func (p *RtcpRrPacket) ReportBlocks() []RtcpReportBlock {
	return parseRtcpReportBlocks(p.Bytes()[RtcpHeaderLength:], p.ReportCount())
}
