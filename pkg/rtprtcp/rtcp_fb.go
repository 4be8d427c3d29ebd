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

// rfc4585 6.1. Common Packet Format for Feedback Messages
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|   FMT   |       PT      |          length               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                  SSRC of packet sender                        |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                  SSRC of media source                         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// :            Feedback Control Information (FCI)                 :
// :                                                               :
//

const (
	RtcpFbHeaderLength = 12
)

// rtcpFbPacketBase 所有反馈包共用的部分
type rtcpFbPacketBase struct {
	rtcpPacketBase
}

func newRtcpFbPacketBase(packetType uint8, format uint8, senderSsrc uint32, mediaSsrc uint32, fciLength int) rtcpFbPacketBase {
	fpb := rtcpFbPacketBase{
		rtcpPacketBase: newRtcpPacketBase(packetType, format, senderSsrc, RtcpFbHeaderLength+fciLength),
	}
	fpb.SetMediaSsrc(mediaSsrc)
	return fpb
}

func checkRtcpFbPacket(rpb rtcpPacketBase) (rtcpFbPacketBase, error) {
	if rpb.payloadEnd() < RtcpFbHeaderLength {
		return rtcpFbPacketBase{}, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("feedback too short. need=%d, actual=%d", RtcpFbHeaderLength, rpb.payloadEnd()))
	}
	return rtcpFbPacketBase{rtcpPacketBase: rpb}, nil
}

// Format FMT字段
func (p *rtcpFbPacketBase) Format() int {
	return p.ReportCount()
}

func (p *rtcpFbPacketBase) MediaSsrc() uint32 {
	return bele.BeUint32(p.buf[p.offset+8:])
}

func (p *rtcpFbPacketBase) SetMediaSsrc(ssrc uint32) {
	bele.BePutUint32(p.buf[p.offset+8:], ssrc)
}

// Fci 不包含padding
func (p *rtcpFbPacketBase) Fci() []byte {
	return p.Bytes()[RtcpFbHeaderLength:p.payloadEnd()]
}
