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
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// -------------------------------------------
// rfc3550 6.4.1 SR: Sender Report RTCP Packet
// -------------------------------------------
//
//        0                   1                   2                   3
//        0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// header |V=2|P|    RC   |   PT=SR=200   |             length            |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                         SSRC of sender                        |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// sender |              NTP timestamp, most significant word             |
// info   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |             NTP timestamp, least significant word             |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                         RTP timestamp                         |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                     sender's packet count                     |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                      sender's octet count                     |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// report |                 SSRC_1 (SSRC of first source)                 |
// block  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   1    :                               ...                             :
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//        |                  profile-specific extensions                  |
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const rtcpSenderInfoLength = 20

type RtcpSenderInfo struct {
	Msw       uint32 // NTP timestamp, most significant word
	Lsw       uint32 // NTP timestamp, least significant word
	Timestamp uint32
	PktCnt    uint32
	OctetCnt  uint32
}

type RtcpSrPacket struct {
	rtcpPacketBase
}

func NewRtcpSrPacket(senderSsrc uint32, info RtcpSenderInfo, blocks []RtcpReportBlock) *RtcpSrPacket {
	if len(blocks) > RtcpMaxCount {
		blocks = blocks[:RtcpMaxCount]
	}
	size := RtcpHeaderLength + rtcpSenderInfoLength + RtcpReportBlockLength*len(blocks)
	p := &RtcpSrPacket{
		rtcpPacketBase: newRtcpPacketBase(RtcpPacketTypeSr, uint8(len(blocks)), senderSsrc, size),
	}
	b := p.Bytes()
	bele.BePutUint32(b[8:], info.Msw)
	bele.BePutUint32(b[12:], info.Lsw)
	bele.BePutUint32(b[16:], info.Timestamp)
	bele.BePutUint32(b[20:], info.PktCnt)
	bele.BePutUint32(b[24:], info.OctetCnt)
	for i := range blocks {
		blocks[i].PackTo(b[RtcpHeaderLength+rtcpSenderInfoLength+i*RtcpReportBlockLength:])
	}
	return p
}

func newRtcpSrPacket(rpb rtcpPacketBase) (*RtcpSrPacket, error) {
	need := RtcpHeaderLength + rtcpSenderInfoLength + RtcpReportBlockLength*rpb.ReportCount()
	if rpb.payloadEnd() < need {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("sr too short. need=%d, actual=%d", need, rpb.payloadEnd()))
	}
	return &RtcpSrPacket{rtcpPacketBase: rpb}, nil
}

// ParseSr rfc3550 6.4.1
//
// 兼容老接口，`b`为整个sr包，包含包头
//
func ParseSr(b []byte) (ssrc uint32, info RtcpSenderInfo) {
	ssrc = bele.BeUint32(b[4:])
	info.Msw = bele.BeUint32(b[8:])
	info.Lsw = bele.BeUint32(b[12:])
	info.Timestamp = bele.BeUint32(b[16:])
	info.PktCnt = bele.BeUint32(b[20:])
	info.OctetCnt = bele.BeUint32(b[24:])
	return
}

func (p *RtcpSrPacket) SenderInfo() RtcpSenderInfo {
	_, info := ParseSr(p.Bytes())
	return info
}

func (p *RtcpSrPacket) ReportBlocks() []RtcpReportBlock {
	return parseRtcpReportBlocks(p.Bytes()[RtcpHeaderLength+rtcpSenderInfoLength:], p.ReportCount())
}

// MiddleNtp ntp时间戳中间的32位，rr包中的lsr字段使用
func (p *RtcpSrPacket) MiddleNtp() uint32 {
	info := p.SenderInfo()
	return info.MiddleNtp()
}

func (s *RtcpSenderInfo) MiddleNtp() uint32 {
	return s.NtpTime().Middle()
}

func (s *RtcpSenderInfo) NtpTime() NtpTime {
	return NtpTimeFromMswLsw(s.Msw, s.Lsw)
}
