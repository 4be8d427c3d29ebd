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

// rfc5104 4.3.1.1. Full Intra Request (FIR)
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                              SSRC                             |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// | Seq nr.       |    Reserved                                   |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// 注意，FIR的media ssrc字段没有使用，填0
//

const rtcpFirEntryLength = 8

type RtcpFirEntry struct {
	Ssrc uint32
	Seq  uint8
}

type RtcpFbFirPacket struct {
	rtcpFbPacketBase
}

func NewRtcpFbFirPacket(senderSsrc uint32, entries []RtcpFirEntry) *RtcpFbFirPacket {
	p := &RtcpFbFirPacket{
		rtcpFbPacketBase: newRtcpFbPacketBase(RtcpPacketTypePsfb, RtcpFmtFir, senderSsrc, 0, rtcpFirEntryLength*len(entries)),
	}
	b := p.Bytes()
	for i, e := range entries {
		pos := RtcpFbHeaderLength + i*rtcpFirEntryLength
		bele.BePutUint32(b[pos:], e.Ssrc)
		b[pos+4] = e.Seq
	}
	return p
}

func newRtcpFbFirPacket(rpb rtcpPacketBase) (*RtcpFbFirPacket, error) {
	fpb, err := checkRtcpFbPacket(rpb)
	if err != nil {
		return nil, err
	}
	fci := fpb.Fci()
	if len(fci) == 0 || len(fci)%rtcpFirEntryLength != 0 {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("invalid fir fci length. len=%d", len(fci)))
	}
	return &RtcpFbFirPacket{rtcpFbPacketBase: fpb}, nil
}

func (p *RtcpFbFirPacket) Entries() []RtcpFirEntry {
	fci := p.Fci()
	ret := make([]RtcpFirEntry, len(fci)/rtcpFirEntryLength)
	for i := range ret {
		ret[i].Ssrc = bele.BeUint32(fci[i*rtcpFirEntryLength:])
		ret[i].Seq = fci[i*rtcpFirEntryLength+4]
	}
	return ret
}
