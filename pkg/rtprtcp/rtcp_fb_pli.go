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
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc4585 6.3.1. Picture Loss Indication (PLI)
//
// PLI没有FCI部分，整个包12字节
//

type RtcpFbPliPacket struct {
	rtcpFbPacketBase
}

func NewRtcpFbPliPacket(senderSsrc uint32, mediaSsrc uint32) *RtcpFbPliPacket {
	return &RtcpFbPliPacket{
		rtcpFbPacketBase: newRtcpFbPacketBase(RtcpPacketTypePsfb, RtcpFmtPli, senderSsrc, mediaSsrc, 0),
	}
}

func newRtcpFbPliPacket(rpb rtcpPacketBase) (*RtcpFbPliPacket, error) {
	fpb, err := checkRtcpFbPacket(rpb)
	if err != nil {
		return nil, err
	}
	if len(fpb.Fci()) != 0 {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("pli with fci. len=%d", len(fpb.Fci())))
	}
	return &RtcpFbPliPacket{rtcpFbPacketBase: fpb}, nil
}
