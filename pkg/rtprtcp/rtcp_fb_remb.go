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

// draft-alvestrand-rmcat-remb-03 2.2. Definition
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P| FMT=15  |   PT=206      |             length            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                  SSRC of packet sender                        |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                  SSRC of media source                         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  Unique identifier 'R' 'E' 'M' 'B'                            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  Num SSRC     | BR Exp    |  BR Mantissa                      |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |   SSRC feedback                                               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  ...                                                          |
//
// bitrate = mantissa * 2^exp，单位bps
//

const (
	rtcpRembFixedFciLength = 8
	rtcpRembMaxMantissa    = 0x3FFFF
	rtcpRembMaxExp         = 0x3F
)

var rembIdentifier = []byte{'R', 'E', 'M', 'B'}

type RtcpFbRembPacket struct {
	rtcpFbPacketBase
}

func NewRtcpFbRembPacket(senderSsrc uint32, bitrate uint64, ssrcs []uint32) *RtcpFbRembPacket {
	if len(ssrcs) > 255 {
		ssrcs = ssrcs[:255]
	}
	p := &RtcpFbRembPacket{
		rtcpFbPacketBase: newRtcpFbPacketBase(RtcpPacketTypePsfb, RtcpFmtRemb, senderSsrc, 0, rtcpRembFixedFciLength+4*len(ssrcs)),
	}
	b := p.Bytes()
	copy(b[RtcpFbHeaderLength:], rembIdentifier)
	b[16] = uint8(len(ssrcs))
	exp, mantissa := EncodeRembBitrate(bitrate)
	bele.BePutUint24(b[17:], uint32(exp)<<18|mantissa)
	for i, ssrc := range ssrcs {
		bele.BePutUint32(b[20+4*i:], ssrc)
	}
	return p
}

func newRtcpFbRembPacket(rpb rtcpPacketBase) (*RtcpFbRembPacket, error) {
	fpb, err := checkRtcpFbPacket(rpb)
	if err != nil {
		return nil, err
	}
	fci := fpb.Fci()
	if len(fci) < rtcpRembFixedFciLength {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("remb too short. len=%d", len(fci)))
	}
	need := rtcpRembFixedFciLength + 4*int(fci[4])
	if len(fci) < need {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("remb ssrc list truncated. need=%d, actual=%d", need, len(fci)))
	}
	return &RtcpFbRembPacket{rtcpFbPacketBase: fpb}, nil
}

// Bitrate 单位bps
func (p *RtcpFbRembPacket) Bitrate() uint64 {
	v := bele.BeUint24(p.Fci()[5:])
	return uint64(v&rtcpRembMaxMantissa) << (v >> 18)
}

func (p *RtcpFbRembPacket) Ssrcs() []uint32 {
	fci := p.Fci()
	ret := make([]uint32, fci[4])
	for i := range ret {
		ret[i] = bele.BeUint32(fci[rtcpRembFixedFciLength+4*i:])
	}
	return ret
}

// EncodeRembBitrate 将码率转换为exp和18位的mantissa，精度不够时舍去低位
func EncodeRembBitrate(bitrate uint64) (exp uint8, mantissa uint32) {
	for bitrate > rtcpRembMaxMantissa && exp < rtcpRembMaxExp {
		bitrate >>= 1
		exp++
	}
	if bitrate > rtcpRembMaxMantissa {
		bitrate = rtcpRembMaxMantissa
	}
	return exp, uint32(bitrate)
}

func isRemb(b []byte) bool {
	if len(b) < RtcpFbHeaderLength+4 {
		return false
	}
	fci := b[RtcpFbHeaderLength:]
	return fci[0] == 'R' && fci[1] == 'E' && fci[2] == 'M' && fci[3] == 'B'
}
