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
	"sort"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc4585 6.2.1. Generic NACK
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |            PID                |             BLP               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// PID: 丢失包的序号
// BLP: 位图，第i位（从最低位开始）为1表示PID+i+1也丢失了
//

const rtcpNackPairLength = 4

type RtcpNackPair struct {
	Pid uint16
	Blp uint16
}

type RtcpFbNackPacket struct {
	rtcpFbPacketBase
}

// NewRtcpFbNackPacket
//
// @param missing: 丢失的包序号，内部会排序（处理翻转）并合并成PID+BLP
//
// @return missing为空时返回nil，nack至少需要一个PID+BLP
//
func NewRtcpFbNackPacket(senderSsrc uint32, mediaSsrc uint32, missing []uint16) *RtcpFbNackPacket {
	if len(missing) == 0 {
		return nil
	}
	pairs := MakeRtcpNackPairs(missing)
	p := &RtcpFbNackPacket{
		rtcpFbPacketBase: newRtcpFbPacketBase(RtcpPacketTypeRtpfb, RtcpFmtNack, senderSsrc, mediaSsrc, rtcpNackPairLength*len(pairs)),
	}
	b := p.Bytes()
	for i, pair := range pairs {
		bele.BePutUint16(b[RtcpFbHeaderLength+i*rtcpNackPairLength:], pair.Pid)
		bele.BePutUint16(b[RtcpFbHeaderLength+i*rtcpNackPairLength+2:], pair.Blp)
	}
	return p
}

func newRtcpFbNackPacket(rpb rtcpPacketBase) (*RtcpFbNackPacket, error) {
	fpb, err := checkRtcpFbPacket(rpb)
	if err != nil {
		return nil, err
	}
	fci := fpb.Fci()
	if len(fci) == 0 || len(fci)%rtcpNackPairLength != 0 {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("invalid nack fci length. len=%d", len(fci)))
	}
	return &RtcpFbNackPacket{rtcpFbPacketBase: fpb}, nil
}

func (p *RtcpFbNackPacket) NackPairs() []RtcpNackPair {
	fci := p.Fci()
	ret := make([]RtcpNackPair, len(fci)/rtcpNackPairLength)
	for i := range ret {
		ret[i].Pid = bele.BeUint16(fci[i*rtcpNackPairLength:])
		ret[i].Blp = bele.BeUint16(fci[i*rtcpNackPairLength+2:])
	}
	return ret
}

// MissingSeqNums 所有丢失的包序号
func (p *RtcpFbNackPacket) MissingSeqNums() []uint16 {
	var ret []uint16
	for _, pair := range p.NackPairs() {
		ret = append(ret, pair.Pid)
		for i := uint16(0); i < 16; i++ {
			if pair.Blp&(1<<i) != 0 {
				ret = append(ret, pair.Pid+i+1)
			}
		}
	}
	return ret
}

// MakeRtcpNackPairs 将丢失包序号合并成PID+BLP
func MakeRtcpNackPairs(missing []uint16) []RtcpNackPair {
	if len(missing) == 0 {
		return nil
	}
	seqs := make([]uint16, len(missing))
	copy(seqs, missing)
	sort.Slice(seqs, func(i, j int) bool {
		return CompareSeq(seqs[i], seqs[j]) < 0
	})

	var pairs []RtcpNackPair
	for _, seq := range seqs {
		if len(pairs) > 0 {
			last := &pairs[len(pairs)-1]
			d := SubSeq(seq, last.Pid)
			if d == 0 {
				continue
			}
			if d > 0 && d <= 16 {
				last.Blp |= 1 << uint(d-1)
				continue
			}
		}
		pairs = append(pairs, RtcpNackPair{Pid: seq})
	}
	return pairs
}
