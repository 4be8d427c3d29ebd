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

// rfc4588 4. RTP Payload Format
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                         RTP Header                            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |            OSN                |                               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+                               |
// |                  Original RTP Packet Payload                  |
// |                                                               |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const rtxOsnLength = 2

// OriginalSequenceNumber rtx包payload前2字节记录的原始包序号
func (p *RtpPacket) OriginalSequenceNumber() (uint16, error) {
	if p.PayloadLength() < rtxOsnLength {
		return 0, nazaerrors.Wrap(base.ErrRtpRtxMalformed, fmt.Sprintf("payload=%d", p.PayloadLength()))
	}
	return bele.BeUint16(p.buf[p.offset+p.HeaderLength():]), nil
}

// DecapsulateRtx 原地将rtx包还原为原始包：去掉OSN，序号设置为OSN
//
// @param payloadType: 原始包的payload type
// @param ssrc:        原始包的ssrc
//
func (p *RtpPacket) DecapsulateRtx(payloadType uint8, ssrc uint32) error {
	osn, err := p.OriginalSequenceNumber()
	if err != nil {
		return err
	}
	p.shrinkAt(p.HeaderLength(), rtxOsnLength)
	p.SetSequenceNumber(osn)
	p.SetPayloadType(payloadType)
	p.SetSsrc(ssrc)
	return nil
}

// EncapsulateRtx 原地将原始包封装为rtx包：在payload前插入原始序号
//
// @param payloadType: rtx的payload type
// @param ssrc:        rtx流的ssrc
// @param seq:         rtx流的序号
//
func (p *RtpPacket) EncapsulateRtx(payloadType uint8, ssrc uint32, seq uint16) {
	osn := p.SequenceNumber()
	pos := p.HeaderLength()
	p.growAt(pos, rtxOsnLength)
	bele.BePutUint16(p.buf[p.offset+pos:], osn)
	p.SetSequenceNumber(seq)
	p.SetPayloadType(payloadType)
	p.SetSsrc(ssrc)
}
