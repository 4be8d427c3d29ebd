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
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc4571 2. Framing Method
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// ---------------------------------------------------------------
// |             LENGTH            |  RTP or RTCP packet ...       |
// ---------------------------------------------------------------
//
// 基于tcp等流式传输时，每个rtp/rtcp包前面加2字节的长度
//

const (
	StreamFrameHeaderLength = 2
	StreamFrameMaxLength    = 0xFFFF
)

// OnStreamFrame
//
// @param pkt:    拷贝到内存池申请的内存块中，所有权转移给回调
// @param isRtcp: 见 IsRtcpPacket
//
type OnStreamFrame func(pkt *Packet, isRtcp bool)

// StreamFramer 从流中拆分出rtp/rtcp包
type StreamFramer struct {
	buf     *nazabytes.Buffer
	onFrame OnStreamFrame
}

func NewStreamFramer(onFrame OnStreamFrame) *StreamFramer {
	return &StreamFramer{
		buf:     nazabytes.NewBuffer(4096),
		onFrame: onFrame,
	}
}

// Feed 输入从流中读取到的数据，可以是任意大小的片段，凑齐完整的包后回调
func (f *StreamFramer) Feed(b []byte) {
	_, _ = f.buf.Write(b)
	for f.buf.Len() >= StreamFrameHeaderLength {
		rb := f.buf.Bytes()
		l := int(bele.BeUint16(rb))
		if len(rb) < StreamFrameHeaderLength+l {
			return
		}
		frame := rb[StreamFrameHeaderLength : StreamFrameHeaderLength+l]
		// 长度为0的帧直接跳过
		if l != 0 {
			f.onFrame(NewPacketFromBytes(frame), IsRtcpPacket(frame))
		}
		f.buf.Skip(StreamFrameHeaderLength + l)
	}
}

// Buffered 还没有凑齐一个完整包的数据长度
func (f *StreamFramer) Buffered() int {
	return f.buf.Len()
}

// PackStreamFrame 包前面加上2字节长度
func PackStreamFrame(b []byte) ([]byte, error) {
	if len(b) > StreamFrameMaxLength {
		return nil, nazaerrors.Wrap(base.ErrStreamFrameLarge, fmt.Sprintf("len=%d", len(b)))
	}
	ret := make([]byte, StreamFrameHeaderLength+len(b))
	bele.BePutUint16(ret, uint16(len(b)))
	copy(ret[StreamFrameHeaderLength:], b)
	return ret, nil
}

// PrependStreamFrameHeader 在包的预留头部空间中写入2字节长度，不拷贝包内容（头部空间不够时重新申请内存块）
func PrependStreamFrameHeader(pkt *Packet) error {
	l := pkt.Length()
	if l > StreamFrameMaxLength {
		return nazaerrors.Wrap(base.ErrStreamFrameLarge, fmt.Sprintf("len=%d", l))
	}
	bele.BePutUint16(pkt.GrowHead(StreamFrameHeaderLength), uint16(l))
	return nil
}
