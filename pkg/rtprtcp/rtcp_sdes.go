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

// rfc3550 6.5 SDES: Source Description RTCP Packet
//
//         0                   1                   2                   3
//         0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//        +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// header |V=2|P|    SC   |  PT=SDES=202  |             length            |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// chunk  |                          SSRC/CSRC_1                          |
//   1    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                           SDES items                          |
//        |                              ...                              |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// chunk  |                          SSRC/CSRC_2                          |
//   2    +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//        |                           SDES items                          |
//        |                              ...                              |
//        +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//
// 每个item是 type(8b) length(8b) text，chunk以type为0的END结束，并填充0到4字节对齐
//

const (
	RtcpSdesEnd   = 0
	RtcpSdesCname = 1
	RtcpSdesName  = 2
	RtcpSdesEmail = 3
	RtcpSdesPhone = 4
	RtcpSdesLoc   = 5
	RtcpSdesTool  = 6
	RtcpSdesNote  = 7
	RtcpSdesPriv  = 8
)

type RtcpSdesItem struct {
	Type uint8
	Text []byte
}

type RtcpSdesChunk struct {
	Ssrc  uint32
	Items []RtcpSdesItem
}

type RtcpSdesPacket struct {
	rtcpPacketBase

	chunks []RtcpSdesChunk
}

// NewRtcpSdesPacket
//
// 注意，item的text超过255字节时被截断
//
func NewRtcpSdesPacket(chunks []RtcpSdesChunk) *RtcpSdesPacket {
	if len(chunks) > RtcpMaxCount {
		chunks = chunks[:RtcpMaxCount]
	}
	size := RtcpCommonHeaderLength
	for _, c := range chunks {
		size += sdesChunkLength(c)
	}

	var ssrc uint32
	if len(chunks) > 0 {
		ssrc = chunks[0].Ssrc
	}
	p := &RtcpSdesPacket{
		rtcpPacketBase: newRtcpPacketBase(RtcpPacketTypeSdes, uint8(len(chunks)), ssrc, size),
	}
	b := p.Bytes()
	pos := RtcpCommonHeaderLength
	for _, c := range chunks {
		bele.BePutUint32(b[pos:], c.Ssrc)
		i := pos + 4
		for _, item := range c.Items {
			text := item.Text
			if len(text) > 255 {
				text = text[:255]
			}
			b[i] = item.Type
			b[i+1] = uint8(len(text))
			copy(b[i+2:], text)
			i += 2 + len(text)
		}
		// END和对齐部分已经是0
		pos += sdesChunkLength(c)
	}
	p.chunks, _ = parseSdesChunks(b, len(chunks), len(b))
	return p
}

func newRtcpSdesPacket(rpb rtcpPacketBase) (*RtcpSdesPacket, error) {
	chunks, err := parseSdesChunks(rpb.Bytes(), rpb.ReportCount(), rpb.payloadEnd())
	if err != nil {
		return nil, err
	}
	return &RtcpSdesPacket{
		rtcpPacketBase: rpb,
		chunks:         chunks,
	}, nil
}

// Chunks 注意，item的text引用包的内存块
func (p *RtcpSdesPacket) Chunks() []RtcpSdesChunk {
	return p.chunks
}

// Cname 第一个chunk的cname
func (p *RtcpSdesPacket) Cname() (string, bool) {
	for _, c := range p.chunks {
		for _, item := range c.Items {
			if item.Type == RtcpSdesCname {
				return string(item.Text), true
			}
		}
	}
	return "", false
}

func sdesChunkLength(c RtcpSdesChunk) int {
	n := 4
	for _, item := range c.Items {
		l := len(item.Text)
		if l > 255 {
			l = 255
		}
		n += 2 + l
	}
	n++ // END
	return roundUp4(n)
}

func parseSdesChunks(b []byte, count int, end int) ([]RtcpSdesChunk, error) {
	chunks := make([]RtcpSdesChunk, 0, count)
	pos := RtcpCommonHeaderLength
	for i := 0; i < count; i++ {
		if pos+4 > end {
			return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("sdes chunk truncated. pos=%d, end=%d", pos, end))
		}
		c := RtcpSdesChunk{Ssrc: bele.BeUint32(b[pos:])}
		pos += 4
		for {
			if pos >= end {
				return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("sdes chunk without end. pos=%d, end=%d", pos, end))
			}
			typ := b[pos]
			if typ == RtcpSdesEnd {
				pos++
				break
			}
			if pos+2 > end || pos+2+int(b[pos+1]) > end {
				return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("sdes item truncated. pos=%d, end=%d", pos, end))
			}
			l := int(b[pos+1])
			c.Items = append(c.Items, RtcpSdesItem{Type: typ, Text: b[pos+2 : pos+2+l]})
			pos += 2 + l
		}
		// 跳过对齐部分
		pos = roundUp4(pos)
		chunks = append(chunks, c)
	}
	if pos > end {
		return nil, nazaerrors.Wrap(base.ErrRtcpMalformed, fmt.Sprintf("sdes chunk padding beyond packet. pos=%d, end=%d", pos, end))
	}
	return chunks, nil
}
