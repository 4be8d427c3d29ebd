// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"errors"
	"testing"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/assert"
)

func TestCompoundRtcpPacket(t *testing.T) {
	rr := rtprtcp.NewRtcpRrPacket(1, []rtprtcp.RtcpReportBlock{{Ssrc: 2, ExtendedHighestSeq: 100}})
	sdes := rtprtcp.NewRtcpSdesPacket([]rtprtcp.RtcpSdesChunk{
		{Ssrc: 1, Items: []rtprtcp.RtcpSdesItem{{Type: rtprtcp.RtcpSdesCname, Text: []byte("lalrtp")}}},
	})
	builder := rtprtcp.NewRtcpFbTccBuilder(1, 2, 0, 10)
	assert.Equal(t, true, builder.AddReceivedPacket(10, 64000))
	tcc := builder.Build()

	cp := rtprtcp.NewCompoundRtcpPacket([]rtprtcp.RtcpPacket{rr, sdes, tcc})
	assert.Equal(t, rr.Length()+sdes.Length()+tcc.Length(), cp.Length())
	assert.Equal(t, 3, len(cp.Packets()))

	b := copyOf(cp.Bytes())
	cp.Release()
	rr.Release()
	sdes.Release()
	tcc.Release()

	parsed, err := rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)
	packets := parsed.Packets()
	assert.Equal(t, 3, len(packets))
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeRr), packets[0].PacketType())
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeSdes), packets[1].PacketType())
	assert.Equal(t, uint8(rtprtcp.RtcpPacketTypeRtpfb), packets[2].PacketType())

	rrBlocks := packets[0].(*rtprtcp.RtcpRrPacket).ReportBlocks()
	assert.Equal(t, uint32(100), rrBlocks[0].ExtendedHighestSeq)
	cname, ok := packets[1].(*rtprtcp.RtcpSdesPacket).Cname()
	assert.Equal(t, true, ok)
	assert.Equal(t, "lalrtp", cname)
	assert.Equal(t, uint16(10), packets[2].(*rtprtcp.RtcpFbTccPacket).BaseSeq())

	// 子包是复合包内存块上的视图
	packets[0].(*rtprtcp.RtcpRrPacket).SetSenderSsrc(0xaabbccdd)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, b[4:8])

	// 子包Release不影响复合包
	packets[0].Release()
	assert.Equal(t, "lalrtp", string(packets[1].(*rtprtcp.RtcpSdesPacket).Chunks()[0].Items[0].Text))
	parsed.Release()
}

func TestCompoundRtcpPacket_Invalid(t *testing.T) {
	bye := []byte{0x81, 0xcb, 0x00, 0x01, 0x00, 0x00, 0x30, 0x39}
	rr := []byte{0x80, 0xc9, 0x00, 0x01, 0x00, 0x00, 0x30, 0x39}

	// bye后面跟着16个0
	b := append(copyOf(bye), make([]byte, 16)...)
	_, err := rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpCompound))
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpMalformed))

	// 子包长度字段超出
	b = append(copyOf(bye), 0x80, 0xc9, 0x00, 0x03, 0x00, 0x00, 0x30, 0x39)
	_, err = rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpCompound))

	// 剩余部分不够一个头
	b = append(copyOf(rr), 0x80, 0xc9)
	_, err = rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpCompound))

	// 不认识的子包
	b = append(copyOf(rr), 0x80, 0xcc, 0x00, 0x01, 0x00, 0x00, 0x30, 0x39)
	_, err = rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpCompound))
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpUnsupportedPacket))

	// 空
	_, err = rtprtcp.ParseCompoundRtcpPacket(nil, 0, 0)
	assert.Equal(t, true, errors.Is(err, base.ErrRtcpCompound))

	// 窗口超出内存块
	_, err = rtprtcp.ParseCompoundRtcpPacket(rr, 4, 8)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpRtcpShortBuffer))
}

func TestCompoundRtcpPacket_Window(t *testing.T) {
	rr := []byte{0x80, 0xc9, 0x00, 0x01, 0x00, 0x00, 0x30, 0x39}
	bye := []byte{0x81, 0xcb, 0x00, 0x01, 0x00, 0x00, 0x30, 0x39}
	buf := append([]byte{0xff, 0xff}, rr...)
	buf = append(buf, bye...)
	buf = append(buf, 0xff, 0xff, 0xff)

	cp, err := rtprtcp.ParseCompoundRtcpPacket(buf, 2, 16)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(cp.Packets()))
	assert.Equal(t, []uint32{12345}, cp.Packets()[1].(*rtprtcp.RtcpByePacket).Ssrcs())
}
