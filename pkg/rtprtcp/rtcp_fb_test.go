// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"testing"

	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/assert"
)

func TestMakeRtcpNackPairs(t *testing.T) {
	golden := []struct {
		missing []uint16
		pairs   []rtprtcp.RtcpNackPair
	}{
		{nil, nil},
		{[]uint16{100}, []rtprtcp.RtcpNackPair{{Pid: 100, Blp: 0}}},
		{[]uint16{100, 101, 105, 117, 118}, []rtprtcp.RtcpNackPair{{Pid: 100, Blp: 0x0011}, {Pid: 117, Blp: 0x0001}}},
		// 乱序，重复
		{[]uint16{118, 100, 117, 105, 101, 105}, []rtprtcp.RtcpNackPair{{Pid: 100, Blp: 0x0011}, {Pid: 117, Blp: 0x0001}}},
		{[]uint16{100, 116}, []rtprtcp.RtcpNackPair{{Pid: 100, Blp: 0x8000}}},
		// 序号翻转
		{[]uint16{2, 65535, 0}, []rtprtcp.RtcpNackPair{{Pid: 65535, Blp: 0x0005}}},
	}
	for _, item := range golden {
		assert.Equal(t, item.pairs, rtprtcp.MakeRtcpNackPairs(item.missing))
	}
}

func TestRtcpFbNackPacket(t *testing.T) {
	nack := rtprtcp.NewRtcpFbNackPacket(0x01020304, 0x05060708, []uint16{65535, 0, 2, 40})
	expected := []byte{
		0x81, 0xcd, 0x00, 0x04,
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0xff, 0xff, 0x00, 0x05,
		0x00, 0x28, 0x00, 0x00,
	}
	assert.Equal(t, expected, nack.Bytes())
	nack.Release()

	pkt, err := rtprtcp.ParseRtcpPacket(expected, 0, len(expected))
	assert.Equal(t, nil, err)
	parsed := pkt.(*rtprtcp.RtcpFbNackPacket)
	assert.Equal(t, rtprtcp.RtcpFmtNack, parsed.Format())
	assert.Equal(t, uint32(0x05060708), parsed.MediaSsrc())
	assert.Equal(t, []uint16{65535, 0, 2, 40}, parsed.MissingSeqNums())
	assert.Equal(t, 2, len(parsed.NackPairs()))
}

func TestRtcpFbNackPacket_Empty(t *testing.T) {
	assert.Equal(t, true, rtprtcp.NewRtcpFbNackPacket(1, 2, nil) == nil)
	assert.Equal(t, true, rtprtcp.NewRtcpFbNackPacket(1, 2, []uint16{}) == nil)

	// 非空时构造出的包一定能被解析
	nack := rtprtcp.NewRtcpFbNackPacket(1, 2, []uint16{7})
	compound := rtprtcp.NewCompoundRtcpPacket([]rtprtcp.RtcpPacket{nack})
	assert.Equal(t, 1, len(compound.Packets()))
	compound.Release()
	nack.Release()
}

func TestRtcpFbPliPacket(t *testing.T) {
	pli := rtprtcp.NewRtcpFbPliPacket(1, 2)
	expected := []byte{0x81, 0xce, 0x00, 0x02, 0, 0, 0, 1, 0, 0, 0, 2}
	assert.Equal(t, expected, pli.Bytes())
	pli.Release()

	pkt, err := rtprtcp.ParseRtcpPacket(expected, 0, len(expected))
	assert.Equal(t, nil, err)
	parsed := pkt.(*rtprtcp.RtcpFbPliPacket)
	assert.Equal(t, uint32(1), parsed.SenderSsrc())
	assert.Equal(t, uint32(2), parsed.MediaSsrc())
	assert.Equal(t, 0, len(parsed.Fci()))

	parsed.SetMediaSsrc(3)
	assert.Equal(t, uint32(3), parsed.MediaSsrc())
	assert.Equal(t, uint8(3), expected[11])
}

func TestRtcpFbFirPacket(t *testing.T) {
	b := []byte{
		0x84, 0xce, 0x00, 0x04,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x7b,
		0xdc, 0x00, 0x00, 0x00,
	}
	pkt, err := rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)
	parsed := pkt.(*rtprtcp.RtcpFbFirPacket)
	assert.Equal(t, rtprtcp.RtcpFmtFir, parsed.Format())
	assert.Equal(t, []rtprtcp.RtcpFirEntry{{Ssrc: 123, Seq: 220}}, parsed.Entries())

	fir := rtprtcp.NewRtcpFbFirPacket(1, []rtprtcp.RtcpFirEntry{{Ssrc: 123, Seq: 220}})
	assert.Equal(t, b, fir.Bytes())
	fir.Release()
}

func TestEncodeRembBitrate(t *testing.T) {
	golden := []struct {
		bitrate  uint64
		exp      uint8
		mantissa uint32
	}{
		{0, 0, 0},
		{262143, 0, 262143},
		{262144, 1, 131072},
		{1000000, 2, 250000},
		{1000001, 2, 250000},
	}
	for _, item := range golden {
		exp, mantissa := rtprtcp.EncodeRembBitrate(item.bitrate)
		assert.Equal(t, item.exp, exp)
		assert.Equal(t, item.mantissa, mantissa)
	}

	// 舍去低位
	exp, mantissa := rtprtcp.EncodeRembBitrate(^uint64(0))
	assert.Equal(t, uint8(46), exp)
	assert.Equal(t, uint32(0x3FFFF), mantissa)
}

func TestRtcpFbRembPacket(t *testing.T) {
	remb := rtprtcp.NewRtcpFbRembPacket(1, 1000000, []uint32{0x11111111, 0x22222222})
	expected := []byte{
		0x8f, 0xce, 0x00, 0x06,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		'R', 'E', 'M', 'B',
		0x02, 0x0b, 0xd0, 0x90,
		0x11, 0x11, 0x11, 0x11,
		0x22, 0x22, 0x22, 0x22,
	}
	assert.Equal(t, expected, remb.Bytes())
	assert.Equal(t, uint64(1000000), remb.Bitrate())
	remb.Release()

	pkt, err := rtprtcp.ParseRtcpPacket(expected, 0, len(expected))
	assert.Equal(t, nil, err)
	parsed := pkt.(*rtprtcp.RtcpFbRembPacket)
	assert.Equal(t, uint64(1000000), parsed.Bitrate())
	assert.Equal(t, []uint32{0x11111111, 0x22222222}, parsed.Ssrcs())

	// ssrc个数超出包
	expected[16] = 3
	_, err = rtprtcp.ParseRtcpPacket(expected, 0, len(expected))
	assert.IsNotNil(t, err)
}
