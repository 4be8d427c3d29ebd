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

// 以下包都来自chrome抓包

// run length chunk，9个small delta
var tccRunLength = []byte{
	0x8f, 0xcd, 0x00, 0x07,
	0x32, 0x0f, 0x22, 0x3a,
	0x8e, 0xe5, 0x0f, 0xae,
	0x07, 0xb1, 0x00, 0x09,
	0x19, 0xb0, 0xb1, 0x57,
	0x20, 0x09, 0xd8, 0x00,
	0x18, 0x14, 0x18, 0x14,
	0x18, 0x14, 0x18, 0x00,
}

// run length chunk + 2比特vector chunk，包含一个负的large delta
var tccMixed = []byte{
	0x8f, 0xcd, 0x00, 0x09,
	0x32, 0x0f, 0x22, 0x3a,
	0x8e, 0xe5, 0x0f, 0xae,
	0x15, 0x00, 0x00, 0x0c,
	0x19, 0xb2, 0x61, 0x58,
	0x20, 0x09, 0xe5, 0x00,
	0x08, 0x00, 0x00, 0x00,
	0x58, 0x04, 0x00, 0x00,
	0x20, 0xff, 0xfc, 0x04,
	0x00, 0x00, 0x00, 0x00,
}

// 2比特vector chunk，第一个包没收到
var tccStatusVector = []byte{
	0x8f, 0xcd, 0x00, 0x05,
	0x32, 0x0f, 0x22, 0x3a,
	0x8e, 0xe5, 0x0f, 0xae,
	0x18, 0x53, 0x00, 0x02,
	0x19, 0xb2, 0x9e, 0xa2,
	0xc4, 0x00, 0x00, 0x00,
}

type tccPacketStatus struct {
	seq         uint16
	received    bool
	timestampUs int64
}

func collectTcc(p *rtprtcp.RtcpFbTccPacket) []tccPacketStatus {
	var ret []tccPacketStatus
	p.ForEachPacket(func(seq uint16, received bool, timestampUs int64) {
		ret = append(ret, tccPacketStatus{seq, received, timestampUs})
	})
	return ret
}

func parseTcc(t *testing.T, b []byte) *rtprtcp.RtcpFbTccPacket {
	pkt, err := rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)
	tcc, ok := pkt.(*rtprtcp.RtcpFbTccPacket)
	assert.Equal(t, true, ok)
	return tcc
}

func TestRtcpFbTccPacket_RunLength(t *testing.T) {
	tcc := parseTcc(t, copyOf(tccRunLength))
	assert.Equal(t, rtprtcp.RtcpFmtTcc, tcc.Format())
	assert.Equal(t, uint32(0x320f223a), tcc.SenderSsrc())
	assert.Equal(t, uint32(0x8ee50fae), tcc.MediaSsrc())
	assert.Equal(t, uint16(1969), tcc.BaseSeq())
	assert.Equal(t, 9, tcc.PacketStatusCount())
	assert.Equal(t, uint32(1683633), tcc.ReferenceTime())
	assert.Equal(t, int64(1683633)*64000, tcc.ReferenceTimeUs())
	assert.Equal(t, uint8(87), tcc.FbPacketCount())

	ref := tcc.ReferenceTimeUs()
	deltasMs := []int64{54, 0, 6, 5, 6, 5, 6, 5, 6}
	statuses := collectTcc(tcc)
	assert.Equal(t, len(deltasMs), len(statuses))
	ts := ref
	for i, s := range statuses {
		ts += deltasMs[i] * 1000
		assert.Equal(t, uint16(1969+i), s.seq)
		assert.Equal(t, true, s.received)
		assert.Equal(t, ts, s.timestampUs)
	}
}

func TestRtcpFbTccPacket_Mixed(t *testing.T) {
	tcc := parseTcc(t, copyOf(tccMixed))
	assert.Equal(t, uint16(5376), tcc.BaseSeq())
	assert.Equal(t, 12, tcc.PacketStatusCount())
	assert.Equal(t, uint8(0x58), tcc.FbPacketCount())

	ref := tcc.ReferenceTimeUs()
	deltasMs := []int64{2, 0, 0, 0, 22, 1, 0, 0, 8, -1, 1, 0}
	statuses := collectTcc(tcc)
	assert.Equal(t, len(deltasMs), len(statuses))
	ts := ref
	for i, s := range statuses {
		ts += deltasMs[i] * 1000
		assert.Equal(t, uint16(5376+i), s.seq)
		assert.Equal(t, true, s.received)
		assert.Equal(t, ts, s.timestampUs)
	}
}

func TestRtcpFbTccPacket_StatusVector(t *testing.T) {
	tcc := parseTcc(t, copyOf(tccStatusVector))
	assert.Equal(t, uint16(6227), tcc.BaseSeq())
	assert.Equal(t, uint8(162), tcc.FbPacketCount())
	statuses := collectTcc(tcc)
	assert.Equal(t, []tccPacketStatus{
		{6227, false, 0},
		{6228, true, 107784064000},
	}, statuses)
}

func TestRtcpFbTccPacket_Malformed(t *testing.T) {
	// 去掉最后几个recv delta
	b := copyOf(tccRunLength[:24])
	b[3] = 0x05
	_, err := rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrTccMalformed))

	// chunk不够
	b = copyOf(tccRunLength[:20])
	b[3] = 0x04
	_, err = rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrTccMalformed))

	// fci不够tcc固定头
	b = copyOf(tccRunLength[:16])
	b[3] = 0x03
	_, err = rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrTccMalformed))

	// run length chunk使用保留符号
	b = copyOf(tccRunLength)
	b[20] = 0x60
	_, err = rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrTccMalformed))
	assert.Equal(t, true, base.IsMalformedPacket(err))

	// 2比特vector使用保留符号
	b = copyOf(tccStatusVector)
	b[20] = 0xcc
	_, err = rtprtcp.ParseRtcpPacket(b, 0, len(b))
	assert.Equal(t, true, errors.Is(err, base.ErrTccMalformed))
}

func TestRtcpFbTccBuilder_StatusVector(t *testing.T) {
	builder := rtprtcp.NewRtcpFbTccBuilder(839852602, 2397376430, 162, 6227)
	assert.Equal(t, true, builder.Empty())
	assert.Equal(t, true, builder.AddReceivedPacket(6228, 107784064000))
	assert.Equal(t, false, builder.Empty())
	assert.Equal(t, 2, builder.PacketStatusCount())
	assert.Equal(t, uint16(6229), builder.NextSeq())
	assert.Equal(t, tccStatusVector, builder.BuildBytes())

	// delta超出16位，添加失败，状态不变
	assert.Equal(t, false, builder.AddReceivedPacket(6229, 107784064000+10000000))
	assert.Equal(t, 2, builder.PacketStatusCount())
	assert.Equal(t, tccStatusVector, builder.BuildBytes())

	// 序号在已添加的范围内
	assert.Equal(t, false, builder.AddReceivedPacket(6228, 107784064000))
	assert.Equal(t, false, builder.AddReceivedPacket(6227, 107784064000))
	assert.Equal(t, tccStatusVector, builder.BuildBytes())
}

func rebuildTcc(t *testing.T, fixture []byte) []byte {
	tcc := parseTcc(t, copyOf(fixture))
	builder := rtprtcp.NewRtcpFbTccBuilder(tcc.SenderSsrc(), tcc.MediaSsrc(), tcc.FbPacketCount(), tcc.BaseSeq())
	tcc.ForEachPacket(func(seq uint16, received bool, timestampUs int64) {
		if received {
			assert.Equal(t, true, builder.AddReceivedPacket(seq, timestampUs))
		}
	})
	return builder.BuildBytes()
}

func TestRtcpFbTccBuilder_Rebuild(t *testing.T) {
	assert.Equal(t, tccRunLength, rebuildTcc(t, tccRunLength))
	assert.Equal(t, tccMixed, rebuildTcc(t, tccMixed))
	assert.Equal(t, tccStatusVector, rebuildTcc(t, tccStatusVector))
}

func TestRtcpFbTccBuilder_SeqWrap(t *testing.T) {
	builder := rtprtcp.NewRtcpFbTccBuilder(1, 2, 0, 65534)
	ts := int64(1000000)
	assert.Equal(t, true, builder.AddReceivedPacket(65535, ts))
	assert.Equal(t, true, builder.AddReceivedPacket(1, ts+1000))
	assert.Equal(t, uint16(2), builder.NextSeq())
	assert.Equal(t, false, builder.AddReceivedPacket(65535, ts+2000))

	tcc := builder.Build()
	statuses := collectTcc(tcc)
	tcc.Release()
	assert.Equal(t, 4, len(statuses))
	assert.Equal(t, tccPacketStatus{65534, false, 0}, statuses[0])
	assert.Equal(t, uint16(65535), statuses[1].seq)
	assert.Equal(t, true, statuses[1].received)
	assert.Equal(t, tccPacketStatus{0, false, 0}, statuses[2])
	assert.Equal(t, uint16(1), statuses[3].seq)
	assert.Equal(t, statuses[1].timestampUs+1000, statuses[3].timestampUs)
}

func TestRtcpFbTccBuilder_BeforeBase(t *testing.T) {
	// 空builder，早于base的序号
	builder := rtprtcp.NewRtcpFbTccBuilder(1, 2, 0, 1000)
	assert.Equal(t, false, builder.AddReceivedPacket(998, 1000000))
	assert.Equal(t, false, builder.AddReceivedPacket(999, 1000000))
	assert.Equal(t, true, builder.Empty())

	assert.Equal(t, true, builder.AddReceivedPacket(1000, 1000000))
	assert.Equal(t, true, builder.AddReceivedPacket(1001, 1001000))
	assert.Equal(t, false, builder.AddReceivedPacket(998, 1002000))
	assert.Equal(t, 2, builder.PacketStatusCount())
	assert.Equal(t, uint16(1002), builder.NextSeq())

	// 中间有丢包之后
	assert.Equal(t, true, builder.AddReceivedPacket(1005, 1003000))
	assert.Equal(t, 6, builder.PacketStatusCount())
	assert.Equal(t, false, builder.AddReceivedPacket(1003, 1004000))
	assert.Equal(t, false, builder.AddReceivedPacket(999, 1004000))
	assert.Equal(t, 6, builder.PacketStatusCount())
	assert.Equal(t, uint16(1006), builder.NextSeq())

	// 超过半个序号空间的也认为是旧包
	assert.Equal(t, false, builder.AddReceivedPacket(1006+32768, 1005000))
	assert.Equal(t, 6, builder.PacketStatusCount())
}

func TestRtcpFbTccBuilder_ReorderAfterWrap(t *testing.T) {
	builder := rtprtcp.NewRtcpFbTccBuilder(1, 2, 0, 65534)
	ts := int64(1000000)
	assert.Equal(t, true, builder.AddReceivedPacket(65534, ts))
	assert.Equal(t, true, builder.AddReceivedPacket(0, ts+1000))
	assert.Equal(t, true, builder.AddReceivedPacket(2, ts+2000))
	assert.Equal(t, 5, builder.PacketStatusCount())

	for _, seq := range []uint16{1, 0, 65535, 65534, 65533, 65000} {
		assert.Equal(t, false, builder.AddReceivedPacket(seq, ts+3000))
	}
	assert.Equal(t, 5, builder.PacketStatusCount())
	assert.Equal(t, uint16(3), builder.NextSeq())

	assert.Equal(t, true, builder.AddReceivedPacket(3, ts+4000))
	tcc := builder.Build()
	statuses := collectTcc(tcc)
	tcc.Release()
	assert.Equal(t, 6, len(statuses))
	assert.Equal(t, uint16(65534), statuses[0].seq)
	assert.Equal(t, false, statuses[1].received)
	assert.Equal(t, false, statuses[3].received)
	assert.Equal(t, uint16(3), statuses[5].seq)
	assert.Equal(t, statuses[0].timestampUs+4000, statuses[5].timestampUs)
}

func TestRtcpFbTccBuilder_NegativeTimestamp(t *testing.T) {
	// -64000us取模后落在最后一个参考时间刻度上
	builder := rtprtcp.NewRtcpFbTccBuilder(1, 2, 0, 10)
	assert.Equal(t, true, builder.AddReceivedPacket(10, -64000))
	assert.Equal(t, true, builder.AddReceivedPacket(11, -63750))
	assert.Equal(t, true, builder.AddReceivedPacket(12, -63500))

	tcc := builder.Build()
	assert.Equal(t, uint32(0xFFFFFF), tcc.ReferenceTime())
	statuses := collectTcc(tcc)
	tcc.Release()
	assert.Equal(t, 3, len(statuses))
	assert.Equal(t, int64(rtprtcp.TccTimeWrapPeriodUs-64000), statuses[0].timestampUs)
	assert.Equal(t, statuses[0].timestampUs+250, statuses[1].timestampUs)
	assert.Equal(t, statuses[0].timestampUs+500, statuses[2].timestampUs)
}

func TestRtcpFbTccBuilder_ManyPackets(t *testing.T) {
	// 交替出现的丢包、small delta、large delta，覆盖各种chunk类型
	builder := rtprtcp.NewRtcpFbTccBuilder(1, 2, 3, 100)
	type added struct {
		seq uint16
		ts  int64
	}
	var expected []added
	ts := int64(64000 * 1000)
	seq := uint16(100)
	for i := 0; i < 300; i++ {
		switch {
		case i%17 == 0:
			seq += 3
		case i%5 == 0:
			ts += 100000
		case i%7 == 0:
			ts -= 500
		default:
			ts += 2000
		}
		assert.Equal(t, true, builder.AddReceivedPacket(seq, ts))
		expected = append(expected, added{seq, ts})
		seq++
	}

	b := builder.BuildBytes()
	assert.Equal(t, 0, len(b)%4)
	tcc := parseTcc(t, b)
	assert.Equal(t, builder.PacketStatusCount(), tcc.PacketStatusCount())

	var got []added
	tcc.ForEachPacket(func(seq uint16, received bool, timestampUs int64) {
		if received {
			got = append(got, added{seq, timestampUs})
		}
	})
	assert.Equal(t, expected, got)
}
