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

// draft-holmer-rmcat-transport-wide-cc-extensions-01 3.1. Transport-wide RTCP Feedback Message
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|  FMT=15 |    PT=205     |           length              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                     SSRC of packet sender                     |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                      SSRC of media source                     |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |      base sequence number     |      packet status count      |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                 reference time                | fb pkt. count |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          packet chunk         |         packet chunk          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// .                                                               .
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |         packet chunk          |  recv delta   |  recv delta   |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// .                                                               .
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |           recv delta          |  recv delta   | zero padding  |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// reference time: 24位，单位64ms
// recv delta: 单位250us，small delta为1字节无符号数，large delta为2字节有符号数
//
// 注意，末尾的zero padding属于FCI内部，P位不置位
//

const (
	// TccDeltaScaleUs recv delta的单位
	TccDeltaScaleUs = 250

	// TccReferenceTimeScaleUs reference time的单位
	TccReferenceTimeScaleUs = TccDeltaScaleUs * (1 << 8)

	// TccTimeWrapPeriodUs reference time为24位，超过后回绕
	TccTimeWrapPeriodUs int64 = (1 << 24) * TccReferenceTimeScaleUs

	// TccMaxReportedPackets 一个反馈包最多描述的包个数（包含未收到的）
	TccMaxReportedPackets = 0xFFFF

	// TccMaxPacketLength 受rtcp length字段限制
	TccMaxPacketLength = RtcpMaxPacketLength

	// TccHeaderLength rtcp头4字节，fb头8字节，tcc固定头8字节
	TccHeaderLength = RtcpFbHeaderLength + 8
)

// RtcpFbTccPacket 解析得到的，或者RtcpFbTccBuilder生成的tcc反馈包
type RtcpFbTccPacket struct {
	rtcpFbPacketBase
}

func newRtcpFbTccPacket(rpb rtcpPacketBase) (*RtcpFbTccPacket, error) {
	fpb, err := checkRtcpFbPacket(rpb)
	if err != nil {
		return nil, err
	}
	if len(fpb.Fci()) < TccHeaderLength-RtcpFbHeaderLength {
		return nil, nazaerrors.Wrap(base.ErrTccMalformed, fmt.Sprintf("fci too short. len=%d", len(fpb.Fci())))
	}
	p := &RtcpFbTccPacket{rtcpFbPacketBase: fpb}
	if err = p.walk(nil); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RtcpFbTccPacket) BaseSeq() uint16 {
	return bele.BeUint16(p.Bytes()[12:])
}

func (p *RtcpFbTccPacket) PacketStatusCount() int {
	return int(bele.BeUint16(p.Bytes()[14:]))
}

// ReferenceTime 24位，单位64ms
func (p *RtcpFbTccPacket) ReferenceTime() uint32 {
	return bele.BeUint24(p.Bytes()[16:])
}

// ReferenceTimeUs 单位微秒
func (p *RtcpFbTccPacket) ReferenceTimeUs() int64 {
	return int64(p.ReferenceTime()) * TccReferenceTimeScaleUs
}

func (p *RtcpFbTccPacket) FbPacketCount() uint8 {
	return p.Bytes()[19]
}

// ForEachPacket 遍历所有描述的包
//
// @param fn:
//   seq:         包序号
//   received:    是否收到
//   timestampUs: 收到的时间，由reference time累加recv delta得到，单位微秒。未收到时为0
//
func (p *RtcpFbTccPacket) ForEachPacket(fn func(seq uint16, received bool, timestampUs int64)) {
	// 解析时已经检查过，这里不会出错
	_ = p.walk(fn)
}

// walk 解析所有chunk和recv delta，`fn`为nil时只做检查
func (p *RtcpFbTccPacket) walk(fn func(seq uint16, received bool, timestampUs int64)) error {
	b := p.Bytes()[:p.payloadEnd()]
	count := p.PacketStatusCount()
	pos := TccHeaderLength

	lastChunk := newTccLastChunk()
	deltaSizes := make([]uint8, 0, count)
	for len(deltaSizes) < count {
		if pos+tccChunkLength > len(b) {
			return nazaerrors.Wrap(base.ErrTccMalformed, fmt.Sprintf("chunk truncated. count=%d, decoded=%d", count, len(deltaSizes)))
		}
		if err := lastChunk.Decode(bele.BeUint16(b[pos:]), count-len(deltaSizes)); err != nil {
			return err
		}
		deltaSizes = lastChunk.AppendTo(deltaSizes)
		pos += tccChunkLength
	}

	ts := p.ReferenceTimeUs()
	seq := p.BaseSeq()
	for _, ds := range deltaSizes {
		var delta int64
		switch ds {
		case TccSymbolNotReceived:
			if fn != nil {
				fn(seq, false, 0)
			}
			seq++
			continue
		case TccSymbolSmallDelta:
			if pos+1 > len(b) {
				return nazaerrors.Wrap(base.ErrTccMalformed, fmt.Sprintf("recv delta truncated. seq=%d", seq))
			}
			delta = int64(b[pos])
		case TccSymbolLargeDelta:
			if pos+2 > len(b) {
				return nazaerrors.Wrap(base.ErrTccMalformed, fmt.Sprintf("recv delta truncated. seq=%d", seq))
			}
			delta = int64(int16(bele.BeUint16(b[pos:])))
		}
		pos += int(ds)
		ts += delta * TccDeltaScaleUs
		if fn != nil {
			fn(seq, true, ts)
		}
		seq++
	}
	return nil
}

// ---------------------------------------------------------------------------------------------------------------------

// RtcpFbTccBuilder 接收端逐个添加收到的包，生成tcc反馈包
//
// 添加失败时（delta超出16位，包大小或包个数超限），调用方应该Build当前包，再新建一个builder继续添加
//
type RtcpFbTccBuilder struct {
	senderSsrc    uint32
	mediaSsrc     uint32
	fbPacketCount uint8
	baseSeq       uint16

	hasBaseTime     bool // 是否已经收到第一个包
	baseTimeTicks   int64
	lastTimestampUs int64
	numSeq          int
	sizeBytes       int
	lastChunk       tccLastChunk
	encodedChunks   []uint16
	deltas          []int16
}

// tccBuilderState 添加失败时用于回滚的状态
type tccBuilderState struct {
	hasBaseTime        bool
	baseTimeTicks      int64
	lastTimestampUs    int64
	numSeq             int
	sizeBytes          int
	lastChunk          tccLastChunk
	encodedChunksCount int
}

// NewRtcpFbTccBuilder
//
// @param fbPacketCount: 反馈包的序号，每发送一个反馈包加1
// @param baseSeq:       第一个描述的包的transport-wide序号
//
func NewRtcpFbTccBuilder(senderSsrc uint32, mediaSsrc uint32, fbPacketCount uint8, baseSeq uint16) *RtcpFbTccBuilder {
	return &RtcpFbTccBuilder{
		senderSsrc:    senderSsrc,
		mediaSsrc:     mediaSsrc,
		fbPacketCount: fbPacketCount,
		baseSeq:       baseSeq,
		sizeBytes:     TccHeaderLength,
		lastChunk:     newTccLastChunk(),
	}
}

func (b *RtcpFbTccBuilder) BaseSeq() uint16 {
	return b.baseSeq
}

// NextSeq 下一个期望的包序号
func (b *RtcpFbTccBuilder) NextSeq() uint16 {
	return b.baseSeq + uint16(b.numSeq)
}

func (b *RtcpFbTccBuilder) PacketStatusCount() int {
	return b.numSeq
}

// Empty 是否还没有添加任何包
func (b *RtcpFbTccBuilder) Empty() bool {
	return b.numSeq == 0
}

// AddReceivedPacket 添加一个收到的包，中间缺失的序号标记为未收到
//
// @param seq:         transport-wide序号，必须在之前添加的序号之后，且与下一个期望序号的距离小于32768
// @param timestampUs: 收到的时间，单位微秒
//
// @return 失败时builder的状态不变
//
func (b *RtcpFbTccBuilder) AddReceivedPacket(seq uint16, timestampUs int64) bool {
	state := b.save()
	if !b.addReceivedPacket(seq, timestampUs) {
		b.restore(state)
		return false
	}
	return true
}

// Build 生成反馈包，内存块从内存池申请
func (b *RtcpFbTccBuilder) Build() *RtcpFbTccPacket {
	packetSize := roundUp4(b.sizeBytes)
	p := &RtcpFbTccPacket{
		rtcpFbPacketBase: newRtcpFbPacketBase(RtcpPacketTypeRtpfb, RtcpFmtTcc, b.senderSsrc, b.mediaSsrc, packetSize-RtcpFbHeaderLength),
	}
	out := p.Bytes()
	bele.BePutUint16(out[12:], b.baseSeq)
	bele.BePutUint16(out[14:], uint16(b.numSeq))
	bele.BePutUint24(out[16:], uint32(b.baseTimeTicks))
	out[19] = b.fbPacketCount

	pos := TccHeaderLength
	for _, chunk := range b.encodedChunks {
		bele.BePutUint16(out[pos:], chunk)
		pos += tccChunkLength
	}
	if !b.lastChunk.Empty() {
		bele.BePutUint16(out[pos:], b.lastChunk.EncodeLast())
		pos += tccChunkLength
	}
	for _, delta := range b.deltas {
		if delta >= 0 && delta <= 0xFF {
			out[pos] = uint8(delta)
			pos++
		} else {
			bele.BePutUint16(out[pos:], uint16(delta))
			pos += 2
		}
	}
	// 剩余部分是padding，newRtcpPacketBase已经置0
	return p
}

// BuildBytes 生成反馈包并拷贝出来
func (b *RtcpFbTccBuilder) BuildBytes() []byte {
	p := b.Build()
	defer p.Release()
	ret := make([]byte, p.Length())
	copy(ret, p.Bytes())
	return ret
}

func (b *RtcpFbTccBuilder) addReceivedPacket(seq uint16, timestampUs int64) bool {
	if !b.hasBaseTime {
		b.hasBaseTime = true
		b.baseTimeTicks = ((timestampUs%TccTimeWrapPeriodUs + TccTimeWrapPeriodUs) % TccTimeWrapPeriodUs) / TccReferenceTimeScaleUs
		b.lastTimestampUs = b.baseTimeTicks * TccReferenceTimeScaleUs
	}

	deltaFull := (timestampUs - b.lastTimestampUs) % TccTimeWrapPeriodUs
	if deltaFull > TccTimeWrapPeriodUs/2 {
		deltaFull -= TccTimeWrapPeriodUs
	} else if deltaFull < -TccTimeWrapPeriodUs/2 {
		deltaFull += TccTimeWrapPeriodUs
	}
	if deltaFull < 0 {
		deltaFull -= TccDeltaScaleUs / 2
	} else {
		deltaFull += TccDeltaScaleUs / 2
	}
	deltaFull /= TccDeltaScaleUs

	delta := int16(deltaFull)
	if int64(delta) != deltaFull {
		Log.Debugf("tcc delta too large. seq=%d, delta=%d", seq, deltaFull)
		return false
	}

	// 相对下一个期望序号做回绕展开，不早于期望序号的才能添加
	gap := SubSeq(seq, b.NextSeq())
	if gap < 0 {
		return false
	}
	rel := b.numSeq + gap
	for b.numSeq < rel {
		if !b.addDeltaSize(TccSymbolNotReceived) {
			return false
		}
	}

	deltaSize := TccSymbolLargeDelta
	if delta >= 0 && delta <= 0xFF {
		deltaSize = TccSymbolSmallDelta
	}
	if !b.addDeltaSize(deltaSize) {
		return false
	}

	b.deltas = append(b.deltas, delta)
	b.lastTimestampUs += int64(delta) * TccDeltaScaleUs
	b.sizeBytes += int(deltaSize)
	return true
}

func (b *RtcpFbTccBuilder) addDeltaSize(deltaSize uint8) bool {
	if b.numSeq == TccMaxReportedPackets {
		return false
	}
	addChunkSize := 0
	if b.lastChunk.Empty() {
		addChunkSize = tccChunkLength
	}
	if b.sizeBytes+int(deltaSize)+addChunkSize > TccMaxPacketLength {
		return false
	}

	if b.lastChunk.CanAdd(deltaSize) {
		b.sizeBytes += addChunkSize
		b.lastChunk.Add(deltaSize)
		b.numSeq++
		return true
	}

	if b.sizeBytes+int(deltaSize)+tccChunkLength > TccMaxPacketLength {
		return false
	}
	b.encodedChunks = append(b.encodedChunks, b.lastChunk.Emit())
	b.sizeBytes += tccChunkLength
	b.lastChunk.Add(deltaSize)
	b.numSeq++
	return true
}

func (b *RtcpFbTccBuilder) save() tccBuilderState {
	return tccBuilderState{
		hasBaseTime:        b.hasBaseTime,
		baseTimeTicks:      b.baseTimeTicks,
		lastTimestampUs:    b.lastTimestampUs,
		numSeq:             b.numSeq,
		sizeBytes:          b.sizeBytes,
		lastChunk:          b.lastChunk,
		encodedChunksCount: len(b.encodedChunks),
	}
}

func (b *RtcpFbTccBuilder) restore(s tccBuilderState) {
	b.hasBaseTime = s.hasBaseTime
	b.baseTimeTicks = s.baseTimeTicks
	b.lastTimestampUs = s.lastTimestampUs
	b.numSeq = s.numSeq
	b.sizeBytes = s.sizeBytes
	b.lastChunk = s.lastChunk
	b.encodedChunks = b.encodedChunks[:s.encodedChunksCount]
}
