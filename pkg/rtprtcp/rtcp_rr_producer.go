// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import "time"

// RrProducer 接收端统计收到的rtp包和rtcp sr包，产生rtcp rr包（rfc3550 6.4.2，A.3，A.8）
//
// 注意，非并发安全
//
type RrProducer struct {
	senderSsrc uint32
	mediaSsrc  uint32

	clockRate int

	maxSeq      int32
	baseSeq     int32
	cycles      uint32
	received    uint32
	extendedSeq uint32

	transit int64
	jitter  uint32

	expectedPrior uint32
	receivedPrior uint32

	lsr        uint32
	lsrArrival time.Time
}

// NewRrProducer
//
// @param senderSsrc: 接收端自身的ssrc，写入rr包头
// @param mediaSsrc:  统计的媒体流的ssrc
// @param clockRate:  媒体流rtp时间戳的时钟频率，比如视频90000，用于计算jitter
//
func NewRrProducer(senderSsrc uint32, mediaSsrc uint32, clockRate int) *RrProducer {
	return &RrProducer{
		senderSsrc: senderSsrc,
		mediaSsrc:  mediaSsrc,
		clockRate:  clockRate,
		baseSeq:    -1,
		maxSeq:     -1,
		transit:    -1,
	}
}

// FeedRtpPacket 每次收到rtp包，都调用这个函数
func (r *RrProducer) FeedRtpPacket(pkt *RtpPacket) {
	r.FeedRtpPacketWithArrival(pkt.SequenceNumber(), pkt.Timestamp(), time.Now())
}

// FeedRtpPacketWithArrival
//
// @param arrival: 包到达的本地时间
//
func (r *RrProducer) FeedRtpPacketWithArrival(seq uint16, timestamp uint32, arrival time.Time) {
	r.received++

	if r.baseSeq == -1 {
		r.baseSeq = int32(seq)
	}

	if r.maxSeq == -1 {
		r.maxSeq = int32(seq)
	} else if CompareSeq(seq, uint16(r.maxSeq)) > 0 {
		if seq < uint16(r.maxSeq) {
			r.cycles++
		}
		r.maxSeq = int32(seq)
	}

	r.extendedSeq = (r.cycles << 16) | uint32(r.maxSeq)
	r.updateJitter(timestamp, arrival)
}

// FeedSrPacket 收到sr包时调用，记录LSR以及收到的时间，用于计算DLSR
func (r *RrProducer) FeedSrPacket(sr *RtcpSrPacket, arrival time.Time) {
	r.lsr = sr.MiddleNtp()
	r.lsrArrival = arrival
}

// ReportBlock 生成当前统计的report block，并更新区间统计
//
// @param now: 用于计算DLSR
//
func (r *RrProducer) ReportBlock(now time.Time) (rb RtcpReportBlock, ok bool) {
	if r.baseSeq == -1 {
		return
	}

	expected := r.extendedSeq - uint32(r.baseSeq) + 1
	lost := int64(expected) - int64(r.received)
	// 24位有符号数
	if lost > 0x7FFFFF {
		lost = 0x7FFFFF
	} else if lost < -0x800000 {
		lost = -0x800000
	}

	expectedInterval := expected - r.expectedPrior
	r.expectedPrior = expected
	receivedInterval := r.received - r.receivedPrior
	r.receivedPrior = r.received
	lostInterval := int64(expectedInterval) - int64(receivedInterval)
	var fraction uint8
	if expectedInterval != 0 && lostInterval > 0 {
		fraction = uint8((lostInterval << 8) / int64(expectedInterval))
	}

	rb = RtcpReportBlock{
		Ssrc:               r.mediaSsrc,
		FractionLost:       fraction,
		CumulativeLost:     int32(lost),
		ExtendedHighestSeq: r.extendedSeq,
		Jitter:             r.jitter >> 4,
		Lsr:                r.lsr,
	}
	if r.lsr != 0 {
		// 单位1/65536秒
		rb.Dlsr = uint32(now.Sub(r.lsrArrival) * 65536 / time.Second)
	}
	return rb, true
}

// Produce 产生rr包，还没有收到过rtp包时返回nil
//
func (r *RrProducer) Produce(now time.Time) *RtcpRrPacket {
	rb, ok := r.ReportBlock(now)
	if !ok {
		return nil
	}
	return NewRtcpRrPacket(r.senderSsrc, []RtcpReportBlock{rb})
}

// @param timestamp 当前收到的rtp包头中的时间戳
func (r *RrProducer) updateJitter(timestamp uint32, arrival time.Time) {
	// 物理时间和包时间的差值，都换算成包时间戳格式
	transit := arrival.UnixNano()/1e6*int64(r.clockRate)/1000 - int64(timestamp)

	// 第一次跳过
	if r.transit == -1 {
		r.transit = transit
		return
	}

	d := transit - r.transit
	r.transit = transit
	if d < 0 {
		d = -d
	}

	// J(i) = J(i-1) + (|D(i-1,i)| - J(i-1))/16，r.jitter放大了16倍
	r.jitter = r.jitter + uint32(d) - ((r.jitter + 8) >> 4)
}
