// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package main

import (
	"net"
	"sync"
	"time"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazalog"
)

// tcc反馈包之间缺失的序号超过这个值时，不再延续上一个反馈包的序号
const tccMaxContinueGap = 1024

// Receiver 接收rtp包，产生rr和tcc反馈
//
// 并发安全
//
type Receiver struct {
	config *Config

	mutex     sync.Mutex
	startTime time.Time
	raddr     *net.UDPAddr
	dumper    *base.PacketDumper

	rrProducers map[uint32]*rtprtcp.RrProducer

	tccMediaSsrc     uint32
	tccBuilder       *rtprtcp.RtcpFbTccBuilder
	tccFbPacketCount uint8
	tccNextSeq       uint16
	tccNextSeqFlag   bool
	tccPending       []*rtprtcp.RtcpFbTccPacket

	dumpFile *base.DumpFile
}

func NewReceiver(config *Config) *Receiver {
	return &Receiver{
		config:      config,
		startTime:   time.Now(),
		dumper:      base.NewPacketDumper(nazalog.GetGlobalLogger(), config.DebugDumpMaxNum),
		rrProducers: make(map[uint32]*rtprtcp.RrProducer),
	}
}

// SetDumpFile 录制收到的所有包
func (r *Receiver) SetDumpFile(df *base.DumpFile) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.dumpFile = df
}

// RemoteAddr 最后一个收到的包的来源地址，还没有收到过包时返回nil
func (r *Receiver) RemoteAddr() *net.UDPAddr {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.raddr
}

// OnPacket
//
// @param b: 函数调用结束后，内部不再持有这块内存
//
func (r *Receiver) OnPacket(b []byte, raddr *net.UDPAddr, now time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.raddr = raddr
	isRtcp := rtprtcp.IsRtcpPacket(b)

	if isRtcp {
		r.dumper.Dump("recv rtcp", b)
	} else {
		r.dumper.Dump("recv rtp", b)
	}

	if r.dumpFile != nil {
		typ := base.DumpTypeRtp
		if isRtcp {
			typ = base.DumpTypeRtcp
		}
		if err := r.dumpFile.WriteWithType(b, typ); err != nil {
			nazalog.Errorf("write dump file failed. err=%+v", err)
		}
	}

	// 解析后包持有内存块，而调用方的内存块会被复用
	b = append([]byte(nil), b...)
	if isRtcp {
		r.onRtcp(b, now)
	} else {
		r.onRtp(b, now)
	}
}

// BuildFeedback 产生需要发送的反馈包，tcc和rr合并成一个复合包，没有需要发送的内容时返回nil
//
func (r *Receiver) BuildFeedback(now time.Time) *rtprtcp.CompoundRtcpPacket {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.flushTcc()

	var pkts []rtprtcp.RtcpPacket
	var ssrcs []uint32
	for ssrc, p := range r.rrProducers {
		if rr := p.Produce(now); rr != nil {
			pkts = append(pkts, rr)
			ssrcs = append(ssrcs, ssrc)
		}
	}
	if len(pkts) != 0 {
		pkts = append(pkts, r.newSdes())
	}
	for _, tcc := range r.tccPending {
		pkts = append(pkts, tcc)
	}
	r.tccPending = nil

	if len(pkts) == 0 {
		return nil
	}
	nazalog.Tracef("build feedback. rr=%v, count=%d", ssrcs, len(pkts))

	cp := rtprtcp.NewCompoundRtcpPacket(pkts)
	for _, p := range pkts {
		p.Release()
	}
	return cp
}

func (r *Receiver) onRtp(b []byte, now time.Time) {
	pkt, err := rtprtcp.ParseRtpPacket(b, 0, len(b))
	if err != nil {
		nazalog.Warnf("parse rtp failed. err=%+v", err)
		return
	}
	defer pkt.Release()

	ssrc := pkt.Ssrc()
	p, ok := r.rrProducers[ssrc]
	if !ok {
		nazalog.Infof("new rtp stream. ssrc=%d, pt=%d", ssrc, pkt.PayloadType())
		p = rtprtcp.NewRrProducer(r.config.Ssrc, ssrc, r.config.ClockRate)
		r.rrProducers[ssrc] = p
	}
	p.FeedRtpPacketWithArrival(pkt.SequenceNumber(), pkt.Timestamp(), now)

	ext, ok := pkt.GetHeaderExtension(r.config.TccExtId)
	if !ok || ext.DataLength() != 2 {
		return
	}
	r.onTransportSeq(ssrc, bele.BeUint16(ext.Data()), now)
}

func (r *Receiver) onTransportSeq(ssrc uint32, seq uint16, now time.Time) {
	ts := now.Sub(r.startTime).Microseconds()

	if r.tccBuilder == nil {
		baseSeq := seq
		if r.tccNextSeqFlag {
			if rtprtcp.CompareSeq(seq, r.tccNextSeq) < 0 {
				nazalog.Debugf("late transport seq, ignore. seq=%d, next=%d", seq, r.tccNextSeq)
				return
			}
			if rtprtcp.SubSeq(seq, r.tccNextSeq) < tccMaxContinueGap {
				baseSeq = r.tccNextSeq
			}
		}
		r.tccMediaSsrc = ssrc
		r.tccBuilder = rtprtcp.NewRtcpFbTccBuilder(r.config.Ssrc, r.tccMediaSsrc, r.tccFbPacketCount, baseSeq)
	}

	if r.tccBuilder.AddReceivedPacket(seq, ts) {
		return
	}
	if rtprtcp.CompareSeq(seq, r.tccBuilder.NextSeq()) < 0 {
		nazalog.Debugf("late transport seq, ignore. seq=%d, next=%d", seq, r.tccBuilder.NextSeq())
		return
	}

	// 包太多或者delta超出范围，先结束当前反馈包，再从这个包开始新的反馈包
	r.flushTcc()
	r.tccBuilder = rtprtcp.NewRtcpFbTccBuilder(r.config.Ssrc, ssrc, r.tccFbPacketCount, seq)
	r.tccMediaSsrc = ssrc
	if !r.tccBuilder.AddReceivedPacket(seq, ts) {
		nazalog.Warnf("add transport seq failed. seq=%d", seq)
	}
}

func (r *Receiver) flushTcc() {
	if r.tccBuilder == nil || r.tccBuilder.Empty() {
		return
	}
	r.tccPending = append(r.tccPending, r.tccBuilder.Build())
	r.tccNextSeq = r.tccBuilder.NextSeq()
	r.tccNextSeqFlag = true
	r.tccFbPacketCount++
	r.tccBuilder = nil
}

func (r *Receiver) onRtcp(b []byte, now time.Time) {
	cp, err := rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	if err != nil {
		nazalog.Warnf("parse rtcp failed. err=%+v", err)
		return
	}
	defer cp.Release()

	for _, p := range cp.Packets() {
		switch pkt := p.(type) {
		case *rtprtcp.RtcpSrPacket:
			if producer, ok := r.rrProducers[pkt.SenderSsrc()]; ok {
				producer.FeedSrPacket(pkt, now)
			}
		case *rtprtcp.RtcpByePacket:
			for _, ssrc := range pkt.Ssrcs() {
				nazalog.Infof("recv bye. ssrc=%d, reason=%s", ssrc, pkt.Reason())
				delete(r.rrProducers, ssrc)
			}
		}
	}
}

func (r *Receiver) newSdes() *rtprtcp.RtcpSdesPacket {
	return rtprtcp.NewRtcpSdesPacket([]rtprtcp.RtcpSdesChunk{
		{
			Ssrc: r.config.Ssrc,
			Items: []rtprtcp.RtcpSdesItem{
				{Type: rtprtcp.RtcpSdesCname, Text: []byte(r.config.Cname)},
				{Type: rtprtcp.RtcpSdesTool, Text: []byte(base.LalrtpSdesTool)},
			},
		},
	})
}
