// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/bitrate"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/naza/pkg/nazanet"
)

// 分析诊断rtp/rtcp流
// 功能：
// - 输入源可以是dump文件，也可以是udp端口
// - 按rfc5761区分rtp和rtcp
// - rtp
//     - 按ssrc分别排序，打印丢包、重复包、乱序包
//     - red和rtx解包（需要通过参数指定payload type）
// - rtcp
//     - 拆分复合包，打印每个子包的类型和关键字段
//     - 打印tcc反馈包描述的每个包的接收状态
// - 定时打印rtp和rtcp的带宽

var (
	printStatFlag        = true
	printEveryPacketFlag = false
	printTccDetailFlag   = true
)

const packetListSize = 128

type streamStat struct {
	list *rtprtcp.RtpPacketList

	receivedCount   int
	lostCount       int
	dupCount        int
	rtxCount        int
	redRecoverCount int
}

type Analyser struct {
	redPt   int
	rtxPt   int
	rtxApt  int
	rtxSsrc uint32

	mutex   sync.Mutex
	streams map[uint32]*streamStat

	brRtp  bitrate.Bitrate
	brRtcp bitrate.Bitrate

	rtcpCount     int
	rtcpFailCount int
	rtpFailCount  int
}

func NewAnalyser(redPt, rtxPt, rtxApt int, rtxSsrc uint32) *Analyser {
	return &Analyser{
		redPt:   redPt,
		rtxPt:   rtxPt,
		rtxApt:  rtxApt,
		rtxSsrc: rtxSsrc,
		streams: make(map[uint32]*streamStat),
		brRtp: bitrate.New(func(option *bitrate.Option) {
			option.WindowMs = 5000
		}),
		brRtcp: bitrate.New(func(option *bitrate.Option) {
			option.WindowMs = 5000
		}),
	}
}

// Feed 输入一个完整的udp包
//
// @param b: 函数内部会持有这块内存，调用方不能再使用
//
func (a *Analyser) Feed(b []byte) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if rtprtcp.IsRtcpPacket(b) {
		a.brRtcp.Add(len(b))
		a.feedRtcp(b)
		return
	}
	a.brRtp.Add(len(b))
	a.feedRtp(b)
}

func (a *Analyser) PrintStat() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	nazalog.Debugf("stat. rtp=%dKb/s, rtcp=%dKb/s, rtcpCount=%d, rtcpFailCount=%d, rtpFailCount=%d",
		int(a.brRtp.Rate()), int(a.brRtcp.Rate()), a.rtcpCount, a.rtcpFailCount, a.rtpFailCount)
	for ssrc, s := range a.streams {
		nazalog.Debugf("stat. ssrc=%d, received=%d, lost=%d, dup=%d, rtx=%d, redRecover=%d",
			ssrc, s.receivedCount, s.lostCount, s.dupCount, s.rtxCount, s.redRecoverCount)
	}
}

// Flush 输入结束时调用，弹出所有缓存的包
func (a *Analyser) Flush() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for ssrc, s := range a.streams {
		for s.list.PeekFirst() != nil {
			a.pop(ssrc, s)
		}
	}
}

func (a *Analyser) feedRtp(b []byte) {
	pkt, err := rtprtcp.ParseRtpPacket(b, 0, len(b))
	if err != nil {
		a.rtpFailCount++
		nazalog.Warnf("parse rtp failed. err=%+v, len=%d", err, len(b))
		return
	}

	if a.rtxPt != -1 && int(pkt.PayloadType()) == a.rtxPt {
		if err = pkt.DecapsulateRtx(uint8(a.rtxApt), a.rtxSsrc); err != nil {
			nazalog.Warnf("decapsulate rtx failed. err=%+v, header=%+v", err, pkt.Header())
			pkt.Release()
			return
		}
		a.stream(pkt.Ssrc()).rtxCount++
	}

	if a.redPt != -1 && int(pkt.PayloadType()) == a.redPt {
		recovered, err := pkt.ParseRedundancyAndDecapsulateRed()
		if err != nil {
			nazalog.Warnf("decapsulate red failed. err=%+v, header=%+v", err, pkt.Header())
			pkt.Release()
			return
		}
		for _, r := range recovered {
			s := a.stream(r.Ssrc())
			if a.insert(r.Ssrc(), s, r) {
				s.redRecoverCount++
			}
		}
	}

	if printEveryPacketFlag {
		nazalog.Debugf("%s", pkt.DebugString())
	}

	ssrc := pkt.Ssrc()
	s := a.stream(ssrc)
	s.receivedCount++
	if !a.insert(ssrc, s, pkt) {
		s.dupCount++
	}
}

// insert 插入排序容器，容器满了或者头部连续时弹出
//
// @return 插入失败时返回false，并且包已经被Release
//
func (a *Analyser) insert(ssrc uint32, s *streamStat, pkt *rtprtcp.RtpPacket) bool {
	if !s.list.Insert(pkt) {
		pkt.Release()
		return false
	}
	for s.list.IsFirstSequential() || s.list.Full() {
		a.pop(ssrc, s)
	}
	return true
}

func (a *Analyser) pop(ssrc uint32, s *streamStat) {
	if gap := s.list.Gap(); gap > 0 {
		s.lostCount += gap
		nazalog.Warnf("lost. ssrc=%d, count=%d, next=%d", ssrc, gap, s.list.PeekFirst().SequenceNumber())
	}
	s.list.PopFirst().Release()
}

func (a *Analyser) stream(ssrc uint32) *streamStat {
	s, ok := a.streams[ssrc]
	if !ok {
		s = &streamStat{
			list: rtprtcp.NewRtpPacketList(packetListSize),
		}
		a.streams[ssrc] = s
	}
	return s
}

func (a *Analyser) feedRtcp(b []byte) {
	a.rtcpCount++
	cp, err := rtprtcp.ParseCompoundRtcpPacket(b, 0, len(b))
	if err != nil {
		a.rtcpFailCount++
		nazalog.Warnf("parse rtcp failed. err=%+v, hex=%s", err, hex.EncodeToString(b))
		return
	}
	defer cp.Release()

	for _, p := range cp.Packets() {
		logRtcp(p)
	}
}

func logRtcp(p rtprtcp.RtcpPacket) {
	switch pkt := p.(type) {
	case *rtprtcp.RtcpSrPacket:
		nazalog.Debugf("sr. ssrc=%d, info=%+v, blocks=%+v", pkt.SenderSsrc(), pkt.SenderInfo(), pkt.ReportBlocks())
	case *rtprtcp.RtcpRrPacket:
		nazalog.Debugf("rr. ssrc=%d, blocks=%+v", pkt.SenderSsrc(), pkt.ReportBlocks())
	case *rtprtcp.RtcpSdesPacket:
		cname, _ := pkt.Cname()
		nazalog.Debugf("sdes. chunks=%d, cname=%s", len(pkt.Chunks()), cname)
	case *rtprtcp.RtcpByePacket:
		nazalog.Debugf("bye. ssrcs=%v, reason=%s", pkt.Ssrcs(), pkt.Reason())
	case *rtprtcp.RtcpFbNackPacket:
		nazalog.Debugf("nack. ssrc=%d, media=%d, missing=%v", pkt.SenderSsrc(), pkt.MediaSsrc(), pkt.MissingSeqNums())
	case *rtprtcp.RtcpFbPliPacket:
		nazalog.Debugf("pli. ssrc=%d, media=%d", pkt.SenderSsrc(), pkt.MediaSsrc())
	case *rtprtcp.RtcpFbFirPacket:
		nazalog.Debugf("fir. ssrc=%d, entries=%+v", pkt.SenderSsrc(), pkt.Entries())
	case *rtprtcp.RtcpFbRembPacket:
		nazalog.Debugf("remb. ssrc=%d, bitrate=%d, ssrcs=%v", pkt.SenderSsrc(), pkt.Bitrate(), pkt.Ssrcs())
	case *rtprtcp.RtcpFbTccPacket:
		nazalog.Debugf("tcc. ssrc=%d, media=%d, base=%d, count=%d, ref=%dus, fbCount=%d",
			pkt.SenderSsrc(), pkt.MediaSsrc(), pkt.BaseSeq(), pkt.PacketStatusCount(), pkt.ReferenceTimeUs(), pkt.FbPacketCount())
		if printTccDetailFlag {
			lost := 0
			pkt.ForEachPacket(func(seq uint16, received bool, timestampUs int64) {
				if !received {
					lost++
					return
				}
				nazalog.Tracef("tcc. seq=%d, ts=%dus", seq, timestampUs)
			})
			nazalog.Debugf("tcc. lost=%d", lost)
		}
	default:
		nazalog.Debugf("rtcp. header=%+v", p.Header())
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename, addr, redPt, rtxPt, rtxApt, rtxSsrc := parseFlag()

	a := NewAnalyser(redPt, rtxPt, rtxApt, uint32(rtxSsrc))

	go func() {
		for {
			time.Sleep(5 * time.Second)
			if printStatFlag {
				a.PrintStat()
			}
		}
	}()

	var err error
	if filename != "" {
		err = analyseFile(a, filename)
	} else {
		err = analyseUdp(a, addr)
	}
	a.Flush()
	a.PrintStat()
	nazalog.Infof("done. err=%+v", err)
}

func analyseFile(a *Analyser, filename string) error {
	df := base.NewDumpFile()
	if err := df.OpenToRead(filename); err != nil {
		return err
	}
	defer df.Close()

	for {
		m, err := df.ReadOneMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if printEveryPacketFlag {
			nazalog.Debugf("%s", m.DebugString())
		}
		a.Feed(m.Body)
	}
}

func analyseUdp(a *Analyser, addr string) error {
	conn, err := nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.LAddr = addr
	})
	if err != nil {
		return err
	}
	nazalog.Infof("start udp listen. addr=%s", addr)
	return conn.RunLoop(func(b []byte, raddr *net.UDPAddr, err error) bool {
		if err != nil {
			nazalog.Errorf("read udp failed. err=%+v", err)
			return false
		}
		// 回调中的内存块会被复用
		a.Feed(append([]byte(nil), b...))
		return true
	})
}

func parseFlag() (filename, addr string, redPt, rtxPt, rtxApt, rtxSsrc int) {
	f := flag.String("f", "", "specify dump file")
	l := flag.String("l", "", "specify udp listen addr")
	red := flag.Int("red", -1, "specify red payload type")
	rtx := flag.Int("rtx", -1, "specify rtx payload type")
	apt := flag.Int("apt", 96, "specify payload type associated with rtx")
	ssrc := flag.Int("ssrc", 0, "specify original ssrc of rtx stream")
	flag.Parse()
	if *f == "" && *l == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -f ./testdata/test.lalrtpdump
  %s -l :10000 -red 63 -rtx 97 -apt 96 -ssrc 287454020
`, os.Args[0], os.Args[0])
		os.Exit(1)
	}
	return *f, *l, *red, *rtx, *apt, *ssrc
}
