// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/bininfo"
	log "github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/naza/pkg/nazanet"
)

// 接收rtp流，定时向发送端回复rr和tcc反馈
//
// 发送端需要在rtp扩展头中携带transport-wide序号（扩展id由配置指定），并且从接收端口接收rtcp（rfc5761复用）

func main() {
	defer log.Sync()

	confFile := parseFlag()
	config := loadConf(confFile)
	initLog(config.Log)
	base.LogoutStartInfo()

	receiver := NewReceiver(config)

	if config.DumpFile != "" {
		df := base.NewDumpFile()
		if err := df.OpenToWrite(config.DumpFile); err != nil {
			log.Errorf("open dump file failed. file=%s, err=%+v", config.DumpFile, err)
			return
		}
		defer df.Close()
		receiver.SetDumpFile(df)
		log.Infof("dump to file. file=%s", config.DumpFile)
	}

	conn, err := nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.LAddr = config.ListenAddr
	})
	if err != nil {
		log.Errorf("listen udp failed. addr=%s, err=%+v", config.ListenAddr, err)
		return
	}
	log.Infof("start udp listen. addr=%s", config.ListenAddr)

	go func() {
		err := conn.RunLoop(func(b []byte, raddr *net.UDPAddr, err error) bool {
			if err != nil {
				log.Errorf("read udp failed. err=%+v", err)
				return false
			}
			receiver.OnPacket(b, raddr, time.Now())
			return true
		})
		log.Infof("udp loop done. err=%+v", err)
	}()

	go runFeedbackLoop(receiver, conn, time.Duration(config.FeedbackIntervalMs)*time.Millisecond)

	base.WaitExitSignal()
	receiver.SetDumpFile(nil)
	_ = conn.Dispose()
}

func runFeedbackLoop(receiver *Receiver, conn *nazanet.UdpConnection, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for now := range t.C {
		cp := receiver.BuildFeedback(now)
		if cp == nil {
			continue
		}
		if raddr := receiver.RemoteAddr(); raddr != nil {
			if err := conn.Write2Addr(cp.Bytes(), raddr); err != nil {
				log.Warnf("send feedback failed. err=%+v", err)
			}
		}
		cp.Release()
	}
}

func parseFlag() string {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.LalrtpFullInfo)
		os.Exit(0)
	}
	return *cf
}

func loadConf(confFile string) *Config {
	rawContent, filename, err := base.ReadConfigFile(confFile, []string{
		filepath.Join("conf", "rtprecv.conf.json"),
		filepath.Join("..", "conf", "rtprecv.conf.json"),
	})
	if err != nil {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -c %s

read conf file failed. err=%+v
`, os.Args[0], filepath.Join("conf", "rtprecv.conf.json"), err)
		os.Exit(1)
	}
	config, err := LoadConf(rawContent)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s err=%+v", filename, err)
		os.Exit(1)
	}
	return config
}

func initLog(opt log.Option) {
	if err := log.Init(func(option *log.Option) {
		*option = opt
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		os.Exit(1)
	}
	log.Info("initial log succ.")
}
