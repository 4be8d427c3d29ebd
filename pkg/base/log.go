// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package base

import (
	"encoding/hex"
	"fmt"

	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazalog"
)

// PacketDumper 控制打印包内容的次数
//
// 日志级别为trace时每个包都打印，为debug时只打印前`debugMaxNum`个包，其他级别不打印
//
// 注意，非并发安全
//
type PacketDumper struct {
	log         nazalog.Logger
	debugMaxNum int

	debugCount int
}

func NewPacketDumper(log nazalog.Logger, debugMaxNum int) *PacketDumper {
	return &PacketDumper{
		log:         log,
		debugMaxNum: debugMaxNum,
	}
}

// Dump 打印包的前 RtpRtcpDebugDumpLen 个字节
func (d *PacketDumper) Dump(tag string, b []byte) {
	if !d.shouldDump() {
		return
	}
	d.log.Out(d.log.GetOption().Level, 2,
		fmt.Sprintf("%s. len=%d, hex=\n%s", tag, len(b), hex.Dump(nazabytes.Prefix(b, RtpRtcpDebugDumpLen))))
}

func (d *PacketDumper) shouldDump() bool {
	switch d.log.GetOption().Level {
	case nazalog.LevelTrace:
		return true
	case nazalog.LevelDebug:
		if d.debugCount >= d.debugMaxNum {
			return false
		}
		d.debugCount++
		return true
	}
	return false
}
