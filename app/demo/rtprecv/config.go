// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package main

import (
	"encoding/json"

	"github.com/q191201771/naza/pkg/nazajson"
	log "github.com/q191201771/naza/pkg/nazalog"
)

type Config struct {
	ListenAddr         string `json:"listen_addr"`
	DumpFile           string `json:"dump_file"`
	Ssrc               uint32 `json:"ssrc"`
	Cname              string `json:"cname"`
	ClockRate          int    `json:"clock_rate"`
	TccExtId           int    `json:"tcc_ext_id"`
	FeedbackIntervalMs int    `json:"feedback_interval_ms"`
	DebugDumpMaxNum    int    `json:"debug_dump_max_num"`

	Log log.Option `json:"log"`
}

func LoadConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	// 配置不存在时，设置默认值
	if !j.Exist("listen_addr") {
		config.ListenAddr = ":10000"
	}
	if !j.Exist("ssrc") {
		config.Ssrc = 1
	}
	if !j.Exist("cname") {
		config.Cname = "rtprecv"
	}
	if !j.Exist("clock_rate") {
		config.ClockRate = 90000
	}
	if !j.Exist("tcc_ext_id") {
		config.TccExtId = 3
	}
	if !j.Exist("feedback_interval_ms") {
		config.FeedbackIntervalMs = 100
	}
	if !j.Exist("debug_dump_max_num") {
		config.DebugDumpMaxNum = 10
	}
	if !j.Exist("log.level") {
		config.Log.Level = log.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.Log.Filename = "./logs/rtprecv.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.Log.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.Log.AssertBehavior = log.AssertError
	}

	return &config, nil
}
