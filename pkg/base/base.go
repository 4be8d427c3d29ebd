// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


// Package base 提供被其他多个package依赖的基础内容，比如错误、日志、全局配置、dump文件
package base

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

var startTime string

// ReadableNowTime 当前时间，可读字符串形式
func ReadableNowTime() string {
	return time.Now().Format("2006-01-02 15:04:05.999 Z0700 MST")
}

// LogoutStartInfo 程序启动时打印的信息
func LogoutStartInfo() {
	dir, _ := os.Getwd()
	Log.Infof("     start: %s", startTime)
	Log.Infof("        wd: %s", dir)
	Log.Infof("      args: %s", strings.Join(os.Args, " "))
	Log.Infof("   bininfo: %s", bininfo.StringifySingleLine())
	Log.Infof("   version: %s", LalrtpFullInfo)
	Log.Infof("    github: %s", LalrtpGithubSite)
}

// ReadConfigFile 读取配置文件
//
// @param theConfigFile:      命令行指定的配置文件，为空时使用`defaultConfigFiles`中第一个存在的非空文件
//
// @return filename: 实际读取的文件
//
func ReadConfigFile(theConfigFile string, defaultConfigFiles []string) (rawContent []byte, filename string, err error) {
	filename = theConfigFile
	if filename == "" {
		for _, dcf := range defaultConfigFiles {
			if fi, e := os.Stat(dcf); e == nil && fi.Size() > 0 && !fi.IsDir() {
				filename = dcf
				break
			}
		}
	}
	if filename == "" {
		return nil, "", nazaerrors.Wrap(ErrFileNotExist, fmt.Sprintf("candidates=%v", defaultConfigFiles))
	}

	rawContent, err = os.ReadFile(filename)
	if os.IsNotExist(err) {
		err = nazaerrors.Wrap(ErrFileNotExist, fmt.Sprintf("file=%s", filename))
	}
	return
}

func init() {
	startTime = ReadableNowTime()
}
