// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本信息相关
// 一部分版本信息使用了naza.bininfo
// 另外，我们也在本文件提供另外一些信息，打入可执行文件和日志中

// LalrtpVersion 整个工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
//
const LalrtpVersion = "v0.1.0"

// DumpFileVersion dump文件格式的版本号，见 DumpFile
//
const DumpFileVersion = 1

var (
	LalrtpLibraryName = "lalrtp"
	LalrtpGithubRepo  = "github.com/q191201771/lalrtp"
	LalrtpGithubSite  = "https://github.com/q191201771/lalrtp"

	// LalrtpFullInfo e.g. lalrtp v0.1.0 (github.com/q191201771/lalrtp)
	LalrtpFullInfo = LalrtpLibraryName + " " + LalrtpVersion + " (" + LalrtpGithubRepo + ")"

	// LalrtpVersionDot e.g. 0.1.0
	LalrtpVersionDot string

	// LalrtpSdesTool 植入rtcp sdes TOOL字段
	// e.g. lalrtp/0.1.0
	LalrtpSdesTool string
)

func init() {
	LalrtpVersionDot = strings.TrimPrefix(LalrtpVersion, "v")
	LalrtpSdesTool = LalrtpLibraryName + "/" + LalrtpVersionDot
}
