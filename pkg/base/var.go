// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- rtprtcp --------------------
var (
	// RtpRtcpDebugDumpLen 解析失败打印日志时，打印包内容前多少个字节的hex
	RtpRtcpDebugDumpLen = 32

	// RtpRtcpLogParseFailedFlag 解析失败时是否打Warn日志
	//
	// 注意，解析失败始终通过error返回给调用方，该开关只影响日志
	//
	RtpRtcpLogParseFailedFlag = true
)

// ----- bufpool --------------------
var (
	// BufPoolMinClassSize 内存池最小的块大小
	BufPoolMinClassSize = 256

	// BufPoolMaxClassSize 内存池最大的块大小，超过这个大小的申请直接走make，释放时直接丢弃
	BufPoolMaxClassSize = 65536
)
