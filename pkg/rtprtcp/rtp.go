// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package rtprtcp

// IsRtcpPacket rtp和rtcp复用同一个端口时，区分是否是rtcp包
//
// rfc5761 4. Distinguishable RTP and RTCP Packets
// 第二个字节（rtp的M+PT，rtcp的PT）在[192, 223]范围内的是rtcp包
//
func IsRtcpPacket(b []byte) bool {
	return len(b) >= 2 && b[1] >= 192 && b[1] <= 223
}

// CompareSeq 比较两个序号的先后，处理序号回绕
//
// 两个序号的距离小于32768时，认为距离近的方向是正确的，比如65535在0之前。
// 距离刚好为32768时无法判断，都认为a在b之前。
//
// @return 0 相等；1 a在b之后；-1 a在b之前
//
func CompareSeq(a, b uint16) int {
	d := SubSeq(a, b)
	switch {
	case d == 0:
		return 0
	case d > 0:
		return 1
	}
	return -1
}

// SubSeq a相对于b的距离，处理序号回绕，取值范围[-32768, 32767]
//
func SubSeq(a, b uint16) int {
	return int(int16(a - b))
}
