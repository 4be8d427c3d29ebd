// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package rtprtcp

import "time"

// 1900-01-01到1970-01-01的秒数
const ntpEpochOffsetSec = 2208988800

// NtpTime 64位ntp时间戳（rfc3550 4），高32位是秒，低32位是秒的小数部分
type NtpTime uint64

func NewNtpTime(t time.Time) NtpTime {
	sec := uint64(t.Unix()) + ntpEpochOffsetSec
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return NtpTime(sec<<32 | frac)
}

// NtpTimeFromMswLsw sr包中分开存放的高32位和低32位
func NtpTimeFromMswLsw(msw, lsw uint32) NtpTime {
	return NtpTime(uint64(msw)<<32 | uint64(lsw))
}

func (n NtpTime) Msw() uint32 {
	return uint32(n >> 32)
}

func (n NtpTime) Lsw() uint32 {
	return uint32(n)
}

// Middle 中间32位，rr包中的LSR字段
func (n NtpTime) Middle() uint32 {
	return uint32(n >> 16)
}

func (n NtpTime) Time() time.Time {
	sec := int64(n.Msw()) - ntpEpochOffsetSec
	nsec := (uint64(n.Lsw()) * uint64(time.Second)) >> 32
	return time.Unix(sec, int64(nsec))
}
