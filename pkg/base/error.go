// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("lalrtp: buffer too short")
	ErrFileNotExist = errors.New("lalrtp: file not exist")
)

// ----- pkg/base ------------------------------------------------------------------------------------------------------

var (
	ErrDumpFileNotOpened = errors.New("lalrtp.base: dump file not opened")
	ErrDumpFileVersion   = errors.New("lalrtp.base: dump file version mismatch")
)

// ----- pkg/bufpool ---------------------------------------------------------------------------------------------------

var ErrBufPoolInvalidSize = errors.New("lalrtp.bufpool: invalid size")

// ----- pkg/rtprtcp ---------------------------------------------------------------------------------------------------

var (
	ErrRtpRtcpShortBuffer = errors.New("lalrtp.rtprtcp: buffer too short")

	// ErrRtpMalformed rtp包结构不合法，比如版本号不对，csrc或扩展超出包长度
	ErrRtpMalformed = errors.New("lalrtp.rtprtcp: malformed rtp packet")

	ErrRtpExtension     = errors.New("lalrtp.rtprtcp: invalid rtp header extension")
	ErrRtpExtensionDup  = errors.New("lalrtp.rtprtcp: rtp header extension id already exist")
	ErrRtpCsrcOverflow  = errors.New("lalrtp.rtprtcp: too many csrc")
	ErrRtpRtxMalformed  = errors.New("lalrtp.rtprtcp: malformed rtx packet")
	ErrRedMalformed     = errors.New("lalrtp.rtprtcp: malformed red packet")
	ErrStreamFrameLarge = errors.New("lalrtp.rtprtcp: stream frame too large")

	// ErrRtcpMalformed rtcp包结构不合法，比如长度字段和实际长度不一致
	ErrRtcpMalformed = errors.New("lalrtp.rtprtcp: malformed rtcp packet")

	// ErrRtcpUnsupportedPacket 不认识的(packet type, fmt)组合
	ErrRtcpUnsupportedPacket = errors.New("lalrtp.rtprtcp: unsupported rtcp packet")

	ErrRtcpCompound = errors.New("lalrtp.rtprtcp: malformed compound rtcp packet")

	ErrTccMalformed = errors.New("lalrtp.rtprtcp: malformed tcc feedback packet")
)

func NewErrRtpRtcpShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrRtpRtcpShortBuffer, need, actual, msg)
}

func NewErrRtcpUnsupportedPacket(packetType, format uint8) error {
	return fmt.Errorf("%w. pt=%d, fmt=%d", ErrRtcpUnsupportedPacket, packetType, format)
}

// ----- pkg/srtp ------------------------------------------------------------------------------------------------------

var ErrSrtpShortPacket = errors.New("lalrtp.srtp: packet too short for srtp tail fields")

func NewErrSrtpShortPacket(need, actual int) error {
	return fmt.Errorf("%w. need=%d, actual=%d", ErrSrtpShortPacket, need, actual)
}

// ---------------------------------------------------------------------------------------------------------------------

// IsMalformedPacket 判断是否是输入包格式错误类的错误
func IsMalformedPacket(err error) bool {
	return errors.Is(err, ErrRtpRtcpShortBuffer) ||
		errors.Is(err, ErrRtpMalformed) ||
		errors.Is(err, ErrRtpRtxMalformed) ||
		errors.Is(err, ErrRedMalformed) ||
		errors.Is(err, ErrRtcpMalformed) ||
		errors.Is(err, ErrRtcpUnsupportedPacket) ||
		errors.Is(err, ErrRtcpCompound) ||
		errors.Is(err, ErrTccMalformed) ||
		errors.Is(err, ErrSrtpShortPacket)
}
