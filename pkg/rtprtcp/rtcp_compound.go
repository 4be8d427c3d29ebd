// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"fmt"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// CompoundRtcpPacket 多个rtcp包首尾相连组成的复合包（rfc3550 6.1）
//
// 子包是复合包内存块上的视图，不持有内存块，只有复合包Release时才归还内存块
//
type CompoundRtcpPacket struct {
	Packet
	packets []RtcpPacket
}

// ParseCompoundRtcpPacket 拆分并解析复合包，不拷贝
//
// 按每个子包的length字段依次定位下一个子包，必须刚好用完整个窗口。
// 任何一个子包出错，整个复合包解析失败，不返回已经解析成功的子包。
//
func ParseCompoundRtcpPacket(buf []byte, offset, length int) (*CompoundRtcpPacket, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return nil, base.NewErrRtpRtcpShortBuffer(offset+length, len(buf), "compound rtcp window")
	}
	cp := &CompoundRtcpPacket{
		Packet: *NewPacket(buf, offset, length),
	}
	if err := cp.split(); err != nil {
		logRtcpParseFailed(buf[offset:offset+length], err)
		return nil, err
	}
	return cp, nil
}

// NewCompoundRtcpPacket 将多个包拷贝到一个新的内存块中
//
// 注意，`pkts`不会被Release，由调用方负责
//
func NewCompoundRtcpPacket(pkts []RtcpPacket) *CompoundRtcpPacket {
	total := 0
	for _, pkt := range pkts {
		total += pkt.Length()
	}
	cp := &CompoundRtcpPacket{
		Packet: *newPooledPacket(total),
	}
	b := cp.Bytes()
	pos := 0
	for _, pkt := range pkts {
		pos += copy(b[pos:], pkt.Bytes())
	}
	if err := cp.split(); err != nil {
		// 输入都是合法的rtcp包，拼接后不可能出错
		panic(fmt.Sprintf("lalrtp.rtprtcp: split compound rtcp failed. err=%+v", err))
	}
	return cp
}

func (cp *CompoundRtcpPacket) Packets() []RtcpPacket {
	return cp.packets
}

func (cp *CompoundRtcpPacket) Release() {
	cp.packets = nil
	cp.Packet.Release()
}

func (cp *CompoundRtcpPacket) split() error {
	b := cp.Bytes()
	var packets []RtcpPacket
	pos := 0
	for pos < len(b) {
		if len(b)-pos < RtcpCommonHeaderLength {
			return nazaerrors.Wrap(base.ErrRtcpCompound, fmt.Sprintf("header truncated. pos=%d, remain=%d", pos, len(b)-pos))
		}
		l := (int(bele.BeUint16(b[pos+2:])) + 1) * 4
		if pos+l > len(b) {
			return nazaerrors.Wrap(base.ErrRtcpCompound, fmt.Sprintf("packet overrun. pos=%d, length=%d, total=%d", pos, l, len(b)))
		}
		pkt, err := parseRtcpPacket(cp.subPacket(pos, l))
		if err != nil {
			return fmt.Errorf("%w. pos=%d, err=%w", base.ErrRtcpCompound, pos, err)
		}
		packets = append(packets, pkt)
		pos += l
	}
	if len(packets) == 0 {
		return nazaerrors.Wrap(base.ErrRtcpCompound, "empty")
	}
	cp.packets = packets
	return nil
}
