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
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// rfc2198 3. RTP Payload Format for Redundant Audio Data
//
// 冗余块的块头：
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |F|   block PT  |  timestamp offset         |   block length    |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// 最后一个块头（主块），长度隐含为剩余部分：
//
//  0 1 2 3 4 5 6 7
// +-+-+-+-+-+-+-+-+
// |0|   Block PT  |
// +-+-+-+-+-+-+-+-+
//
// payload布局：块头1 块头2 ... 主块头 | 块1数据 块2数据 ... 主块数据
//

const (
	redRedundancyBlockHeaderLength = 4
	redPrimaryBlockHeaderLength    = 1

	RedMaxTimestampOffset = 0x3FFF
	RedMaxBlockLength     = 0x3FF
)

type RedBlockHeader struct {
	Primary         bool   // F位为0
	PayloadType     uint8  // 7b
	TimestampOffset uint16 // 14b, 主块没有该字段
	BlockLength     int    // 10b, 主块没有该字段
}

// RedBlock 构造red包时使用的一个冗余块
type RedBlock struct {
	PayloadType     uint8
	TimestampOffset uint16
	Payload         []byte
}

func (h *RedBlockHeader) HeaderLength() int {
	if h.Primary {
		return redPrimaryBlockHeaderLength
	}
	return redRedundancyBlockHeaderLength
}

// ParseRedBlockHeader 解析一个块头，根据F位判断是冗余块头还是主块头
func ParseRedBlockHeader(b []byte) (h RedBlockHeader, err error) {
	if len(b) < 1 {
		err = nazaerrors.Wrap(base.ErrRedMalformed, "empty block header")
		return
	}
	br := nazabits.NewBitReader(b)
	follow, _ := br.ReadBit()
	h.PayloadType, _ = br.ReadBits8(7)
	if follow == 0 {
		h.Primary = true
		return
	}

	if len(b) < redRedundancyBlockHeaderLength {
		err = nazaerrors.Wrap(base.ErrRedMalformed, fmt.Sprintf("block header truncated. len=%d", len(b)))
		return
	}
	h.TimestampOffset, _ = br.ReadBits16(14)
	l, _ := br.ReadBits16(10)
	h.BlockLength = int(l)
	return
}

// PackTo @param out: 调用方保证长度>=h.HeaderLength()
func (h *RedBlockHeader) PackTo(out []byte) {
	zero(out[:h.HeaderLength()])
	bw := nazabits.NewBitWriter(out)
	if h.Primary {
		bw.WriteBits8(1, 0)
		bw.WriteBits8(7, h.PayloadType)
		return
	}
	bw.WriteBits8(1, 1)
	bw.WriteBits8(7, h.PayloadType)
	bw.WriteBits16(14, h.TimestampOffset)
	bw.WriteBits16(10, uint16(h.BlockLength))
}

// RedundancySequenceNumber 冗余块还原成rtp包时使用的序号
//
// rfc2198只描述了如何还原时间戳和payload type，没有序号。
// 这里假设冗余块按顺序对应主块之前紧挨着的那几个包，
// 比如有2个冗余块，主块序号为S，则冗余块序号依次为S-2，S-1。
//
// @param index: 冗余块在块链中的下标，从0开始
//
func RedundancySequenceNumber(primarySeq uint16, numRedundant, index int) uint16 {
	return primarySeq - uint16(numRedundant-index)
}

// DecapsulateRed 原地去掉red封装，冗余块直接丢弃，见 ParseRedundancyAndDecapsulateRed
func (p *RtpPacket) DecapsulateRed() error {
	_, err := p.decapsulateRed(false)
	return err
}

// ParseRedundancyAndDecapsulateRed 原地去掉red封装，并将冗余块还原为独立的rtp包
//
// 原包被修改为只包含主块数据，payload type设置为主块的payload type，csrc和扩展头保留。
// 注意，修改后的包不再是red包，不能重复调用。
//
// 冗余包从内存池申请内存块，只包含12字节固定头（csrc、扩展、padding都被去掉）和冗余块数据：
// - 时间戳为主块时间戳减去块头中的时间戳偏移
// - 序号见 RedundancySequenceNumber
//
// 任何块头或块数据超出payload范围时返回错误，此时原包不被修改
//
func (p *RtpPacket) ParseRedundancyAndDecapsulateRed() ([]*RtpPacket, error) {
	return p.decapsulateRed(true)
}

func (p *RtpPacket) decapsulateRed(parseRedundancy bool) ([]*RtpPacket, error) {
	headerLength := p.HeaderLength()
	payloadEnd := headerLength + p.PayloadLength()
	b := p.Bytes()

	// 解析块头链
	var headers []RedBlockHeader
	var primary RedBlockHeader
	cur := headerLength
	for {
		if cur >= payloadEnd {
			return nil, nazaerrors.Wrap(base.ErrRedMalformed, "no primary block header within payload")
		}
		h, err := ParseRedBlockHeader(b[cur:payloadEnd])
		if err != nil {
			return nil, err
		}
		cur += h.HeaderLength()
		if h.Primary {
			primary = h
			break
		}
		headers = append(headers, h)
	}

	// 检查冗余块数据都在payload范围内
	blockOffsets := make([]int, len(headers))
	for i := range headers {
		if cur+headers[i].BlockLength > payloadEnd {
			return nil, nazaerrors.Wrap(base.ErrRedMalformed, fmt.Sprintf("block extends past the payload. offset=%d, blockLength=%d, payloadEnd=%d", cur, headers[i].BlockLength, payloadEnd))
		}
		blockOffsets[i] = cur
		cur += headers[i].BlockLength
	}

	var packets []*RtpPacket
	if parseRedundancy {
		packets = make([]*RtpPacket, 0, len(headers))
		for i := range headers {
			packets = append(packets, p.newRedundancyPacket(headers[i], b[blockOffsets[i]:blockOffsets[i]+headers[i].BlockLength], len(headers), i))
		}
	}

	// 挪动头部，使其紧挨着主块数据
	p.shrinkAt(headerLength, cur-headerLength)
	p.SetPayloadType(primary.PayloadType)
	return packets, nil
}

func (p *RtpPacket) newRedundancyPacket(h RedBlockHeader, block []byte, numRedundant int, index int) *RtpPacket {
	pkt := &RtpPacket{
		Packet: *newPooledPacket(RtpFixedHeaderLength + len(block)),
	}
	b := pkt.Bytes()
	copy(b, p.Bytes()[:RtpFixedHeaderLength])
	// 去掉csrc、扩展、padding标志
	b[0] &= 0xC0
	copy(b[RtpFixedHeaderLength:], block)

	pkt.SetPayloadType(h.PayloadType)
	pkt.SetTimestamp(p.Timestamp() - uint32(h.TimestampOffset))
	pkt.SetSequenceNumber(RedundancySequenceNumber(p.SequenceNumber(), numRedundant, index))
	return pkt
}

// NewRedPacket 构造red包
//
// @param h:                rtp头部，PayloadType为red的payload type
// @param primaryPayloadType: 主块的payload type
// @param primary:          主块数据
// @param redundancy:       冗余块，按时间从早到晚排列
//
func NewRedPacket(h RtpHeader, primaryPayloadType uint8, primary []byte, redundancy []RedBlock) (*RtpPacket, error) {
	n := redPrimaryBlockHeaderLength + len(primary)
	for _, block := range redundancy {
		if block.TimestampOffset > RedMaxTimestampOffset || len(block.Payload) > RedMaxBlockLength {
			return nil, nazaerrors.Wrap(base.ErrRedMalformed, fmt.Sprintf("block out of range. tsOffset=%d, len=%d", block.TimestampOffset, len(block.Payload)))
		}
		n += redRedundancyBlockHeaderLength + len(block.Payload)
	}

	payload := make([]byte, n)
	pos := 0
	for _, block := range redundancy {
		bh := RedBlockHeader{
			PayloadType:     block.PayloadType,
			TimestampOffset: block.TimestampOffset,
			BlockLength:     len(block.Payload),
		}
		bh.PackTo(payload[pos:])
		pos += redRedundancyBlockHeaderLength
	}
	ph := RedBlockHeader{Primary: true, PayloadType: primaryPayloadType}
	ph.PackTo(payload[pos:])
	pos += redPrimaryBlockHeaderLength
	for _, block := range redundancy {
		pos += copy(payload[pos:], block.Payload)
	}
	copy(payload[pos:], primary)

	return NewRtpPacket(h, payload), nil
}
