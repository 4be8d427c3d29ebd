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

// draft-holmer-rmcat-transport-wide-cc-extensions-01 3.1.3. Packet Status Chunk
//
// Run Length Chunk
//
//  0                   1
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |T| S |       Run Length        |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// T=0, S为符号，Run Length为该符号连续出现的次数
//
// Status Vector Chunk
//
//  0                   1
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |T|S|       symbol list         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// T=1
// S=0时，14个1比特的符号，0表示未收到，1表示收到且delta为1字节
// S=1时，7个2比特的符号
//

// 每个包的状态符号，同时也是该包receive delta占用的字节数
const (
	TccSymbolNotReceived uint8 = 0
	TccSymbolSmallDelta  uint8 = 1
	TccSymbolLargeDelta  uint8 = 2
	tccSymbolReserved    uint8 = 3
)

const (
	tccChunkLength = 2

	tccMaxRunLengthCapacity = 0x1FFF
	tccMaxOneBitCapacity    = 14
	tccMaxTwoBitCapacity    = 7
	tccMaxVectorCapacity    = tccMaxOneBitCapacity
)

// tccLastChunk 正在填充的最后一个chunk
//
// 编码时逐个Add符号，放不下时Emit出一个完整的chunk；解码时Decode一个chunk后AppendTo取出符号
//
type tccLastChunk struct {
	size          int
	allSame       bool
	hasLargeDelta bool
	deltaSizes    [tccMaxVectorCapacity]uint8
}

func newTccLastChunk() tccLastChunk {
	return tccLastChunk{allSame: true}
}

func (c *tccLastChunk) Empty() bool {
	return c.size == 0
}

func (c *tccLastChunk) Clear() {
	c.size = 0
	c.allSame = true
	c.hasLargeDelta = false
}

// CanAdd
//
// 2比特vector最多7个符号，1比特vector最多14个且不能有large delta，run length要求所有符号相同
//
func (c *tccLastChunk) CanAdd(deltaSize uint8) bool {
	if c.size < tccMaxTwoBitCapacity {
		return true
	}
	if c.size < tccMaxOneBitCapacity && !c.hasLargeDelta && deltaSize != TccSymbolLargeDelta {
		return true
	}
	if c.size < tccMaxRunLengthCapacity && c.allSame && c.deltaSizes[0] == deltaSize {
		return true
	}
	return false
}

// Add 调用方保证CanAdd返回true
func (c *tccLastChunk) Add(deltaSize uint8) {
	if c.size < tccMaxVectorCapacity {
		c.deltaSizes[c.size] = deltaSize
	}
	c.size++
	c.allSame = c.allSame && deltaSize == c.deltaSizes[0]
	c.hasLargeDelta = c.hasLargeDelta || deltaSize == TccSymbolLargeDelta
}

// Emit 编码出一个完整的chunk，剩余放不下的符号留在c中
//
// 优先级：run length > 1比特vector（14个满） > 2比特vector（7个）
//
func (c *tccLastChunk) Emit() uint16 {
	if c.allSame {
		chunk := c.encodeRunLength()
		c.Clear()
		return chunk
	}
	if c.size == tccMaxOneBitCapacity {
		chunk := c.encodeOneBit()
		c.Clear()
		return chunk
	}

	chunk := c.encodeTwoBit(tccMaxTwoBitCapacity)
	c.size -= tccMaxTwoBitCapacity
	c.allSame = true
	c.hasLargeDelta = false
	for i := 0; i < c.size; i++ {
		ds := c.deltaSizes[tccMaxTwoBitCapacity+i]
		c.deltaSizes[i] = ds
		c.allSame = c.allSame && ds == c.deltaSizes[0]
		c.hasLargeDelta = c.hasLargeDelta || ds == TccSymbolLargeDelta
	}
	return chunk
}

// EncodeLast 组包时编码剩余的符号，不要求chunk是满的。调用方保证c不为空
func (c *tccLastChunk) EncodeLast() uint16 {
	if c.allSame {
		return c.encodeRunLength()
	}
	if c.size <= tccMaxTwoBitCapacity {
		return c.encodeTwoBit(c.size)
	}
	return c.encodeOneBit()
}

// Decode 解析一个chunk，覆盖c之前的内容
//
// @param maxSize: 最多还需要多少个符号，chunk中超出的部分被忽略
//
func (c *tccLastChunk) Decode(chunk uint16, maxSize int) error {
	var b [tccChunkLength]byte
	b[0] = uint8(chunk >> 8)
	b[1] = uint8(chunk)
	br := nazabits.NewBitReader(b[:])

	t, _ := br.ReadBit()
	if t == 0 {
		symbol, _ := br.ReadBits8(2)
		runLength, _ := br.ReadBits16(13)
		if symbol == tccSymbolReserved {
			return nazaerrors.Wrap(base.ErrTccMalformed, fmt.Sprintf("reserved symbol in run length chunk. chunk=%04x", chunk))
		}
		c.size = minInt(int(runLength), maxSize)
		c.allSame = true
		c.hasLargeDelta = symbol == TccSymbolLargeDelta
		c.deltaSizes[0] = symbol
		return nil
	}

	s, _ := br.ReadBit()
	if s == 0 {
		c.size = minInt(tccMaxOneBitCapacity, maxSize)
		c.allSame = false
		c.hasLargeDelta = false
		for i := 0; i < c.size; i++ {
			c.deltaSizes[i], _ = br.ReadBit()
		}
		return nil
	}

	c.size = minInt(tccMaxTwoBitCapacity, maxSize)
	c.allSame = false
	c.hasLargeDelta = true
	for i := 0; i < c.size; i++ {
		c.deltaSizes[i], _ = br.ReadBits8(2)
		if c.deltaSizes[i] == tccSymbolReserved {
			return nazaerrors.Wrap(base.ErrTccMalformed, fmt.Sprintf("reserved symbol in two bit chunk. chunk=%04x", chunk))
		}
	}
	return nil
}

// AppendTo 将c中的符号追加到`deltaSizes`后面
func (c *tccLastChunk) AppendTo(deltaSizes []uint8) []uint8 {
	if c.allSame {
		for i := 0; i < c.size; i++ {
			deltaSizes = append(deltaSizes, c.deltaSizes[0])
		}
		return deltaSizes
	}
	return append(deltaSizes, c.deltaSizes[:c.size]...)
}

func (c *tccLastChunk) encodeRunLength() uint16 {
	return uint16(c.deltaSizes[0])<<13 | uint16(c.size)
}

func (c *tccLastChunk) encodeOneBit() uint16 {
	chunk := uint16(0x8000)
	for i := 0; i < c.size; i++ {
		chunk |= uint16(c.deltaSizes[i]) << (tccMaxOneBitCapacity - 1 - i)
	}
	return chunk
}

func (c *tccLastChunk) encodeTwoBit(size int) uint16 {
	chunk := uint16(0xC000)
	for i := 0; i < size; i++ {
		chunk |= uint16(c.deltaSizes[i]) << (2 * (tccMaxTwoBitCapacity - 1 - i))
	}
	return chunk
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
