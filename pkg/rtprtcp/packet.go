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

	"github.com/q191201771/lalrtp/pkg/bufpool"
)

const (
	// PacketReservedHeadBytes 新申请内存块时，包前面预留的空闲字节数，用于原地扩展（比如增加csrc、扩展头、前置底层协议头）
	PacketReservedHeadBytes = 10

	// PacketReservedTailBytes 新申请内存块时，包后面预留的空闲字节数，用于原地扩展（比如增加扩展头、srtp auth tag）
	PacketReservedTailBytes = 20
)

// Packet 一个包在内存块上的视图
//
// 内存块布局：
//
//   0         offset                   offset+length         len(buf)
//   |-- head --|--------- packet --------|-------- tail -------|
//
// head和tail是空闲的预留空间，包内容变长时优先原地挪动到预留空间中，都不够时才从内存池重新申请。
//
// 注意，Packet不做并发保护，在多个goroutine间共享时需要先Clone
//
type Packet struct {
	buf    []byte
	offset int
	length int

	owned bool // 是否持有内存块。不持有时（比如compound rtcp中的子包），Release不归还内存块
}

// NewPacket 包装一块已有内存，不拷贝
//
// 调用后，内存块的所有权转移给Packet，Release时尝试归还给内存池。
//
func NewPacket(buf []byte, offset, length int) *Packet {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		panic(fmt.Sprintf("lalrtp.rtprtcp: invalid packet window. offset=%d, length=%d, cap=%d", offset, length, len(buf)))
	}
	return &Packet{
		buf:    buf,
		offset: offset,
		length: length,
		owned:  true,
	}
}

// NewPacketFromBytes 将`b`拷贝到内存池申请的内存块中，前后带有预留空间
//
func NewPacketFromBytes(b []byte) *Packet {
	p := newPooledPacket(len(b))
	copy(p.Bytes(), b)
	return p
}

func newPooledPacket(length int) *Packet {
	buf := bufpool.Acquire(PacketReservedHeadBytes + length + PacketReservedTailBytes)
	return &Packet{
		buf:    buf,
		offset: PacketReservedHeadBytes,
		length: length,
		owned:  true,
	}
}

// subPacket 父包中一段区域的视图，共享内存块
//
// 子视图没有前后预留空间，避免原地扩展时覆盖相邻的包，扩展时总是重新申请内存块
//
func (p *Packet) subPacket(offset, length int) Packet {
	start := p.offset + offset
	return Packet{
		buf:    p.buf[start : start+length : start+length],
		offset: 0,
		length: length,
	}
}

// Buffer 整个内存块，包括前后预留空间
func (p *Packet) Buffer() []byte {
	return p.buf
}

func (p *Packet) Offset() int {
	return p.offset
}

func (p *Packet) Length() int {
	return p.length
}

// Bytes 包的内容，不拷贝，同时也是包序列化后的结果
func (p *Packet) Bytes() []byte {
	return p.buf[p.offset : p.offset+p.length]
}

// HeadRoom 包前面空闲的字节数
func (p *Packet) HeadRoom() int {
	return p.offset
}

// TailRoom 包后面空闲的字节数
func (p *Packet) TailRoom() int {
	return len(p.buf) - p.offset - p.length
}

// Clone 深拷贝，新的内存块从内存池申请，前后带有预留空间
//
func (p *Packet) Clone() *Packet {
	return NewPacketFromBytes(p.Bytes())
}

// Release 将内存块归还给内存池，调用后Packet不能再被使用
//
func (p *Packet) Release() {
	if p.buf == nil {
		return
	}
	if p.owned {
		bufpool.Release(p.buf)
	}
	p.buf = nil
	p.offset = 0
	p.length = 0
}

// GrowTail 包尾部增加`n`字节，返回新增的部分，内容为0
func (p *Packet) GrowTail(n int) []byte {
	p.growAt(p.length, n)
	return p.buf[p.offset+p.length-n : p.offset+p.length]
}

// ShrinkTail 去掉包尾部的`n`字节
func (p *Packet) ShrinkTail(n int) {
	p.shrinkAt(p.length-n, n)
}

// GrowHead 包头部增加`n`字节，返回新增的部分，内容为0
func (p *Packet) GrowHead(n int) []byte {
	p.growAt(0, n)
	return p.buf[p.offset : p.offset+n]
}

// ShrinkHead 去掉包头部的`n`字节
func (p *Packet) ShrinkHead(n int) {
	p.shrinkAt(0, n)
}

// ---------------------------------------------------------------------------------------------------------------------

// growAt 在包内相对位置`pos`处插入`n`字节，插入部分内容为0
//
// 策略：
// - 前后预留空间都足够时，挪动字节数少的一侧
// - 只有一侧足够时，挪动到该侧
// - 都不够时，从内存池重新申请，并重新留出前后预留空间
//
func (p *Packet) growAt(pos, n int) {
	if pos < 0 || pos > p.length || n < 0 {
		panic(fmt.Sprintf("lalrtp.rtprtcp: invalid grow. pos=%d, n=%d, length=%d", pos, n, p.length))
	}
	if n == 0 {
		return
	}

	canLeft := p.HeadRoom() >= n
	canRight := p.TailRoom() >= n
	leftCost := pos
	rightCost := p.length - pos

	switch {
	case canLeft && canRight:
		if leftCost < rightCost {
			p.moveLeft(pos, n)
		} else {
			p.moveRight(pos, n)
		}
	case canRight:
		p.moveRight(pos, n)
	case canLeft:
		p.moveLeft(pos, n)
	default:
		p.realloc(pos, n)
	}
}

// shrinkAt 删除包内相对位置`pos`处的`n`字节，挪动字节数少的一侧
//
func (p *Packet) shrinkAt(pos, n int) {
	if pos < 0 || n < 0 || pos+n > p.length {
		panic(fmt.Sprintf("lalrtp.rtprtcp: invalid shrink. pos=%d, n=%d, length=%d", pos, n, p.length))
	}
	if n == 0 {
		return
	}

	if pos < p.length-pos-n {
		// 前面部分往后挪
		copy(p.buf[p.offset+n:p.offset+n+pos], p.buf[p.offset:p.offset+pos])
		p.offset += n
	} else {
		// 后面部分往前挪
		copy(p.buf[p.offset+pos:], p.buf[p.offset+pos+n:p.offset+p.length])
	}
	p.length -= n
}

func (p *Packet) moveLeft(pos, n int) {
	copy(p.buf[p.offset-n:p.offset-n+pos], p.buf[p.offset:p.offset+pos])
	p.offset -= n
	p.length += n
	zero(p.buf[p.offset+pos : p.offset+pos+n])
}

func (p *Packet) moveRight(pos, n int) {
	copy(p.buf[p.offset+pos+n:p.offset+p.length+n], p.buf[p.offset+pos:p.offset+p.length])
	p.length += n
	zero(p.buf[p.offset+pos : p.offset+pos+n])
}

func (p *Packet) realloc(pos, n int) {
	needed := PacketReservedHeadBytes + p.length + n + PacketReservedTailBytes
	Log.Debugf("[%p] Packet realloc. pos=%d, n=%d, length=%d, cap=(%d, %d)", p, pos, n, p.length, len(p.buf), needed)

	buf := bufpool.Acquire(needed)
	offset := PacketReservedHeadBytes
	copy(buf[offset:], p.buf[p.offset:p.offset+pos])
	zero(buf[offset+pos : offset+pos+n])
	copy(buf[offset+pos+n:], p.buf[p.offset+pos:p.offset+p.length])

	if p.owned {
		bufpool.Release(p.buf)
	}
	p.buf = buf
	p.owned = true
	p.offset = offset
	p.length += n
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
