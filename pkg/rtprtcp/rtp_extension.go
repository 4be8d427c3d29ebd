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

// ---------------------------------------------------
// rfc5285 4.2. One-Byte Header
// ---------------------------------------------------
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |       0xBE    |    0xDE       |           length=3            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |  ID   | L=0   |     data      |  ID   |  L=1  |   data...
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       ...data   |    0 (pad)    |    0 (pad)    |  ID   | L=3   |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                          data                                 |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// length是扩展数据部分（不包含前面4字节）的长度，单位是4字节
//
// ---------------------------------------------------
// rfc5285 4.3. Two-Byte Header
// ---------------------------------------------------
//
// 0x100 + appbits(4b)，每个元素是 ID(8b) length(8b) data，只支持读取
//

const (
	RtpExtensionProfileOneByte uint16 = 0xBEDE
	RtpExtensionProfileTwoByte uint16 = 0x1000 // 低4位是appbits

	RtpExtensionOneByteMaxId         = 14
	RtpExtensionOneByteMaxDataLength = 16

	rtpExtensionOneByteReservedId = 15
)

// RtpHeaderExtension 扩展头元素的句柄，Data是内存块上的切片，可直接读写
//
// 注意，对包做任何结构性修改后，句柄失效
//
type RtpHeaderExtension struct {
	id   int
	data []byte
}

func (e RtpHeaderExtension) Id() int {
	return e.id
}

func (e RtpHeaderExtension) Data() []byte {
	return e.data
}

func (e RtpHeaderExtension) DataLength() int {
	return len(e.data)
}

// ExtensionProfile 扩展头的profile字段，没有扩展头时返回0
func (p *RtpPacket) ExtensionProfile() uint16 {
	if !p.HasExtension() {
		return 0
	}
	return bele.BeUint16(p.buf[p.offset+p.extensionBlockOffset():])
}

// GetHeaderExtension 查找扩展头元素
func (p *RtpPacket) GetHeaderExtension(id int) (RtpHeaderExtension, bool) {
	var ret RtpHeaderExtension
	found := false
	p.ForEachHeaderExtension(func(ext RtpHeaderExtension) bool {
		if ext.id == id {
			ret = ext
			found = true
			return false
		}
		return true
	})
	return ret, found
}

// ForEachHeaderExtension 按顺序遍历扩展头元素，`fn`返回false时停止遍历
//
// 支持one-byte和two-byte两种格式
//
func (p *RtpPacket) ForEachHeaderExtension(fn func(ext RtpHeaderExtension) bool) {
	p.walkExtensions(func(pos, id, dataPos, dataLength int) bool {
		start := p.offset + dataPos
		return fn(RtpHeaderExtension{
			id:   id,
			data: p.buf[start : start+dataLength],
		})
	})
}

// AddHeaderExtension 增加一个one-byte格式的扩展头元素
//
// 没有扩展头时，新建扩展头（0xBEDE+长度）并设置X标志。
// 已有扩展头时，在最后一个元素后面追加，只有原padding空间不够时才扩大扩展头。
//
// @param id:         1~14
// @param dataLength: 1~16
//
// @return 新元素的句柄，数据部分初始为0，由调用方写入
//
func (p *RtpPacket) AddHeaderExtension(id int, dataLength int) (RtpHeaderExtension, error) {
	if id < 1 || id > RtpExtensionOneByteMaxId || dataLength < 1 || dataLength > RtpExtensionOneByteMaxDataLength {
		return RtpHeaderExtension{}, nazaerrors.Wrap(base.ErrRtpExtension, fmt.Sprintf("id=%d, dataLength=%d", id, dataLength))
	}

	blockOffset := p.extensionBlockOffset()
	elementsOffset := blockOffset + 4
	var used int

	if p.HasExtension() {
		if profile := p.ExtensionProfile(); profile != RtpExtensionProfileOneByte {
			return RtpHeaderExtension{}, nazaerrors.Wrap(base.ErrRtpExtension, fmt.Sprintf("unsupported profile. profile=%x", profile))
		}
		if _, exist := p.GetHeaderExtension(id); exist {
			return RtpHeaderExtension{}, nazaerrors.Wrap(base.ErrRtpExtensionDup, fmt.Sprintf("id=%d", id))
		}

		used = p.extensionUsedLength()
		oldDataLength := p.extensionBlockLength() - 4
		newDataLength := roundUp4(used + 1 + dataLength)
		if newDataLength > oldDataLength {
			p.growAt(elementsOffset+oldDataLength, newDataLength-oldDataLength)
			bele.BePutUint16(p.buf[p.offset+blockOffset+2:], uint16(newDataLength/4))
		}
	} else {
		newDataLength := roundUp4(1 + dataLength)
		p.growAt(blockOffset, 4+newDataLength)
		bele.BePutUint16(p.buf[p.offset+blockOffset:], RtpExtensionProfileOneByte)
		bele.BePutUint16(p.buf[p.offset+blockOffset+2:], uint16(newDataLength/4))
		p.buf[p.offset] |= 0x10
	}

	pos := p.offset + elementsOffset + used
	p.buf[pos] = uint8(id<<4) | uint8(dataLength-1)
	// 数据部分以及后面的padding清零
	zero(p.buf[pos+1 : p.offset+elementsOffset+p.extensionBlockLength()-4])

	return RtpHeaderExtension{
		id:   id,
		data: p.buf[pos+1 : pos+1+dataLength],
	}, nil
}

// RemoveHeaderExtension 删除one-byte格式的扩展头元素，不存在时返回false
//
// 后面的元素向前挪动填补空隙。删除后如果没有任何元素，整个扩展头（包括0xBEDE和长度字段）也被删除，并清除X标志。
//
func (p *RtpPacket) RemoveHeaderExtension(id int) bool {
	if p.ExtensionProfile() != RtpExtensionProfileOneByte {
		return false
	}

	elemPos := -1
	elemSize := 0
	p.walkExtensions(func(pos, eid, dataPos, dataLength int) bool {
		if eid == id {
			elemPos = pos
			elemSize = 1 + dataLength
			return false
		}
		return true
	})
	if elemPos == -1 {
		return false
	}

	blockOffset := p.extensionBlockOffset()
	elementsOffset := blockOffset + 4
	oldDataLength := p.extensionBlockLength() - 4
	end := p.offset + elementsOffset + oldDataLength

	copy(p.buf[p.offset+elemPos:end], p.buf[p.offset+elemPos+elemSize:end])
	zero(p.buf[end-elemSize : end])

	used := p.extensionUsedLength()
	if used == 0 {
		p.shrinkAt(blockOffset, 4+oldDataLength)
		p.buf[p.offset] &^= 0x10
		return true
	}

	newDataLength := roundUp4(used)
	if newDataLength < oldDataLength {
		p.shrinkAt(elementsOffset+newDataLength, oldDataLength-newDataLength)
		bele.BePutUint16(p.buf[p.offset+blockOffset+2:], uint16(newDataLength/4))
	}
	return true
}

// ---------------------------------------------------------------------------------------------------------------------

// extensionBlockOffset 扩展头在包中的相对位置，也即固定头加csrc列表的长度
func (p *RtpPacket) extensionBlockOffset() int {
	return RtpFixedHeaderLength + 4*p.CsrcCount()
}

// extensionBlockLength 整个扩展头的长度，包含profile和长度字段，调用方保证X标志已设置
func (p *RtpPacket) extensionBlockLength() int {
	return 4 + 4*int(bele.BeUint16(p.buf[p.offset+p.extensionBlockOffset()+2:]))
}

// extensionUsedLength 扩展数据部分中，最后一个元素结束位置的相对偏移，不包含末尾的padding
func (p *RtpPacket) extensionUsedLength() int {
	elementsOffset := p.extensionBlockOffset() + 4
	used := 0
	p.walkExtensions(func(pos, id, dataPos, dataLength int) bool {
		used = dataPos + dataLength - elementsOffset
		return true
	})
	return used
}

// walkExtensions 遍历扩展头元素
//
// @param fn: pos是元素头的相对位置，dataPos是元素数据部分的相对位置
//
func (p *RtpPacket) walkExtensions(fn func(pos, id, dataPos, dataLength int) bool) {
	if !p.HasExtension() {
		return
	}
	blockOffset := p.extensionBlockOffset()
	profile := bele.BeUint16(p.buf[p.offset+blockOffset:])
	start := blockOffset + 4
	end := blockOffset + p.extensionBlockLength()
	b := p.buf[p.offset : p.offset+end]

	switch {
	case profile == RtpExtensionProfileOneByte:
		for i := start; i < end; {
			if b[i] == 0 {
				i++
				continue
			}
			id := int(b[i] >> 4)
			l := int(b[i]&0x0F) + 1
			if id == rtpExtensionOneByteReservedId || i+1+l > end {
				return
			}
			if !fn(i, id, i+1, l) {
				return
			}
			i += 1 + l
		}
	case profile&0xFFF0 == RtpExtensionProfileTwoByte:
		for i := start; i+1 < end; {
			if b[i] == 0 {
				i++
				continue
			}
			id := int(b[i])
			l := int(b[i+1])
			if i+2+l > end {
				return
			}
			if !fn(i, id, i+2, l) {
				return
			}
			i += 2 + l
		}
	}
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}
