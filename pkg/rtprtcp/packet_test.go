// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"testing"

	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/assert"
)

func TestNewPacketFromBytes(t *testing.T) {
	p := rtprtcp.NewPacketFromBytes([]byte{1, 2, 3})
	assert.Equal(t, rtprtcp.PacketReservedHeadBytes, p.HeadRoom())
	assert.Equal(t, true, p.TailRoom() >= rtprtcp.PacketReservedTailBytes)
	assert.Equal(t, 3, p.Length())
	assert.Equal(t, []byte{1, 2, 3}, p.Bytes())

	c := p.Clone()
	c.Bytes()[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, p.Bytes())
	assert.Equal(t, []byte{9, 2, 3}, c.Bytes())

	p.Release()
	c.Release()
	// 重复Release无副作用
	p.Release()
	assert.Equal(t, 0, p.Length())
}

func TestPacket_CloneFreshReservation(t *testing.T) {
	// 前后预留空间不足的视图，Clone只拷贝包内容，并带上新的预留空间
	buf := []byte{0xaa, 1, 2, 3, 0xbb}
	p := rtprtcp.NewPacket(buf, 1, 3)
	c := p.Clone()
	assert.Equal(t, rtprtcp.PacketReservedHeadBytes, c.HeadRoom())
	assert.Equal(t, true, c.TailRoom() >= rtprtcp.PacketReservedTailBytes)
	assert.Equal(t, []byte{1, 2, 3}, c.Bytes())
	c.Release()
}

func TestNewPacket_InvalidWindow(t *testing.T) {
	defer func() {
		assert.IsNotNil(t, recover())
	}()
	rtprtcp.NewPacket(make([]byte, 4), 2, 3)
}

func TestPacket_GrowTail(t *testing.T) {
	p := rtprtcp.NewPacketFromBytes([]byte{1, 2, 3})
	buf := p.Buffer()
	tail := p.GrowTail(2)
	assert.Equal(t, []byte{0, 0}, tail)
	tail[0] = 4
	tail[1] = 5
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, p.Bytes())
	// 预留空间足够，原地扩展
	assert.Equal(t, true, &buf[0] == &p.Buffer()[0])
	assert.Equal(t, rtprtcp.PacketReservedHeadBytes, p.Offset())

	p.ShrinkTail(3)
	assert.Equal(t, []byte{1, 2}, p.Bytes())
	p.Release()
}

func TestPacket_GrowHead(t *testing.T) {
	p := rtprtcp.NewPacketFromBytes([]byte{1, 2, 3})
	head := p.GrowHead(2)
	assert.Equal(t, []byte{0, 0}, head)
	head[0] = 0xAA
	assert.Equal(t, []byte{0xAA, 0, 1, 2, 3}, p.Bytes())
	// 头部插入，挪动前面的0个字节
	assert.Equal(t, rtprtcp.PacketReservedHeadBytes-2, p.Offset())

	p.ShrinkHead(2)
	assert.Equal(t, []byte{1, 2, 3}, p.Bytes())
	assert.Equal(t, rtprtcp.PacketReservedHeadBytes, p.Offset())
	p.Release()
}

func TestPacket_Realloc(t *testing.T) {
	// 内存块前后都没有空闲空间
	buf := []byte{1, 2, 3, 4}
	p := rtprtcp.NewPacket(buf, 0, 4)
	assert.Equal(t, 0, p.HeadRoom())
	assert.Equal(t, 0, p.TailRoom())

	tail := p.GrowTail(3)
	assert.Equal(t, 3, len(tail))
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0}, p.Bytes())
	assert.Equal(t, rtprtcp.PacketReservedHeadBytes, p.HeadRoom())
	assert.Equal(t, true, p.TailRoom() >= rtprtcp.PacketReservedTailBytes)
	// 原内存块不受影响
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
	p.Release()
}

func TestPacket_OnlyTailRoom(t *testing.T) {
	// 只有尾部空闲，在头部插入也只能往后挪
	buf := make([]byte, 8)
	copy(buf, []byte{1, 2, 3, 4})
	p := rtprtcp.NewPacket(buf, 0, 4)
	head := p.GrowHead(2)
	head[0] = 7
	assert.Equal(t, []byte{7, 0, 1, 2, 3, 4}, p.Bytes())
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, true, &buf[0] == &p.Buffer()[0])
}

func TestPacket_OnlyHeadRoom(t *testing.T) {
	buf := make([]byte, 8)
	copy(buf[4:], []byte{1, 2, 3, 4})
	p := rtprtcp.NewPacket(buf, 4, 4)
	tail := p.GrowTail(2)
	tail[1] = 9
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 9}, p.Bytes())
	assert.Equal(t, 2, p.Offset())
	assert.Equal(t, 0, p.TailRoom())
}
