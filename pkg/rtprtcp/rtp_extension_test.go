// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/naza/pkg/assert"
)

func TestGetHeaderExtension(t *testing.T) {
	b := copyOf(rtpWithExtension)
	pkt, err := rtprtcp.ParseRtpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)
	assert.Equal(t, rtprtcp.RtpExtensionProfileOneByte, pkt.ExtensionProfile())

	ext, ok := pkt.GetHeaderExtension(1)
	assert.Equal(t, true, ok)
	assert.Equal(t, 1, ext.Id())
	assert.Equal(t, 1, ext.DataLength())
	assert.Equal(t, []byte{0xff}, ext.Data())

	_, ok = pkt.GetHeaderExtension(2)
	assert.Equal(t, false, ok)

	// 句柄可以直接写
	ext.Data()[0] = 0xee
	assert.Equal(t, uint8(0xee), pkt.Bytes()[17])
}

func TestAddHeaderExtension_InPadding(t *testing.T) {
	b := copyOf(rtpWithExtension)
	pkt, _ := rtprtcp.ParseRtpPacket(b, 0, len(b))

	// 原扩展头数据部分4字节，用了2字节，剩余2字节刚好放得下
	ext, err := pkt.AddHeaderExtension(3, 1)
	assert.Equal(t, nil, err)
	ext.Data()[0] = 0xab
	assert.Equal(t, 40, pkt.Length())
	assert.Equal(t, []byte{0xbe, 0xde, 0x00, 0x01, 0x10, 0xff, 0x30, 0xab}, pkt.Bytes()[12:20])
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 20), pkt.Payload())
}

func TestAddHeaderExtension_Grow(t *testing.T) {
	b := copyOf(rtpWithExtension)
	pkt, _ := rtprtcp.ParseRtpPacket(b, 0, len(b))

	ext, err := pkt.AddHeaderExtension(2, 2)
	assert.Equal(t, nil, err)
	copy(ext.Data(), []byte{0xaa, 0xbb})
	assert.Equal(t, 44, pkt.Length())
	assert.Equal(t, []byte{0xbe, 0xde, 0x00, 0x02, 0x10, 0xff, 0x21, 0xaa, 0xbb, 0x00, 0x00, 0x00}, pkt.Bytes()[12:24])
	assert.Equal(t, 24, pkt.HeaderLength())
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 20), pkt.Payload())
	assert.Equal(t, uint16(5807), pkt.SequenceNumber())
	assert.Equal(t, uint32(0x480f223a), pkt.Ssrc())

	ids := []int{}
	pkt.ForEachHeaderExtension(func(e rtprtcp.RtpHeaderExtension) bool {
		ids = append(ids, e.Id())
		return true
	})
	assert.Equal(t, []int{1, 2}, ids)
	pkt.Release()
}

// 三种内存块状态：前后都有空闲，只有一侧空闲，没有空闲
func TestAddHeaderExtension_BufferStates(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.PayloadType = 96
	h.Seq = 100
	h.Ssrc = 0x1234
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pooled := rtprtcp.NewRtpPacket(h, payload)
	raw := copyOf(pooled.Bytes())
	pooled.Release()

	check := func(pkt *rtprtcp.RtpPacket) {
		ext, err := pkt.AddHeaderExtension(5, 3)
		assert.Equal(t, nil, err)
		copy(ext.Data(), []byte{9, 9, 9})
		assert.Equal(t, true, pkt.HasExtension())
		assert.Equal(t, 12+4+4+8, pkt.Length())
		assert.Equal(t, []byte{0xbe, 0xde, 0x00, 0x01, 0x52, 9, 9, 9}, pkt.Bytes()[12:20])
		assert.Equal(t, payload, pkt.Payload())
		assert.Equal(t, uint16(100), pkt.SequenceNumber())

		assert.Equal(t, true, pkt.RemoveHeaderExtension(5))
		assert.Equal(t, false, pkt.HasExtension())
		assert.Equal(t, raw, pkt.Bytes())
	}

	pkt := rtprtcp.NewRtpPacket(h, payload)
	check(pkt)
	pkt.Release()

	tailOnly := make([]byte, len(raw)+8)
	copy(tailOnly, raw)
	pkt, _ = rtprtcp.ParseRtpPacket(tailOnly, 0, len(raw))
	check(pkt)

	headOnly := make([]byte, len(raw)+8)
	copy(headOnly[8:], raw)
	pkt, _ = rtprtcp.ParseRtpPacket(headOnly, 8, len(raw))
	check(pkt)

	exact := copyOf(raw)
	pkt, _ = rtprtcp.ParseRtpPacket(exact, 0, len(exact))
	check(pkt)
	// 没有空闲空间时重新申请了内存块，原内存块不变
	assert.Equal(t, raw, exact)
	pkt.Release()
}

func TestRemoveHeaderExtension(t *testing.T) {
	b := copyOf(rtpWithExtension)
	pkt, _ := rtprtcp.ParseRtpPacket(b, 0, len(b))

	assert.Equal(t, false, pkt.RemoveHeaderExtension(2))
	assert.Equal(t, true, pkt.RemoveHeaderExtension(1))
	// 最后一个元素被删除，整个扩展头被删除
	assert.Equal(t, false, pkt.HasExtension())
	assert.Equal(t, 32, pkt.Length())
	assert.Equal(t, uint8(0x80), pkt.Bytes()[0])
	assert.Equal(t, []byte{0x6f, 0x16, 0xaf, 0x65, 0xf3, 0xe8, 0xce, 0x48, 0x0f, 0x22, 0x3a}, pkt.Bytes()[1:12])
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 20), pkt.Payload())
	assert.Equal(t, false, pkt.RemoveHeaderExtension(1))
}

func TestHeaderExtension_PaddingBetween(t *testing.T) {
	// 元素之间有padding
	b := []byte{
		0x90, 0x60, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03,
		0xbe, 0xde, 0x00, 0x02,
		0x10, 0xff, 0x00, 0x00,
		0x21, 0xaa, 0xbb, 0x00,
		0x01, 0x02,
	}
	pkt, err := rtprtcp.ParseRtpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)

	ext, ok := pkt.GetHeaderExtension(2)
	assert.Equal(t, true, ok)
	assert.Equal(t, []byte{0xaa, 0xbb}, ext.Data())

	assert.Equal(t, true, pkt.RemoveHeaderExtension(1))
	assert.Equal(t, []byte{0xbe, 0xde, 0x00, 0x02, 0x00, 0x00, 0x21, 0xaa, 0xbb, 0x00, 0x00, 0x00}, pkt.Bytes()[12:24])
	ext, ok = pkt.GetHeaderExtension(2)
	assert.Equal(t, true, ok)
	assert.Equal(t, []byte{0xaa, 0xbb}, ext.Data())
	assert.Equal(t, []byte{0x01, 0x02}, pkt.Payload())

	// 追加在最后一个元素后面，原padding空间刚好放得下
	ext, err = pkt.AddHeaderExtension(3, 2)
	assert.Equal(t, nil, err)
	copy(ext.Data(), []byte{0xcc, 0xdd})
	assert.Equal(t, []byte{0xbe, 0xde, 0x00, 0x02, 0x00, 0x00, 0x21, 0xaa, 0xbb, 0x31, 0xcc, 0xdd}, pkt.Bytes()[12:24])
	assert.Equal(t, []byte{0x01, 0x02}, pkt.Payload())
}

func TestAddHeaderExtension_Invalid(t *testing.T) {
	b := copyOf(rtpWithExtension)
	pkt, _ := rtprtcp.ParseRtpPacket(b, 0, len(b))

	_, err := pkt.AddHeaderExtension(0, 1)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpExtension))
	_, err = pkt.AddHeaderExtension(15, 1)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpExtension))
	_, err = pkt.AddHeaderExtension(2, 0)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpExtension))
	_, err = pkt.AddHeaderExtension(2, 17)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpExtension))
	_, err = pkt.AddHeaderExtension(1, 1)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpExtensionDup))
	assert.Equal(t, rtpWithExtension, pkt.Bytes())
}

func TestHeaderExtension_TwoByte(t *testing.T) {
	b := []byte{
		0x90, 0x60, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03,
		0x10, 0x00, 0x00, 0x02,
		0x05, 0x02, 0xaa, 0xbb,
		0x11, 0x00, 0x00, 0x00,
	}
	pkt, err := rtprtcp.ParseRtpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(0x1000), pkt.ExtensionProfile())

	ext, ok := pkt.GetHeaderExtension(5)
	assert.Equal(t, true, ok)
	assert.Equal(t, []byte{0xaa, 0xbb}, ext.Data())
	ext, ok = pkt.GetHeaderExtension(0x11)
	assert.Equal(t, true, ok)
	assert.Equal(t, 0, ext.DataLength())

	// two-byte格式只读
	_, err = pkt.AddHeaderExtension(1, 1)
	assert.Equal(t, true, errors.Is(err, base.ErrRtpExtension))
	assert.Equal(t, false, pkt.RemoveHeaderExtension(5))
}
