// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

type rtpPacketListItem struct {
	packet *RtpPacket
	next   *rtpPacketListItem
}

// RtpPacketList rtp包的有序链表，前面的seq小于后面的seq，插入时去重
//
// 插入时，绝大部分seq号是当前最大号附近的，从前往后遍历找插入位置即可。
// 容器有最大容量，由调用方通过Full判断后PopFirst。
//
// 容器持有插入的包，PopFirst后所有权转移给调用方；Clear时Release所有包
//
type RtpPacketList struct {
	head rtpPacketListItem // 哨兵，自身不存放rtp包，第一个rtp包存在在head.next中
	size int

	poppedFlag bool   // 是否弹出过包
	poppedSeq  uint16 // 最后一个弹出的包的seq

	maxSize int
}

func NewRtpPacketList(maxSize int) *RtpPacketList {
	return &RtpPacketList{
		maxSize: maxSize,
	}
}

func (l *RtpPacketList) Size() int {
	return l.size
}

// IsStale 序号是否不大于已经弹出的包
//
func (l *RtpPacketList) IsStale(seq uint16) bool {
	if !l.poppedFlag {
		return false
	}
	return CompareSeq(seq, l.poppedSeq) <= 0
}

// Insert 插入有序链表
//
// @return 包已经存在，或者已经过期时，返回false，此时包的所有权仍属于调用方
//
func (l *RtpPacketList) Insert(pkt *RtpPacket) bool {
	seq := pkt.SequenceNumber()
	if l.IsStale(seq) {
		return false
	}

	p := &l.head
	for ; p.next != nil; p = p.next {
		res := CompareSeq(seq, p.next.packet.SequenceNumber())
		if res == 0 {
			return false
		}
		if res < 0 {
			break
		}
	}

	p.next = &rtpPacketListItem{
		packet: pkt,
		next:   p.next,
	}
	l.size++
	return true
}

// PopFirst 弹出第一个包。容器为空时返回nil
//
func (l *RtpPacketList) PopFirst() *RtpPacket {
	first := l.head.next
	if first == nil {
		return nil
	}
	l.head.next = first.next
	l.size--
	l.poppedFlag = true
	l.poppedSeq = first.packet.SequenceNumber()
	return first.packet
}

// PeekFirst 查看第一个包。容器为空时返回nil
//
func (l *RtpPacketList) PeekFirst() *RtpPacket {
	if l.head.next == nil {
		return nil
	}
	return l.head.next.packet
}

// Full 是否已经满了
//
func (l *RtpPacketList) Full() bool {
	return l.size >= l.maxSize
}

// IsFirstSequential 第一个包和最后一个弹出的包相比，是否是连续的
//
func (l *RtpPacketList) IsFirstSequential() bool {
	first := l.head.next
	if first == nil {
		return false
	}
	if !l.poppedFlag {
		return true
	}
	return SubSeq(first.packet.SequenceNumber(), l.poppedSeq) == 1
}

// Gap 第一个包和最后一个弹出的包之间缺失的包个数
//
func (l *RtpPacketList) Gap() int {
	first := l.head.next
	if first == nil || !l.poppedFlag {
		return 0
	}
	return SubSeq(first.packet.SequenceNumber(), l.poppedSeq) - 1
}

// Clear 清空容器，并Release所有包
//
func (l *RtpPacketList) Clear() {
	for p := l.head.next; p != nil; p = p.next {
		p.packet.Release()
	}
	l.head.next = nil
	l.size = 0
}
