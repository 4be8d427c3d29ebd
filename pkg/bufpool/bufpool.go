// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bufpool

import (
	"sync"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// Pool 按大小分级的内存块池，每一级是2的幂大小
//
// 并发安全，多个goroutine可同时Acquire和Release。
// 同一个内存块在被Release之前，不会被再次Acquire出去。
// 注意，Release后的内存块内容是未定义的，新的申请者需要自己覆盖。
//
type Pool struct {
	option  PoolOption
	classes []*sizeClass

	stat poolStat
}

type PoolOption struct {
	MinClassSize int // 最小块大小，会向上取整为2的幂
	MaxClassSize int // 最大块大小，会向上取整为2的幂，超过该大小的申请不池化
}

var defaultPoolOption = PoolOption{
	MinClassSize: base.BufPoolMinClassSize,
	MaxClassSize: base.BufPoolMaxClassSize,
}

type ModPoolOption func(option *PoolOption)

// Stat 池的统计信息，用于调试和监控
type Stat struct {
	AcquireCount  uint64 // 申请次数
	ReleaseCount  uint64 // 归还且被回收的次数
	NewCount      uint64 // 池中没有可用内存块，新分配的次数
	OversizeCount uint64 // 超过最大块大小，直接分配的次数
	DropCount     uint64 // 归还时因大小不匹配被丢弃的次数
}

type sizeClass struct {
	size int
	pool sync.Pool
}

type poolStat struct {
	acquire  nazaatomic.Uint64
	release  nazaatomic.Uint64
	new      nazaatomic.Uint64
	oversize nazaatomic.Uint64
	drop     nazaatomic.Uint64
}

func NewPool(modOptions ...ModPoolOption) *Pool {
	option := defaultPoolOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.MinClassSize <= 0 {
		option.MinClassSize = 1
	}
	option.MinClassSize = roundUpPowerOfTwo(option.MinClassSize)
	option.MaxClassSize = roundUpPowerOfTwo(option.MaxClassSize)
	if option.MaxClassSize < option.MinClassSize {
		option.MaxClassSize = option.MinClassSize
	}

	p := &Pool{
		option: option,
	}
	for size := option.MinClassSize; size <= option.MaxClassSize; size <<= 1 {
		sc := &sizeClass{size: size}
		sc.pool.New = func() interface{} {
			p.stat.new.Increment()
			b := make([]byte, sc.size)
			return &b
		}
		p.classes = append(p.classes, sc)
	}
	return p
}

// Acquire 申请一块长度不小于`minCapacity`的内存块
//
// @return 返回的切片 len == cap
//
func (p *Pool) Acquire(minCapacity int) []byte {
	p.stat.acquire.Increment()

	if minCapacity < 0 {
		Log.Warnf("invalid acquire size. size=%d", minCapacity)
		minCapacity = 0
	}

	sc := p.classOf(minCapacity)
	if sc == nil {
		p.stat.oversize.Increment()
		return make([]byte, minCapacity)
	}
	bp := sc.pool.Get().(*[]byte)
	return (*bp)[:sc.size]
}

// Release 归还内存块
//
// 只有容量恰好等于某一级大小的内存块会被回收，其他的直接丢弃交给gc
//
func (p *Pool) Release(b []byte) {
	if b == nil {
		return
	}
	b = b[:cap(b)]
	sc := p.classOf(len(b))
	if sc == nil || sc.size != len(b) {
		p.stat.drop.Increment()
		return
	}
	p.stat.release.Increment()
	sc.pool.Put(&b)
}

func (p *Pool) Stat() Stat {
	return Stat{
		AcquireCount:  p.stat.acquire.Load(),
		ReleaseCount:  p.stat.release.Load(),
		NewCount:      p.stat.new.Load(),
		OversizeCount: p.stat.oversize.Load(),
		DropCount:     p.stat.drop.Load(),
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func (p *Pool) classOf(size int) *sizeClass {
	if size > p.option.MaxClassSize {
		return nil
	}
	for _, sc := range p.classes {
		if sc.size >= size {
			return sc
		}
	}
	return nil
}

func roundUpPowerOfTwo(n int) int {
	if n <= 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
