// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bufpool

var global = NewPool()

// Acquire 从进程级的全局池中申请，见 Pool.Acquire
func Acquire(minCapacity int) []byte {
	return global.Acquire(minCapacity)
}

// Release 归还到进程级的全局池中，见 Pool.Release
func Release(b []byte) {
	global.Release(b)
}

func GlobalStat() Stat {
	return global.Stat()
}
