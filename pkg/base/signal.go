// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)


package base

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitExitSignal 阻塞直到收到SIGINT或SIGTERM
func WaitExitSignal() os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	s := <-c
	Log.Infof("recv signal. s=%+v", s)
	return s
}
