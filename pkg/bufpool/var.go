// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bufpool

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()
