// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// DumpFile 录制和回放原始rtp/rtcp包
//
// 文件由若干条消息顺序组成，每条消息的格式：
//
//   +---------+---------+---------+-----------+-------------+
//   | Ver(4B) | Typ(4B) | Len(4B) | Ts(4B,ms) | Body(Len B) |
//   +---------+---------+---------+-----------+-------------+
//
// 字段都是大端，Ts是相对于打开文件时的毫秒数
//
type DumpFile struct {
	file     *os.File
	openTime time.Time
}

const (
	DumpTypeRtp  uint32 = 1
	DumpTypeRtcp uint32 = 2
	DumpTypeSrtp uint32 = 3

	dumpFileHeaderLength = 16
)

type DumpFileMessage struct {
	Ver       uint32
	Typ       uint32
	Len       uint32
	Timestamp uint32
	Body      []byte
}

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d.file, err = os.Create(filename)
	d.openTime = time.Now()
	return
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	if os.IsNotExist(err) {
		return nazaerrors.Wrap(ErrFileNotExist)
	}
	return
}

// WriteWithType 写入一条消息，时间戳使用距离打开文件的时长
//
func (d *DumpFile) WriteWithType(b []byte, typ uint32) error {
	return d.WriteMessage(DumpFileMessage{
		Ver:       DumpFileVersion,
		Typ:       typ,
		Timestamp: uint32(time.Since(d.openTime).Milliseconds()),
		Body:      b,
	})
}

// WriteMessage 写入一条消息，`m.Len`字段被忽略，使用`m.Body`的实际长度
//
func (d *DumpFile) WriteMessage(m DumpFileMessage) error {
	if d.file == nil {
		return ErrDumpFileNotOpened
	}
	_, err := d.file.Write(d.pack(m))
	return err
}

// ReadOneMessage 读取一条消息
//
// @return err: 读到文件末尾时返回io.EOF；最后一条消息不完整时返回io.ErrUnexpectedEOF
//
func (d *DumpFile) ReadOneMessage() (m DumpFileMessage, err error) {
	if d.file == nil {
		err = ErrDumpFileNotOpened
		return
	}

	header := make([]byte, dumpFileHeaderLength)
	if _, err = io.ReadFull(d.file, header); err != nil {
		return
	}
	m.Ver = bele.BeUint32(header)
	m.Typ = bele.BeUint32(header[4:])
	m.Len = bele.BeUint32(header[8:])
	m.Timestamp = bele.BeUint32(header[12:])
	if m.Ver != DumpFileVersion {
		err = nazaerrors.Wrap(ErrDumpFileVersion, fmt.Sprintf("ver=%d", m.Ver))
		return
	}

	m.Body = make([]byte, m.Len)
	_, err = io.ReadFull(d.file, m.Body)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *DumpFileMessage) DebugString() string {
	return fmt.Sprintf("ver: %d, typ: %d, len: %d, timestamp: %d, hex: %s",
		m.Ver, m.Typ, m.Len, m.Timestamp, hex.Dump(nazabytes.Prefix(m.Body, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(m DumpFileMessage) []byte {
	ret := make([]byte, len(m.Body)+dumpFileHeaderLength)
	bele.BePutUint32(ret, m.Ver)
	bele.BePutUint32(ret[4:], m.Typ)
	bele.BePutUint32(ret[8:], uint32(len(m.Body)))
	bele.BePutUint32(ret[12:], m.Timestamp)
	copy(ret[dumpFileHeaderLength:], m.Body)
	return ret
}
