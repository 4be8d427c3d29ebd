// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srtp

// CryptoSpans 包中参与加密和认证的区域，都是包内存块上的切片，加密器可以原地修改Encryptable
//
// 认证的范围是Header+Encryptable+Index
//
type CryptoSpans struct {
	Header      []byte // 不加密的头部。srtp为rtp头部（包含csrc和扩展头），srtcp为8字节rtcp头
	Encryptable []byte // 需要加密的部分
	Index       []byte // srtcp的E+index，srtp为nil
	AuthTag     []byte // 包中已有的tag，加密前为空
}

// Transformer 加密套件的实现方，本包不包含任何密码学实现
//
type Transformer interface {
	// Transform 原地加密`spans.Encryptable`，并返回需要追加到包尾部的tag
	Transform(spans CryptoSpans) (tag []byte, err error)
}

// Protect 加密rtp包，并追加tag
func Protect(pkt *SrtpPacket, t Transformer) error {
	spans, err := pkt.Spans(0)
	if err != nil {
		return err
	}
	tag, err := t.Transform(spans)
	if err != nil {
		return err
	}
	pkt.AddAuthTag(tag)
	return nil
}

// ProtectSrtcp 追加E+index，加密rtcp包，再追加tag
func ProtectSrtcp(pkt *SrtcpPacket, encrypted bool, index uint32, t Transformer) error {
	pkt.AddEncryptedIndex(encrypted, index)
	spans, err := pkt.Spans(0)
	if err != nil {
		_ = pkt.RemoveEncryptedIndex()
		return err
	}
	tag, err := t.Transform(spans)
	if err != nil {
		_ = pkt.RemoveEncryptedIndex()
		return err
	}
	pkt.AddAuthTag(tag)
	return nil
}
