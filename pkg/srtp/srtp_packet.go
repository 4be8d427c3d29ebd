// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srtp

import (
	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
)

// rfc3711 3.1. SRTP
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+<+
// |V=2|P|X|  CC   |M|     PT      |       sequence number         | |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |                           timestamp                           | |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |           synchronization source (SSRC) identifier            | |
// +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+ |
// |            contributing source (CSRC) identifiers             | |
// |                               ....                            | |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |                   RTP extension (OPTIONAL)                    | |
// +>+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// | |                          payload  ...                         | |
// | |                               +-------------------------------+ |
// | |                               | RTP padding   | RTP pad count | |
// +>+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+<+
// | ~                     SRTP MKI (OPTIONAL)                       ~ |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// | :                 authentication tag (RECOMMENDED)              : |
// | +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ |
// |                                                                   |
// +- Encrypted Portion*                      Authenticated Portion ---+
//
// 这里只处理尾部字段，头部不会被修改。tag长度由协商的加密套件决定，由调用方传入
//

// SrtpPacket 加密后的rtp包
type SrtpPacket struct {
	*rtprtcp.RtpPacket
}

// ParseSrtpPacket 不拷贝，内存块的所有权转移给返回的包。只检查头部，payload被加密所以不检查padding
//
func ParseSrtpPacket(buf []byte, offset, length int) (*SrtpPacket, error) {
	pkt, err := rtprtcp.ParseEncryptedRtpPacket(buf, offset, length)
	if err != nil {
		return nil, err
	}
	return &SrtpPacket{RtpPacket: pkt}, nil
}

// NewSrtpPacket 包装一个rtp包，通常是加密前的rtp包，之后通过 Protect 加上tag
func NewSrtpPacket(pkt *rtprtcp.RtpPacket) *SrtpPacket {
	return &SrtpPacket{RtpPacket: pkt}
}

// AuthTag 不拷贝
func (p *SrtpPacket) AuthTag(tagLen int) ([]byte, error) {
	if err := p.checkTag(tagLen); err != nil {
		return nil, err
	}
	b := p.Bytes()
	return b[len(b)-tagLen:], nil
}

// RemoveAuthTag 去掉尾部的tag，通常在校验通过后调用
func (p *SrtpPacket) RemoveAuthTag(tagLen int) error {
	if err := p.checkTag(tagLen); err != nil {
		return err
	}
	p.ShrinkTail(tagLen)
	return nil
}

// AddAuthTag 在尾部追加tag。尾部预留空间不够时，内存块会被替换
func (p *SrtpPacket) AddAuthTag(tag []byte) {
	copy(p.GrowTail(len(tag)), tag)
}

// Spans 划分参与加密和认证的区域
//
// @param tagLen: 包中已有的tag长度，加密前为0
//
func (p *SrtpPacket) Spans(tagLen int) (CryptoSpans, error) {
	if err := p.checkTag(tagLen); err != nil {
		return CryptoSpans{}, err
	}
	b := p.Bytes()
	hl := p.HeaderLength()
	return CryptoSpans{
		Header:      b[:hl],
		Encryptable: b[hl : len(b)-tagLen],
		AuthTag:     b[len(b)-tagLen:],
	}, nil
}

func (p *SrtpPacket) checkTag(tagLen int) error {
	need := p.HeaderLength() + tagLen
	if tagLen < 0 || p.Length() < need {
		return base.NewErrSrtpShortPacket(need, p.Length())
	}
	return nil
}
