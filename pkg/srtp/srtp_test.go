// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package srtp_test

import (
	"crypto/hmac"
	"crypto/sha1"
	"errors"
	"testing"

	"github.com/q191201771/lalrtp/pkg/base"
	"github.com/q191201771/lalrtp/pkg/rtprtcp"
	"github.com/q191201771/lalrtp/pkg/srtp"
	"github.com/q191201771/naza/pkg/assert"
)

// hmacSha1Transformer 测试用，AES_CM_128_HMAC_SHA1_80的认证部分，加密用异或代替
type hmacSha1Transformer struct {
	key []byte
}

func (t *hmacSha1Transformer) Transform(spans srtp.CryptoSpans) ([]byte, error) {
	for i := range spans.Encryptable {
		spans.Encryptable[i] ^= 0x5A
	}
	h := hmac.New(sha1.New, t.key)
	h.Write(spans.Header)
	h.Write(spans.Encryptable)
	h.Write(spans.Index)
	return h.Sum(nil)[:10], nil
}

type failTransformer struct{}

func (failTransformer) Transform(spans srtp.CryptoSpans) ([]byte, error) {
	return nil, errors.New("fail")
}

var rtpFixture = []byte{
	0x80, 0x70, 0x7B, 0x2B, 0x44, 0xB2, 0x83, 0x6E, 0x16, 0x49, 0x3F, 0x2D,
}

func TestSrtpPacket_AddAuthTag_Realloc(t *testing.T) {
	// 内存块没有尾部预留空间
	buf := make([]byte, 16)
	copy(buf, []byte{0x80, 0x6f, 0x16, 0xaf, 0x65, 0xf3, 0xe8, 0xce, 0x48, 0x0f, 0x22, 0x3a, 1, 2, 3, 4})
	pkt, err := srtp.ParseSrtpPacket(buf, 0, 16)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, pkt.TailRoom())

	tag := []byte{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6}
	pkt.AddAuthTag(tag)
	assert.Equal(t, 22, pkt.Length())
	got, err := pkt.AuthTag(6)
	assert.Equal(t, nil, err)
	assert.Equal(t, tag, got)
	assert.Equal(t, []byte{1, 2, 3, 4}, pkt.Bytes()[12:16])
	assert.Equal(t, uint16(0x16af), pkt.SequenceNumber())

	assert.Equal(t, nil, pkt.RemoveAuthTag(6))
	assert.Equal(t, buf, pkt.Bytes())
	pkt.Release()
}

func TestSrtpPacket_AddAuthTag_InPlace(t *testing.T) {
	pkt := srtp.NewSrtpPacket(rtprtcp.NewRtpPacket(rtprtcp.MakeDefaultRtpHeader(), []byte{1, 2, 3}))
	buf := pkt.Buffer()
	pkt.AddAuthTag(make([]byte, 10))
	// 尾部预留空间足够，不更换内存块
	assert.Equal(t, true, &buf[0] == &pkt.Buffer()[0])
	assert.Equal(t, 12+3+10, pkt.Length())
	pkt.Release()
}

func TestSrtpPacket_Short(t *testing.T) {
	buf := append([]byte{}, rtpFixture...)
	pkt, err := srtp.ParseSrtpPacket(buf, 0, len(buf))
	assert.Equal(t, nil, err)
	_, err = pkt.AuthTag(10)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtpShortPacket))
	assert.Equal(t, true, errors.Is(pkt.RemoveAuthTag(1), base.ErrSrtpShortPacket))
	assert.Equal(t, 12, pkt.Length())
	_, err = pkt.AuthTag(0)
	assert.Equal(t, nil, err)

	_, err = srtp.ParseSrtpPacket(buf, 0, 8)
	assert.Equal(t, true, base.IsMalformedPacket(err))
}

func TestProtect(t *testing.T) {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.Seq = 100
	h.Ssrc = 0x1234
	payload := []byte{0x00, 0x11, 0x22, 0x33, 0x44}
	pkt := srtp.NewSrtpPacket(rtprtcp.NewRtpPacket(h, payload))
	tr := &hmacSha1Transformer{key: []byte("0123456789")}

	assert.Equal(t, nil, srtp.Protect(pkt, tr))
	assert.Equal(t, 12+5+10, pkt.Length())
	// 头部不变
	assert.Equal(t, uint16(100), pkt.SequenceNumber())
	assert.Equal(t, uint32(0x1234), pkt.Ssrc())
	spans, err := pkt.Spans(10)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x5A, 0x4B, 0x78, 0x69, 0x1E}, spans.Encryptable)
	assert.Equal(t, 10, len(spans.AuthTag))

	// 校验
	mac := hmac.New(sha1.New, tr.key)
	mac.Write(spans.Header)
	mac.Write(spans.Encryptable)
	assert.Equal(t, mac.Sum(nil)[:10], spans.AuthTag)
	pkt.Release()
}

func TestSrtcpPacket(t *testing.T) {
	rr := rtprtcp.NewRtcpRrPacket(0x11223344, nil)
	pkt := srtp.NewSrtcpPacket(rtprtcp.NewPacketFromBytes(rr.Bytes()))
	rr.Release()

	pkt.AddEncryptedIndex(true, 0xFFFFFFFF)
	idx, err := pkt.SrtcpIndex(0)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0x7FFFFFFF), idx)
	e, err := pkt.IsEncrypted(0)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, e)

	tag := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	pkt.AddAuthTag(tag)
	assert.Equal(t, 8+4+10, pkt.Length())

	// 修改index不影响E
	assert.Equal(t, nil, pkt.SetSrtcpIndex(10, 5))
	idx, _ = pkt.SrtcpIndex(10)
	assert.Equal(t, uint32(5), idx)
	e, _ = pkt.IsEncrypted(10)
	assert.Equal(t, true, e)

	// 修改E不影响index
	assert.Equal(t, nil, pkt.SetEncrypted(10, false))
	e, _ = pkt.IsEncrypted(10)
	assert.Equal(t, false, e)
	idx, _ = pkt.SrtcpIndex(10)
	assert.Equal(t, uint32(5), idx)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, pkt.Bytes()[8:12])

	got, err := pkt.AuthTag(10)
	assert.Equal(t, nil, err)
	assert.Equal(t, tag, got)

	assert.Equal(t, nil, pkt.RemoveAuthTag(10))
	assert.Equal(t, nil, pkt.RemoveEncryptedIndex())
	assert.Equal(t, 8, pkt.Length())

	_, err = pkt.SrtcpIndex(0)
	assert.Equal(t, true, errors.Is(err, base.ErrSrtpShortPacket))
	assert.Equal(t, true, errors.Is(pkt.RemoveEncryptedIndex(), base.ErrSrtpShortPacket))
	pkt.Release()
}

func TestProtectSrtcp(t *testing.T) {
	rr := rtprtcp.NewRtcpRrPacket(0x11223344, []rtprtcp.RtcpReportBlock{{Ssrc: 1, Jitter: 2}})
	pkt := srtp.NewSrtcpPacket(rtprtcp.NewPacketFromBytes(rr.Bytes()))
	rr.Release()

	assert.Equal(t, nil, srtp.ProtectSrtcp(pkt, true, 7, &hmacSha1Transformer{key: []byte("k")}))
	assert.Equal(t, 32+4+10, pkt.Length())
	idx, _ := pkt.SrtcpIndex(10)
	assert.Equal(t, uint32(7), idx)

	b := append([]byte{}, pkt.Bytes()...)
	pkt.Release()

	parsed, err := srtp.ParseSrtcpPacket(b, 0, len(b))
	assert.Equal(t, nil, err)
	e, _ := parsed.IsEncrypted(10)
	assert.Equal(t, true, e)
	spans, err := parsed.Spans(10)
	assert.Equal(t, nil, err)
	assert.Equal(t, 8, len(spans.Header))
	assert.Equal(t, 24, len(spans.Encryptable))
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x07}, spans.Index)
}

func TestProtectSrtcp_Fail(t *testing.T) {
	rr := rtprtcp.NewRtcpRrPacket(1, nil)
	pkt := srtp.NewSrtcpPacket(rtprtcp.NewPacketFromBytes(rr.Bytes()))
	rr.Release()

	err := srtp.ProtectSrtcp(pkt, true, 1, failTransformer{})
	assert.IsNotNil(t, err)
	// 失败时去掉已经追加的E+index
	assert.Equal(t, 8, pkt.Length())
	pkt.Release()
}
