// Package srtp - "srtpdec" and "srtpenc" elements with AES_CM_128_HMAC_SHA1_80.
// One element handles RTP and RTCP of one stream:
// rtp_sink => rtp_src and rtcp_sink => rtcp_src.
package srtp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/srtp/v2"
	"github.com/streaminsync/streaminsync/pkg/graph"
	"github.com/streaminsync/streaminsync/pkg/graph/base"
)

const (
	FactoryDec = "srtpdec"
	FactoryEnc = "srtpenc"
)

const (
	keyLen  = 16
	saltLen = 14

	replayWindow = 64
)

var ErrWrongKey = errors.New("srtp: key must be base64 of 30 bytes")

// ParseKey - base64 master key with salt, as used in SDP crypto lines
func ParseKey(s string) (key, salt []byte, err error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) != keyLen+saltLen {
		return nil, nil, ErrWrongKey
	}
	return b[:keyLen], b[keyLen:], nil
}

// GenerateKey - random key for ParseKey
func GenerateKey() string {
	b := make([]byte, keyLen+saltLen)
	_, _ = rand.Read(b)
	return base64.StdEncoding.EncodeToString(b)
}

func profile(key []byte) srtp.ProtectionProfile {
	switch len(key) {
	case 16:
		return srtp.ProtectionProfileAes128CmHmacSha1_80
	}
	return 0
}

// Element - common part of srtpdec and srtpenc
type Element struct {
	*base.Element

	rtpSrc  *base.Pad
	rtcpSrc *base.Pad

	mu      sync.Mutex
	context *srtp.Context

	rtp  func(ctx *srtp.Context, b []byte) ([]byte, error)
	rtcp func(ctx *srtp.Context, b []byte) ([]byte, error)
}

// NewDec - "srtpdec", packets failing authentication are dropped
func NewDec(name string) *Element {
	e := newElement(FactoryDec, name)
	e.rtp = func(ctx *srtp.Context, b []byte) ([]byte, error) {
		return ctx.DecryptRTP(nil, b, nil)
	}
	e.rtcp = func(ctx *srtp.Context, b []byte) ([]byte, error) {
		return ctx.DecryptRTCP(nil, b, nil)
	}
	return e
}

func NewEnc(name string) *Element {
	e := newElement(FactoryEnc, name)
	e.rtp = func(ctx *srtp.Context, b []byte) ([]byte, error) {
		return ctx.EncryptRTP(nil, b, nil)
	}
	e.rtcp = func(ctx *srtp.Context, b []byte) ([]byte, error) {
		return ctx.EncryptRTCP(nil, b, nil)
	}
	return e
}

func newElement(factory, name string) *Element {
	e := &Element{
		Element: base.NewElement(factory, name),
		rtpSrc:  base.NewSrcPad("rtp_src"),
		rtcpSrc: base.NewSrcPad("rtcp_src"),
	}
	e.Init(e)

	e.Install("key", "")

	_ = e.AddPad(base.NewSinkPad("rtp_sink", e.chainRTP))
	_ = e.AddPad(e.rtpSrc)
	_ = e.AddPad(base.NewSinkPad("rtcp_sink", e.chainRTCP))
	_ = e.AddPad(e.rtcpSrc)

	e.OnStateChange(func(from, to graph.State) error {
		switch {
		case to >= graph.StateReady && from < graph.StateReady:
			return e.open()
		case to < graph.StateReady:
			e.mu.Lock()
			e.context = nil
			e.mu.Unlock()
		}
		return nil
	})
	return e
}

func (e *Element) open() error {
	key, salt, err := ParseKey(e.Str("key"))
	if err != nil {
		return err
	}

	var opts []srtp.ContextOption
	if e.Factory() == FactoryDec {
		opts = append(opts, srtp.SRTPReplayProtection(replayWindow), srtp.SRTCPReplayProtection(replayWindow))
	}

	ctx, err := srtp.CreateContext(key, salt, profile(key), opts...)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.context = ctx
	e.mu.Unlock()
	return nil
}

func (e *Element) chainRTP(_ *base.Pad, buf *graph.Buffer) error {
	b, err := e.transform(e.rtp, buf.Data)
	if err != nil {
		// replayed or not authenticated
		return nil
	}

	out := &graph.Buffer{Data: b, PTS: buf.PTS, Duration: buf.Duration, Flags: buf.Flags, Caps: buf.Caps}
	if e.Factory() == FactoryDec {
		packet := &rtp.Packet{}
		if err = packet.Unmarshal(b); err == nil {
			out.RTP = packet
		}
	}
	return e.rtpSrc.Push(out)
}

func (e *Element) chainRTCP(_ *base.Pad, buf *graph.Buffer) error {
	b, err := e.transform(e.rtcp, buf.Data)
	if err != nil {
		return nil
	}

	if e.Factory() == FactoryDec {
		if _, err = rtcp.Unmarshal(b); err != nil {
			return nil
		}
	}

	out := &graph.Buffer{Data: b, PTS: buf.PTS, Duration: buf.Duration, Flags: buf.Flags, Caps: buf.Caps}
	return e.rtcpSrc.Push(out)
}

func (e *Element) transform(f func(ctx *srtp.Context, b []byte) ([]byte, error), b []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.context == nil {
		return nil, graph.ErrFlushing
	}
	return f(e.context, b)
}
