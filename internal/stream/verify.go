package stream

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/web"
)

const (
	rtmpVersion       = 0x03
	rtmpHandshakeSize = 1536
)

func (e *Enumerator) verifyRTSP(ctx context.Context, target model.Target, c model.StreamCandidate) model.Stream {
	s := model.Stream{StreamCandidate: c, Class: model.StreamNone}
	resp, err := e.rtsp.Describe(ctx, target.HostPort(c.Port), c.Path, nil)
	if err != nil {
		slog.DebugContext(ctx, "describe failed", "url", c.URL, "error", err)
		return s
	}
	if resp.Proto != "RTSP/1.0" {
		return s
	}
	switch resp.Status {
	case http.StatusOK:
		s.Class = model.StreamConfirmed
		s.ContentType = resp.Header.Get("Content-Type")
		s.ContentLength = resp.Header.Get("Content-Length")
		s.Detail = "RTSP stream, open with a media player"
	case http.StatusUnauthorized:
		s.Class = model.StreamPotential
		s.Detail = "RTSP stream requires authentication"
	}
	return s
}

func verifyRTMP(c model.StreamCandidate, accepted bool) model.Stream {
	s := model.Stream{StreamCandidate: c, Class: model.StreamNone}
	if accepted {
		s.Class = model.StreamPotential
		s.Detail = "RTMP handshake accepted, open with a media player"
	}
	return s
}

// rtmpHandshake sends C0 and C1 and reports whether the server answers
// with a version 3 S0.
func (e *Enumerator) rtmpHandshake(ctx context.Context, hostport string) bool {
	conn, err := e.dial(ctx, hostport)
	if err != nil {
		return false
	}
	defer func() {
		_ = conn.Close()
	}()

	c0c1 := make([]byte, 1+rtmpHandshakeSize)
	c0c1[0] = rtmpVersion
	// time and zero fields stay 0, the rest is random
	_, _ = rand.Read(c0c1[9:])
	if _, err := conn.Write(c0c1); err != nil {
		return false
	}
	s0 := make([]byte, 1)
	if _, err := io.ReadFull(conn, s0); err != nil {
		slog.DebugContext(ctx, "rtmp handshake failed", "hostport", hostport, "error", err)
		return false
	}
	return s0[0] == rtmpVersion
}

func (e *Enumerator) verifyMMS(ctx context.Context, target model.Target, c model.StreamCandidate) model.Stream {
	s := model.Stream{StreamCandidate: c, Class: model.StreamNone}
	conn, err := e.dial(ctx, target.HostPort(c.Port))
	if err != nil {
		return s
	}
	_ = conn.Close()
	s.Class = model.StreamPotential
	s.Detail = "MMS port accepts connections, open with a media player"
	return s
}

func (e *Enumerator) dial(ctx context.Context, hostport string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: e.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(e.dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (e *Enumerator) verifyHTTP(ctx context.Context, c model.StreamCandidate) model.Stream {
	s := model.Stream{StreamCandidate: c, Class: model.StreamNone}
	resp, err := e.web.Do(ctx, web.Request{URL: c.URL, Limit: prefixBytes})
	if err != nil {
		slog.DebugContext(ctx, "stream check failed", "url", c.URL, "error", err)
		return s
	}
	s.ContentType = resp.ContentType()
	s.ContentLength = resp.Header.Get("Content-Length")
	s.Class = Classify(e.catalog.Streams, c.URL, resp.Status, s.ContentType)
	if s.Class != model.StreamNone {
		s.BrowserViewable = true
		s.Detail = fmt.Sprintf("HTTP %d, open in a browser", resp.Status)
	}
	return s
}

// Classify judges an HTTP(S) answer by content type, then by the file
// extension of the URL, then by a stream like path. Only 200 counts.
func Classify(s catalog.Streams, url string, status int, contentType string) model.StreamClass {
	if status != http.StatusOK {
		return model.StreamNone
	}
	lower := strings.ToLower(url)
	if _, ok := catalog.ContainsAny(strings.ToLower(contentType), s.ContentHints); ok {
		return model.StreamConfirmed
	}
	if _, ok := catalog.ContainsAny(lower, s.Extensions); ok {
		return model.StreamVideoFile
	}
	if _, ok := catalog.ContainsAny(lower, s.PathHints); ok {
		return model.StreamPotential
	}
	return model.StreamNone
}
