// Package rtsp implements the minimal RTSP client used to tell RTSP
// services apart from other TCP listeners and to test credentials.
package rtsp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/model"
)

const (
	maxResponse    = 2048
	DefaultTimeout = 2 * time.Second
)

var markers = []string{"Public:", "DESCRIBE", "SETUP", "PLAY"}

// Response is the parsed head of an RTSP reply, truncated to 2048 bytes.
type Response struct {
	Proto  string
	Status int
	Reason string
	Header textproto.MIMEHeader
	Raw    string
}

// IsRTSP reports whether the reply carries the RTSP version marker and at
// least one capability marker.
func (r Response) IsRTSP() bool {
	if !strings.Contains(r.Raw, "RTSP/1.0") {
		return false
	}
	for _, m := range markers {
		if strings.Contains(r.Raw, m) {
			return true
		}
	}
	return false
}

// Prober sends a single RTSP request per connection.
type Prober struct {
	Timeout time.Duration
}

func New(timeout time.Duration) Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Prober{Timeout: timeout}
}

// Options sends OPTIONS rtsp://hostport/ and returns the parsed reply.
// A nil cred sends no Authorization header.
func (p Prober) Options(ctx context.Context, hostport string, cred *model.Credential) (Response, error) {
	return p.Do(ctx, "OPTIONS", hostport, "/", cred)
}

// Describe sends DESCRIBE rtsp://hostport/path.
func (p Prober) Describe(ctx context.Context, hostport, path string, cred *model.Credential) (Response, error) {
	return p.Do(ctx, "DESCRIBE", hostport, path, cred)
}

// Probe reports whether hostport speaks RTSP. Any failure, including
// a reply without RTSP markers, yields an error wrapping model.ErrNotRTSP.
func (p Prober) Probe(ctx context.Context, hostport string) (Response, error) {
	resp, err := p.Options(ctx, hostport, nil)
	if err != nil {
		return resp, fmt.Errorf("%w: %w", model.ErrNotRTSP, err)
	}
	if !resp.IsRTSP() {
		return resp, fmt.Errorf("%s: %w", hostport, model.ErrNotRTSP)
	}
	return resp, nil
}

// Authenticate tests cred with an OPTIONS request. It returns true on a
// 200 reply and false on 401 or any other outcome.
func (p Prober) Authenticate(ctx context.Context, hostport string, cred model.Credential) (bool, error) {
	resp, err := p.Options(ctx, hostport, &cred)
	if err != nil {
		return false, err
	}
	return resp.Proto == "RTSP/1.0" && resp.Status == 200, nil
}

// Do performs one request/response exchange on a fresh connection.
func (p Prober) Do(ctx context.Context, method, hostport, path string, cred *model.Credential) (Response, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return Response{}, fmt.Errorf("dial: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, err
	}

	if _, err := conn.Write(Request(method, hostport, path, cred)); err != nil {
		return Response{}, fmt.Errorf("write: %w", err)
	}

	raw, err := readHead(conn)
	if len(raw) == 0 {
		if err == nil {
			err = errors.New("empty response")
		}
		return Response{}, fmt.Errorf("read: %w", err)
	}
	return Parse(raw), nil
}

// Request builds the wire form of an RTSP request.
func Request(method, hostport, path string, cred *model.Credential) []byte {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s rtsp://%s%s RTSP/1.0\r\n", method, hostport, path)
	b.WriteString("CSeq: 1\r\n")
	if cred != nil {
		token := base64.StdEncoding.EncodeToString([]byte(cred.Username + ":" + cred.Password))
		b.WriteString("Authorization: Basic " + token + "\r\n")
	}
	if method == "DESCRIBE" {
		b.WriteString("Accept: application/sdp\r\n")
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// readHead reads until the end of the response head, maxResponse bytes,
// EOF or the connection deadline, whichever comes first.
func readHead(conn net.Conn) ([]byte, error) {
	buf := make([]byte, maxResponse)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if bytes.Contains(buf[:n], []byte("\r\n\r\n")) {
			return buf[:n], nil
		}
		if err != nil {
			return buf[:n], err
		}
	}
	return buf[:n], nil
}

// Parse parses an RTSP response head. Malformed or truncated input is
// parsed as far as possible; Status stays zero when there is no status line.
func Parse(raw []byte) Response {
	resp := Response{
		Raw:    string(raw),
		Header: make(textproto.MIMEHeader),
	}
	lines := strings.Split(strings.ReplaceAll(resp.Raw, "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return resp
	}

	proto, rest, _ := strings.Cut(strings.TrimSpace(lines[0]), " ")
	if strings.HasPrefix(proto, "RTSP/") {
		resp.Proto = proto
		code, reason, _ := strings.Cut(rest, " ")
		if status, err := strconv.Atoi(code); err == nil {
			resp.Status = status
		}
		resp.Reason = reason
	}

	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		resp.Header.Add(textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key)), strings.TrimSpace(value))
	}
	return resp
}
