// Package rtsptest provides a loopback RTSP server for tests, in the
// spirit of net/http/httptest.
package rtsptest

import (
	"bufio"
	"encoding/base64"
	"net"
	"net/netip"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
)

// Request is a parsed RTSP request head.
type Request struct {
	Method string
	URL    string
	Header textproto.MIMEHeader
}

// BasicAuth returns the decoded user:password pair, if any.
func (r Request) BasicAuth() (string, string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Basic ")
	if !ok {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	return user, pass, ok
}

// HandlerFunc returns the raw response written back to the client.
type HandlerFunc func(Request) string

const okReply = "RTSP/1.0 200 OK\r\nCSeq: 1\r\nPublic: OPTIONS, DESCRIBE, SETUP, TEARDOWN, PLAY\r\n\r\n"

// OK answers every request as a healthy RTSP server.
func OK() HandlerFunc {
	return func(Request) string {
		return okReply
	}
}

// BasicAuth answers 401 unless the request carries user:pass.
func BasicAuth(user, pass string) HandlerFunc {
	return func(r Request) string {
		u, p, ok := r.BasicAuth()
		if ok && u == user && p == pass {
			return okReply
		}
		return "RTSP/1.0 401 Unauthorized\r\nCSeq: 1\r\nWWW-Authenticate: Basic realm=\"camera\"\r\n\r\n"
	}
}

// Camera behaves like a typical IP camera: anonymous OPTIONS is answered
// with the capability list, everything else requires user:pass.
func Camera(user, pass string) HandlerFunc {
	protected := BasicAuth(user, pass)
	return func(r Request) string {
		if r.Method == "OPTIONS" && r.Header.Get("Authorization") == "" {
			return okReply
		}
		return protected(r)
	}
}

type Server struct {
	Listener net.Listener
	handler  HandlerFunc
	requests atomic.Int64

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer starts a server on a random loopback port.
func NewServer(h HandlerFunc) *Server {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		panic("rtsptest: failed to listen: " + err.Error())
	}
	return Serve(ln, h)
}

// Serve starts a server on ln.
func Serve(ln net.Listener, h HandlerFunc) *Server {
	s := &Server{
		Listener: ln,
		handler:  h,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Go(s.accept)
	return s
}

func (s *Server) AddrPort() netip.AddrPort {
	return netip.MustParseAddrPort(s.Listener.Addr().String())
}

func (s *Server) Port() int {
	return int(s.AddrPort().Port())
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) Close() {
	_ = s.Listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Go(func() {
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.serve(conn)
		})
	}
}

func (s *Server) serve(conn net.Conn) {
	r := textproto.NewReader(bufio.NewReader(conn))
	line, err := r.ReadLine()
	if err != nil {
		return
	}
	header, err := r.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		header = textproto.MIMEHeader{}
	}
	fields := strings.Fields(line)
	req := Request{Header: header}
	if len(fields) > 0 {
		req.Method = fields[0]
	}
	if len(fields) > 1 {
		req.URL = fields[1]
	}
	s.requests.Add(1)
	_, _ = conn.Write([]byte(s.handler(req)))
}
