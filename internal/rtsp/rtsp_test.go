package rtsp_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/rtsp"
	"github.com/CZERTAINLY/camseeker/internal/rtsp/rtsptest"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	t.Parallel()
	srv := rtsptest.NewServer(rtsptest.OK())
	t.Cleanup(srv.Close)

	p := rtsp.New(time.Second)
	resp, err := p.Probe(t.Context(), srv.Listener.Addr().String())
	require.NoError(t, err)
	require.True(t, resp.IsRTSP())
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "RTSP/1.0", resp.Proto)
	require.Contains(t, resp.Header.Get("Public"), "DESCRIBE")
}

func TestProbe_NotRTSP(t *testing.T) {
	t.Parallel()

	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><title>DESCRIBE me</title></html>"))
	}))
	t.Cleanup(web.Close)

	silent, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = silent.Close() })

	closed, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := closed.Addr().String()
	require.NoError(t, closed.Close())

	var testCases = []struct {
		scenario string
		given    string
	}{
		{"http server", web.Listener.Addr().String()},
		{"silent server", silent.Addr().String()},
		{"refused", closedAddr},
	}

	p := rtsp.New(300 * time.Millisecond)
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := p.Probe(t.Context(), tc.given)
			require.ErrorIs(t, err, model.ErrNotRTSP)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	srv := rtsptest.NewServer(rtsptest.BasicAuth("admin", "admin"))
	t.Cleanup(srv.Close)
	addr := srv.Listener.Addr().String()

	p := rtsp.New(time.Second)
	ok, err := p.Authenticate(t.Context(), addr, model.Credential{Username: "admin", Password: "1234"})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = p.Authenticate(t.Context(), addr, model.Credential{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	require.True(t, ok)

	resp, err := p.Options(t.Context(), addr, nil)
	require.NoError(t, err)
	require.Equal(t, 401, resp.Status)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	requests := make(chan rtsptest.Request, 1)
	srv := rtsptest.NewServer(func(r rtsptest.Request) string {
		requests <- r
		return "RTSP/1.0 200 OK\r\nCSeq: 1\r\nContent-Type: application/sdp\r\n\r\nv=0\r\n"
	})
	t.Cleanup(srv.Close)

	resp, err := rtsp.New(time.Second).Describe(t.Context(), srv.Listener.Addr().String(), "/Streaming/Channels/101", nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	seen := <-requests
	require.Equal(t, "DESCRIBE", seen.Method)
	require.Equal(t, "rtsp://"+srv.Listener.Addr().String()+"/Streaming/Channels/101", seen.URL)
	require.Equal(t, "application/sdp", seen.Header.Get("Accept"))
}

func TestProbe_Canceled(t *testing.T) {
	t.Parallel()
	srv := rtsptest.NewServer(rtsptest.OK())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := rtsp.New(time.Second).Probe(ctx, srv.Listener.Addr().String())
	require.ErrorIs(t, err, model.ErrNotRTSP)
	require.Zero(t, srv.Requests())
}

func TestParse(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		status   int
		rtsp     bool
	}{
		{"ok with public", "RTSP/1.0 200 OK\r\nCSeq: 1\r\nPublic: DESCRIBE, SETUP\r\n\r\n", 200, true},
		{"unauthorized", "RTSP/1.0 401 Unauthorized\r\nCSeq: 1\r\n\r\n", 401, false},
		{"truncated", "RTSP/1.0 200 OK\r\nPub", 200, false},
		{"http", "HTTP/1.1 200 OK\r\nAllow: DESCRIBE\r\n\r\n", 0, false},
		{"garbage", "\x00\x01\x02", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			resp := rtsp.Parse([]byte(tc.given))
			require.Equal(t, tc.status, resp.Status)
			require.Equal(t, tc.rtsp, resp.IsRTSP())
		})
	}
}

func TestCamera(t *testing.T) {
	t.Parallel()
	srv := rtsptest.NewServer(rtsptest.Camera("admin", "admin"))
	t.Cleanup(srv.Close)
	addr := srv.Listener.Addr().String()

	p := rtsp.New(time.Second)
	_, err := p.Probe(t.Context(), addr)
	require.NoError(t, err)

	ok, err := p.Authenticate(t.Context(), addr, model.Credential{Username: "admin", Password: "12345"})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = p.Authenticate(t.Context(), addr, model.Credential{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	require.True(t, ok)

	resp, err := p.Describe(t.Context(), addr, "/Streaming/Channels/101", nil)
	require.NoError(t, err)
	require.Equal(t, 401, resp.Status)
}
