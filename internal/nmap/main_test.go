package nmap_test

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"testing"

	"github.com/CZERTAINLY/camseeker/internal/rtsp/rtsptest"
)

var (
	// http server over ipv4
	http4 netip.AddrPort
	// rtsp server over ipv4
	rtsp4 netip.AddrPort
)

func TestMain(m *testing.M) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Hikvision-Webs")
		_, _ = w.Write([]byte("ipv4: ok"))
	}))
	srv.Config.ErrorLog = log.New(io.Discard, "", 0)
	srv.Start()

	rtspSrv := rtsptest.NewServer(rtsptest.OK())

	http4 = netip.MustParseAddrPort(srv.Listener.Addr().String())
	rtsp4 = rtspSrv.AddrPort()

	ret := m.Run()

	srv.Close()
	rtspSrv.Close()
	os.Exit(ret)
}
