package fingerprint_test

import (
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/goleak"
)

const hikvisionAuth = "YWRtaW46MTIzNDU=" // admin:12345

var (
	hikPort     int
	badXMLPort  int
	dahuaPort   int
	axisPort    int
	cpplusPort  int
	genericPort int
	plainPort   int
	closedPort  int
)

func TestMain(m *testing.M) {
	hik := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Hikvision-Webs")
		switch r.URL.Path {
		case "/":
			if u, p, ok := r.BasicAuth(); ok && u == "admin" && p == "12345" {
				_, _ = io.WriteString(w, "<html>ok</html>")
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		case "/System/configurationFile":
			if r.URL.Query().Get("auth") != hikvisionAuth {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Config><System><firmwareVersion>V5.5.0</firmwareVersion></System></Config>`)
		case "/ISAPI/System/deviceInfo":
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<DeviceInfo version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
<deviceName>IP CAMERA</deviceName>
<model>DS-2CD2042FWD</model>
<firmwareVersion>V5.4.5</firmwareVersion>
</DeviceInfo>`)
		default:
			http.NotFound(w, r)
		}
	}))

	badXML := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "DNVRS-Webs hikvision")
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusUnauthorized)
		case "/ISAPI/System/deviceInfo":
			_, _ = io.WriteString(w, "<DeviceInfo><model>DS-7608")
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))

	dahua := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Dahua Web Server")
		if r.URL.Path == "/cgi-bin/magicBox.cgi" {
			_, _ = io.WriteString(w, "deviceType=IPC-HDW1230S\r\nserialNumber=4K0123PAZ\r\nhardwareVersion=1.00\r\n")
			return
		}
		_, _ = io.WriteString(w, "<html>Dahua WEB SERVICE</html>")
	}))

	axis := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Axis/2.0")
		if r.URL.Path == "/axis-cgi/admin/param.cgi" {
			_, _ = io.WriteString(w, "root.Brand.Brand=AXIS\nroot.Brand.ProdNbr=M3045-V\nroot.Network.IPAddress=10.0.0.5\nroot.Properties.Firmware.Version=9.80.1\n")
			return
		}
		_, _ = io.WriteString(w, `<html><a href="/view/index.shtml">live</a></html>`)
	}))

	cpplus := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, "<html><title>CP PLUS UVR-0401E1 DVR</title></html>")
			return
		}
		http.NotFound(w, r)
	}))

	generic := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = io.WriteString(w, "<html>welcome</html>")
		case "/index.html":
			w.Header().Set("X-Vendor", "Dahua Technology")
			_, _ = io.WriteString(w, "<html>index</html>")
		default:
			http.NotFound(w, r)
		}
	}))

	plain := newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	closedPort = ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	hikPort = port(hik)
	badXMLPort = port(badXML)
	dahuaPort = port(dahua)
	axisPort = port(axis)
	cpplusPort = port(cpplus)
	genericPort = port(generic)
	plainPort = port(plain)

	ret := m.Run()

	for _, srv := range []*httptest.Server{hik, badXML, dahua, axis, cpplus, generic, plain} {
		srv.Close()
	}
	if ret == 0 {
		if err := goleak.Find(); err != nil {
			log.Printf("goleak: %v", err)
			ret = 1
		}
	}
	os.Exit(ret)
}

func newServer(h http.Handler) *httptest.Server {
	srv := httptest.NewUnstartedServer(h)
	srv.Config.ErrorLog = log.New(io.Discard, "", 0)
	srv.Start()
	return srv
}

func port(srv *httptest.Server) int {
	return srv.Listener.Addr().(*net.TCPAddr).Port
}
