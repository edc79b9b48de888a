// Package nmap enriches the open ports found by the TCP scan with nmap
// service and version detection.
package nmap

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"

	"github.com/Ullaakut/nmap/v3"
)

// Scanner is a wrapper on top of "github.com/Ullaakut/nmap/v3" Scanner
type Scanner struct {
	nmap    string
	ports   []string
	scripts []string
	options []nmap.Option
}

// Service is what nmap learned about a single port.
type Service struct {
	Port      int
	Protocol  string
	State     string
	Name      string
	Product   string
	Version   string
	ExtraInfo string
	Scripts   map[string]string
}

// NewService creates a nmap scanner with -sV
func NewService() Scanner {
	return Scanner{
		options: []nmap.Option{
			nmap.WithServiceInfo(),
		},
	}
}

// NewRTSP creates a nmap scanner with -sV and --script rtsp-methods
func NewRTSP() Scanner {
	return Scanner{
		scripts: []string{ScriptRTSPMethods},
		options: []nmap.Option{
			nmap.WithServiceInfo(),
			nmap.WithScripts(ScriptRTSPMethods),
		},
	}
}

// ForPorts returns the scanner matching the open ports: NewRTSP when any of
// them is a confirmed RTSP service, NewService otherwise. The scan is
// restricted to those ports.
func ForPorts(ports []model.PortResult) Scanner {
	s := NewService()
	numbers := make([]int, 0, len(ports))
	for _, p := range ports {
		if p.RTSP {
			s = NewRTSP()
		}
		numbers = append(numbers, p.Port)
	}
	return s.WithPortNumbers(numbers...)
}

// Scripts returns the nmap scripts the scanner runs.
func (s Scanner) Scripts() []string {
	return slices.Clone(s.scripts)
}

func (s Scanner) WithNmapBinary(nmap string) Scanner {
	s.nmap = nmap
	return s
}

func (s Scanner) WithPorts(defs ...string) Scanner {
	ret := s
	ret.ports = append(append([]string(nil), ret.ports...), defs...)
	return ret
}

// WithPortNumbers is WithPorts for a list of numeric ports.
func (s Scanner) WithPortNumbers(ports ...int) Scanner {
	defs := make([]string, 0, len(ports))
	for _, p := range ports {
		defs = append(defs, strconv.Itoa(p))
	}
	return s.WithPorts(defs...)
}

// Detect runs nmap against addr and returns the services of the scanned
// ports ordered by port number.
func (s Scanner) Detect(ctx context.Context, addr netip.Addr) ([]Service, error) {
	options := slices.Clone(s.options)
	if s.nmap != "" {
		options = append(options, nmap.WithBinaryPath(s.nmap))
	}

	ports := s.ports
	if ports == nil {
		ports = []string{"1-65535"}
	}
	options = append(options, nmap.WithPorts(ports...))

	options = append(options, []nmap.Option{
		nmap.WithTargets(addr.String()),
	}...)

	if addr.Is6() {
		options = append(options, nmap.WithIPv6Scanning())
	}

	logCtx := log.ContextAttrs(
		ctx,
		slog.String("scanner", "nmap"),
		slog.GroupAttrs(
			"options",
			slog.String("nmap", s.nmap),
			slog.Any("ports", ports),
		),
		slog.String("target", addr.String()),
	)
	host, err := scan(logCtx, options)
	if err != nil {
		return nil, fmt.Errorf("nmap scan: %w", err)
	}
	return HostToServices(host), nil
}

func scan(ctx context.Context, options []nmap.Option) (nmap.Host, error) {
	scanner, err := nmap.NewScanner(ctx, options...)
	if err != nil {
		return nmap.Host{}, fmt.Errorf("creating nmap scanner: %w", err)
	}

	now := time.Now()
	slog.DebugContext(ctx, "scan started")
	result, warningsp, err := scanner.Run()
	if err != nil {
		slog.DebugContext(ctx, "scan failed", "error", err)
		return nmap.Host{}, fmt.Errorf("nmap scan: %w", err)
	}

	if warningsp != nil {
		for _, warn := range *warningsp {
			slog.WarnContext(ctx, "scan", "warning", warn)
		}
	}

	if len(result.Hosts) == 0 {
		slog.DebugContext(ctx, "scan found nothing")
		return nmap.Host{}, model.ErrNoMatch
	}

	slog.DebugContext(ctx, "scan finished", "elapsed", time.Since(now).String())
	return result.Hosts[0], nil
}

// HostToServices converts the ports of a nmap host.
func HostToServices(host nmap.Host) []Service {
	ret := make([]Service, 0, len(host.Ports))
	for _, port := range host.Ports {
		svc := Service{
			Port:      int(port.ID),
			Protocol:  strings.ToLower(port.Protocol),
			State:     strings.ToLower(port.State.State),
			Name:      port.Service.Name,
			Product:   port.Service.Product,
			Version:   port.Service.Version,
			ExtraInfo: port.Service.ExtraInfo,
		}
		for _, script := range port.Scripts {
			if svc.Scripts == nil {
				svc.Scripts = make(map[string]string, len(port.Scripts))
			}
			svc.Scripts[script.ID] = strings.TrimSpace(script.Output)
		}
		ret = append(ret, svc)
	}
	slices.SortFunc(ret, func(a, b Service) int {
		return cmp.Compare(a.Port, b.Port)
	})
	return ret
}

// ScriptRTSPMethods is the nmap script listing methods of RTSP servers.
const ScriptRTSPMethods = "rtsp-methods"

// Enrich copies product, version and rtsp-methods output of open tcp
// services into the matching port results. It returns the number of ports
// updated.
func Enrich(ports []model.PortResult, services []Service) int {
	var n int
	for _, svc := range services {
		methods := svc.Scripts[ScriptRTSPMethods]
		if svc.Protocol != "tcp" || svc.State != "open" || (svc.Product == "" && svc.Version == "" && methods == "") {
			continue
		}
		i := slices.IndexFunc(ports, func(p model.PortResult) bool {
			return p.Port == svc.Port
		})
		if i < 0 {
			continue
		}
		product := svc.Product
		if svc.ExtraInfo != "" {
			product = strings.TrimSpace(product + " (" + svc.ExtraInfo + ")")
		}
		ports[i].Product = product
		ports[i].Version = svc.Version
		if methods != "" {
			ports[i].Methods = methods
		}
		n++
	}
	return n
}
