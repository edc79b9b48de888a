// Package netscan discovers open TCP ports on a single target and tells
// RTSP services apart by an active handshake.
package netscan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/parallel"
	"github.com/CZERTAINLY/camseeker/internal/rtsp"
)

const progressEvery = 50

var errClosed = errors.New("port closed")

// Scanner is a TCP connect scanner. It is safe for concurrent use.
type Scanner struct {
	catalog     *catalog.Catalog
	workers     int
	dialTimeout time.Duration
	rtsp        rtsp.Prober
}

func New(cfg model.Scan, cat *catalog.Catalog) Scanner {
	return Scanner{
		catalog:     cat,
		workers:     cfg.Workers,
		dialTimeout: cfg.DialTimeout.Std(),
		rtsp:        rtsp.New(cfg.RTSPTimeout.Std()),
	}
}

// Scan dials every port and classifies the open ones. Refused or timed out
// ports are closed, never an error. When ctx is canceled no new port is
// dialed; ports found so far are returned together with the context error.
func (s Scanner) Scan(ctx context.Context, target model.Target, ports []int) (model.ScanResult, error) {
	ctx = log.ContextAttrs(ctx, slog.String("component", "netscan"))
	total := len(ports)
	slog.InfoContext(ctx, "scanning ports", "target", target.String(), "ports", total)

	var scanned atomic.Int64
	probe := func(ctx context.Context, port int) (model.PortResult, error) {
		defer func() {
			if n := scanned.Add(1); n%progressEvery == 0 {
				slog.InfoContext(ctx, "scan progress", "scanned", n, "total", total)
			}
		}()
		return s.Port(ctx, target, port)
	}

	ret := model.ScanResult{}
	for pr, err := range parallel.NewMap(ctx, s.workers, probe).Iter(slices.Values(ports)) {
		if err != nil {
			continue
		}
		slog.InfoContext(ctx, "open port", "port", pr.Port, "service", pr.Protocol, "description", pr.Description)
		ret.Open = append(ret.Open, pr)
	}

	slices.SortFunc(ret.Open, func(a, b model.PortResult) int {
		return cmp.Compare(a.Port, b.Port)
	})
	ret.RTSPPorts = []int{}
	for _, pr := range ret.Open {
		if pr.RTSP {
			ret.RTSPPorts = append(ret.RTSPPorts, pr.Port)
		}
	}
	ret.Scanned = int(scanned.Load())
	slog.InfoContext(ctx, "scan completed", "scanned", ret.Scanned, "open", len(ret.Open), "rtsp", len(ret.RTSPPorts))

	if err := ctx.Err(); err != nil {
		return ret, fmt.Errorf("port scan interrupted: %w", err)
	}
	return ret, nil
}

// Port checks a single port. It returns errClosed for anything but an
// accepted connection.
func (s Scanner) Port(ctx context.Context, target model.Target, port int) (model.PortResult, error) {
	hostport := target.HostPort(port)
	dialer := net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return model.PortResult{}, errClosed
	}
	_ = conn.Close()

	pr := model.PortResult{Port: port, Open: true}
	_, err = s.rtsp.Probe(ctx, hostport)
	pr.RTSP = err == nil
	if err != nil {
		slog.DebugContext(ctx, "not rtsp", "port", port, "error", err)
	}

	svc := s.catalog.Service(port, pr.RTSP)
	pr.Protocol = svc.Name
	pr.Description = svc.Description
	if pr.RTSP {
		pr.StreamURL = "rtsp://" + hostport + "/"
	}
	return pr, nil
}
