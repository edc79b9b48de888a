// Package stream builds candidate stream URLs for the open ports of a
// target and verifies each of them with a protocol specific check.
package stream

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/parallel"
	"github.com/CZERTAINLY/camseeker/internal/rtsp"
	"github.com/CZERTAINLY/camseeker/internal/web"
)

const (
	SchemeRTSP  = "rtsp"
	SchemeRTMP  = "rtmp"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeMMS   = "mms"
	SchemeONVIF = "onvif"

	// HTTP candidates are judged by headers and a short body prefix
	prefixBytes = 512
	rtspPort    = 554
)

type Enumerator struct {
	cfg         model.Streams
	catalog     *catalog.Catalog
	web         *web.Client
	rtsp        rtsp.Prober
	dialTimeout time.Duration
}

func New(cfg model.Streams, client *web.Client, prober rtsp.Prober, cat *catalog.Catalog) *Enumerator {
	return &Enumerator{
		cfg:         cfg,
		catalog:     cat,
		web:         client,
		rtsp:        prober,
		dialTimeout: prober.Timeout,
	}
}

// RTSPPorts is the union of the confirmed RTSP ports and the open
// conventional RTSP ports, ascending.
func (e *Enumerator) RTSPPorts(open, confirmed []int) []int {
	ret := slices.Clone(confirmed)
	for _, p := range open {
		if slices.Contains(e.catalog.Streams.RTSPPorts, p) {
			ret = append(ret, p)
		}
	}
	slices.Sort(ret)
	return slices.Compact(ret)
}

// Suggest returns RTSP URLs worth trying in a media player. A known RTSP
// capable brand with no RTSP port yields suggestions on the standard port
// and the open HTTP family ports.
func (e *Enumerator) Suggest(target model.Target, open, confirmed []int, brands []model.Brand) []string {
	ports := e.RTSPPorts(open, confirmed)
	if len(ports) == 0 && e.rtspBrand(brands) {
		ports = append(ports, rtspPort)
		for _, p := range open {
			if slices.Contains(e.catalog.Streams.SuggestPorts, p) {
				ports = append(ports, p)
			}
		}
		slices.Sort(ports)
		ports = slices.Compact(ports)
	}

	paths := slices.Clone(e.catalog.Streams.SuggestPaths)
	for _, b := range brands {
		paths = append(paths, e.catalog.Streams.BrandPaths[b]...)
	}
	paths = paths[:min(e.cfg.SuggestPerPort, len(paths))]

	var ret []string
	for _, port := range ports {
		for _, path := range paths {
			ret = append(ret, "rtsp://"+target.HostPort(port)+path)
		}
	}
	return ret
}

func (e *Enumerator) rtspBrand(brands []model.Brand) bool {
	return slices.ContainsFunc(brands, func(b model.Brand) bool {
		return slices.Contains(e.catalog.Streams.RTSPBrands, b)
	})
}

// Candidates lists the URLs to verify for every open port, in port order.
func (e *Enumerator) Candidates(target model.Target, open, confirmed []int, brands []model.Brand) []model.StreamCandidate {
	s := e.catalog.Streams
	rtspSet := e.RTSPPorts(open, confirmed)

	rtspPaths := slices.Clone(s.RTSPPaths)
	for _, b := range brands {
		rtspPaths = append(rtspPaths, s.BrandPaths[b]...)
	}
	rtspPaths = catalog.Dedup(rtspPaths)

	var ret []model.StreamCandidate
	add := func(scheme string, port int, base string, paths ...string) {
		for _, path := range paths {
			ret = append(ret, model.StreamCandidate{
				Scheme: scheme,
				Port:   port,
				Path:   path,
				URL:    base + path,
			})
		}
	}

	ports := slices.Clone(open)
	slices.Sort(ports)
	for _, port := range slices.Compact(ports) {
		hostport := target.HostPort(port)
		if slices.Contains(rtspSet, port) {
			add(SchemeRTSP, port, "rtsp://"+hostport, rtspPaths...)
		}
		if slices.Contains(s.RTMPPorts, port) {
			add(SchemeRTMP, port, "rtmp://"+hostport, s.RTMPPaths...)
		}
		switch {
		case slices.Contains(s.HTTPSPorts, port):
			add(SchemeHTTPS, port, "https://"+hostport, s.HTTPPaths...)
		case slices.Contains(s.HTTPPorts, port):
			add(SchemeHTTP, port, "http://"+hostport, s.HTTPPaths...)
		}
		if slices.Contains(s.MMSPorts, port) {
			add(SchemeMMS, port, "mms://"+hostport, "")
		}
		if slices.Contains(s.ONVIFPorts, port) {
			add(SchemeONVIF, port, "http://"+hostport, s.ONVIFPath)
		}
	}
	return ret
}

// Enumerate verifies every candidate with a bounded pool and reports the
// ones that look like a stream. No stream found is a result, not an error.
func (e *Enumerator) Enumerate(ctx context.Context, target model.Target, open, confirmed []int, brands []model.Brand) model.StreamResult {
	ctx = log.ContextAttrs(ctx, slog.String("component", "stream"))

	ret := model.StreamResult{
		Brands:    brands,
		Suggested: e.Suggest(target, open, confirmed, brands),
	}
	if len(ret.Suggested) > 0 {
		slog.InfoContext(ctx, "suggesting rtsp urls", "count", len(ret.Suggested), "brands", brands)
	}

	candidates := e.Candidates(target, open, confirmed, brands)
	slog.InfoContext(ctx, "checking stream candidates", "count", len(candidates))

	handshakes := make(map[int]func() bool)
	for _, c := range candidates {
		if c.Scheme != SchemeRTMP {
			continue
		}
		if _, ok := handshakes[c.Port]; !ok {
			hostport := target.HostPort(c.Port)
			handshakes[c.Port] = sync.OnceValue(func() bool {
				return e.rtmpHandshake(ctx, hostport)
			})
		}
	}

	var checked atomic.Int64
	verify := func(ctx context.Context, c model.StreamCandidate) (model.Stream, error) {
		defer checked.Add(1)
		var s model.Stream
		switch c.Scheme {
		case SchemeRTSP:
			s = e.verifyRTSP(ctx, target, c)
		case SchemeRTMP:
			s = verifyRTMP(c, handshakes[c.Port]())
		case SchemeHTTP, SchemeHTTPS:
			s = e.verifyHTTP(ctx, c)
		case SchemeMMS:
			s = e.verifyMMS(ctx, target, c)
		case SchemeONVIF:
			s = e.verifyONVIF(ctx, c)
		}
		if s.Class == "" || s.Class == model.StreamNone {
			return s, model.ErrNoMatch
		}
		slog.InfoContext(ctx, "stream found", "url", s.URL, "class", s.Class, "content_type", s.ContentType)
		return s, nil
	}

	ret.Streams = parallel.Collect(ctx, e.cfg.Workers, candidates, verify)
	slices.SortFunc(ret.Streams, func(a, b model.Stream) int {
		return cmp.Or(
			cmp.Compare(a.Port, b.Port),
			cmp.Compare(a.Scheme, b.Scheme),
			cmp.Compare(a.Path, b.Path),
		)
	})
	ret.Checked = int(checked.Load())

	if ret.Found() {
		slog.InfoContext(ctx, "stream detection completed", "streams", len(ret.Streams), "suggested", len(ret.Suggested))
	} else {
		slog.InfoContext(ctx, "no live streams detected", "checked", ret.Checked)
	}
	return ret
}
