// Package fingerprint resolves the vendor, model and firmware of a camera
// listening on an HTTP(S) port and attaches the known CVEs of the vendor.
package fingerprint

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/parallel"
	"github.com/CZERTAINLY/camseeker/internal/web"
)

// probeFunc enriches fp with the details a vendor endpoint exposes.
type probeFunc func(ctx context.Context, fp *model.Fingerprint, base string)

// strategy is a single vendor branch. Strategies are checked in order and
// the first one whose detect matches the root response wins.
type strategy struct {
	brand  model.Brand
	detect func(root web.Response) bool
	probe  probeFunc
}

type Fingerprinter struct {
	web        *web.Client
	catalog    *catalog.Catalog
	workers    int
	strategies []strategy
}

func New(client *web.Client, cat *catalog.Catalog, workers int) *Fingerprinter {
	f := &Fingerprinter{
		web:     client,
		catalog: cat,
		workers: workers,
	}
	f.strategies = []strategy{
		{brand: model.BrandHikvision, detect: serverContains("hikvision"), probe: f.hikvision},
		{brand: model.BrandDahua, detect: serverContains("dahua"), probe: f.dahua},
		{brand: model.BrandAxis, detect: serverContains("axis"), probe: f.axis},
		{brand: model.BrandCPPlus, detect: f.cpplusBody, probe: f.cpplus},
	}
	return f
}

func serverContains(token string) func(web.Response) bool {
	return func(r web.Response) bool {
		return strings.Contains(r.Server(), token)
	}
}

func (f *Fingerprinter) cpplusBody(r web.Response) bool {
	_, ok := catalog.ContainsAny(r.Text(), f.catalog.Camera.CPPlusTokens)
	return ok
}

// Fingerprint runs the vendor state machine on every port independently.
// The result is ordered by port.
func (f *Fingerprinter) Fingerprint(ctx context.Context, target model.Target, ports []int) []model.Fingerprint {
	ctx = log.ContextAttrs(ctx, slog.String("component", "fingerprint"))

	run := func(ctx context.Context, port int) (model.Fingerprint, error) {
		return f.Port(ctx, target, port), nil
	}
	ret := parallel.Collect(ctx, f.workers, ports, run)
	slices.SortFunc(ret, func(a, b model.Fingerprint) int {
		return cmp.Compare(a.Port, b.Port)
	})
	return ret
}

// Port fingerprints a single port. A port which does not answer the root
// request is returned with Reached == false and BrandUnknown.
func (f *Fingerprinter) Port(ctx context.Context, target model.Target, port int) model.Fingerprint {
	base := f.web.BaseURL(target, port)
	ctx = log.ContextAttrs(ctx, slog.String("url", base))

	fp := model.Fingerprint{
		Port:  port,
		URL:   base,
		Brand: model.BrandUnknown,
	}

	root, err := f.web.Get(ctx, base)
	if err != nil {
		slog.DebugContext(ctx, "no response", "error", err)
		fp.Note("no response")
		return fp
	}
	fp.Reached = true

	probe := f.generic
	for _, s := range f.strategies {
		if s.detect(root) {
			fp.SetBrand(s.brand)
			probe = s.probe
			break
		}
	}
	if fp.Known() {
		slog.InfoContext(ctx, "camera brand detected", "brand", fp.Brand)
	}
	probe(ctx, &fp, base)

	if fp.Known() {
		fp.CVEs = f.catalog.CVEs(fp.Brand)
		if len(fp.CVEs) == 0 {
			fp.Note("no known CVEs")
		}
	}
	slog.DebugContext(ctx, "fingerprint completed", "brand", fp.Brand, "model", fp.Model, "firmware", fp.Firmware)
	return fp
}

// generic probes the superset of vendor endpoints and classifies the
// device by the first brand keyword found in a 200 response.
func (f *Fingerprinter) generic(ctx context.Context, fp *model.Fingerprint, base string) {
	for _, path := range f.catalog.Fingerprint.GenericPaths {
		if ctx.Err() != nil {
			return
		}
		url := base + path
		resp, err := f.web.Get(ctx, url)
		if err != nil {
			slog.DebugContext(ctx, "endpoint probe failed", "endpoint", path, "error", err)
			continue
		}
		if resp.Status != 200 {
			continue
		}
		fp.Note("found at " + url)

		text := resp.Text() + " " + strings.ToLower(headerText(resp))
		for _, bk := range f.catalog.Fingerprint.BrandKeywords {
			if kw, ok := bk.Match(text); ok {
				fp.SetBrand(model.ParseBrand(bk.Brand))
				fp.Note("brand keyword " + kw + " found at " + url)
				return
			}
		}
	}
}

func headerText(r web.Response) string {
	var sb strings.Builder
	for k, vs := range r.Header {
		for _, v := range vs {
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
