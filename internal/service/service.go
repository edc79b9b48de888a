package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/camera"
	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/creds"
	"github.com/CZERTAINLY/camseeker/internal/fingerprint"
	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/netscan"
	cznmap "github.com/CZERTAINLY/camseeker/internal/nmap"
	"github.com/CZERTAINLY/camseeker/internal/rtsp"
	"github.com/CZERTAINLY/camseeker/internal/stream"
	"github.com/CZERTAINLY/camseeker/internal/web"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ConfirmFunc is asked whether to continue when the classifier found no
// camera indicator.
type ConfirmFunc func(ctx context.Context, verdict model.CameraVerdict) bool

// Options are the per run inputs of the operator.
type Options struct {
	// Ports are scanned in addition to the catalog
	Ports []int
	// AssumeYes continues without asking when no camera was found
	AssumeYes bool
	Confirm   ConfirmFunc
}

// Validate rejects operator input which cannot be scanned.
func (o Options) Validate() error {
	for _, p := range o.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d must be between 1 and 65535: %w", p, model.ErrInvalidTarget)
		}
	}
	return nil
}

// Scanner is a component, which encapsulates the scan functionality and executes it.
type Scanner struct {
	cfg         model.Config
	catalog     *catalog.Catalog
	netscan     netscan.Scanner
	classifier  camera.Classifier
	fingerprint *fingerprint.Fingerprinter
	creds       *creds.Engine
	streams     *stream.Enumerator
}

func NewScanner(ctx context.Context, config model.Config) (Scanner, error) {
	if config.Version != 0 {
		return Scanner{}, fmt.Errorf("config version %d is not supported, expected 0", config.Version)
	}

	cat := catalog.Default()
	if config.Scan.Ports != "" {
		ports, err := catalog.ParsePorts(config.Scan.Ports)
		if err != nil {
			return Scanner{}, fmt.Errorf("parsing scan.ports: %w", err)
		}
		if len(ports) == 0 {
			return Scanner{}, errors.New("parsing scan.ports: empty port list")
		}
		override := *cat
		override.Ports = catalog.Dedup(ports)
		cat = &override
		slog.DebugContext(ctx, "port catalog overridden", "ports", len(cat.Ports))
	}

	client := web.New(config.HTTP, cat)
	prober := rtsp.New(config.Scan.RTSPTimeout.Std())

	s := Scanner{
		cfg:         config,
		catalog:     cat,
		netscan:     netscan.New(config.Scan, cat),
		classifier:  camera.New(client, cat, config.Login.Workers),
		fingerprint: fingerprint.New(client, cat, config.Fingerprint.Workers),
		creds:       creds.New(config.Credentials, client, cat),
		streams:     stream.New(config.Streams, client, prober, cat),
	}
	return s, nil
}

// Do runs the whole pipeline. The returned report is valid even when an
// error is returned.
func (s Scanner) Do(ctx context.Context, target model.Target, opts Options) (model.Report, error) {
	report := model.Report{
		ID:      uuid.NewString(),
		Target:  target,
		Private: target.Private(),
		Started: time.Now(),
	}
	ctx = log.ContextAttrs(ctx, slog.String("scan_id", report.ID), slog.String("target", target.Addr.String()))
	if err := opts.Validate(); err != nil {
		return report, err
	}

	var warnings error
	finish := func(err error) (model.Report, error) {
		report.Warnings = flatten(warnings)
		report.Elapsed = model.Duration(time.Since(report.Started))
		return report, err
	}

	extra := opts.Ports
	if target.Port != 0 {
		extra = append([]int{target.Port}, extra...)
	}
	scanned, err := s.netscan.Scan(ctx, target, s.catalog.ScanPorts(extra...))
	report.Scan = scanned
	if err != nil {
		return finish(err)
	}

	open := scanned.OpenPorts()
	if len(open) == 0 {
		slog.InfoContext(ctx, "no open ports found, skipping further checks")
		return finish(nil)
	}

	if s.cfg.Nmap.Enabled {
		n := cznmap.ForPorts(report.Scan.Open).WithNmapBinary(s.cfg.Nmap.Binary)
		services, err := n.Detect(ctx, target.Addr)
		if err != nil {
			slog.WarnContext(ctx, "nmap enrichment failed", "error", err)
			warnings = errors.Join(warnings, fmt.Errorf("nmap enrichment: %w", err))
		} else {
			updated := cznmap.Enrich(report.Scan.Open, services)
			slog.DebugContext(ctx, "nmap enrichment", "ports", updated)
		}
	}

	verdict := s.classifier.Classify(ctx, target, open)
	report.Camera = &verdict
	if !verdict.Camera && !s.confirm(ctx, opts, verdict) {
		slog.InfoContext(ctx, "no camera indicators found, extended checks skipped")
		report.Skipped = true
		warnings = errors.Join(warnings, fmt.Errorf("extended checks skipped: %w", model.ErrAborted))
		return finish(ctx.Err())
	}

	var g errgroup.Group
	g.Go(func() error {
		report.LoginPages = s.classifier.LoginPages(ctx, target, open)
		return nil
	})
	g.Go(func() error {
		report.Fingerprints = s.fingerprint.Fingerprint(ctx, target, open)
		return nil
	})
	if s.cfg.Credentials.Enabled {
		g.Go(func() error {
			res := s.creds.Run(ctx, target, open, scanned.RTSPPorts)
			report.Credentials = &res
			return nil
		})
	}
	if s.cfg.Streams.Enabled {
		g.Go(func() error {
			brands := s.fingerprint.Sniff(ctx, target, open, s.cfg.Fingerprint.SniffPorts, s.cfg.Fingerprint.SniffTimeout.Std())
			res := s.streams.Enumerate(ctx, target, open, scanned.RTSPPorts, brands)
			report.Streams = &res
			return nil
		})
	}
	_ = g.Wait() // goroutines do not return an error

	if c := report.Credentials; c != nil && c.TimedOut {
		warnings = errors.Join(warnings, fmt.Errorf("credential testing stopped after %s: %w", s.cfg.Credentials.Budget, model.ErrBudgetExceeded))
	}
	if err := ctx.Err(); err != nil {
		return finish(fmt.Errorf("scan interrupted: %w", err))
	}
	slog.InfoContext(ctx, "scan completed", "open", len(open), "cves", len(report.CVEs()))
	return finish(nil)
}

func (s Scanner) confirm(ctx context.Context, opts Options, verdict model.CameraVerdict) bool {
	if opts.AssumeYes {
		return true
	}
	if opts.Confirm == nil {
		return false
	}
	return opts.Confirm(ctx, verdict)
}

func flatten(err error) []string {
	if err == nil {
		return nil
	}
	var ret []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			ret = append(ret, e.Error())
		}
		return ret
	}
	return []string{err.Error()}
}
