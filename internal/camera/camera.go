// Package camera decides whether a host looks like an IP camera, DVR or
// NVR, and lists its reachable login pages.
package camera

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/parallel"
	"github.com/CZERTAINLY/camseeker/internal/web"
)

type Classifier struct {
	web     *web.Client
	catalog *catalog.Catalog
	workers int
}

func New(client *web.Client, cat *catalog.Catalog, workers int) Classifier {
	return Classifier{
		web:     client,
		catalog: cat,
		workers: workers,
	}
}

type portEvidence struct {
	port     int
	evidence []string
}

// Classify probes every open port over HTTP(S). A single indicator on any
// port makes the verdict positive. Probe failures only mean no evidence.
func (c Classifier) Classify(ctx context.Context, target model.Target, ports []int) model.CameraVerdict {
	ctx = log.ContextAttrs(ctx, slog.String("component", "camera"))

	analyze := func(ctx context.Context, port int) (portEvidence, error) {
		return portEvidence{port: port, evidence: c.Port(ctx, target, port)}, nil
	}
	results := parallel.Collect(ctx, c.workers, ports, analyze)
	slices.SortFunc(results, func(a, b portEvidence) int {
		return cmp.Compare(a.port, b.port)
	})

	var verdict model.CameraVerdict
	for _, r := range results {
		verdict.Evidence = append(verdict.Evidence, r.evidence...)
	}
	verdict.Camera = len(verdict.Evidence) > 0
	slog.InfoContext(ctx, "camera classification", "camera", verdict.Camera, "indicators", len(verdict.Evidence))
	return verdict
}

// Port returns the camera indicators found on a single port.
func (c Classifier) Port(ctx context.Context, target model.Target, port int) []string {
	base := c.web.BaseURL(target, port)
	ctx = log.ContextAttrs(ctx, slog.String("url", base))

	resp, err := c.web.Get(ctx, base)
	if err != nil {
		slog.DebugContext(ctx, "port analysis failed", "error", err)
		return nil
	}

	var evidence []string
	add := func(format string, args ...any) {
		evidence = append(evidence, fmt.Sprintf("port %d: ", port)+fmt.Sprintf(format, args...))
	}

	server := resp.Server()
	for _, brand := range c.catalog.Camera.Servers {
		if _, ok := brand.Match(server); ok {
			add("%s camera server detected (%s)", strings.ToUpper(brand.Brand), server)
			break
		}
	}

	ct := resp.ContentType()
	if _, ok := catalog.ContainsAny(ct, c.catalog.Camera.ContentTypes); ok {
		add("camera content type %s", ct)
	}

	text := resp.Text()
	if resp.Status == http.StatusOK {
		var found []string
		for _, kw := range c.catalog.Camera.BodyKeywords {
			if strings.Contains(text, kw) {
				found = append(found, kw)
			}
		}
		if len(found) > 0 {
			add("camera keywords found: %s", strings.Join(found, ", "))
		}
		if _, ok := catalog.ContainsAny(text, c.catalog.Camera.CPPlusTokens); ok {
			add("CP Plus camera detected")
		}
	}

	for _, endpoint := range c.catalog.Camera.Endpoints {
		if ctx.Err() != nil {
			break
		}
		url := base + endpoint
		head, err := c.web.Head(ctx, url)
		if err != nil {
			slog.DebugContext(ctx, "endpoint probe failed", "endpoint", endpoint, "error", err)
			continue
		}
		if interesting(head.Status) {
			add("camera endpoint found %s (HTTP %d)", url, head.Status)
		}
	}

	if resp.Status == http.StatusUnauthorized {
		if auth := resp.Header.Get("WWW-Authenticate"); auth != "" {
			add("authentication required (%s)", auth)
		} else {
			add("authentication required")
		}
	}

	if resp.Status == http.StatusOK {
		if title := strings.ToLower(web.Title(resp.Body)); title != "" {
			if _, ok := catalog.ContainsAny(title, c.catalog.Camera.TitleKeywords); ok {
				add("DVR/NVR page title: %s", title)
			}
		}
		if _, ok := catalog.ContainsAny(text, c.catalog.Camera.LoginMarkers); ok {
			add("login form detected")
		}
		if _, ok := catalog.ContainsAny(text, c.catalog.Camera.CPPlusModels); ok {
			add("CP Plus UVR-0401E1 model detected")
		}
	}
	return evidence
}

type endpoint struct {
	port int
	path string
}

// LoginPages sends HEAD to every open port and admin path and returns the
// URLs answering 200, 401 or 403, sorted by URL.
func (c Classifier) LoginPages(ctx context.Context, target model.Target, ports []int) []model.LoginPage {
	ctx = log.ContextAttrs(ctx, slog.String("component", "login"))

	endpoints := make([]endpoint, 0, len(ports)*len(c.catalog.LoginPaths))
	for _, port := range ports {
		for _, path := range c.catalog.LoginPaths {
			endpoints = append(endpoints, endpoint{port: port, path: path})
		}
	}

	check := func(ctx context.Context, e endpoint) (model.LoginPage, error) {
		url := c.web.BaseURL(target, e.port) + e.path
		resp, err := c.web.Head(ctx, url)
		if err != nil {
			return model.LoginPage{}, err
		}
		if !interesting(resp.Status) {
			return model.LoginPage{}, model.ErrNoMatch
		}
		slog.InfoContext(ctx, "found login page", "url", url, "status", resp.Status)
		return model.LoginPage{URL: url, Status: resp.Status}, nil
	}

	pages := parallel.Collect(ctx, c.workers, endpoints, check)
	slices.SortFunc(pages, func(a, b model.LoginPage) int {
		return cmp.Compare(a.URL, b.URL)
	})
	slog.InfoContext(ctx, "login page check completed", "found", len(pages))
	return pages
}

func interesting(status int) bool {
	switch status {
	case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}
