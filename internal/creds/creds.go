// Package creds looks for one working default credential pair on the
// RTSP and web ports of a target, under a global time budget.
package creds

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/parallel"
	"github.com/CZERTAINLY/camseeker/internal/rtsp"
	"github.com/CZERTAINLY/camseeker/internal/web"
)

const webPortBound = 10000

// Trial is a single credential attempt.
type Trial struct {
	Phase int
	Kind  model.AuthKind
	Port  int
	Path  string
	Cred  model.Credential
}

// Engine runs the credential trials. Trials are issued in queue order:
// phase 1 RTSP, phase 1 web, then phase 2 when there is time left.
type Engine struct {
	cfg     model.Credentials
	catalog *catalog.Catalog
	web     *web.Client
	rtsp    rtsp.Prober
}

func New(cfg model.Credentials, client *web.Client, cat *catalog.Catalog) *Engine {
	return &Engine{
		cfg:     cfg,
		catalog: cat,
		web:     client.WithTimeout(cfg.RequestTimeout.Std()),
		rtsp:    rtsp.New(cfg.RequestTimeout.Std()),
	}
}

// Targets splits the open ports into the RTSP set (confirmed RTSP ports
// plus open conventional RTSP ports, ascending) and the web set (open
// conventional web ports and other ports below 10000, capped).
func (e *Engine) Targets(open, confirmed []int) (rtspPorts, webPorts []int) {
	rtspPorts = slices.Clone(confirmed)
	for _, p := range open {
		if slices.Contains(e.catalog.Credentials.RTSPPorts, p) {
			rtspPorts = append(rtspPorts, p)
		}
	}
	slices.Sort(rtspPorts)
	rtspPorts = slices.Compact(rtspPorts)

	for _, p := range open {
		if len(webPorts) == e.cfg.WebPortCap {
			break
		}
		if slices.Contains(e.catalog.Credentials.WebPorts, p) || (p < webPortBound && !slices.Contains(rtspPorts, p)) {
			webPorts = append(webPorts, p)
		}
	}
	return rtspPorts, webPorts
}

// PhaseOne returns the priority credentials against every RTSP port, then
// against the web ports with Basic auth on / and a form POST on /login.
func (e *Engine) PhaseOne(rtspPorts, webPorts []int) []Trial {
	priority := e.catalog.Credentials.Priority
	ret := make([]Trial, 0, len(priority)*(len(rtspPorts)+2*len(webPorts)))
	for _, port := range rtspPorts {
		for _, cred := range priority {
			ret = append(ret, Trial{Phase: 1, Kind: model.AuthRTSPBasic, Port: port, Path: "/", Cred: cred})
		}
	}
	for _, port := range webPorts {
		for _, cred := range priority {
			ret = append(ret, Trial{Phase: 1, Kind: model.AuthHTTPBasic, Port: port, Path: "/", Cred: cred})
		}
		for _, cred := range priority {
			ret = append(ret, Trial{Phase: 1, Kind: model.AuthHTTPForm, Port: port, Path: "/login", Cred: cred})
		}
	}
	return ret
}

// PhaseTwo returns the first credentials of the remaining default table
// against the first RTSP and web ports, Basic auth only.
func (e *Engine) PhaseTwo(rtspPorts, webPorts []int) []Trial {
	rest := e.catalog.Credentials.Remainder()
	rest = rest[:min(e.cfg.PhaseTwoLimit, len(rest))]
	rtspPorts = rtspPorts[:min(e.cfg.PhaseTwoPorts, len(rtspPorts))]
	webPorts = webPorts[:min(e.cfg.PhaseTwoPorts, len(webPorts))]

	var ret []Trial
	for _, port := range rtspPorts {
		for _, cred := range rest {
			ret = append(ret, Trial{Phase: 2, Kind: model.AuthRTSPBasic, Port: port, Path: "/", Cred: cred})
		}
	}
	for _, port := range webPorts {
		for _, cred := range rest {
			ret = append(ret, Trial{Phase: 2, Kind: model.AuthHTTPBasic, Port: port, Path: "/", Cred: cred})
		}
	}
	return ret
}

// Run tests credentials until one succeeds, the trials are exhausted or
// the budget elapses. At most one success is reported. Once the budget is
// crossed no new trial starts; trials in flight run to their own timeout,
// bounded by the join timeout.
func (e *Engine) Run(ctx context.Context, target model.Target, open, confirmed []int) model.CredentialResult {
	ctx = log.ContextAttrs(ctx, slog.String("component", "creds"))
	start := time.Now()
	budget := e.cfg.Budget.Std()

	rtspPorts, webPorts := e.Targets(open, confirmed)
	ret := model.CredentialResult{
		RTSPPorts: rtspPorts,
		WebPorts:  webPorts,
	}
	if len(rtspPorts)+len(webPorts) == 0 {
		slog.InfoContext(ctx, "no ports found for credential testing")
		return ret
	}
	slog.InfoContext(ctx, "testing credentials", "rtsp_ports", rtspPorts, "web_ports", webPorts)

	budgetCtx, cancelBudget := context.WithTimeout(ctx, budget)
	defer cancelBudget()
	stopCtx, stop := context.WithCancel(budgetCtx)
	defer stop()
	drainCtx, cancelDrain := context.WithDeadline(context.WithoutCancel(ctx), start.Add(budget+e.cfg.JoinTimeout.Std()))
	defer cancelDrain()

	var (
		found    atomic.Pointer[model.TrialOutcome]
		attempts atomic.Int64
	)
	try := func(_ context.Context, t Trial) (model.TrialOutcome, error) {
		if found.Load() != nil {
			return model.TrialOutcome{}, model.ErrAborted
		}
		if n := attempts.Add(1); e.cfg.ProgressEvery > 0 && n%int64(e.cfg.ProgressEvery) == 0 {
			slog.InfoContext(ctx, "credential progress", "tested", n, "elapsed", time.Since(start).Truncate(time.Second).String())
		}
		out := e.Try(drainCtx, target, t)
		if !out.Success {
			return out, model.ErrNoMatch
		}
		if !found.CompareAndSwap(nil, &out) {
			return out, model.ErrAborted
		}
		slog.InfoContext(ctx, "credential found", "endpoint", out.Endpoint, "kind", out.Kind, "username", out.Credential.Username)
		stop()
		return out, nil
	}

	drain := func(trials []Trial) {
		for range parallel.NewMap(stopCtx, e.cfg.Workers, try).Iter(slices.Values(trials)) {
		}
	}

	drain(e.PhaseOne(rtspPorts, webPorts))
	cutoff := time.Duration(float64(budget) * e.cfg.PhaseTwoCutoff)
	if found.Load() == nil && stopCtx.Err() == nil && time.Since(start) < cutoff {
		drain(e.PhaseTwo(rtspPorts, webPorts))
	}

	ret.Found = found.Load()
	ret.Attempts = int(attempts.Load())
	ret.Elapsed = model.Duration(time.Since(start))
	ret.TimedOut = errors.Is(budgetCtx.Err(), context.DeadlineExceeded)

	switch {
	case ret.Found != nil:
	case ret.TimedOut:
		slog.WarnContext(ctx, "credential testing stopped by timeout", "budget", budget.String(), "tested", ret.Attempts)
	default:
		slog.InfoContext(ctx, "no default credentials found", "tested", ret.Attempts, "elapsed", ret.Elapsed.String())
	}
	return ret
}

// Try performs a single trial. Network errors count as a failed trial.
func (e *Engine) Try(ctx context.Context, target model.Target, t Trial) model.TrialOutcome {
	out := model.TrialOutcome{Kind: t.Kind, Credential: t.Cred}
	switch t.Kind {
	case model.AuthRTSPBasic:
		hostport := target.HostPort(t.Port)
		out.Endpoint = "rtsp://" + hostport + t.Path
		ok, err := e.rtsp.Authenticate(ctx, hostport, t.Cred)
		if err != nil {
			slog.DebugContext(ctx, "rtsp trial failed", "endpoint", out.Endpoint, "error", err)
		}
		out.Success = ok
	case model.AuthHTTPBasic, model.AuthHTTPForm:
		out.Endpoint = e.web.BaseURL(target, t.Port) + t.Path
		req := web.Request{URL: out.Endpoint}
		if t.Kind == model.AuthHTTPBasic {
			req.Auth = &t.Cred
		} else {
			req.Form = url.Values{"username": {t.Cred.Username}, "password": {t.Cred.Password}}
		}
		resp, err := e.web.Do(ctx, req)
		if err != nil {
			slog.DebugContext(ctx, "http trial failed", "endpoint", out.Endpoint, "error", err)
			return out
		}
		out.Success = resp.Status == http.StatusOK
	}
	return out
}
