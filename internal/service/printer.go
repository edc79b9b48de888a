package service

import (
	"fmt"
	"io"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/model"

	"github.com/fatih/color"
)

// Printer writes the human readable report.
type Printer struct {
	w     io.Writer
	err   error
	title *color.Color
	good  *color.Color
	bad   *color.Color
	warn  *color.Color
	faint *color.Color
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:     w,
		title: color.New(color.FgCyan, color.Bold),
		good:  color.New(color.FgGreen),
		bad:   color.New(color.FgRed, color.Bold),
		warn:  color.New(color.FgYellow),
		faint: color.New(color.Faint),
	}
}

func (p *Printer) printf(c *color.Color, format string, args ...any) {
	if p.err != nil {
		return
	}
	if c == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
		return
	}
	_, p.err = c.Fprintf(p.w, format, args...)
}

func (p *Printer) section(name string) {
	p.printf(nil, "\n")
	p.printf(p.title, "[%s]\n", name)
}

// Report writes every executed section of r.
func (p *Printer) Report(r model.Report) error {
	p.section("target")
	p.printf(nil, "  address:  %s\n", r.Target)
	if r.Private {
		p.printf(p.faint, "  private address, internet exposure lookups do not apply\n")
	}
	p.printf(nil, "  scan id:  %s\n", r.ID)

	p.ports(r.Scan)
	p.camera(r)
	p.loginPages(r.LoginPages)
	p.fingerprints(r)
	p.credentials(r.Credentials)
	p.streams(r.Streams)

	if len(r.Warnings) > 0 {
		p.section("warnings")
		for _, w := range r.Warnings {
			p.printf(p.warn, "  ! %s\n", w)
		}
	}
	p.printf(p.faint, "\nfinished in %s\n", r.Elapsed)
	return p.err
}

func (p *Printer) ports(s model.ScanResult) {
	p.section("ports")
	if len(s.Open) == 0 {
		p.printf(p.warn, "  no open ports out of %d scanned\n", s.Scanned)
		return
	}
	for _, port := range s.Open {
		line := fmt.Sprintf("  %5d/tcp  %s", port.Port, port.Protocol)
		if product := strings.TrimSpace(port.Product + " " + port.Version); product != "" {
			line += "  " + product
		}
		if port.RTSP {
			p.printf(p.good, "%s\n", line)
		} else {
			p.printf(nil, "%s\n", line)
		}
		if port.StreamURL != "" {
			p.printf(p.faint, "           %s\n", port.StreamURL)
		}
		if port.Methods != "" {
			p.printf(p.faint, "           methods: %s\n", port.Methods)
		}
	}
	p.printf(p.faint, "  %d open out of %d scanned\n", len(s.Open), s.Scanned)
}

func (p *Printer) camera(r model.Report) {
	if r.Camera == nil {
		return
	}
	p.section("camera")
	if r.Camera.Camera {
		p.printf(p.good, "  camera indicators found\n")
	} else {
		p.printf(p.warn, "  no camera indicators found\n")
	}
	for _, e := range r.Camera.Evidence {
		p.printf(nil, "  - %s\n", e)
	}
	if r.Skipped {
		p.printf(p.faint, "  extended checks skipped\n")
	}
}

func (p *Printer) loginPages(pages []model.LoginPage) {
	if len(pages) == 0 {
		return
	}
	p.section("login pages")
	for _, page := range pages {
		p.printf(nil, "  %s (HTTP %d)\n", page.URL, page.Status)
	}
}

func (p *Printer) fingerprints(r model.Report) {
	if len(r.Fingerprints) == 0 {
		return
	}
	p.section("fingerprints")
	for _, fp := range r.Fingerprints {
		if !fp.Reached {
			p.printf(p.faint, "  %s: no response\n", fp.URL)
			continue
		}
		p.printf(nil, "  %s: %s", fp.URL, fp.Brand)
		if fp.Model != "" {
			p.printf(nil, " model=%s", fp.Model)
		}
		if fp.Firmware != "" {
			p.printf(nil, " firmware=%s", fp.Firmware)
		}
		p.printf(nil, "\n")
		for _, n := range fp.Notes {
			p.printf(p.faint, "    %s\n", n)
		}
	}
	if cves := r.CVEs(); len(cves) > 0 {
		p.printf(p.bad, "  known CVEs: %s\n", strings.Join(cves, ", "))
	}
}

func (p *Printer) credentials(c *model.CredentialResult) {
	if c == nil {
		return
	}
	p.section("credentials")
	if f := c.Found; f != nil {
		p.printf(p.bad, "  default credentials accepted: %s on %s (%s)\n", f.Credential, f.Endpoint, f.Kind)
	} else {
		p.printf(p.good, "  no default credentials accepted\n")
	}
	status := ""
	if c.TimedOut {
		status = ", time budget exhausted"
	}
	p.printf(p.faint, "  %d attempts in %s%s\n", c.Attempts, c.Elapsed, status)
}

func (p *Printer) streams(s *model.StreamResult) {
	if s == nil {
		return
	}
	p.section("streams")
	if len(s.Brands) > 0 {
		brands := make([]string, 0, len(s.Brands))
		for _, b := range s.Brands {
			brands = append(brands, string(b))
		}
		p.printf(p.faint, "  detected brands: %s\n", strings.Join(brands, ", "))
	}
	for _, st := range s.Streams {
		c := p.warn
		if st.Class == model.StreamConfirmed || st.Class == model.StreamVideoFile {
			c = p.good
		}
		p.printf(c, "  %-10s %s", st.Class, st.URL)
		if st.ContentType != "" {
			p.printf(nil, " (%s)", st.ContentType)
		}
		if st.Detail != "" {
			p.printf(p.faint, " %s", st.Detail)
		}
		p.printf(nil, "\n")
	}
	for _, u := range s.Suggested {
		p.printf(p.faint, "  suggested  %s\n", u)
	}
	if !s.Found() {
		p.printf(p.warn, "  no streams found\n")
	}
	p.printf(p.faint, "  %d candidates checked\n", s.Checked)
}
