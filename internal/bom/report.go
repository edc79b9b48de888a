package bom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

const nvdURL = "https://nvd.nist.gov/vuln/detail/"

// FromReport maps a report to a builder: the target is a device component,
// every open port a data component depending on it, every stream a
// service and every matched CVE a vulnerability affecting the device.
// Credentials are never written, only whether one was found and where.
func FromReport(r model.Report) *Builder {
	b := NewBuilder().WithTimestamp(r.Started)

	device := deviceComponent(r)
	b.AppendComponents(device)

	portRefs := make([]string, 0, len(r.Scan.Open))
	for _, p := range r.Scan.Open {
		compo := portComponent(r.Target, p)
		b.AppendComponents(compo)
		portRefs = append(portRefs, compo.BOMRef)
	}
	if len(portRefs) > 0 {
		b.AppendDependencies(cdx.Dependency{
			Ref:          device.BOMRef,
			Dependencies: &portRefs,
		})
		for _, ref := range portRefs {
			b.AppendDependencies(cdx.Dependency{Ref: ref})
		}
	}

	if r.Streams != nil {
		for _, s := range r.Streams.Streams {
			b.AppendServices(streamService(s))
		}
	}

	for _, cve := range r.CVEs() {
		b.AppendVulnerabilities(cdx.Vulnerability{
			BOMRef: "camseeker:vuln/" + cve,
			ID:     cve,
			Source: &cdx.Source{
				Name: "NVD",
				URL:  nvdURL + cve,
			},
			Affects: &[]cdx.Affects{
				{Ref: device.BOMRef},
			},
		})
	}

	b.AppendProperties(
		cdx.Property{Name: "camseeker:report_id", Value: r.ID},
		cdx.Property{Name: "camseeker:elapsed", Value: r.Elapsed.String()},
		cdx.Property{Name: "camseeker:ports_scanned", Value: strconv.Itoa(r.Scan.Scanned)},
	)
	for _, w := range r.Warnings {
		b.AppendProperties(cdx.Property{Name: "camseeker:warning", Value: w})
	}
	return b
}

func deviceComponent(r model.Report) cdx.Component {
	props := []cdx.Property{
		{Name: "camseeker:address", Value: r.Target.Addr.String()},
		{Name: "camseeker:private", Value: strconv.FormatBool(r.Private)},
	}
	if r.Camera != nil {
		props = append(props, cdx.Property{Name: "camseeker:camera", Value: strconv.FormatBool(r.Camera.Camera)})
		for _, e := range r.Camera.Evidence {
			props = append(props, cdx.Property{Name: "camseeker:evidence", Value: e})
		}
	}

	name := "host:" + r.Target.Addr.String()
	var version string
	for _, fp := range r.Fingerprints {
		if !fp.Known() {
			continue
		}
		props = append(props, cdx.Property{Name: "camseeker:brand", Value: string(fp.Brand)})
		if fp.Model != "" {
			props = append(props, cdx.Property{Name: "camseeker:model", Value: fp.Model})
		}
		if fp.Firmware != "" {
			props = append(props, cdx.Property{Name: "camseeker:firmware", Value: fp.Firmware})
			version = fp.Firmware
		}
		name = strings.TrimSpace(string(fp.Brand) + " " + fp.Model)
		break
	}

	if c := r.Credentials; c != nil {
		props = append(props, cdx.Property{Name: "camseeker:credentials:found", Value: strconv.FormatBool(c.Success())})
		if c.Found != nil {
			props = append(props,
				cdx.Property{Name: "camseeker:credentials:endpoint", Value: c.Found.Endpoint},
				cdx.Property{Name: "camseeker:credentials:kind", Value: string(c.Found.Kind)},
			)
		}
	}
	for _, lp := range r.LoginPages {
		props = append(props, cdx.Property{Name: "camseeker:login_page", Value: fmt.Sprintf("%s (HTTP %d)", lp.URL, lp.Status)})
	}

	return cdx.Component{
		BOMRef:     "camseeker:device/" + r.Target.Addr.String(),
		Type:       cdx.ComponentTypeDevice,
		Name:       name,
		Version:    version,
		Properties: &props,
	}
}

func portComponent(target model.Target, p model.PortResult) cdx.Component {
	props := []cdx.Property{
		{Name: "camseeker:port", Value: strconv.Itoa(p.Port)},
		{Name: "camseeker:service_name", Value: p.Protocol},
		{Name: "camseeker:rtsp", Value: strconv.FormatBool(p.RTSP)},
	}
	if p.Description != "" {
		props = append(props, cdx.Property{Name: "camseeker:service_description", Value: p.Description})
	}
	if p.Product != "" {
		props = append(props, cdx.Property{Name: "camseeker:service_product", Value: p.Product})
	}
	if p.Version != "" {
		props = append(props, cdx.Property{Name: "camseeker:service_version", Value: p.Version})
	}
	if p.StreamURL != "" {
		props = append(props, cdx.Property{Name: "camseeker:stream_url", Value: p.StreamURL})
	}
	return cdx.Component{
		BOMRef:     fmt.Sprintf("camseeker:tcp/%s", target.HostPort(p.Port)),
		Type:       cdx.ComponentTypeData,
		Name:       fmt.Sprintf("tcp/%d", p.Port),
		Properties: &props,
	}
}

func streamService(s model.Stream) cdx.Service {
	props := []cdx.Property{
		{Name: "camseeker:stream_class", Value: string(s.Class)},
		{Name: "camseeker:browser_viewable", Value: strconv.FormatBool(s.BrowserViewable)},
	}
	if s.ContentType != "" {
		props = append(props, cdx.Property{Name: "camseeker:content_type", Value: s.ContentType})
	}
	if s.Detail != "" {
		props = append(props, cdx.Property{Name: "camseeker:detail", Value: s.Detail})
	}
	return cdx.Service{
		BOMRef:     "camseeker:stream/" + s.URL,
		Name:       s.Scheme + "/" + strconv.Itoa(s.Port),
		Endpoints:  &[]string{s.URL},
		Properties: &props,
	}
}
