package bom_test

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/bom"
	"github.com/CZERTAINLY/camseeker/internal/model"
	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	b := bom.NewBuilder().
		AppendAuthors(cdx.OrganizationalContact{
			Name:  "test-author",
			Email: "test.author@example.net",
		}).
		AppendComponents(cdx.Component{
			BOMRef: "device",
			Type:   cdx.ComponentTypeDevice,
			Name:   "hikvision DS-2CD2042FWD",
		}).
		AppendServices(cdx.Service{
			BOMRef:    "stream",
			Name:      "rtsp/554",
			Endpoints: &[]string{"rtsp://192.0.2.10:554/"},
		}).
		AppendVulnerabilities(cdx.Vulnerability{
			ID:      "CVE-2021-36260",
			Affects: &[]cdx.Affects{{Ref: "device"}},
		}).
		AppendProperties(cdx.Property{
			Name:  "property1",
			Value: "value1",
		}).
		AppendDependencies(cdx.Dependency{
			Ref: "device",
		})

	err := b.AsJSON(t.Output())
	require.NoError(t, err)

	doc := b.BOM()
	require.True(t, strings.HasPrefix(doc.SerialNumber, "urn:uuid:"))
	require.Equal(t, "camseeker", doc.Metadata.Component.Name)
	require.Len(t, *doc.Services, 1)
	require.Len(t, *doc.Vulnerabilities, 1)
}

func TestBuilder_Empty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, bom.NewBuilder().AsJSON(&buf))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Equal(t, "CycloneDX", raw["bomFormat"])
	require.Equal(t, "1.6", raw["specVersion"])
}

func TestFromReport(t *testing.T) {
	t.Parallel()
	target := model.Target{Addr: netip.MustParseAddr("192.0.2.10")}
	started := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	report := model.Report{
		ID:      "run-1",
		Target:  target,
		Started: started,
		Elapsed: model.Duration(3 * time.Second),
		Scan: model.ScanResult{
			Open: []model.PortResult{
				{Port: 80, Open: true, Protocol: "HTTP", Description: "Web Interface"},
				{Port: 554, Open: true, RTSP: true, Protocol: model.ProtocolRTSP, StreamURL: "rtsp://192.0.2.10:554/"},
			},
			RTSPPorts: []int{554},
			Scanned:   1200,
		},
		Camera: &model.CameraVerdict{Camera: true, Evidence: []string{"port 80: HIKVISION camera server detected (hikvision-webs)"}},
		Fingerprints: []model.Fingerprint{
			{Port: 80, Brand: model.BrandHikvision, Model: "DS-2CD2042FWD", Firmware: "V5.4.5", CVEs: []string{"CVE-2021-36260", "CVE-2017-7921"}, Reached: true},
			{Port: 8000, Brand: model.BrandHikvision, CVEs: []string{"CVE-2021-36260"}, Reached: true},
		},
		Credentials: &model.CredentialResult{
			Found: &model.TrialOutcome{
				Endpoint:   "rtsp://192.0.2.10:554/",
				Kind:       model.AuthRTSPBasic,
				Credential: model.Credential{Username: "admin", Password: "s3cr3t-pass"},
				Success:    true,
			},
		},
		Streams: &model.StreamResult{
			Streams: []model.Stream{
				{
					StreamCandidate: model.StreamCandidate{Scheme: "rtsp", Port: 554, Path: "/live.sdp", URL: "rtsp://192.0.2.10:554/live.sdp"},
					Class:           model.StreamConfirmed,
				},
			},
		},
	}

	b := bom.FromReport(report)
	doc := b.BOM()

	require.Equal(t, started.Format(time.RFC3339), doc.Metadata.Timestamp)
	require.Len(t, *doc.Components, 3)
	device := (*doc.Components)[0]
	require.Equal(t, cdx.ComponentTypeDevice, device.Type)
	require.Equal(t, "hikvision DS-2CD2042FWD", device.Name)
	require.Equal(t, "V5.4.5", device.Version)
	require.Equal(t, cdx.ComponentTypeData, (*doc.Components)[1].Type)
	require.Equal(t, "tcp/554", (*doc.Components)[2].Name)

	require.Len(t, *doc.Dependencies, 3)
	require.Equal(t, device.BOMRef, (*doc.Dependencies)[0].Ref)

	require.Len(t, *doc.Services, 1)
	require.Equal(t, []string{"rtsp://192.0.2.10:554/live.sdp"}, *(*doc.Services)[0].Endpoints)

	vulns := *doc.Vulnerabilities
	require.Len(t, vulns, 2)
	require.Equal(t, "CVE-2021-36260", vulns[0].ID)
	require.Equal(t, "https://nvd.nist.gov/vuln/detail/CVE-2021-36260", vulns[0].Source.URL)
	require.Equal(t, device.BOMRef, (*vulns[0].Affects)[0].Ref)

	var buf bytes.Buffer
	require.NoError(t, b.AsJSON(&buf))
	require.NotContains(t, buf.String(), "s3cr3t-pass")
	require.Contains(t, buf.String(), `"camseeker:credentials:found"`)
}
