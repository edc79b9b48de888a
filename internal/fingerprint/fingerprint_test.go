package fingerprint_test

import (
	"net/netip"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/fingerprint"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/web"
	"github.com/stretchr/testify/require"
)

var loopback = model.Target{Addr: netip.MustParseAddr("127.0.0.1")}

func newFingerprinter() *fingerprint.Fingerprinter {
	cfg := model.DefaultConfig()
	cat := catalog.Default()
	return fingerprint.New(web.New(cfg.HTTP, cat), cat, 4)
}

func TestPort(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    *int
		brand    model.Brand
		model    string
		firmware string
		cve      string
		notes    []string
	}{
		{
			scenario: "hikvision",
			given:    &hikPort,
			brand:    model.BrandHikvision,
			model:    "DS-2CD2042FWD",
			firmware: "V5.5.0",
			cve:      "CVE-2021-36260",
			notes:    []string{"/System/configurationFile?auth=" + hikvisionAuth},
		},
		{
			scenario: "hikvision malformed xml",
			given:    &badXMLPort,
			brand:    model.BrandHikvision,
			cve:      "CVE-2017-7921",
			notes:    []string{"authentication failed for", "cannot parse XML configuration"},
		},
		{
			scenario: "dahua",
			given:    &dahuaPort,
			brand:    model.BrandDahua,
			model:    "IPC-HDW1230S",
			cve:      "CVE-2021-33044",
			notes:    []string{"serial number: 4K0123PAZ", "hardware version: 1.00"},
		},
		{
			scenario: "axis",
			given:    &axisPort,
			brand:    model.BrandAxis,
			model:    "M3045-V",
			firmware: "9.80.1",
			cve:      "CVE-2018-10660",
			notes:    []string{"root.Brand.Brand=AXIS"},
		},
		{
			scenario: "cp plus",
			given:    &cpplusPort,
			brand:    model.BrandCPPlus,
			model:    "CP-UVR-0401E1-IC2",
			notes:    []string{"device type: DVR", "response preview:", "no known CVEs"},
		},
		{
			scenario: "generic header keyword",
			given:    &genericPort,
			brand:    model.BrandDahua,
			cve:      "CVE-2022-30563",
			notes:    []string{"brand keyword dahua found at"},
		},
		{
			scenario: "unknown",
			given:    &plainPort,
			brand:    model.BrandUnknown,
		},
	}

	f := newFingerprinter()
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			fp := f.Port(t.Context(), loopback, *tc.given)
			require.True(t, fp.Reached)
			require.Equal(t, *tc.given, fp.Port)
			require.Equal(t, tc.brand, fp.Brand)
			require.Equal(t, tc.model, fp.Model)
			require.Equal(t, tc.firmware, fp.Firmware)
			if tc.cve != "" {
				require.Contains(t, fp.CVEs, tc.cve)
			} else {
				require.Empty(t, fp.CVEs)
			}
			for _, want := range tc.notes {
				require.True(t, slices.ContainsFunc(fp.Notes, func(n string) bool {
					return strings.Contains(n, want)
				}), "missing note %q in %v", want, fp.Notes)
			}
		})
	}
}

func TestPort_NoResponse(t *testing.T) {
	t.Parallel()
	fp := newFingerprinter().Port(t.Context(), loopback, closedPort)
	require.False(t, fp.Reached)
	require.Equal(t, model.BrandUnknown, fp.Brand)
	require.Empty(t, fp.CVEs)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	given := []int{axisPort, closedPort, hikPort}
	fps := newFingerprinter().Fingerprint(t.Context(), loopback, given)
	require.Len(t, fps, 3)
	require.True(t, slices.IsSortedFunc(fps, func(a, b model.Fingerprint) int {
		return a.Port - b.Port
	}))
	brands := make(map[int]model.Brand)
	for _, fp := range fps {
		brands[fp.Port] = fp.Brand
	}
	require.Equal(t, model.BrandAxis, brands[axisPort])
	require.Equal(t, model.BrandHikvision, brands[hikPort])
	require.Equal(t, model.BrandUnknown, brands[closedPort])
}

func TestSniff(t *testing.T) {
	t.Parallel()
	f := newFingerprinter()

	var testCases = []struct {
		scenario string
		given    []int
		limit    int
		then     []model.Brand
	}{
		{
			scenario: "axis page",
			given:    []int{axisPort},
			limit:    5,
			then:     []model.Brand{model.BrandAxis},
		},
		{
			scenario: "dahua body",
			given:    []int{plainPort, dahuaPort},
			limit:    5,
			then:     []model.Brand{model.BrandDahua},
		},
		{
			scenario: "limit skips later ports",
			given:    []int{plainPort, axisPort},
			limit:    1,
			then:     nil,
		},
		{
			scenario: "non 200 ignored",
			given:    []int{hikPort, closedPort},
			limit:    5,
			then:     nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			brands := f.Sniff(t.Context(), loopback, tc.given, tc.limit, 2*time.Second)
			require.Equal(t, tc.then, brands)
		})
	}
}
