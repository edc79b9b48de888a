package model_test

import (
	"encoding/json"
	"testing"

	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		host     string
		port     int
		private  bool
	}{
		{"ipv4", "192.168.1.64", "192.168.1.64", 0, true},
		{"ipv4 with port", "203.0.113.7:8000", "203.0.113.7", 8000, false},
		{"ipv6", "2001:db8::1", "[2001:db8::1]", 0, false},
		{"ipv6 with port", "[::1]:554", "[::1]", 554, true},
		{"whitespace", "  10.0.0.1 ", "10.0.0.1", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			target, err := model.ParseTarget(tc.given)
			require.NoError(t, err)
			require.Equal(t, tc.host, target.Host())
			require.Equal(t, tc.port, target.Port)
			require.Equal(t, tc.private, target.Private())
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	t.Parallel()
	for _, given := range []string{
		"",
		"camera.local",
		"10.0.0.1:0",
		"10.0.0.1:70000",
		"10.0.0.1:http",
		"300.1.1.1",
	} {
		t.Run(given, func(t *testing.T) {
			t.Parallel()
			_, err := model.ParseTarget(given)
			require.ErrorIs(t, err, model.ErrInvalidTarget)
		})
	}
}

func TestTarget_HostPort(t *testing.T) {
	target, err := model.ParseTarget("::1")
	require.NoError(t, err)
	require.Equal(t, "[::1]:554", target.HostPort(554))
	require.Equal(t, "::1", target.String())
}

func TestFingerprint_SetBrand(t *testing.T) {
	var fp model.Fingerprint
	require.False(t, fp.Known())
	require.False(t, fp.SetBrand(model.BrandUnknown))
	require.True(t, fp.SetBrand(model.BrandHikvision))
	require.False(t, fp.SetBrand(model.BrandDahua))
	require.Equal(t, model.BrandHikvision, fp.Brand)
}

func TestParseBrand(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		given string
		then  model.Brand
	}{
		{"Hikvision", model.BrandHikvision},
		{" dahua ", model.BrandDahua},
		{"cp plus", model.BrandCPPlus},
		{"CP-Plus", model.BrandCPPlus},
		{"cp_plus", model.BrandCPPlus},
		{"cpplus", model.BrandCPPlus},
		{"foscam", model.BrandUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.given, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.then, model.ParseBrand(tc.given))
		})
	}

	b, err := json.Marshal(model.Fingerprint{Brand: model.BrandCPPlus})
	require.NoError(t, err)
	require.Contains(t, string(b), `"brand":"cp_plus"`)
}

func TestReport_CVEs(t *testing.T) {
	r := model.Report{
		Fingerprints: []model.Fingerprint{
			{CVEs: []string{"CVE-1", "CVE-2"}},
			{CVEs: []string{"CVE-2", "CVE-3"}},
		},
	}
	require.Equal(t, []string{"CVE-1", "CVE-2", "CVE-3"}, r.CVEs())
}
