package model_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
scan:
  workers: 20
  dial_timeout: 500ms
  ports: "80,554,8000-8010"
credentials:
  budget: 30s
  phase_two_cutoff: 0.5
nmap:
  enabled: true
  binary: /usr/local/bin/nmap
service:
  verbose: true
  format: cdx
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Scan.Workers)
	require.Equal(t, 500*time.Millisecond, cfg.Scan.DialTimeout.Std())
	require.Equal(t, 2*time.Second, cfg.Scan.RTSPTimeout.Std())
	require.Equal(t, "80,554,8000-8010", cfg.Scan.Ports)
	require.Equal(t, 30*time.Second, cfg.Credentials.Budget.Std())
	require.Equal(t, 0.5, cfg.Credentials.PhaseTwoCutoff)
	require.True(t, cfg.Credentials.Enabled)
	require.True(t, cfg.Nmap.Enabled)
	require.Equal(t, "/usr/local/bin/nmap", cfg.Nmap.Binary)
	require.True(t, cfg.Service.Verbose)
	require.Equal(t, model.FormatCDX, cfg.Service.Format)
	require.Equal(t, model.LogFormatJSON, cfg.Service.LogFormat)
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	require.Equal(t, 0, cfg.Version)
	require.Equal(t, 100, cfg.Scan.Workers)
	require.Equal(t, 1500*time.Millisecond, cfg.Scan.DialTimeout.Std())
	require.Equal(t, 5*time.Second, cfg.HTTP.Timeout.Std())
	require.Contains(t, cfg.HTTP.UserAgent, "Chrome/58.0.3029.110")
	require.Equal(t, 10, cfg.Fingerprint.Workers)
	require.Equal(t, 5, cfg.Fingerprint.SniffPorts)
	require.Equal(t, 30, cfg.Credentials.Workers)
	require.Equal(t, 120*time.Second, cfg.Credentials.Budget.Std())
	require.Equal(t, 0.7, cfg.Credentials.PhaseTwoCutoff)
	require.Equal(t, 10, cfg.Credentials.WebPortCap)
	require.Equal(t, 30, cfg.Credentials.PhaseTwoLimit)
	require.Equal(t, 3, cfg.Credentials.PhaseTwoPorts)
	require.Equal(t, 20, cfg.Credentials.ProgressEvery)
	require.Equal(t, 30, cfg.Streams.Workers)
	require.Equal(t, 50, cfg.Login.Workers)
	require.Equal(t, 5, cfg.Streams.SuggestPerPort)
	require.False(t, cfg.Nmap.Enabled)
	require.Equal(t, model.FormatText, cfg.Service.Format)
}

func TestDefaultConfig_RoundTrip(t *testing.T) {
	cfg := model.DefaultConfig()
	var sb strings.Builder
	require.NoError(t, yaml.NewEncoder(&sb).Encode(cfg))
	require.Contains(t, sb.String(), "dial_timeout: 1.5s")

	again, err := model.LoadConfig(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{
			scenario: "workers out of bound",
			given:    "version: 0\nscan:\n  workers: 0\n",
			then:     "scan.workers",
		},
		{
			scenario: "bad duration",
			given:    "version: 0\nscan:\n  dial_timeout: soon\n",
			then:     "scan.dial_timeout",
		},
		{
			scenario: "unknown field",
			given:    "version: 0\nfoo: bar\n",
			then:     "foo",
		},
		{
			scenario: "unsupported version",
			given:    "version: 1\n",
			then:     "version",
		},
		{
			scenario: "invalid format",
			given:    "version: 0\nservice:\n  format: xml\n",
			then:     "service.format",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			require.ErrorContains(t, err, tc.then)

			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
		})
	}
}

func TestCueErrorDetail_Attr(t *testing.T) {
	t.Parallel()
	_, err := model.LoadConfig(strings.NewReader("version: 0\nscan:\n  workers: 0\n"))
	require.Error(t, err)
	details := model.CueErrDetails(err)
	require.NotEmpty(t, details)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Error(details[0].Message, details[0].Attr("detail"))

	var record struct {
		Msg    string `json:"msg"`
		Detail struct {
			Code string `json:"code"`
			Path string `json:"path"`
			Line int    `json:"line"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, details[0].Message, record.Msg)
	require.Equal(t, details[0].Path, record.Detail.Path)
	require.Equal(t, details[0].Code, record.Detail.Code)
	require.Equal(t, details[0].Pos.Line, record.Detail.Line)
}
