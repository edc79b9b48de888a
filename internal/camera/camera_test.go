package camera_test

import (
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/CZERTAINLY/camseeker/internal/camera"
	"github.com/CZERTAINLY/camseeker/internal/catalog"
	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/web"
	"github.com/stretchr/testify/require"
)

var loopback = model.Target{Addr: netip.MustParseAddr("127.0.0.1")}

func newClassifier() camera.Classifier {
	cfg := model.DefaultConfig()
	cat := catalog.Default()
	return camera.New(web.New(cfg.HTTP, cat), cat, 10)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    []int
		camera   bool
		contains []string
	}{
		{
			scenario: "hikvision server",
			given:    []int{hikPort},
			camera:   true,
			contains: []string{
				"HIKVISION camera server detected (app-webs/hikvision)",
				"camera content type text/html",
				"DVR/NVR page title: network video recorder",
				"login form detected",
				"(HTTP 403)",
			},
		},
		{
			scenario: "auth challenge",
			given:    []int{authPort},
			camera:   true,
			contains: []string{`authentication required (Digest realm="DS-2CD2042FWD")`, "(HTTP 401)"},
		},
		{
			scenario: "plain server",
			given:    []int{plainPort},
			camera:   false,
		},
		{
			scenario: "nothing open",
			given:    nil,
			camera:   false,
		},
	}

	c := newClassifier()
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			verdict := c.Classify(t.Context(), loopback, tc.given)
			require.Equal(t, tc.camera, verdict.Camera)
			if !tc.camera {
				require.Empty(t, verdict.Evidence)
			}
			for _, want := range tc.contains {
				require.True(t, containsSubstring(verdict.Evidence, want), "missing evidence %q in %v", want, verdict.Evidence)
			}
		})
	}
}

func TestClassify_EvidenceOrder(t *testing.T) {
	t.Parallel()
	verdict := newClassifier().Classify(t.Context(), loopback, []int{authPort, hikPort})
	require.True(t, verdict.Camera)
	first, last := min(authPort, hikPort), max(authPort, hikPort)
	require.Contains(t, verdict.Evidence[0], "port "+strconv.Itoa(first)+":")
	require.Contains(t, verdict.Evidence[len(verdict.Evidence)-1], "port "+strconv.Itoa(last)+":")
}

func TestLoginPages(t *testing.T) {
	t.Parallel()
	pages := newClassifier().LoginPages(t.Context(), loopback, []int{hikPort, plainPort})

	base := "http://127.0.0.1:" + strconv.Itoa(hikPort)
	require.Equal(t, []model.LoginPage{
		{URL: base + "/", Status: 200},
		{URL: base + "/admin", Status: 403},
	}, pages)
}

func containsSubstring(ss []string, sub string) bool {
	return slices.ContainsFunc(ss, func(s string) bool {
		return strings.Contains(s, sub)
	})
}
