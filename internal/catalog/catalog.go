// Package catalog holds the static, read-only reference tables: port
// candidates, service names, default credentials, probe paths and the CVE
// table. The tables are decoded once from the embedded catalog.yaml.
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/model"

	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed catalog.yaml
var catalogSource []byte

var def *Catalog

func init() {
	if len(catalogSource) == 0 {
		panic("variable catalogSource is empty")
	}
	c, err := Load(bytes.NewReader(catalogSource))
	if err != nil {
		panic(err)
	}
	def = c
}

// Default returns the embedded catalog. Callers must treat it as read-only.
func Default() *Catalog {
	return def
}

type Catalog struct {
	Ports       PortList                  `yaml:"ports"`
	HTTPSPorts  PortList                  `yaml:"https_ports"`
	Services    map[int]model.ServiceInfo `yaml:"services"`
	LoginPaths  []string                  `yaml:"login_paths"`
	Credentials Credentials               `yaml:"credentials"`
	Camera      Camera                    `yaml:"camera"`
	Fingerprint Fingerprint               `yaml:"fingerprint"`
	Streams     Streams                   `yaml:"streams"`
}

// BrandKeywords is an ordered keyword list for one vendor.
type BrandKeywords struct {
	Brand    string   `yaml:"brand"`
	Keywords []string `yaml:"keywords"`
}

// Match returns the first keyword found in the lowercase text s.
func (b BrandKeywords) Match(s string) (string, bool) {
	return ContainsAny(s, b.Keywords)
}

type UserPasswords struct {
	Username  string   `yaml:"username"`
	Passwords []string `yaml:"passwords"`
}

type Credentials struct {
	RTSPPorts PortList           `yaml:"rtsp_ports"`
	WebPorts  PortList           `yaml:"web_ports"`
	Priority  []model.Credential `yaml:"priority"`
	Table     []UserPasswords    `yaml:"table"`
}

// All flattens the default table preserving its order.
func (c Credentials) All() []model.Credential {
	var ret []model.Credential
	for _, up := range c.Table {
		for _, p := range up.Passwords {
			ret = append(ret, model.Credential{Username: up.Username, Password: p})
		}
	}
	return ret
}

// Remainder is the flattened table without pairs from the priority list.
func (c Credentials) Remainder() []model.Credential {
	all := c.All()
	return slices.DeleteFunc(all, func(cred model.Credential) bool {
		return slices.Contains(c.Priority, cred)
	})
}

type Camera struct {
	Servers       []BrandKeywords `yaml:"servers"`
	ContentTypes  []string        `yaml:"content_types"`
	BodyKeywords  []string        `yaml:"body_keywords"`
	CPPlusTokens  []string        `yaml:"cpplus_tokens"`
	CPPlusModels  []string        `yaml:"cpplus_models"`
	Endpoints     []string        `yaml:"endpoints"`
	TitleKeywords []string        `yaml:"title_keywords"`
	LoginMarkers  []string        `yaml:"login_markers"`
}

type Fingerprint struct {
	CVEs          map[model.Brand][]string `yaml:"cves"`
	CPPlusPaths   []string                 `yaml:"cpplus_paths"`
	GenericPaths  []string                 `yaml:"generic_paths"`
	BrandKeywords []BrandKeywords          `yaml:"brand_keywords"`
	Sniff         []BrandKeywords          `yaml:"sniff"`
}

type Streams struct {
	RTSPPorts    PortList                 `yaml:"rtsp_ports"`
	RTMPPorts    PortList                 `yaml:"rtmp_ports"`
	HTTPPorts    PortList                 `yaml:"http_ports"`
	HTTPSPorts   PortList                 `yaml:"https_ports"`
	MMSPorts     PortList                 `yaml:"mms_ports"`
	ONVIFPorts   PortList                 `yaml:"onvif_ports"`
	RTSPBrands   []model.Brand            `yaml:"rtsp_brands"`
	SuggestPorts PortList                 `yaml:"suggest_ports"`
	SuggestPaths []string                 `yaml:"suggest_paths"`
	BrandPaths   map[model.Brand][]string `yaml:"brand_paths"`
	RTSPPaths    []string                 `yaml:"rtsp_paths"`
	RTMPPaths    []string                 `yaml:"rtmp_paths"`
	HTTPPaths    []string                 `yaml:"http_paths"`
	ONVIFPath    string                   `yaml:"onvif_path"`
	ContentHints []string                 `yaml:"content_hints"`
	Extensions   []string                 `yaml:"extensions"`
	PathHints    []string                 `yaml:"path_hints"`
}

// Load decodes a catalog document. Port lists and path lists are
// deduplicated preserving the first occurrence.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(c.Ports) == 0 {
		return nil, fmt.Errorf("catalog: empty port list")
	}

	c.Ports = Dedup(c.Ports)
	c.LoginPaths = Dedup(c.LoginPaths)
	c.Streams.RTSPPaths = Dedup(c.Streams.RTSPPaths)
	c.Streams.RTMPPaths = Dedup(c.Streams.RTMPPaths)
	c.Streams.HTTPPaths = Dedup(c.Streams.HTTPPaths)
	return &c, nil
}

// ScanPorts returns the port candidate set: the catalog followed by extra
// ports not already present.
func (c *Catalog) ScanPorts(extra ...int) []int {
	ret := make([]int, 0, len(c.Ports)+len(extra))
	ret = append(ret, c.Ports...)
	ret = append(ret, extra...)
	return Dedup(ret)
}

// Scheme returns "https" for the known TLS ports and "http" otherwise.
func (c *Catalog) Scheme(port int) string {
	if slices.Contains(c.HTTPSPorts, port) {
		return "https"
	}
	return "http"
}

// Service labels an open port. RTSP confirmed ports are labelled by
// behavior, all others by the static service table.
func (c *Catalog) Service(port int, rtsp bool) model.ServiceInfo {
	if rtsp {
		if port == 554 {
			return model.ServiceInfo{Name: model.ProtocolRTSP, Description: "Real-Time Streaming Protocol"}
		}
		return model.ServiceInfo{Name: model.ProtocolRTSP, Description: "Non-standard port"}
	}
	if s, ok := c.Services[port]; ok {
		return s
	}
	return model.ServiceInfo{Name: model.ProtocolUnknown}
}

// CVEs returns the CVE identifiers known for brand, nil if there are none.
func (c *Catalog) CVEs(brand model.Brand) []string {
	return slices.Clone(c.Fingerprint.CVEs[brand])
}

// Dedup removes repeated elements keeping the first occurrence.
func Dedup[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	ret := make([]T, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return ret
}

// ContainsAny returns the first needle contained in s.
func ContainsAny(s string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return n, true
		}
	}
	return "", false
}

// PortList is a list of TCP ports, written in YAML as a sequence of
// numbers and "from-to" ranges.
type PortList []int

func (p *PortList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: port list must be a sequence", value.Line)
	}
	var ret []int
	for _, n := range value.Content {
		ports, err := ParsePorts(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		ret = append(ret, ports...)
	}
	*p = ret
	return nil
}

// ParsePorts parses "22,80,8000-8100" into an ordered list of ports.
func ParsePorts(spec string) ([]int, error) {
	var ret []int
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		lo, err := parsePort(from)
		if err != nil {
			return nil, err
		}
		hi := lo
		if isRange {
			hi, err = parsePort(to)
			if err != nil {
				return nil, err
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
		}
		for port := lo; port <= hi; port++ {
			ret = append(ret, port)
		}
	}
	return ret, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
