package model

import (
	"fmt"
	"io"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"

	FormatText = "text"
	FormatJSON = "json"
	FormatCDX  = "cdx"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version     int               `json:"version" yaml:"version"` // fixed 0 for now
	Scan        Scan              `json:"scan" yaml:"scan"`
	HTTP        HTTP              `json:"http" yaml:"http"`
	Fingerprint FingerprintConfig `json:"fingerprint" yaml:"fingerprint"`
	Credentials Credentials       `json:"credentials" yaml:"credentials"`
	Login       Login             `json:"login" yaml:"login"`
	Streams     Streams           `json:"streams" yaml:"streams"`
	Nmap        Nmap              `json:"nmap" yaml:"nmap"`
	Service     Service           `json:"service" yaml:"service"`
}

// Scan configures the TCP connect scanner.
type Scan struct {
	Workers     int      `json:"workers" yaml:"workers"`
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout"`
	RTSPTimeout Duration `json:"rtsp_timeout" yaml:"rtsp_timeout"`
	Ports       string   `json:"ports" yaml:"ports"` // "22,80,8000-8100", empty => built-in catalog
}

type HTTP struct {
	Timeout   Duration `json:"timeout" yaml:"timeout"`
	UserAgent string   `json:"user_agent" yaml:"user_agent"`
}

// FingerprintConfig configures the brand fingerprinter and the quick sniff.
type FingerprintConfig struct {
	Workers      int      `json:"workers" yaml:"workers"`
	SniffPorts   int      `json:"sniff_ports" yaml:"sniff_ports"`
	SniffTimeout Duration `json:"sniff_timeout" yaml:"sniff_timeout"`
}

// Credentials configures the default credential engine.
type Credentials struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Workers        int      `json:"workers" yaml:"workers"`
	Budget         Duration `json:"budget" yaml:"budget"`
	PhaseTwoCutoff float64  `json:"phase_two_cutoff" yaml:"phase_two_cutoff"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`
	JoinTimeout    Duration `json:"join_timeout" yaml:"join_timeout"`
	WebPortCap     int      `json:"web_port_cap" yaml:"web_port_cap"`
	PhaseTwoLimit  int      `json:"phase_two_limit" yaml:"phase_two_limit"`
	PhaseTwoPorts  int      `json:"phase_two_ports" yaml:"phase_two_ports"`
	ProgressEvery  int      `json:"progress_every" yaml:"progress_every"`
}

// Login configures the login page checker.
type Login struct {
	Workers int `json:"workers" yaml:"workers"`
}

type Streams struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	Workers        int  `json:"workers" yaml:"workers"`
	SuggestPerPort int  `json:"suggest_per_port" yaml:"suggest_per_port"`
}

// Nmap enables optional service version enrichment of open ports.
type Nmap struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Binary  string `json:"binary" yaml:"binary"` // path or name, empty => nmap from $PATH
}

type Service struct {
	Verbose   bool   `json:"verbose" yaml:"verbose"`
	LogFormat string `json:"log_format" yaml:"log_format"` // "json" | "text"
	Format    string `json:"format" yaml:"format"`         // "text" | "json" | "cdx"
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("camseeker.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// DefaultConfig returns the configuration with all schema defaults applied.
func DefaultConfig() Config {
	cfg, err := LoadConfig(strings.NewReader("version: 0\n"))
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}
