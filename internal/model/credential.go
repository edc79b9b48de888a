package model

import (
	"fmt"
)

// Credential is a username/password pair from the default credential tables.
type Credential struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

func (c Credential) String() string {
	return fmt.Sprintf("%s:%s", c.Username, c.Password)
}

// AuthKind says how a credential was presented to an endpoint.
type AuthKind string

const (
	AuthHTTPBasic AuthKind = "http-basic"
	AuthHTTPForm  AuthKind = "http-form"
	AuthRTSPBasic AuthKind = "rtsp-basic"
)

// TrialOutcome is a single credential attempt against an endpoint.
type TrialOutcome struct {
	Endpoint   string     `json:"endpoint"`
	Kind       AuthKind   `json:"kind"`
	Credential Credential `json:"credential"`
	Success    bool       `json:"success"`
}

// CredentialResult summarizes a credential engine run. Found is set only
// for the first successful trial.
type CredentialResult struct {
	Found     *TrialOutcome `json:"found,omitempty"`
	Attempts  int           `json:"attempts"`
	Elapsed   Duration      `json:"elapsed"`
	TimedOut  bool          `json:"timed_out"`
	RTSPPorts []int         `json:"rtsp_ports"`
	WebPorts  []int         `json:"web_ports"`
}

func (r CredentialResult) Success() bool {
	return r.Found != nil
}
