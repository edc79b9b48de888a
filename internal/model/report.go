package model

import (
	"time"
)

// CameraVerdict is the camera classifier output.
type CameraVerdict struct {
	Camera   bool     `json:"camera"`
	Evidence []string `json:"evidence,omitempty"`
}

// LoginPage is an endpoint answering with 200, 401 or 403.
type LoginPage struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
}

// Report is everything a single run found. Nil sections were not executed.
type Report struct {
	ID           string            `json:"id"`
	Target       Target            `json:"target"`
	Private      bool              `json:"private"`
	Started      time.Time         `json:"started"`
	Elapsed      Duration          `json:"elapsed"`
	Scan         ScanResult        `json:"scan"`
	Camera       *CameraVerdict    `json:"camera,omitempty"`
	Skipped      bool              `json:"skipped,omitempty"`
	LoginPages   []LoginPage       `json:"login_pages,omitempty"`
	Fingerprints []Fingerprint     `json:"fingerprints,omitempty"`
	Credentials  *CredentialResult `json:"credentials,omitempty"`
	Streams      *StreamResult     `json:"streams,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// CVEs returns the union of CVE identifiers over all fingerprints in
// first seen order.
func (r Report) CVEs() []string {
	seen := make(map[string]struct{})
	var ret []string
	for _, fp := range r.Fingerprints {
		for _, cve := range fp.CVEs {
			if _, ok := seen[cve]; ok {
				continue
			}
			seen[cve] = struct{}{}
			ret = append(ret, cve)
		}
	}
	return ret
}
