package model

import (
	"strings"
)

// Brand is the vendor a fingerprint resolved to.
type Brand string

const (
	BrandUnknown   Brand = "unknown"
	BrandHikvision Brand = "hikvision"
	BrandDahua     Brand = "dahua"
	BrandAxis      Brand = "axis"
	BrandCPPlus    Brand = "cp_plus"
	BrandSony      Brand = "sony"
	BrandPanasonic Brand = "panasonic"
)

// ParseBrand maps a free form vendor name to a Brand.
func ParseBrand(s string) Brand {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hikvision":
		return BrandHikvision
	case "dahua":
		return BrandDahua
	case "axis":
		return BrandAxis
	case "cp plus", "cp_plus", "cpplus", "cp-plus":
		return BrandCPPlus
	case "sony":
		return BrandSony
	case "panasonic":
		return BrandPanasonic
	default:
		return BrandUnknown
	}
}

// Fingerprint is built incrementally for one port. Once Brand is set to
// something other than BrandUnknown it is never changed.
type Fingerprint struct {
	Port     int      `json:"port"`
	URL      string   `json:"url"`
	Brand    Brand    `json:"brand"`
	Model    string   `json:"model,omitempty"`
	Firmware string   `json:"firmware,omitempty"`
	CVEs     []string `json:"cves,omitempty"`
	Notes    []string `json:"notes,omitempty"`
	Reached  bool     `json:"reached"`
}

// SetBrand assigns brand only when no brand was set yet and reports
// whether the assignment happened.
func (f *Fingerprint) SetBrand(b Brand) bool {
	if b == BrandUnknown || (f.Brand != "" && f.Brand != BrandUnknown) {
		return false
	}
	f.Brand = b
	return true
}

func (f *Fingerprint) Note(s string) {
	f.Notes = append(f.Notes, s)
}

func (f Fingerprint) Known() bool {
	return f.Brand != "" && f.Brand != BrandUnknown
}
