package model

// ProtocolRTSP is the service label given to ports confirmed by an RTSP
// handshake, regardless of the port number.
const (
	ProtocolRTSP    = "RTSP"
	ProtocolUnknown = "Unknown Service"
)

// PortResult describes one open TCP port. It is created once by the
// scanner and never mutated afterwards, except by the optional nmap
// enrichment which fills Product, Version and Methods before the result is shared.
type PortResult struct {
	Port        int    `json:"port"`
	Open        bool   `json:"open"`
	RTSP        bool   `json:"rtsp"`
	Protocol    string `json:"protocol"`
	Description string `json:"description,omitempty"`
	StreamURL   string `json:"stream_url,omitempty"`
	Product     string `json:"product,omitempty"`
	Version     string `json:"version,omitempty"`
	Methods     string `json:"methods,omitempty"` // RTSP methods reported by nmap
}

// ServiceInfo is one entry of the static port to service catalog.
type ServiceInfo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// ScanResult is the output of the port scanner. Both slices are sorted
// in ascending port order.
type ScanResult struct {
	Open      []PortResult `json:"open"`
	RTSPPorts []int        `json:"rtsp_ports"`
	Scanned   int          `json:"scanned"`
}

// OpenPorts returns port numbers of all open ports.
func (r ScanResult) OpenPorts() []int {
	ret := make([]int, 0, len(r.Open))
	for _, p := range r.Open {
		ret = append(ret, p.Port)
	}
	return ret
}
