package model

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Target is the single host a run is pointed at. Port is zero when the
// operator did not ask for an explicit one.
type Target struct {
	Addr netip.Addr `json:"addr"`
	Port int        `json:"port,omitempty"`
}

// ParseTarget accepts "IP", "IP:PORT" and "[IPv6]:PORT".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, fmt.Errorf("empty address: %w", ErrInvalidTarget)
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return Target{Addr: addr.Unmap()}, nil
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Target{}, fmt.Errorf("parse %q: %w", s, ErrInvalidTarget)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return Target{}, fmt.Errorf("parse address %q: %w", host, ErrInvalidTarget)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("port %q must be between 1 and 65535: %w", portStr, ErrInvalidTarget)
	}
	return Target{Addr: addr.Unmap(), Port: port}, nil
}

// Host returns the address in a form usable inside URLs and dial strings.
func (t Target) Host() string {
	if t.Addr.Is6() {
		return "[" + t.Addr.String() + "]"
	}
	return t.Addr.String()
}

// HostPort joins the target address with the given port.
func (t Target) HostPort(port int) string {
	return net.JoinHostPort(t.Addr.String(), strconv.Itoa(port))
}

// Private reports whether OSINT style lookups make no sense for the target.
func (t Target) Private() bool {
	return t.Addr.IsPrivate() || t.Addr.IsLoopback() || t.Addr.IsLinkLocalUnicast() || t.Addr.IsUnspecified()
}

func (t Target) String() string {
	if t.Port == 0 {
		return t.Addr.String()
	}
	return t.HostPort(t.Port)
}
