// Package model holds the scanforge result data model (spec.md §3),
// generalized from the teacher's pkg/modules/scan.PortStatusInfo into the
// full Target/PortResult/HostScanResult/MultiHostScanResult hierarchy.
package model

import (
	"net"
	"time"
)

// Target is an address plus an optional display form, as produced by
// pkg/target expansion. Lifecycle: created by expansion, discarded once the
// containing scan result is released.
type Target struct {
	Address net.IP
	Display string // original hostname, or "" if the token was already an address
}

// String returns the form a renderer should show: the hostname if one was
// supplied, otherwise the address.
func (t Target) String() string {
	if t.Display != "" {
		return t.Display
	}
	return t.Address.String()
}

// PortStatus is the four-valued classification spec.md §4.2 assigns to a
// (target, port) pair.
type PortStatus string

const (
	StatusOpen     PortStatus = "open"
	StatusClosed   PortStatus = "closed"
	StatusFiltered PortStatus = "filtered"
	StatusError    PortStatus = "error"
)

// ScanKind names the probe family selected for a scan (spec.md Glossary).
type ScanKind string

const (
	ScanConnect ScanKind = "connect"
	ScanSYN     ScanKind = "syn"
	ScanFIN     ScanKind = "fin"
	ScanXMAS    ScanKind = "xmas"
	ScanNULL    ScanKind = "null"
	ScanUDP     ScanKind = "udp"
)

// ServiceInfo is the optional service-identification record attached to an
// Open PortResult (spec.md §3/§4.5).
type ServiceInfo struct {
	Name       string            `json:"name"`
	Version    string            `json:"version,omitempty"`
	Banner     string            `json:"banner,omitempty"`
	Confidence float64           `json:"confidence"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// PortResult is the outcome of one probe against one port.
//
// Invariant: Service is non-nil only if Status == StatusOpen.
type PortResult struct {
	Port           uint16       `json:"port"`
	Status         PortStatus   `json:"status"`
	ResponseTimeMS *float64     `json:"response_time_ms,omitempty"`
	Service        *ServiceInfo `json:"service,omitempty"`
}

// HostScanResult is the ordered port-result sequence for one host.
//
// Invariant: Ports is ordered by ascending port number and each port
// appears once (spec.md §3).
type HostScanResult struct {
	TargetDisplay string       `json:"target_display"`
	Address       net.IP       `json:"address"`
	ScanKind      ScanKind     `json:"scan_kind"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
	Ports         []PortResult `json:"ports"`
}

// MultiHostScanResult is the final report surfaced to the external
// renderer (spec.md §6).
type MultiHostScanResult struct {
	RunID      string           `json:"run_id"`
	TargetSpec string           `json:"target_spec"`
	ScanKind   ScanKind         `json:"scan_kind"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    time.Time        `json:"ended_at"`
	TotalHosts int              `json:"total_hosts"`
	TotalPorts int              `json:"total_ports"`
	Hosts      []HostScanResult `json:"hosts"`
}

// NetworkClass tags an address with the network-topology bucket the
// adaptive controller (pkg/adaptive) keys profiles by (spec.md §4.4).
type NetworkClass string

const (
	ClassLoopback  NetworkClass = "loopback"
	ClassLinkLocal NetworkClass = "link_local"
	ClassPrivate   NetworkClass = "private"
	ClassPublic    NetworkClass = "public"
)
