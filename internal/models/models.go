package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeviceStatus is the reachability reported by the backend for a device
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// String returns the wire value of the status
func (s DeviceStatus) String() string {
	return string(s)
}

// Device represents a host discovered by the backend's network scan.
// Optional fields are empty (or zero for ID) when the backend omits them.
type Device struct {
	ID       int64        `json:"id,omitempty"`        // Backend row id (0 = absent)
	IP       string       `json:"ip"`                  // Required
	MAC      string       `json:"mac,omitempty"`       // e.g. "aa:bb:cc:dd:ee:ff"
	Hostname string       `json:"hostname,omitempty"`  // Reverse lookup, if any
	Vendor   string       `json:"vendor,omitempty"`    // OUI vendor, if any
	LastSeen string       `json:"last_seen,omitempty"` // ISO-8601, kept verbatim
	Status   DeviceStatus `json:"status"`              // online|offline
}

// IsOnline reports whether the device status is exactly "online".
// Unknown statuses are treated as offline.
func (d Device) IsOnline() bool {
	return d.Status == StatusOnline
}

// DisplayMAC returns the MAC address or "Unknown"
func (d Device) DisplayMAC() string {
	if d.MAC == "" {
		return "Unknown"
	}
	return d.MAC
}

// DisplayHostname returns the hostname or "Unknown"
func (d Device) DisplayHostname() string {
	if d.Hostname == "" {
		return "Unknown"
	}
	return d.Hostname
}

// lastSeenLayouts covers RFC 3339 and the forms produced by Python's
// datetime.isoformat() and str(datetime), which the backend stores verbatim.
var lastSeenLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LastSeenTime parses LastSeen. ok is false when the field is absent or
// not in a recognised layout.
func (d Device) LastSeenTime() (t time.Time, ok bool) {
	if d.LastSeen == "" {
		return time.Time{}, false
	}
	for _, layout := range lastSeenLayouts {
		if parsed, err := time.Parse(layout, d.LastSeen); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Validate checks the invariants the dashboard relies on
func (d Device) Validate() error {
	if strings.TrimSpace(d.IP) == "" {
		return errors.New("device has no IP address")
	}
	return nil
}

// ActiveDeviceCount returns the number of online devices
func ActiveDeviceCount(devices []Device) int {
	n := 0
	for _, d := range devices {
		if d.IsOnline() {
			n++
		}
	}
	return n
}

// RecentDevices returns at most n devices from the head of the list.
// The backend already orders devices by last_seen descending.
func RecentDevices(devices []Device, n int) []Device {
	if n < 0 {
		n = 0
	}
	if len(devices) <= n {
		return devices
	}
	return devices[:n]
}

// NetworkInfo describes the backend host's own network position.
type NetworkInfo struct {
	LocalIP string `json:"local_ip,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	Subnet  string `json:"subnet,omitempty"`
}

// IsZero reports whether nothing has been loaded yet
func (n NetworkInfo) IsZero() bool {
	return n == NetworkInfo{}
}

// SignalTier buckets a Wi-Fi signal percentage for display
type SignalTier int

const (
	SignalWeak SignalTier = iota
	SignalMedium
	SignalStrong
)

// Signal thresholds (percent). A signal must exceed the value to reach the tier.
const (
	StrongSignalThreshold = 70
	MediumSignalThreshold = 40
)

// String returns a human-readable name for the tier
func (t SignalTier) String() string {
	switch t {
	case SignalStrong:
		return "strong"
	case SignalMedium:
		return "medium"
	case SignalWeak:
		return "weak"
	default:
		return fmt.Sprintf("SignalTier(%d)", int(t))
	}
}

// ClassifySignal maps a signal percentage to its tier
func ClassifySignal(signal int) SignalTier {
	switch {
	case signal > StrongSignalThreshold:
		return SignalStrong
	case signal > MediumSignalThreshold:
		return SignalMedium
	default:
		return SignalWeak
	}
}

// WifiNetwork is one access point seen by the backend's Wi-Fi scan
type WifiNetwork struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal"`             // 0-100
	Channel  int    `json:"channel,omitempty"`  // 0 = unknown
	Security string `json:"security,omitempty"` // e.g. "WPA2"
}

// Tier classifies the network's signal strength
func (w WifiNetwork) Tier() SignalTier {
	return ClassifySignal(w.Signal)
}

// ClampedSignal returns Signal limited to 0-100, for bar rendering
func (w WifiNetwork) ClampedSignal() int {
	switch {
	case w.Signal < 0:
		return 0
	case w.Signal > 100:
		return 100
	default:
		return w.Signal
	}
}

// DnsStatus is the outcome of resolving one test domain
type DnsStatus string

const (
	DnsSuccess DnsStatus = "success"
	DnsFailed  DnsStatus = "failed"
)

// DnsResult is one entry of a DNS test batch
type DnsResult struct {
	Domain string    `json:"domain"`
	IP     string    `json:"ip,omitempty"`
	TimeMs *float64  `json:"time_ms,omitempty"`
	Status DnsStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Succeeded reports whether the domain resolved
func (r DnsResult) Succeeded() bool {
	return r.Status == DnsSuccess
}

// Normalize enforces the shape implied by Status: failed entries keep only
// the error, successful entries never carry one.
func (r DnsResult) Normalize() DnsResult {
	if r.Succeeded() {
		r.Error = ""
		return r
	}
	r.IP = ""
	r.TimeMs = nil
	return r
}

// Elapsed returns the resolution time, if reported
func (r DnsResult) Elapsed() (time.Duration, bool) {
	if r.TimeMs == nil {
		return 0, false
	}
	return time.Duration(*r.TimeMs * float64(time.Millisecond)), true
}

// HealthStatus is the body of GET /api/health
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Healthy reports whether the backend declared itself healthy
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// PingResult is the body of GET /api/ping/<ip>
type PingResult struct {
	IP     string       `json:"ip"`
	Status DeviceStatus `json:"status"`
}
