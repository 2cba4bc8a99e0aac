package store

import (
	"time"

	"github.com/muurk/netdiag/internal/models"
)

// Domain names one independently loaded slice of state
type Domain string

const (
	DomainNetworkInfo Domain = "network_info"
	DomainDevices     Domain = "devices"
	DomainWifi        Domain = "wifi"
	DomainDNS         Domain = "dns"
	DomainPing        Domain = "ping"
	DomainHealth      Domain = "health"
)

// Source identifies which producer supplied a device collection
type Source int

const (
	SourceFetch Source = iota
	SourceScan
	SourcePush
	SourcePing
)

// String returns the source name used in logs
func (s Source) String() string {
	switch s {
	case SourceFetch:
		return "fetch"
	case SourceScan:
		return "scan"
	case SourcePush:
		return "push"
	case SourcePing:
		return "ping"
	default:
		return "unknown"
	}
}

// Result is the latest outcome of a dispatch for one domain
type Result struct {
	OK      bool
	Message string // Short failure text; empty on success
	At      time.Time
}

// Notice is a user-visible warning that stays up until dismissed
type Notice struct {
	Domain  Domain
	Title   string
	Message string
}

// Snapshot is an immutable view of the store. Slices and maps are shared
// between snapshots and must not be modified by readers.
type Snapshot struct {
	NetworkInfo  models.NetworkInfo
	Devices      []models.Device
	WifiNetworks []models.WifiNetwork
	DnsResults   []models.DnsResult

	Connected  bool
	Loading    bool
	ActiveView models.View
	LastUpdate time.Time // Zero until the device collection first changes

	Pending map[Domain]int
	Results map[Domain]Result
	Notice  *Notice

	// DeviceSeq is the version stamp of the held device collection
	DeviceSeq uint64
}

// ActiveDevices returns the number of online devices
func (s Snapshot) ActiveDevices() int {
	return models.ActiveDeviceCount(s.Devices)
}

// RecentDevices returns the first n devices
func (s Snapshot) RecentDevices(n int) []models.Device {
	return models.RecentDevices(s.Devices, n)
}

// IsPending reports whether a dispatch for domain is in flight
func (s Snapshot) IsPending(d Domain) bool {
	return s.Pending[d] > 0
}

// Result returns the latest outcome for domain, if any
func (s Snapshot) Result(d Domain) (Result, bool) {
	r, ok := s.Results[d]
	return r, ok
}

// InFlight returns the total number of dispatches in flight
func (s Snapshot) InFlight() int {
	n := 0
	for _, c := range s.Pending {
		n += c
	}
	return n
}
