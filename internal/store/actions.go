package store

import (
	"maps"
	"slices"
	"time"

	"github.com/muurk/netdiag/internal/models"
)

// Action is a named state transition. Only the types in this package
// implement it.
type Action interface {
	// Name is used in logs
	Name() string

	// apply mutates next (a private copy of the current snapshot) and
	// reports whether anything changed.
	apply(next *Snapshot, env *env) bool
}

// env is what an action may consult while applying
type env struct {
	now    func() time.Time
	policy MergePolicy

	// deviceSeq is the newest stamp any device update carried, including
	// updates that left the collection unchanged
	deviceSeq uint64
}

// SetConnected records a push link transition. Held collections are untouched.
type SetConnected struct {
	Connected bool
}

func (SetConnected) Name() string { return "set_connected" }

func (a SetConnected) apply(s *Snapshot, _ *env) bool {
	if s.Connected == a.Connected {
		return false
	}
	s.Connected = a.Connected
	return true
}

// DispatchStarted marks one dispatch for Domain as in flight
type DispatchStarted struct {
	Domain Domain
}

func (DispatchStarted) Name() string { return "dispatch_started" }

func (a DispatchStarted) apply(s *Snapshot, _ *env) bool {
	s.Pending = maps.Clone(s.Pending)
	if s.Pending == nil {
		s.Pending = make(map[Domain]int)
	}
	s.Pending[a.Domain]++
	s.Loading = true
	return true
}

// DispatchFinished marks one dispatch for Domain as resolved.
// Unmatched finishes are ignored so the counter never goes negative.
type DispatchFinished struct {
	Domain Domain
}

func (DispatchFinished) Name() string { return "dispatch_finished" }

func (a DispatchFinished) apply(s *Snapshot, _ *env) bool {
	if s.Pending[a.Domain] == 0 {
		return false
	}
	s.Pending = maps.Clone(s.Pending)
	s.Pending[a.Domain]--
	if s.Pending[a.Domain] == 0 {
		delete(s.Pending, a.Domain)
	}
	s.Loading = s.InFlight() > 0
	return true
}

// ReplaceNetworkInfo replaces the network info
type ReplaceNetworkInfo struct {
	Info models.NetworkInfo
}

func (ReplaceNetworkInfo) Name() string { return "replace_network_info" }

func (a ReplaceNetworkInfo) apply(s *Snapshot, _ *env) bool {
	if s.NetworkInfo == a.Info {
		return false
	}
	s.NetworkInfo = a.Info
	return true
}

// ReplaceDevices replaces the whole device collection.
// Seq should come from Store.NextSeq, taken when the producer started.
type ReplaceDevices struct {
	Devices []models.Device
	Source  Source
	Seq     uint64
}

func (ReplaceDevices) Name() string { return "replace_devices" }

func (a ReplaceDevices) apply(s *Snapshot, e *env) bool {
	if e.policy == MergeVersioned && a.Seq < e.deviceSeq {
		return false
	}
	e.deviceSeq = max(e.deviceSeq, a.Seq)

	devices := a.Devices
	if devices == nil {
		devices = []models.Device{}
	}
	// An identical collection leaves the snapshot untouched, stamp included
	if s.Devices != nil && slices.Equal(s.Devices, devices) {
		return false
	}

	s.Devices = slices.Clone(devices)
	s.DeviceSeq = max(s.DeviceSeq, a.Seq)
	s.LastUpdate = e.now()
	return true
}

// ReplaceWifi replaces the Wi-Fi network list
type ReplaceWifi struct {
	Networks []models.WifiNetwork
}

func (ReplaceWifi) Name() string { return "replace_wifi" }

func (a ReplaceWifi) apply(s *Snapshot, _ *env) bool {
	networks := a.Networks
	if networks == nil {
		networks = []models.WifiNetwork{}
	}
	if s.WifiNetworks != nil && slices.Equal(s.WifiNetworks, networks) {
		return false
	}
	s.WifiNetworks = slices.Clone(networks)
	return true
}

// ReplaceDNS replaces the DNS results. Entries are normalized on the way in.
type ReplaceDNS struct {
	Results []models.DnsResult
}

func (ReplaceDNS) Name() string { return "replace_dns" }

func (a ReplaceDNS) apply(s *Snapshot, _ *env) bool {
	results := make([]models.DnsResult, len(a.Results))
	for i, r := range a.Results {
		results[i] = r.Normalize()
	}
	if s.DnsResults != nil && slices.EqualFunc(s.DnsResults, results, dnsEqual) {
		return false
	}
	s.DnsResults = results
	return true
}

func dnsEqual(a, b models.DnsResult) bool {
	if a.Domain != b.Domain || a.IP != b.IP || a.Status != b.Status || a.Error != b.Error {
		return false
	}
	if (a.TimeMs == nil) != (b.TimeMs == nil) {
		return false
	}
	return a.TimeMs == nil || *a.TimeMs == *b.TimeMs
}

// RecordSuccess stores a successful outcome for Domain
type RecordSuccess struct {
	Domain Domain
}

func (RecordSuccess) Name() string { return "record_success" }

func (a RecordSuccess) apply(s *Snapshot, e *env) bool {
	s.Results = maps.Clone(s.Results)
	if s.Results == nil {
		s.Results = make(map[Domain]Result)
	}
	s.Results[a.Domain] = Result{OK: true, At: e.now()}
	return true
}

// RecordFailure stores a failed outcome for Domain. The held data for the
// domain is left as it was.
type RecordFailure struct {
	Domain  Domain
	Message string
}

func (RecordFailure) Name() string { return "record_failure" }

func (a RecordFailure) apply(s *Snapshot, e *env) bool {
	s.Results = maps.Clone(s.Results)
	if s.Results == nil {
		s.Results = make(map[Domain]Result)
	}
	s.Results[a.Domain] = Result{OK: false, Message: a.Message, At: e.now()}
	return true
}

// SetView switches the active tab
type SetView struct {
	View models.View
}

func (SetView) Name() string { return "set_view" }

func (a SetView) apply(s *Snapshot, _ *env) bool {
	if s.ActiveView == a.View {
		return false
	}
	s.ActiveView = a.View
	return true
}

// RaiseNotice shows a warning, replacing any current one
type RaiseNotice struct {
	Notice Notice
}

func (RaiseNotice) Name() string { return "raise_notice" }

func (a RaiseNotice) apply(s *Snapshot, _ *env) bool {
	n := a.Notice
	s.Notice = &n
	return true
}

// DismissNotice clears the current warning
type DismissNotice struct{}

func (DismissNotice) Name() string { return "dismiss_notice" }

func (DismissNotice) apply(s *Snapshot, _ *env) bool {
	if s.Notice == nil {
		return false
	}
	s.Notice = nil
	return true
}
