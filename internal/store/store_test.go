package store

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/muurk/netdiag/internal/models"
)

// fakeClock advances one second per call
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var (
	twoDevices = []models.Device{
		{IP: "192.168.1.2", Status: models.StatusOnline},
		{IP: "192.168.1.3", Status: models.StatusOffline},
	}
	oneDevice = []models.Device{
		{IP: "192.168.1.9", Status: models.StatusOnline},
	}
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	snap := s.Snapshot()

	if snap.ActiveView != models.ViewDashboard {
		t.Errorf("ActiveView = %q, want dashboard", snap.ActiveView)
	}
	if snap.Loading || snap.Connected {
		t.Errorf("Loading = %v, Connected = %v; want both false", snap.Loading, snap.Connected)
	}
	if !snap.LastUpdate.IsZero() {
		t.Errorf("LastUpdate = %v, want zero", snap.LastUpdate)
	}
	if s.Policy() != MergeLastWriteWins {
		t.Errorf("Policy() = %v, want last-write-wins", s.Policy())
	}

	s = New(WithInitialView(models.ViewWifi), WithMergePolicy(MergeVersioned))
	if s.Snapshot().ActiveView != models.ViewWifi || s.Policy() != MergeVersioned {
		t.Errorf("options not applied: view %q policy %v", s.Snapshot().ActiveView, s.Policy())
	}
}

func TestLoading_InFlightCounter(t *testing.T) {
	s := New()

	s.Dispatch(DispatchStarted{Domain: DomainDevices})
	s.Dispatch(DispatchStarted{Domain: DomainWifi})
	if !s.Snapshot().Loading {
		t.Fatal("Loading = false with two dispatches in flight")
	}

	s.Dispatch(DispatchFinished{Domain: DomainDevices})
	snap := s.Snapshot()
	if !snap.Loading {
		t.Error("Loading = false while the wifi scan is still in flight")
	}
	if snap.IsPending(DomainDevices) || !snap.IsPending(DomainWifi) {
		t.Errorf("Pending = %v, want only wifi", snap.Pending)
	}

	s.Dispatch(DispatchFinished{Domain: DomainWifi})
	if s.Snapshot().Loading {
		t.Error("Loading = true after every dispatch finished")
	}
}

func TestLoading_UnmatchedFinishIgnored(t *testing.T) {
	s := New()
	if s.Dispatch(DispatchFinished{Domain: DomainDNS}) {
		t.Error("unmatched DispatchFinished reported a change")
	}
	s.Dispatch(DispatchStarted{Domain: DomainDNS})
	s.Dispatch(DispatchFinished{Domain: DomainDNS})
	s.Dispatch(DispatchFinished{Domain: DomainDNS})
	if got := s.Snapshot().InFlight(); got != 0 {
		t.Errorf("InFlight() = %d, want 0", got)
	}
}

func TestReplaceDevices_Idempotent(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	notified := 0
	s.Subscribe(func(Snapshot) { notified++ })

	action := ReplaceDevices{Devices: twoDevices, Source: SourceFetch, Seq: s.NextSeq()}
	if !s.Dispatch(action) {
		t.Fatal("first ReplaceDevices reported no change")
	}
	first := s.Snapshot()

	if s.Dispatch(action) {
		t.Error("second identical ReplaceDevices reported a change")
	}
	second := s.Snapshot()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("state changed on repeated apply:\n first = %+v\nsecond = %+v", first, second)
	}
	if notified != 1 {
		t.Errorf("subscribers notified %d times, want 1", notified)
	}
}

func TestReplaceDevices_StampsOnlyOnValueChange(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	s.Dispatch(ReplaceDevices{Devices: twoDevices, Source: SourceFetch, Seq: s.NextSeq()})
	stamped := s.Snapshot().LastUpdate
	if stamped.IsZero() {
		t.Fatal("LastUpdate not stamped on first load")
	}

	// Same collection from a later producer leaves the snapshot identical.
	before := s.Snapshot()
	notified := 0
	unsubscribe := s.Subscribe(func(Snapshot) { notified++ })
	same := append([]models.Device(nil), twoDevices...)
	if s.Dispatch(ReplaceDevices{Devices: same, Source: SourceScan, Seq: s.NextSeq()}) {
		t.Error("equal collection reported a change")
	}
	unsubscribe()
	after := s.Snapshot()
	if notified != 0 {
		t.Errorf("subscribers notified %d times for an equal collection", notified)
	}
	if !after.LastUpdate.Equal(stamped) {
		t.Errorf("LastUpdate moved on equal collection: %v -> %v", stamped, after.LastUpdate)
	}
	if after.DeviceSeq != before.DeviceSeq {
		t.Errorf("DeviceSeq = %d, want %d", after.DeviceSeq, before.DeviceSeq)
	}
	if got := s.LatestDeviceSeq(); got != 2 {
		t.Errorf("LatestDeviceSeq() = %d, want 2", got)
	}

	s.Dispatch(ReplaceDevices{Devices: oneDevice, Source: SourcePush, Seq: s.NextSeq()})
	if got := s.Snapshot().LastUpdate; !got.After(stamped) {
		t.Errorf("LastUpdate = %v, want after %v", got, stamped)
	}
}

func TestReplaceDevices_ActiveCount(t *testing.T) {
	s := New()
	s.Dispatch(ReplaceDevices{Devices: twoDevices, Source: SourceFetch, Seq: s.NextSeq()})

	if got := s.Snapshot().ActiveDevices(); got != 1 {
		t.Errorf("ActiveDevices() = %d, want 1", got)
	}
}

func TestReplaceDevices_CopiesInput(t *testing.T) {
	s := New()
	input := append([]models.Device(nil), twoDevices...)
	s.Dispatch(ReplaceDevices{Devices: input, Seq: s.NextSeq()})

	input[0].Status = models.StatusOffline
	if !s.Snapshot().Devices[0].IsOnline() {
		t.Error("store shares its device slice with the producer")
	}
}

func TestReplaceDevices_LastWriteWins(t *testing.T) {
	s := New()
	older := s.NextSeq() // scan started first
	newer := s.NextSeq() // push received later

	s.Dispatch(ReplaceDevices{Devices: oneDevice, Source: SourcePush, Seq: newer})
	s.Dispatch(ReplaceDevices{Devices: twoDevices, Source: SourceScan, Seq: older})

	if got := s.Snapshot().Devices; !reflect.DeepEqual(got, twoDevices) {
		t.Errorf("Devices = %+v, want the last applied (scan) collection", got)
	}
}

func TestReplaceDevices_VersionedIgnoresOlder(t *testing.T) {
	s := New(WithMergePolicy(MergeVersioned))
	older := s.NextSeq()
	newer := s.NextSeq()

	s.Dispatch(ReplaceDevices{Devices: oneDevice, Source: SourcePush, Seq: newer})
	if s.Dispatch(ReplaceDevices{Devices: twoDevices, Source: SourceScan, Seq: older}) {
		t.Error("older collection reported a change under the versioned policy")
	}

	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.Devices, oneDevice) {
		t.Errorf("Devices = %+v, want the newer (push) collection", snap.Devices)
	}
	if snap.DeviceSeq != newer {
		t.Errorf("DeviceSeq = %d, want %d", snap.DeviceSeq, newer)
	}
}

func TestReplaceDevices_VersionedHonoursEqualNewerUpdate(t *testing.T) {
	s := New(WithMergePolicy(MergeVersioned))
	s.Dispatch(ReplaceDevices{Devices: oneDevice, Source: SourceFetch, Seq: s.NextSeq()})

	scan := s.NextSeq() // scan started
	push := s.NextSeq() // push received, same devices as held

	if s.Dispatch(ReplaceDevices{Devices: oneDevice, Source: SourcePush, Seq: push}) {
		t.Error("equal push reported a change")
	}
	if s.Dispatch(ReplaceDevices{Devices: twoDevices, Source: SourceScan, Seq: scan}) {
		t.Error("scan older than an applied push reported a change")
	}
	if got := s.Snapshot().Devices; !reflect.DeepEqual(got, oneDevice) {
		t.Errorf("Devices = %+v, want the pushed collection", got)
	}
}

func TestSetConnected_KeepsCollections(t *testing.T) {
	s := New()
	s.Dispatch(ReplaceDevices{Devices: twoDevices, Seq: s.NextSeq()})
	s.Dispatch(ReplaceWifi{Networks: []models.WifiNetwork{{SSID: "Home", Signal: 85}}})

	s.Dispatch(SetConnected{Connected: true})
	s.Dispatch(SetConnected{Connected: false})

	snap := s.Snapshot()
	if snap.Connected {
		t.Error("Connected = true after disconnect")
	}
	if len(snap.Devices) != 2 || len(snap.WifiNetworks) != 1 {
		t.Errorf("collections cleared by disconnect: %d devices, %d networks", len(snap.Devices), len(snap.WifiNetworks))
	}

	if s.Dispatch(SetConnected{Connected: false}) {
		t.Error("repeated disconnect reported a change")
	}
}

func TestReplaceDNS_NormalizesFailures(t *testing.T) {
	s := New()
	ms := 3.2
	s.Dispatch(ReplaceDNS{Results: []models.DnsResult{
		{Domain: "github.com", IP: "1.2.3.4", TimeMs: &ms, Status: models.DnsFailed, Error: "timeout"},
	}})

	got := s.Snapshot().DnsResults[0]
	if got.Error != "timeout" || got.IP != "" || got.TimeMs != nil {
		t.Errorf("DnsResults[0] = %+v, want error only", got)
	}
}

func TestReplaceWifi_NilBecomesEmpty(t *testing.T) {
	s := New()
	if !s.Dispatch(ReplaceWifi{}) {
		t.Fatal("first ReplaceWifi reported no change")
	}
	if got := s.Snapshot().WifiNetworks; got == nil || len(got) != 0 {
		t.Errorf("WifiNetworks = %#v, want empty non-nil", got)
	}
	if s.Dispatch(ReplaceWifi{Networks: []models.WifiNetwork{}}) {
		t.Error("empty after empty reported a change")
	}
}

func TestResultsAndNotice(t *testing.T) {
	s := New()
	s.Dispatch(ReplaceNetworkInfo{Info: models.NetworkInfo{LocalIP: "10.0.0.2"}})
	s.Dispatch(RecordFailure{Domain: DomainNetworkInfo, Message: "Backend not responding (timeout)"})

	snap := s.Snapshot()
	if snap.NetworkInfo.LocalIP != "10.0.0.2" {
		t.Error("failure cleared the stale network info")
	}
	r, ok := snap.Result(DomainNetworkInfo)
	if !ok || r.OK || r.Message == "" {
		t.Errorf("Result = %+v, %v; want failure", r, ok)
	}

	s.Dispatch(RecordSuccess{Domain: DomainNetworkInfo})
	if r, _ := s.Snapshot().Result(DomainNetworkInfo); !r.OK {
		t.Error("RecordSuccess did not replace the failure")
	}

	s.Dispatch(RaiseNotice{Notice: Notice{Domain: DomainWifi, Message: "WiFi scanning may require elevated privileges"}})
	if s.Snapshot().Notice == nil {
		t.Fatal("Notice = nil after RaiseNotice")
	}
	s.Dispatch(DismissNotice{})
	if s.Snapshot().Notice != nil {
		t.Error("Notice still set after DismissNotice")
	}
	if s.Dispatch(DismissNotice{}) {
		t.Error("dismissing nothing reported a change")
	}
}

func TestSetView(t *testing.T) {
	s := New()
	if !s.Dispatch(SetView{View: models.ViewDNS}) {
		t.Error("SetView reported no change")
	}
	if s.Dispatch(SetView{View: models.ViewDNS}) {
		t.Error("same SetView reported a change")
	}
	if s.Snapshot().ActiveView != models.ViewDNS {
		t.Errorf("ActiveView = %q, want dns", s.Snapshot().ActiveView)
	}
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	s := New()

	var seen []models.View
	unsubscribe := s.Subscribe(func(snap Snapshot) { seen = append(seen, snap.ActiveView) })

	s.Dispatch(SetView{View: models.ViewDevices})
	s.Dispatch(SetView{View: models.ViewWifi})
	unsubscribe()
	s.Dispatch(SetView{View: models.ViewDNS})

	want := []models.View{models.ViewDevices, models.ViewWifi}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("seen = %v, want %v", seen, want)
	}
}

func TestClose_GuardsLateWrites(t *testing.T) {
	s := New()
	notified := 0
	s.Subscribe(func(Snapshot) { notified++ })

	s.Dispatch(DispatchStarted{Domain: DomainDevices})
	s.Close()

	if s.Dispatch(ReplaceDevices{Devices: twoDevices, Seq: s.NextSeq()}) {
		t.Error("Dispatch after Close reported a change")
	}
	if s.Dispatch(DispatchFinished{Domain: DomainDevices}) {
		t.Error("Dispatch after Close reported a change")
	}
	if len(s.Snapshot().Devices) != 0 {
		t.Error("devices written after Close")
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1 (before Close only)", notified)
	}
	if !s.Closed() {
		t.Error("Closed() = false")
	}

	// Subscribing after close is harmless.
	s.Subscribe(func(Snapshot) { t.Error("subscriber called after Close") })()
}

func TestDispatch_Concurrent(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(DispatchStarted{Domain: DomainDevices})
			s.Dispatch(ReplaceDevices{Devices: twoDevices, Seq: s.NextSeq()})
			s.Dispatch(DispatchFinished{Domain: DomainDevices})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Loading || snap.InFlight() != 0 {
		t.Errorf("Loading = %v, InFlight = %d after all dispatches", snap.Loading, snap.InFlight())
	}
	if got := s.LatestDeviceSeq(); got != 50 {
		t.Errorf("LatestDeviceSeq() = %d, want 50", got)
	}
	if !reflect.DeepEqual(snap.Devices, twoDevices) {
		t.Errorf("Devices = %+v", snap.Devices)
	}
}

func TestParseMergePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MergePolicy
		wantErr bool
	}{
		{"", MergeLastWriteWins, false},
		{"last-write-wins", MergeLastWriteWins, false},
		{"Versioned", MergeVersioned, false},
		{"newest", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMergePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMergePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseMergePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
