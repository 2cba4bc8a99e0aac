package dispatch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/transport"
)

// fakeBackend returns canned values. during, when set, runs inside every
// call before it returns; scanGate, when set, holds ScanNetwork open.
type fakeBackend struct {
	mu sync.Mutex

	info       models.NetworkInfo
	infoErr    error
	devices    []models.Device
	devicesErr error
	scan       []models.Device
	scanErr    error
	scanGate   chan struct{}
	wifi       []models.WifiNetwork
	wifiErr    error
	dns        []models.DnsResult
	dnsErr     error
	ping       models.PingResult
	pingErr    error
	health     models.HealthStatus
	healthErr  error

	during func(op string)
	calls  []string
}

func (f *fakeBackend) enter(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during(op)
	}
}

func (f *fakeBackend) NetworkInfo(ctx context.Context) (models.NetworkInfo, error) {
	f.enter(OpFetchNetworkInfo)
	return f.info, f.infoErr
}

func (f *fakeBackend) Devices(ctx context.Context) ([]models.Device, error) {
	f.enter(OpFetchDevices)
	return f.devices, f.devicesErr
}

func (f *fakeBackend) ScanNetwork(ctx context.Context) ([]models.Device, error) {
	f.enter(OpScanNetwork)
	if f.scanGate != nil {
		<-f.scanGate
	}
	return f.scan, f.scanErr
}

func (f *fakeBackend) ScanWifi(ctx context.Context) ([]models.WifiNetwork, error) {
	f.enter(OpScanWifi)
	return f.wifi, f.wifiErr
}

func (f *fakeBackend) TestDNS(ctx context.Context) ([]models.DnsResult, error) {
	f.enter(OpTestDNS)
	return f.dns, f.dnsErr
}

func (f *fakeBackend) Ping(ctx context.Context, ip string) (models.PingResult, error) {
	f.enter(OpPingDevice)
	return f.ping, f.pingErr
}

func (f *fakeBackend) Health(ctx context.Context) (models.HealthStatus, error) {
	f.enter(OpCheckHealth)
	return f.health, f.healthErr
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var (
	errBackend = transport.NewHTTPError(500, "Internal Server Error")

	lanDevices = []models.Device{
		{IP: "192.168.1.2", Status: models.StatusOnline},
		{IP: "192.168.1.3", Status: models.StatusOffline},
	}
	pushDevices = []models.Device{
		{IP: "192.168.1.50", Status: models.StatusOnline},
	}
)

// loadingProbe records Loading before, during and after one dispatch
type loadingProbe struct {
	before, during, after bool
}

func probeLoading(t *testing.T, s *store.Store, f *fakeBackend, run func()) loadingProbe {
	t.Helper()
	var p loadingProbe
	p.before = s.Snapshot().Loading
	f.during = func(string) { p.during = s.Snapshot().Loading }
	run()
	f.during = nil
	p.after = s.Snapshot().Loading
	return p
}

func TestLoadingBracketsEveryDispatch(t *testing.T) {
	operations := []struct {
		name string
		run  func(d *Dispatcher)
	}{
		{"fetch network info", func(d *Dispatcher) { _ = d.FetchNetworkInfo(context.Background()) }},
		{"fetch devices", func(d *Dispatcher) { _ = d.FetchDevices(context.Background()) }},
		{"scan network", func(d *Dispatcher) { _ = d.ScanNetwork(context.Background()) }},
		{"scan wifi", func(d *Dispatcher) { _ = d.ScanWifi(context.Background()) }},
		{"test dns", func(d *Dispatcher) { _ = d.TestDNS(context.Background()) }},
		{"ping", func(d *Dispatcher) { _, _ = d.PingDevice(context.Background(), "192.168.1.2") }},
		{"health", func(d *Dispatcher) { _, _ = d.CheckHealth(context.Background()) }},
	}

	for _, op := range operations {
		for _, failing := range []bool{false, true} {
			name := op.name + "/success"
			if failing {
				name = op.name + "/failure"
			}
			t.Run(name, func(t *testing.T) {
				f := &fakeBackend{devices: lanDevices, scan: lanDevices, health: models.HealthStatus{Status: "healthy"}}
				if failing {
					f.infoErr, f.devicesErr, f.scanErr = errBackend, errBackend, errBackend
					f.wifiErr, f.dnsErr, f.pingErr, f.healthErr = errBackend, errBackend, errBackend, errBackend
				}
				s := store.New()
				d := New(f, s)

				p := probeLoading(t, s, f, func() { op.run(d) })
				if p.before || !p.during || p.after {
					t.Errorf("loading before/during/after = %v/%v/%v, want false/true/false", p.before, p.during, p.after)
				}
			})
		}
	}
}

func TestFetchNetworkInfo(t *testing.T) {
	f := &fakeBackend{info: models.NetworkInfo{LocalIP: "192.168.1.10", Gateway: "192.168.1.1"}}
	s := store.New()
	d := New(f, s)

	if err := d.FetchNetworkInfo(context.Background()); err != nil {
		t.Fatalf("FetchNetworkInfo() error = %v", err)
	}
	if got := s.Snapshot().NetworkInfo.Gateway; got != "192.168.1.1" {
		t.Errorf("Gateway = %q, want 192.168.1.1", got)
	}

	f.infoErr = errBackend
	if err := d.FetchNetworkInfo(context.Background()); err == nil {
		t.Fatal("FetchNetworkInfo() error = nil, want failure")
	}
	snap := s.Snapshot()
	if snap.NetworkInfo.LocalIP != "192.168.1.10" {
		t.Error("stale network info was not kept on failure")
	}
	if r, _ := snap.Result(store.DomainNetworkInfo); r.OK || r.Message != "Backend error (HTTP 500)" {
		t.Errorf("Result = %+v, want failure with short message", r)
	}
}

func TestFetchDevices_StampsAndCounts(t *testing.T) {
	f := &fakeBackend{devices: lanDevices}
	s := store.New()
	d := New(f, s)

	if err := d.FetchDevices(context.Background()); err != nil {
		t.Fatalf("FetchDevices() error = %v", err)
	}
	snap := s.Snapshot()
	if snap.LastUpdate.IsZero() {
		t.Error("LastUpdate not stamped")
	}
	if snap.ActiveDevices() != 1 {
		t.Errorf("ActiveDevices() = %d, want 1", snap.ActiveDevices())
	}
	if r, ok := snap.Result(store.DomainDevices); !ok || !r.OK {
		t.Errorf("Result = %+v, %v; want success", r, ok)
	}

	stamp := snap.LastUpdate
	if err := d.FetchDevices(context.Background()); err != nil {
		t.Fatalf("FetchDevices() error = %v", err)
	}
	if !s.Snapshot().LastUpdate.Equal(stamp) {
		t.Error("refetching an unchanged collection moved LastUpdate")
	}
}

func TestScanWifi(t *testing.T) {
	f := &fakeBackend{wifi: []models.WifiNetwork{{SSID: "Home", Signal: 85}, {SSID: "Cafe", Signal: 50}}}
	s := store.New()
	d := New(f, s)

	if err := d.ScanWifi(context.Background()); err != nil {
		t.Fatalf("ScanWifi() error = %v", err)
	}
	nets := s.Snapshot().WifiNetworks
	if len(nets) != 2 || nets[0].Tier() != models.SignalStrong || nets[1].Tier() != models.SignalMedium {
		t.Errorf("WifiNetworks = %+v", nets)
	}
	if s.Snapshot().Notice != nil {
		t.Error("notice raised on success")
	}
}

func TestScanWifi_FailureRaisesNotice(t *testing.T) {
	f := &fakeBackend{wifiErr: errBackend}
	s := store.New()
	d := New(f, s)

	if err := d.ScanWifi(context.Background()); err == nil {
		t.Fatal("ScanWifi() error = nil")
	}
	snap := s.Snapshot()
	if snap.Notice == nil || snap.Notice.Message != WifiPrivilegeHint {
		t.Fatalf("Notice = %+v, want privilege hint", snap.Notice)
	}
	if snap.Loading {
		t.Error("Loading stuck true after failure")
	}
}

func TestTestDNS_FailedEntry(t *testing.T) {
	ms := 8.0
	f := &fakeBackend{dns: []models.DnsResult{
		{Domain: "google.com", IP: "142.250.0.1", TimeMs: &ms, Status: models.DnsSuccess},
		{Domain: "github.com", IP: "9.9.9.9", TimeMs: &ms, Status: models.DnsFailed, Error: "timeout"},
	}}
	s := store.New()
	d := New(f, s)

	if err := d.TestDNS(context.Background()); err != nil {
		t.Fatalf("TestDNS() error = %v", err)
	}
	failed := s.Snapshot().DnsResults[1]
	if failed.Error != "timeout" || failed.IP != "" || failed.TimeMs != nil {
		t.Errorf("failed entry = %+v, want error only", failed)
	}
}

func TestPingDevice_UpdatesStatus(t *testing.T) {
	f := &fakeBackend{devices: lanDevices, ping: models.PingResult{IP: "192.168.1.3", Status: models.StatusOnline}}
	s := store.New()
	d := New(f, s)
	_ = d.FetchDevices(context.Background())

	result, err := d.PingDevice(context.Background(), "192.168.1.3")
	if err != nil {
		t.Fatalf("PingDevice() error = %v", err)
	}
	if result.Status != models.StatusOnline {
		t.Errorf("result = %+v", result)
	}
	if got := s.Snapshot().ActiveDevices(); got != 2 {
		t.Errorf("ActiveDevices() = %d, want 2 after ping", got)
	}
	if lanDevices[1].IsOnline() {
		t.Error("ping mutated the producer's slice")
	}
}

func TestPingDevice_UnknownIPLeavesCollection(t *testing.T) {
	f := &fakeBackend{devices: lanDevices, ping: models.PingResult{IP: "10.9.9.9", Status: models.StatusOnline}}
	s := store.New()
	d := New(f, s)
	_ = d.FetchDevices(context.Background())
	before := s.Snapshot().Devices

	if _, err := d.PingDevice(context.Background(), "10.9.9.9"); err != nil {
		t.Fatalf("PingDevice() error = %v", err)
	}
	if !reflect.DeepEqual(s.Snapshot().Devices, before) {
		t.Error("pinging an unknown address changed the collection")
	}
}

func TestCheckHealth(t *testing.T) {
	f := &fakeBackend{health: models.HealthStatus{Status: "healthy"}}
	s := store.New()
	d := New(f, s)

	if _, err := d.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}

	f.health.Status = "degraded"
	if _, err := d.CheckHealth(context.Background()); err == nil {
		t.Error("CheckHealth() error = nil for degraded backend")
	}
	if r, _ := s.Snapshot().Result(store.DomainHealth); r.OK {
		t.Error("degraded backend recorded as success")
	}
}

// pushDuringScan holds a scan open, applies a push the way the reconciler
// does, then lets the scan finish.
func pushDuringScan(t *testing.T, policy store.MergePolicy) store.Snapshot {
	t.Helper()
	f := &fakeBackend{scan: lanDevices, scanGate: make(chan struct{})}
	s := store.New(store.WithMergePolicy(policy))
	d := New(f, s)

	entered := make(chan struct{})
	f.during = func(op string) {
		if op == OpScanNetwork {
			close(entered)
		}
	}

	done := make(chan struct{})
	go func() {
		_ = d.ScanNetwork(context.Background())
		close(done)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("scan never reached the backend")
	}
	s.Dispatch(store.ReplaceDevices{Devices: pushDevices, Source: store.SourcePush, Seq: s.NextSeq()})
	close(f.scanGate)
	<-done

	return s.Snapshot()
}

func TestScanThenPush_PushWins(t *testing.T) {
	f := &fakeBackend{scan: lanDevices}
	s := store.New()
	d := New(f, s)

	_ = d.ScanNetwork(context.Background())
	s.Dispatch(store.ReplaceDevices{Devices: pushDevices, Source: store.SourcePush, Seq: s.NextSeq()})

	if got := s.Snapshot().Devices; !reflect.DeepEqual(got, pushDevices) {
		t.Errorf("Devices = %+v, want push collection", got)
	}
}

func TestPushDuringScan_LastWriteWins(t *testing.T) {
	snap := pushDuringScan(t, store.MergeLastWriteWins)
	if !reflect.DeepEqual(snap.Devices, lanDevices) {
		t.Errorf("Devices = %+v, want the scan result (applied last)", snap.Devices)
	}
}

func TestPushDuringScan_Versioned(t *testing.T) {
	snap := pushDuringScan(t, store.MergeVersioned)
	if !reflect.DeepEqual(snap.Devices, pushDevices) {
		t.Errorf("Devices = %+v, want the push collection (newer stamp)", snap.Devices)
	}
	if snap.Loading {
		t.Error("Loading stuck true")
	}
}

func TestMount(t *testing.T) {
	f := &fakeBackend{info: models.NetworkInfo{LocalIP: "10.0.0.2"}, devices: lanDevices}
	s := store.New()
	d := New(f, s)

	if err := d.Mount(context.Background()); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	calls := f.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %v, want network info and devices", calls)
	}
	snap := s.Snapshot()
	if snap.NetworkInfo.LocalIP != "10.0.0.2" || len(snap.Devices) != 2 {
		t.Errorf("snapshot after Mount = %+v", snap)
	}

	f.devicesErr = errors.New("boom")
	if err := d.Mount(context.Background()); err == nil {
		t.Error("Mount() error = nil with a failing fetch")
	}
	if s.Snapshot().Loading {
		t.Error("Loading stuck true after a failed Mount")
	}
}

func TestDispatchAfterStoreClose(t *testing.T) {
	f := &fakeBackend{devices: lanDevices}
	s := store.New()
	d := New(f, s)
	s.Close()

	_ = d.FetchDevices(context.Background())
	if len(s.Snapshot().Devices) != 0 {
		t.Error("dispatch wrote into a closed store")
	}
}
