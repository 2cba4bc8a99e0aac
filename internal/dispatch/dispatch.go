package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/transport"
)

// Operation names used in logs
const (
	OpFetchNetworkInfo = "fetch_network_info"
	OpFetchDevices     = "fetch_devices"
	OpScanNetwork      = "scan_network"
	OpScanWifi         = "scan_wifi"
	OpTestDNS          = "test_dns"
	OpPingDevice       = "ping_device"
	OpCheckHealth      = "check_health"
)

// WifiPrivilegeHint is shown when a Wi-Fi scan fails
const WifiPrivilegeHint = "WiFi scanning may require elevated privileges"

// Backend is the request/response half of the transport.
// *transport.Client implements it.
type Backend interface {
	NetworkInfo(ctx context.Context) (models.NetworkInfo, error)
	Devices(ctx context.Context) ([]models.Device, error)
	ScanNetwork(ctx context.Context) ([]models.Device, error)
	ScanWifi(ctx context.Context) ([]models.WifiNetwork, error)
	TestDNS(ctx context.Context) ([]models.DnsResult, error)
	Ping(ctx context.Context, ip string) (models.PingResult, error)
	Health(ctx context.Context) (models.HealthStatus, error)
}

var _ Backend = (*transport.Client)(nil)

// Dispatcher runs user-triggered operations against the backend and
// merges their outcome into the store.
type Dispatcher struct {
	backend Backend
	store   *store.Store
}

// New creates a dispatcher
func New(backend Backend, s *store.Store) *Dispatcher {
	return &Dispatcher{backend: backend, store: s}
}

// run brackets call with DispatchStarted/DispatchFinished and records the
// outcome for domain. On success the actions returned by call are applied
// before the result is recorded. The error is returned for synchronous
// callers; the store already reflects it.
func (d *Dispatcher) run(ctx context.Context, domain store.Domain, op string, call func(context.Context) ([]store.Action, error)) error {
	id := uuid.NewString()
	start := time.Now()

	d.store.Dispatch(store.DispatchStarted{Domain: domain})
	defer d.store.Dispatch(store.DispatchFinished{Domain: domain})

	actions, err := call(ctx)

	logging.LogDispatch(id, op, err)
	logging.Debug("Dispatch resolved",
		zap.String("dispatch_id", id),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err != nil {
		d.store.Dispatch(store.RecordFailure{Domain: domain, Message: transport.ShortMessage(err)})
		return err
	}

	for _, a := range actions {
		d.store.Dispatch(a)
	}
	d.store.Dispatch(store.RecordSuccess{Domain: domain})
	return nil
}

// FetchNetworkInfo replaces the network info. On failure the stale value is kept.
func (d *Dispatcher) FetchNetworkInfo(ctx context.Context) error {
	return d.run(ctx, store.DomainNetworkInfo, OpFetchNetworkInfo, func(ctx context.Context) ([]store.Action, error) {
		info, err := d.backend.NetworkInfo(ctx)
		if err != nil {
			return nil, err
		}
		return []store.Action{store.ReplaceNetworkInfo{Info: info}}, nil
	})
}

// FetchDevices replaces the device collection with the backend's list
func (d *Dispatcher) FetchDevices(ctx context.Context) error {
	seq := d.store.NextSeq()
	return d.run(ctx, store.DomainDevices, OpFetchDevices, func(ctx context.Context) ([]store.Action, error) {
		devices, err := d.backend.Devices(ctx)
		if err != nil {
			return nil, err
		}
		return []store.Action{store.ReplaceDevices{Devices: devices, Source: store.SourceFetch, Seq: seq}}, nil
	})
}

// ScanNetwork triggers a backend scan and replaces the device collection
// with its result
func (d *Dispatcher) ScanNetwork(ctx context.Context) error {
	seq := d.store.NextSeq()
	return d.run(ctx, store.DomainDevices, OpScanNetwork, func(ctx context.Context) ([]store.Action, error) {
		devices, err := d.backend.ScanNetwork(ctx)
		if err != nil {
			return nil, err
		}
		return []store.Action{store.ReplaceDevices{Devices: devices, Source: store.SourceScan, Seq: seq}}, nil
	})
}

// ScanWifi replaces the Wi-Fi list. A failure raises the privilege notice.
func (d *Dispatcher) ScanWifi(ctx context.Context) error {
	err := d.run(ctx, store.DomainWifi, OpScanWifi, func(ctx context.Context) ([]store.Action, error) {
		networks, err := d.backend.ScanWifi(ctx)
		if err != nil {
			return nil, err
		}
		return []store.Action{store.ReplaceWifi{Networks: networks}}, nil
	})
	if err != nil && !transport.IsCanceled(err) {
		d.store.Dispatch(store.RaiseNotice{Notice: store.Notice{
			Domain:  store.DomainWifi,
			Title:   "WiFi scan failed",
			Message: WifiPrivilegeHint,
		}})
	}
	return err
}

// TestDNS replaces the DNS results
func (d *Dispatcher) TestDNS(ctx context.Context) error {
	return d.run(ctx, store.DomainDNS, OpTestDNS, func(ctx context.Context) ([]store.Action, error) {
		results, err := d.backend.TestDNS(ctx)
		if err != nil {
			return nil, err
		}
		return []store.Action{store.ReplaceDNS{Results: results}}, nil
	})
}

// PingDevice pings ip and, if it is in the held collection, updates that
// device's status in a copy of the collection
func (d *Dispatcher) PingDevice(ctx context.Context, ip string) (models.PingResult, error) {
	seq := d.store.NextSeq()
	var result models.PingResult

	err := d.run(ctx, store.DomainPing, OpPingDevice, func(ctx context.Context) ([]store.Action, error) {
		var err error
		result, err = d.backend.Ping(ctx, ip)
		if err != nil {
			return nil, err
		}

		devices, changed := withStatus(d.store.Snapshot().Devices, ip, result.Status)
		if !changed {
			return nil, nil
		}
		return []store.Action{store.ReplaceDevices{Devices: devices, Source: store.SourcePing, Seq: seq}}, nil
	})
	return result, err
}

// withStatus returns a copy of devices with the status of ip replaced
func withStatus(devices []models.Device, ip string, status models.DeviceStatus) ([]models.Device, bool) {
	for i, dev := range devices {
		if dev.IP != ip {
			continue
		}
		if dev.Status == status {
			return nil, false
		}
		out := make([]models.Device, len(devices))
		copy(out, devices)
		out[i].Status = status
		return out, true
	}
	return nil, false
}

// CheckHealth asks the backend whether it is healthy
func (d *Dispatcher) CheckHealth(ctx context.Context) (models.HealthStatus, error) {
	var health models.HealthStatus
	err := d.run(ctx, store.DomainHealth, OpCheckHealth, func(ctx context.Context) ([]store.Action, error) {
		var err error
		health, err = d.backend.Health(ctx)
		if err == nil && !health.Healthy() {
			err = fmt.Errorf("backend reports status %q", health.Status)
		}
		return nil, err
	})
	return health, err
}

// Mount performs the initial loads (network info and devices) concurrently
// and waits for both. Failures are already recorded in the store; the first
// one is returned.
func (d *Dispatcher) Mount(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return d.FetchNetworkInfo(ctx) })
	g.Go(func() error { return d.FetchDevices(ctx) })
	return g.Wait()
}
