// Package reconcile merges push channel events into the store.
//
// Connect and disconnect only toggle the connection flag; held collections
// survive a dropped link. A devices_update replaces the device collection
// exactly as a successful fetch or scan would, stamped at receipt, with no
// coordination with dispatches that may be in flight.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/transport"
)

// Reconciler applies push events to one store
type Reconciler struct {
	store *store.Store
}

// New creates a reconciler for s
func New(s *store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Apply merges one event and reports whether the store changed
func (r *Reconciler) Apply(ev transport.Event) bool {
	switch ev.Kind {
	case transport.EventConnect:
		return r.store.Dispatch(store.SetConnected{Connected: true})

	case transport.EventDisconnect:
		if ev.Err != nil {
			logging.Info("Push link lost", zap.Error(ev.Err))
		}
		return r.store.Dispatch(store.SetConnected{Connected: false})

	case transport.EventDevicesUpdate:
		if ev.Update == nil {
			return false
		}
		changed := r.store.Dispatch(store.ReplaceDevices{
			Devices: ev.Update.Devices,
			Source:  store.SourcePush,
			Seq:     r.store.NextSeq(),
		})
		logging.Debug("Applied devices_update",
			zap.Int("devices", len(ev.Update.Devices)),
			zap.Bool("changed", changed),
		)
		return changed

	default:
		logging.Warn("Ignoring push event", zap.Stringer("kind", ev.Kind))
		return false
	}
}

// Run applies events until the stream closes or ctx ends
func (r *Reconciler) Run(ctx context.Context, events <-chan transport.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Apply(ev)
		case <-ctx.Done():
			return
		}
	}
}
