package store

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
)

// MergePolicy decides how competing device collections are reconciled
type MergePolicy int

const (
	// MergeLastWriteWins applies every device collection in arrival order,
	// whichever producer it came from.
	MergeLastWriteWins MergePolicy = iota

	// MergeVersioned ignores a device collection whose Seq is older than the
	// one already held.
	MergeVersioned
)

// String returns the config name of the policy
func (p MergePolicy) String() string {
	switch p {
	case MergeLastWriteWins:
		return "last-write-wins"
	case MergeVersioned:
		return "versioned"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// ParseMergePolicy converts a config name to a MergePolicy
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-write-wins", "lww":
		return MergeLastWriteWins, nil
	case "versioned":
		return MergeVersioned, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q (expected last-write-wins or versioned)", s)
	}
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides time.Now for LastUpdate and Result stamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.env.now = now }
}

// WithMergePolicy selects the device merge policy
func WithMergePolicy(p MergePolicy) Option {
	return func(s *Store) { s.env.policy = p }
}

// WithInitialView selects the tab shown first
func WithInitialView(v models.View) Option {
	return func(s *Store) { s.current.ActiveView = v }
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Store holds the client's view model. All changes go through Dispatch;
// readers get immutable snapshots.
type Store struct {
	mu          sync.Mutex
	current     Snapshot
	env         env
	subscribers []subscriber
	nextID      int
	closed      bool

	seq atomic.Uint64
}

// New creates an empty store showing the dashboard view
func New(opts ...Option) *Store {
	s := &Store{
		current: Snapshot{ActiveView: models.ViewDashboard},
		env:     env{now: time.Now, policy: MergeLastWriteWins},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the device merge policy in effect
func (s *Store) Policy() MergePolicy {
	return s.env.policy
}

// NextSeq issues the next device collection version stamp
func (s *Store) NextSeq() uint64 {
	return s.seq.Add(1)
}

// LatestDeviceSeq returns the newest stamp of any device update applied so
// far, including ones that matched the held collection. Under
// MergeVersioned, updates older than this are ignored.
func (s *Store) LatestDeviceSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.deviceSeq
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dispatch applies an action. Subscribers are called synchronously, in
// dispatch order, only if the snapshot changed. Subscribers must not call
// Dispatch themselves. It reports whether the state changed; after Close
// it does nothing and returns false.
func (s *Store) Dispatch(a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		logging.Debug("Dispatch after close ignored", zap.String("action", a.Name()))
		return false
	}

	next := s.current
	if !a.apply(&next, &s.env) {
		return false
	}
	s.current = next

	logging.Debug("Store transition",
		zap.String("action", a.Name()),
		zap.Bool("loading", next.Loading),
		zap.Int("devices", len(next.Devices)),
		zap.Uint64("device_seq", next.DeviceSeq),
	)

	for _, sub := range s.subscribers {
		sub.fn(next)
	}
	return true
}

// Subscribe registers fn for every future change and returns a func that
// removes it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Close tears the store down: later dispatches are ignored and all
// subscribers are dropped. The last snapshot stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = nil
}

// Closed reports whether Close has been called
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
