// Package session owns the resources of one dashboard lifetime: the store,
// the push channel and the reconciler feeding one into the other.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/dispatch"
	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/reconcile"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/transport"
)

// Config describes one session
type Config struct {
	Origin   string
	PushPath string
	Timeout  time.Duration

	Reconnect    bool
	InitialDelay time.Duration
	MaxDelay     time.Duration

	MergePolicy store.MergePolicy
	InitialView models.View

	// DisablePush skips the push channel (one-shot CLI commands)
	DisablePush bool

	// SkipMount skips the initial network info and device fetches
	SkipMount bool

	// Clock overrides time.Now in the store
	Clock func() time.Time
}

// Session is an open dashboard
type Session struct {
	client     *transport.Client
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	channel    *transport.Channel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Open creates the store, opens the push channel once and starts merging
// its events, then runs the initial loads in the background.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	client, err := transport.NewClient(cfg.Origin)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	opts := []store.Option{store.WithMergePolicy(cfg.MergePolicy)}
	if cfg.InitialView != "" {
		opts = append(opts, store.WithInitialView(cfg.InitialView))
	}
	if cfg.Clock != nil {
		opts = append(opts, store.WithClock(cfg.Clock))
	}
	st := store.New(opts...)

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		client:     client,
		store:      st,
		dispatcher: dispatch.New(client, st),
		ctx:        sessCtx,
		cancel:     cancel,
	}

	if !cfg.DisablePush {
		ch, err := transport.OpenChannel(sessCtx, transport.ChannelConfig{
			Origin:       client.BaseURL,
			Path:         cfg.PushPath,
			Reconnect:    cfg.Reconnect,
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
		})
		if err != nil {
			cancel()
			return nil, err
		}
		s.channel = ch

		rec := reconcile.New(st)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			// The channel's stream ends after its final disconnect, so the
			// reconciler sees every event up to teardown.
			rec.Run(context.Background(), ch.Events())
		}()
	}

	if !cfg.SkipMount {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.dispatcher.Mount(sessCtx)
		}()
	}

	logging.Info("Session opened",
		zap.String("origin", client.BaseURL),
		zap.Bool("push", !cfg.DisablePush),
		zap.Stringer("device_merge", cfg.MergePolicy),
	)
	return s, nil
}

// Store returns the session's store
func (s *Session) Store() *store.Store {
	return s.store
}

// Dispatcher returns the session's dispatcher
func (s *Session) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Client returns the request/response client
func (s *Session) Client() *transport.Client {
	return s.client
}

// Context is cancelled when the session closes. Dispatches started by the
// UI should use it so teardown leaves no requests behind.
func (s *Session) Context() context.Context {
	return s.ctx
}

// PushURL returns the push endpoint, or "" when push is disabled
func (s *Session) PushURL() string {
	if s.channel == nil {
		return ""
	}
	return s.channel.URL()
}

// Close closes the push channel once, waits for the reconciler and the
// initial loads, then tears the store down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.channel != nil {
			s.channel.Close()
		}
		s.wg.Wait()
		s.store.Close()
		logging.Info("Session closed", zap.String("origin", s.client.BaseURL))
	})
}
