package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/netdiag/internal/store"
)

// snapshotMsg carries a new store snapshot into the program
type snapshotMsg struct {
	snap store.Snapshot
}

// relay moves snapshots from store subscribers to the program. Store
// subscribers run under the store lock, so push never blocks: it keeps
// only the newest snapshot and leaves a wake-up signal.
type relay struct {
	mu     sync.Mutex
	latest store.Snapshot
	signal chan struct{}
}

func newRelay() *relay {
	return &relay{signal: make(chan struct{}, 1)}
}

// push records snap as the newest snapshot
func (r *relay) push(snap store.Snapshot) {
	r.mu.Lock()
	r.latest = snap
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// next waits for the next snapshot. It returns nil once ctx ends.
func (r *relay) next(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-r.signal:
			r.mu.Lock()
			snap := r.latest
			r.mu.Unlock()
			return snapshotMsg{snap: snap}
		case <-ctx.Done():
			return nil
		}
	}
}
