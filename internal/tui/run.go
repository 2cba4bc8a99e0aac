package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/netdiag/internal/session"
)

// Run shows the dashboard for an open session until the user quits or
// ctx ends. The caller still owns the session and closes it afterwards.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	model := NewAppModel(sess.Context(), sess.Store(), sess.Dispatcher(), opts)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
