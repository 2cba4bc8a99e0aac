// Package tui implements the interactive network diagnostics dashboard.
//
// The dashboard is a single Bubble Tea model with four views (Dashboard,
// Devices, WiFi, DNS) selected by the store's active view. It renders
// store snapshots and turns key presses into dispatcher calls; the store
// remains the only place state changes.
//
// # Snapshot Delivery
//
// Store subscribers run under the store lock, so the model never calls
// Program.Send from one. A relay keeps the newest snapshot and a wake-up
// signal; a command waiting on the relay turns it into a message. Bursts
// of changes coalesce into the latest snapshot.
//
// # Framework Components
//
//   - bubbles/spinner: loading indicator
//   - bubbles/textinput: device filter
//   - bubbles/progress: Wi-Fi signal bars
//   - bubbles/help and bubbles/key: context-sensitive key help
//   - lipgloss and lipgloss/table: layout and tables
//   - sahilm/fuzzy: device filtering
//   - atotto/clipboard: copying a device's IP
//
// # Usage Example
//
//	sess, err := session.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//	return tui.Run(ctx, sess, tui.Options{Origin: cfg.Origin})
//
// Backend actions are ignored while any dispatch is in flight.
package tui
