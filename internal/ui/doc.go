// Package ui renders one-shot command output for the netdiag CLI.
//
// Commands print through a Printer, which writes either styled lipgloss
// tables and result boxes or plain JSON in the backend's response shapes:
//
//	p := ui.NewPrinter(os.Stdout, ui.FormatTable)
//	p.PrintHeader(ui.NewHeader("Devices", "netdiag devices", ui.Param{Key: "Backend", Value: origin}))
//	_ = p.Devices(devices)
//
// Failures go through PrintError, which shows the short transport message
// and a few troubleshooting hints for the error's category.
//
// The palette and the status/tier colors are shared with the interactive
// dashboard in package tui.
//
// # Logging Integration
//
// zap logging is silent unless NETDIAG_LOG_LEVEL is set, so the curated
// output here is not interleaved with log lines.
package ui
