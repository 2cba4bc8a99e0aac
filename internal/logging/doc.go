// Package logging provides structured logging for netdiag.
//
// This package wraps a global zap logger with convenience functions for the
// client's logging needs: HTTP calls to the backend, push channel traffic and
// dispatcher outcomes.
//
// # Log Levels
//
//   - Debug: frame contents, keepalive pings, snapshot transitions
//   - Info: connections, requests, dispatch outcomes
//   - Warn: dropped frames, reconnect attempts, failed dispatches
//   - Error: startup failures
//
// # Silent by Default
//
// The full-screen UI owns the terminal, so logging is disabled unless a
// level is given on the command line or through NETDIAG_LOG_LEVEL. When a
// log file is configured, output goes there instead of stderr:
//
//	if err := logging.Initialize("debug", "/tmp/netdiag.log"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Specialized Logging
//
//	logging.LogConnection(origin, "push_connected")
//	logging.LogWebSocketMessage(origin, "received", websocket.TextMessage, frame)
//	logging.LogHTTPRequest(requestID, "GET", "/api/devices")
//	logging.LogHTTPResponse(requestID, 200, elapsed)
//	logging.LogDispatch(dispatchID, "scan_network", err)
//
// All functions are safe for concurrent use.
package logging
