// Package transport talks to the netdiag backend over two links.
//
// # Request/Response
//
// Client issues one HTTP call per operation against the backend origin
// (default http://localhost:5000). Each call carries an X-Request-ID UUID
// and there are no retries:
//
//	client, err := transport.NewClient("http://localhost:5000")
//	if err != nil {
//	    return err
//	}
//	devices, err := client.Devices(ctx)
//
// Failures are returned as *Error values classified by cause (timeout,
// connection refused, DNS, HTTP status, parse, validation). ShortMessage
// turns any of them into one line of UI text.
//
// # Push Channel
//
// OpenChannel dials the backend's WebSocket endpoint (the REST origin with
// a ws/wss scheme and path /ws) in the background. Frames are JSON text
// in the envelope
//
//	{"event": "devices_update", "data": {"devices": [...]}}
//
// Link transitions are reported as EventConnect and EventDisconnect. A
// dropped link is re-dialed with exponential backoff when Reconnect is set.
// Malformed or unknown frames are logged and dropped without tearing the
// link down. Close is idempotent and returns after the event stream has
// been closed.
package transport
