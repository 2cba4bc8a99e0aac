package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
)

const (
	// DefaultPushPath is the WebSocket endpoint on the backend origin
	DefaultPushPath = "/ws"

	// Time allowed to write a control message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message (or pong) from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1 << 20

	// Default reconnect delays
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 5 * time.Second

	eventBuffer = 16
)

// Push event names used in the frame envelope
const (
	EventNameDevicesUpdate = "devices_update"
)

// EventKind identifies what a push channel event carries
type EventKind int

const (
	// EventConnect is emitted each time the link comes up
	EventConnect EventKind = iota
	// EventDisconnect is emitted each time the link goes down
	EventDisconnect
	// EventDevicesUpdate carries a full device collection pushed by the backend
	EventDevicesUpdate
)

// String returns the event name
func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventDevicesUpdate:
		return EventNameDevicesUpdate
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// DevicesUpdate is the payload of a devices_update event
type DevicesUpdate struct {
	Devices []models.Device `json:"devices"`
}

// Event is one item of the push stream
type Event struct {
	Kind     EventKind
	Update   *DevicesUpdate // Set for EventDevicesUpdate
	Err      error          // Cause of an EventDisconnect, if known
	Received time.Time
}

// envelope is the JSON text frame format: {"event": "...", "data": {...}}
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChannelConfig configures a push channel
type ChannelConfig struct {
	// Origin is the REST origin; the push URL is derived from it
	Origin string

	// Path of the WebSocket endpoint (default "/ws")
	Path string

	// Reconnect re-establishes a dropped link with exponential backoff
	Reconnect bool

	// InitialDelay and MaxDelay bound the reconnect backoff
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Dialer overrides websocket.DefaultDialer
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request
	Header http.Header
}

// Channel is a persistent push link to the backend. Events are delivered in
// arrival order on Events(); the stream is closed once the channel stops.
type Channel struct {
	cfg    ChannelConfig
	url    string
	dialer *websocket.Dialer
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	conn      *websocket.Conn
}

// PushURL maps a REST origin to the WebSocket URL of the push endpoint
func PushURL(origin, path string) (string, error) {
	base, err := NormalizeOrigin(origin)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = DefaultPushPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(base + path)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid push path %q: %v", path, err))
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// OpenChannel starts a push channel in the background and returns at once.
// The channel runs until Close is called or ctx ends.
func OpenChannel(ctx context.Context, cfg ChannelConfig) (*Channel, error) {
	pushURL, err := PushURL(cfg.Origin, cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = DefaultMaxDelay
		if cfg.MaxDelay < cfg.InitialDelay {
			cfg.MaxDelay = cfg.InitialDelay
		}
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := &Channel{
		cfg:    cfg,
		url:    pushURL,
		dialer: dialer,
		events: make(chan Event, eventBuffer),
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.run()
	return c, nil
}

// Events returns the event stream
func (c *Channel) Events() <-chan Event {
	return c.events
}

// URL returns the push endpoint this channel dials
func (c *Channel) URL() string {
	return c.url
}

// Connected reports whether the link is currently up
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close stops the channel. It is idempotent and returns only after the event
// stream has been closed; a final disconnect is emitted if the link was up.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
}

func (c *Channel) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialDelay
	b.MaxInterval = c.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Channel) run() {
	defer close(c.done)
	defer close(c.events)

	b := c.newBackOff()
	for {
		conn, _, err := c.dialer.DialContext(c.ctx, c.url, c.cfg.Header)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logging.Warn("Push channel dial failed",
				zap.String("url", c.url),
				zap.Error(err),
			)
			if !c.cfg.Reconnect || !c.sleep(b.NextBackOff()) {
				return
			}
			continue
		}

		b.Reset()
		c.setConn(conn)
		logging.LogConnection(c.url, "push_connected")
		c.emit(Event{Kind: EventConnect, Received: time.Now()})

		err = c.readLoop(conn)

		c.setConn(nil)
		_ = conn.Close()
		if c.ctx.Err() != nil {
			err = nil
		}
		logging.LogConnection(c.url, "push_disconnected")
		c.emitFinal(Event{Kind: EventDisconnect, Err: err, Received: time.Now()})

		if c.ctx.Err() != nil || !c.cfg.Reconnect {
			return
		}
		if !c.sleep(b.NextBackOff()) {
			return
		}
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn != nil && c.ctx.Err() != nil {
		// Close raced the dial; release the socket right away.
		_ = conn.Close()
	}
	c.conn = conn
}

// sleep waits for d or until the channel stops. It returns false when stopped.
func (c *Channel) sleep(d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	logging.Debug("Push channel reconnecting", zap.String("url", c.url), zap.Duration("delay", d))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// emit delivers an event unless the channel is stopping
func (c *Channel) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// emitFinal delivers a boundary event even while stopping, as long as the
// buffer has room, so consumers always see the link go down.
func (c *Channel) emitFinal(ev Event) {
	select {
	case c.events <- ev:
		return
	case <-c.ctx.Done():
	}
	select {
	case c.events <- ev:
	default:
		logging.Warn("Push channel dropped final disconnect event", zap.String("url", c.url))
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		logging.Debug("Received pong", zap.String("url", c.url))
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go c.pingLoop(conn, stop)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}

		logging.LogWebSocketMessage(c.url, "received", msgType, data)
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			logging.Warn("Dropped push frame",
				zap.String("url", c.url),
				zap.Error(err),
			)
			continue
		}
		ev.Received = time.Now()
		c.emit(ev)
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logging.Debug("Ping failed", zap.String("url", c.url), zap.Error(err))
				return
			}
		case <-stop:
			return
		}
	}
}

// ErrUnknownEvent is returned by DecodeEvent for event names it does not handle
var ErrUnknownEvent = errors.New("unknown push event")

// DecodeEvent parses one text frame. Unknown events return ErrUnknownEvent.
func DecodeEvent(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, NewParseError("malformed push frame", err)
	}

	switch env.Event {
	case EventNameDevicesUpdate:
		var update DevicesUpdate
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return Event{}, NewParseError("devices_update without data", nil)
		}
		if err := json.Unmarshal(env.Data, &update); err != nil {
			return Event{}, NewParseError("malformed devices_update payload", err)
		}
		if update.Devices == nil {
			update.Devices = []models.Device{}
		}
		return Event{Kind: EventDevicesUpdate, Update: &update}, nil
	case "":
		return Event{}, NewParseError("push frame has no event name", nil)
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// EncodeEvent builds a text frame in the push envelope format
func EncodeEvent(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: name, Data: raw})
}
