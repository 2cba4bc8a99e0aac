// Package backendtest runs an in-process stand-in for the netdiag backend.
//
// The fake serves the REST API on a gorilla/mux router and the push channel
// on a gorilla/websocket endpoint at /ws. Responses, failures and blocking
// points are configured per test; every request is recorded.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/muurk/netdiag/internal/models"
)

// Request is one recorded API call
type Request struct {
	Method    string
	Path      string
	RequestID string
	UserAgent string
}

type failure struct {
	status  int
	message string
}

// Server is a fake backend
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	info     models.NetworkInfo
	devices  []models.Device
	scan     []models.Device
	wifi     []models.WifiNetwork
	wifiNull bool
	dns      []models.DnsResult
	ping     map[string]models.DeviceStatus
	failures map[string]failure
	gates    map[string]chan struct{}
	requests []Request
	clients  map[*websocket.Conn]struct{}
	accepted int
	clientCh chan struct{}
}

// New starts a fake backend. It is closed automatically by Close.
func New() *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ping:     make(map[string]models.DeviceStatus),
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		clients:  make(map[*websocket.Conn]struct{}),
		clientCh: make(chan struct{}, 64),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/network/info", s.handleNetworkInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", s.handleDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/scan/network", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/api/wifi/scan", s.handleWifi).Methods(http.MethodGet)
	r.HandleFunc("/api/dns/test", s.handleDNS).Methods(http.MethodGet)
	r.HandleFunc("/api/ping/{ip}", s.handlePing).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handlePush)
	r.Use(s.record)

	s.srv = httptest.NewServer(r)
	return s
}

// Origin returns the base URL of the fake (e.g. "http://127.0.0.1:34567")
func (s *Server) Origin() string {
	return s.srv.URL
}

// Close drops every push client and stops the server
func (s *Server) Close() {
	s.DropClients()
	s.mu.Lock()
	for path, gate := range s.gates {
		close(gate)
		delete(s.gates, path)
	}
	s.mu.Unlock()
	s.srv.Close()
}

// SetNetworkInfo sets the /api/network/info response
func (s *Server) SetNetworkInfo(info models.NetworkInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// SetDevices sets the /api/devices response
func (s *Server) SetDevices(devices []models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
}

// SetScanResult sets the devices returned by POST /api/scan/network
func (s *Server) SetScanResult(devices []models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scan = devices
}

// SetWifi sets the /api/wifi/scan response. With omitNetworks, the
// response body lacks the networks field entirely.
func (s *Server) SetWifi(networks []models.WifiNetwork, omitNetworks bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wifi = networks
	s.wifiNull = omitNetworks
}

// SetDNS sets the /api/dns/test response
func (s *Server) SetDNS(results []models.DnsResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dns = results
}

// SetPing sets the status reported for one address
func (s *Server) SetPing(ip string, status models.DeviceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ping[ip] = status
}

// Fail makes every request to path answer with status and {"error": message}.
// A zero status clears the failure.
func (s *Server) Fail(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = failure{status: status, message: message}
}

// Block holds requests to path until the returned release func is called
func (s *Server) Block(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.gates[path] == gate {
				delete(s.gates, path)
				close(gate)
			}
		})
	}
}

// Requests returns the recorded API calls (push upgrades excluded)
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many calls were made to path
func (s *Server) RequestCount(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// WaitForClients waits until n push connections have been accepted in total
func (s *Server) WaitForClients(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		s.mu.Lock()
		accepted := s.accepted
		s.mu.Unlock()
		if accepted >= n {
			return true
		}
		select {
		case <-s.clientCh:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return false
		}
	}
}

// ClientCount returns the number of currently connected push clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// PushDevices broadcasts a devices_update event to every push client
func (s *Server) PushDevices(devices []models.Device) error {
	return s.PushEvent("devices_update", map[string]any{"devices": devices})
}

// PushEvent broadcasts an event in the {"event", "data"} envelope
func (s *Server) PushEvent(name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{name, raw})
	if err != nil {
		return err
	}
	return s.PushRaw(frame)
}

// PushRaw broadcasts a text frame verbatim
func (s *Server) PushRaw(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DropClients closes every push connection abruptly
func (s *Server) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			s.mu.Lock()
			s.requests = append(s.requests, Request{
				Method:    r.Method,
				Path:      r.URL.Path,
				RequestID: r.Header.Get("X-Request-ID"),
				UserAgent: r.UserAgent(),
			})
			gate := s.gates[r.URL.Path]
			s.mu.Unlock()

			if gate != nil {
				select {
				case <-gate:
				case <-r.Context().Done():
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// failed writes the configured failure for r, if any
func (s *Server) failed(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	f, ok := s.failures[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		return false
	}
	writeJSON(w, f.status, map[string]string{"error": f.message})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format("2006-01-02T15:04:05.000000"),
	})
}

func (s *Server) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	s.mu.Lock()
	info := s.info
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	s.mu.Lock()
	devices := s.devices
	s.mu.Unlock()
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	s.mu.Lock()
	devices := s.scan
	s.mu.Unlock()
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

func (s *Server) handleWifi(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	s.mu.Lock()
	networks, omit := s.wifi, s.wifiNull
	s.mu.Unlock()
	if omit {
		writeJSON(w, http.StatusOK, map[string]any{"count": 0})
		return
	}
	if networks == nil {
		networks = []models.WifiNetwork{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": networks, "count": len(networks)})
}

func (s *Server) handleDNS(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	s.mu.Lock()
	results := s.dns
	s.mu.Unlock()
	if results == nil {
		results = []models.DnsResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	ip := mux.Vars(r)["ip"]
	s.mu.Lock()
	status, ok := s.ping[ip]
	s.mu.Unlock()
	if !ok {
		status = models.StatusOffline
	}
	writeJSON(w, http.StatusOK, models.PingResult{IP: ip, Status: status})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.accepted++
	s.mu.Unlock()
	select {
	case s.clientCh <- struct{}{}:
	default:
	}

	// Drain until the client goes away; control frames are handled by ReadMessage.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}
