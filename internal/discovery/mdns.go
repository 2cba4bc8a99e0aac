package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/logging"
)

const (
	// ServiceType is the mDNS service type netdiag backends advertise
	ServiceType = "_netdiag._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default browse window
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an advertisement carries no port
	DefaultPort = 5000
)

// ErrNoBackend is returned by First when nothing answered in time
var ErrNoBackend = errors.New("no netdiag backend found on the local network")

// Scanner browses mDNS for netdiag backends
type Scanner struct {
	// Timeout bounds a single browse
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for the full timeout and returns every backend that
// answered, de-duplicated by instance name and sorted.
func (s *Scanner) Scan(ctx context.Context) ([]*Backend, error) {
	found := make(map[string]*Backend)
	err := s.browse(ctx, func(b *Backend) bool {
		found[b.Instance] = b
		return true
	})
	if err != nil {
		return nil, err
	}

	backends := make([]*Backend, 0, len(found))
	for _, b := range found {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool {
		return backends[i].Instance < backends[j].Instance
	})
	return backends, nil
}

// First returns the first backend that answers, or ErrNoBackend once the
// timeout expires.
func (s *Scanner) First(ctx context.Context) (*Backend, error) {
	var first *Backend
	err := s.browse(ctx, func(b *Backend) bool {
		first = b
		return false
	})
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, ErrNoBackend
	}
	return first, nil
}

// browse feeds parsed entries to visit until it returns false or the
// timeout expires. visit runs on a single goroutine which has exited by
// the time browse returns.
func (s *Scanner) browse(ctx context.Context, visit func(*Backend) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				b := parseServiceEntry(entry)
				if b == nil {
					continue
				}
				logging.Debug("Backend advertised",
					zap.String("instance", b.Instance),
					zap.String("origin", b.Origin()),
				)
				if !visit(b) {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		<-done
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Backend.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Backend {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	instance := entry.Instance
	if instance == "" {
		instance = strings.TrimSuffix(entry.HostName, ".")
	}
	if instance == "" {
		instance = ip
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Backend{
		Instance:     instance,
		Host:         entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
