package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Backend is a netdiag backend found on the local network
type Backend struct {
	// Instance is the advertised service instance name (e.g., "netdiag on pi")
	Instance string

	// Host is the mDNS hostname (e.g., "pi.local.")
	Host string

	// IP is the address to connect to, IPv4 preferred
	IP string

	// Port is the HTTP port (typically 5000)
	Port int

	// Metadata holds the TXT record (e.g., "version=1.2", "push_path=/ws")
	Metadata map[string]string

	// DiscoveredAt is when the advertisement was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the backend
func (b *Backend) String() string {
	return fmt.Sprintf("%s (%s) at %s", b.Instance, b.Host, b.Origin())
}

// Origin returns the HTTP origin of the backend, suitable for --backend
func (b *Backend) Origin() string {
	return "http://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// GetMetadata retrieves a TXT value by key, or "" if absent
func (b *Backend) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}

// Version returns the advertised backend version, if any
func (b *Backend) Version() string {
	return b.GetMetadata("version")
}

// PushPath returns the advertised push endpoint path, if any
func (b *Backend) PushPath() string {
	return b.GetMetadata("push_path")
}
