// Package discovery finds netdiag backends on the local network over mDNS.
//
// Backends advertise a "_netdiag._tcp" service. The TXT record may carry
// "version" and "push_path" keys.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	backend, err := scanner.First(ctx)
//	if err != nil {
//	    return err
//	}
//	origin := backend.Origin() // e.g. "http://192.168.1.20:5000"
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Backends must be on the same local network segment
//   - Firewall must allow mDNS (UDP port 5353)
package discovery
