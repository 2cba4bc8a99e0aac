// Package models defines the value types exchanged with the netdiag backend.
//
// The JSON tags follow the backend's wire format. Optional fields use their
// zero value for "absent" (DnsResult.TimeMs is a pointer because 0 ms is a
// legitimate measurement).
//
// # Collections
//
// Devices, Wi-Fi networks and DNS results are always replaced wholesale by
// the store; nothing in this package mutates a slice it is given.
//
// # Display Rules
//
//   - Device status other than "online" renders as offline
//   - Wi-Fi signal above 70% is strong, above 40% is medium, otherwise weak
//   - A failed DNS result carries only its error message
package models
