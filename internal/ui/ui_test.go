package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/muurk/netdiag/internal/discovery"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/transport"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignalBar(t *testing.T) {
	tests := []struct {
		signal int
		want   string
	}{
		{0, "░░░░░░░░░░"},
		{50, "█████░░░░░"},
		{85, "█████████░"},
		{100, "██████████"},
		{140, "██████████"},
		{-3, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		if got := SignalBar(tt.signal, 10); got != tt.want {
			t.Errorf("SignalBar(%d) = %q, want %q", tt.signal, got, tt.want)
		}
	}
}

func TestPrinter_DevicesTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	devices := []models.Device{
		{IP: "192.168.1.2", Hostname: "nas", Status: models.StatusOnline},
		{IP: "192.168.1.3", Status: models.StatusOffline},
	}
	if err := p.Devices(devices); err != nil {
		t.Fatalf("Devices() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"IP ADDRESS", "192.168.1.2", "nas", "Unknown", "offline", "2 devices, 1 online"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_DevicesJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	if err := p.Devices(nil); err != nil {
		t.Fatalf("Devices() error = %v", err)
	}

	var got map[string][]models.Device
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if devices, ok := got["devices"]; !ok || devices == nil || len(devices) != 0 {
		t.Errorf("devices = %#v, want empty array", got["devices"])
	}
}

func TestPrinter_WifiNetworks(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	err := p.WifiNetworks([]models.WifiNetwork{
		{SSID: "Home", Signal: 85, Channel: 6, Security: "WPA2"},
		{SSID: "Cafe", Signal: 10},
	})
	if err != nil {
		t.Fatalf("WifiNetworks() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Home", "85%", "WPA2", "Cafe", "Open"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = p.WifiNetworks(nil)
	if !strings.Contains(buf.String(), "No networks found") {
		t.Errorf("empty scan output = %q", buf.String())
	}
}

func TestPrinter_DNSResults(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	ms := 12.34
	err := p.DNSResults([]models.DnsResult{
		{Domain: "google.com", IP: "142.250.0.1", TimeMs: &ms, Status: models.DnsSuccess},
		{Domain: "github.com", Status: models.DnsFailed, Error: "timeout"},
	})
	if err != nil {
		t.Fatalf("DNSResults() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"google.com", "142.250.0.1", "12.3 ms", "github.com", "timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_NetworkInfoLoading(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	if err := p.NetworkInfo(models.NetworkInfo{LocalIP: "192.168.1.10"}); err != nil {
		t.Fatalf("NetworkInfo() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "192.168.1.10") || !strings.Contains(out, "Loading...") {
		t.Errorf("output = %s", out)
	}
}

func TestPrinter_PrintErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	p.PrintError("Scan failed", transport.NewHTTPError(500, "scan failed"))

	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["error"] != "Backend error (HTTP 500): scan failed" {
		t.Errorf("error = %q", got["error"])
	}
}

func TestPrinter_PrintErrorBox(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable).SetWidth(80)

	err := &transport.Error{Type: transport.ErrTypeConnectionRefused, Message: "dial tcp: connection refused"}
	p.PrintError("Cannot reach backend", err)

	out := buf.String()
	for _, want := range []string{"FAILED", "Cannot reach backend", "is it running?", "Troubleshooting:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTroubleshooting(t *testing.T) {
	if tips := Troubleshooting(fmt.Errorf("plain")); tips != nil {
		t.Errorf("Troubleshooting(plain) = %v, want nil", tips)
	}
	wrapped := fmt.Errorf("fetch: %w", &transport.Error{Type: transport.ErrTypeTimeout})
	if tips := Troubleshooting(wrapped); len(tips) == 0 {
		t.Error("Troubleshooting(timeout) returned no tips")
	}
}

func TestHeader_ParamsInOrder(t *testing.T) {
	h := NewHeader("Devices", "netdiag devices",
		Param{Key: "Backend", Value: "http://localhost:5000"},
		Param{Key: "Format", Value: "table"},
	).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "DEVICES") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	if strings.Index(out, "Backend") > strings.Index(out, "Format") {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestResult_Render(t *testing.T) {
	out := NewSuccessResult("Scan complete", Param{Key: "Devices", Value: "3"}).SetWidth(80).Render()
	if !strings.Contains(out, "SUCCESS") || !strings.Contains(out, "Scan complete") || !strings.Contains(out, "Devices:") {
		t.Errorf("success box:\n%s", out)
	}

	out = NewWarningResult("Backend reports a problem").SetWidth(80).Render()
	if !strings.Contains(out, "WARNING") {
		t.Errorf("warning box:\n%s", out)
	}
}

func TestPrinter_Backends(t *testing.T) {
	backends := []*discovery.Backend{{
		Instance: "netdiag on pi",
		Host:     "pi.local.",
		IP:       "192.168.1.20",
		Port:     5000,
		Metadata: map[string]string{"version": "1.2"},
	}}

	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatJSON).Backends(backends); err != nil {
		t.Fatalf("Backends() error = %v", err)
	}
	var got struct {
		Backends []struct {
			Instance string `json:"instance"`
			Origin   string `json:"origin"`
			Version  string `json:"version"`
		} `json:"backends"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got.Backends) != 1 || got.Backends[0].Origin != "http://192.168.1.20:5000" || got.Backends[0].Version != "1.2" {
		t.Errorf("backends = %+v", got.Backends)
	}

	buf.Reset()
	_ = NewPrinter(&buf, FormatTable).Backends(nil)
	if !strings.Contains(buf.String(), "No backends found") {
		t.Errorf("empty output = %q", buf.String())
	}
}
