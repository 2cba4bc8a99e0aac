package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/netdiag/internal/discovery"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/transport"
)

// Format selects how a Printer renders results
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected table or json)", s)
	}
}

// signalBarWidth is the number of cells in a rendered signal bar
const signalBarWidth = 10

// Printer writes command results to a writer, either as styled tables or as
// JSON in the backend's own response shapes.
type Printer struct {
	out    io.Writer
	format Format
	width  int
}

// NewPrinter creates a new Printer. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer, format Format) *Printer {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = FormatTable
	}
	return &Printer{out: w, format: format, width: GetTerminalWidth()}
}

// Format returns the output format
func (p *Printer) Format() Format {
	return p.format
}

// Width returns the width used for boxes
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// JSON writes v as indented JSON
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintHeader prints a command header. JSON output carries no header.
func (p *Printer) PrintHeader(h *Header) {
	if p.format == FormatJSON {
		return
	}
	p.Println(h.SetWidth(p.width).Render())
}

// PrintSuccess prints a success box, or nothing for JSON output
func (p *Printer) PrintSuccess(title string, details ...Param) {
	if p.format == FormatJSON {
		return
	}
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box, or nothing for JSON output
func (p *Printer) PrintWarning(title string, details ...Param) {
	if p.format == FormatJSON {
		return
	}
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints a failure box with tips derived from err. JSON output
// gets {"error": "..."} instead.
func (p *Printer) PrintError(title string, err error) {
	if p.format == FormatJSON {
		_ = p.JSON(map[string]string{"error": transport.ShortMessage(err)})
		return
	}
	short := errors.New(transport.ShortMessage(err))
	p.Println(NewFailureResult(title, short, Troubleshooting(err)).SetWidth(p.width).Render())
}

// NetworkInfo prints the backend host's network position
func (p *Printer) NetworkInfo(info models.NetworkInfo) error {
	if p.format == FormatJSON {
		return p.JSON(info)
	}
	p.Println(p.newTable("FIELD", "VALUE").
		Row("Local IP", orLoading(info.LocalIP)).
		Row("Gateway", orLoading(info.Gateway)).
		Row("Subnet", orLoading(info.Subnet)).
		Render())
	return nil
}

// Devices prints the device collection with an online count
func (p *Printer) Devices(devices []models.Device) error {
	if p.format == FormatJSON {
		return p.JSON(struct {
			Devices []models.Device `json:"devices"`
		}{nonNil(devices)})
	}

	t := p.newTable("", "IP ADDRESS", "HOSTNAME", "MAC ADDRESS", "VENDOR", "STATUS")
	for _, d := range devices {
		t.Row(StatusMarker(d), d.IP, d.DisplayHostname(), d.DisplayMAC(), d.Vendor, string(d.Status))
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return TableHeaderStyle
		}
		if (col == 0 || col == 5) && row >= 0 && row < len(devices) {
			return TableCellStyle.Foreground(StatusColor(devices[row]))
		}
		return TableCellStyle
	})
	p.Println(t.Render())
	p.Println(HeaderParamKeyStyle.Render(fmt.Sprintf("%d devices, %d online", len(devices), models.ActiveDeviceCount(devices))))
	return nil
}

// WifiNetworks prints the scanned access points with signal bars
func (p *Printer) WifiNetworks(networks []models.WifiNetwork) error {
	if p.format == FormatJSON {
		return p.JSON(struct {
			Networks []models.WifiNetwork `json:"networks"`
		}{nonNil(networks)})
	}
	if len(networks) == 0 {
		p.Println(HeaderParamKeyStyle.Render("No networks found"))
		return nil
	}

	t := p.newTable("SSID", "SIGNAL", "", "CHANNEL", "SECURITY")
	for _, n := range networks {
		channel := "-"
		if n.Channel > 0 {
			channel = strconv.Itoa(n.Channel)
		}
		security := n.Security
		if security == "" {
			security = "Open"
		}
		t.Row(n.SSID, SignalBar(n.ClampedSignal(), signalBarWidth), fmt.Sprintf("%d%%", n.Signal), channel, security)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return TableHeaderStyle
		}
		if col == 1 && row >= 0 && row < len(networks) {
			return TableCellStyle.Foreground(TierColor(networks[row].Tier()))
		}
		return TableCellStyle
	})
	p.Println(t.Render())
	return nil
}

// DNSResults prints one row per tested domain
func (p *Printer) DNSResults(results []models.DnsResult) error {
	if p.format == FormatJSON {
		return p.JSON(struct {
			Results []models.DnsResult `json:"results"`
		}{nonNil(results)})
	}

	t := p.newTable("", "DOMAIN", "RESULT", "TIME")
	for _, r := range results {
		marker, result, elapsed := FailureMarker, r.Error, "-"
		if r.Succeeded() {
			marker, result = SuccessMarker, r.IP
			if r.TimeMs != nil {
				elapsed = fmt.Sprintf("%.1f ms", *r.TimeMs)
			}
		}
		t.Row(marker, r.Domain, result, elapsed)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return TableHeaderStyle
		}
		if col <= 2 && row >= 0 && row < len(results) {
			if results[row].Succeeded() {
				return TableCellStyle.Foreground(SuccessColor)
			}
			return TableCellStyle.Foreground(ErrorColor)
		}
		return TableCellStyle
	})
	p.Println(t.Render())
	return nil
}

// Ping prints a single reachability result
func (p *Printer) Ping(res models.PingResult) error {
	if p.format == FormatJSON {
		return p.JSON(res)
	}
	d := models.Device{IP: res.IP, Status: res.Status}
	line := lipgloss.NewStyle().Foreground(StatusColor(d)).Render(StatusMarker(d) + " " + string(res.Status))
	p.Println(fmt.Sprintf("%s is %s", res.IP, line))
	return nil
}

// Health prints the backend's self-reported health
func (p *Printer) Health(origin string, h models.HealthStatus) error {
	if p.format == FormatJSON {
		return p.JSON(h)
	}
	details := []Param{{"Backend", origin}, {"Status", h.Status}, {"Timestamp", h.Timestamp}}
	if h.Healthy() {
		p.PrintSuccess("Backend is healthy", details...)
	} else {
		p.PrintWarning("Backend reports a problem", details...)
	}
	return nil
}

// Backends prints the backends found by mDNS discovery
func (p *Printer) Backends(backends []*discovery.Backend) error {
	if p.format == FormatJSON {
		type entry struct {
			Instance string `json:"instance"`
			Origin   string `json:"origin"`
			Host     string `json:"host,omitempty"`
			Version  string `json:"version,omitempty"`
		}
		out := make([]entry, 0, len(backends))
		for _, b := range backends {
			out = append(out, entry{b.Instance, b.Origin(), b.Host, b.Version()})
		}
		return p.JSON(struct {
			Backends []entry `json:"backends"`
		}{out})
	}
	if len(backends) == 0 {
		p.Println(HeaderParamKeyStyle.Render("No backends found"))
		return nil
	}

	t := p.newTable("INSTANCE", "ORIGIN", "HOST", "VERSION")
	for _, b := range backends {
		v := b.Version()
		if v == "" {
			v = "-"
		}
		t.Row(b.Instance, b.Origin(), b.Host, v)
	}
	p.Println(t.Render())
	return nil
}

func (p *Printer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// SignalBar renders a signal percentage as a bar of width cells
func SignalBar(signal, width int) string {
	if signal < 0 {
		signal = 0
	}
	if signal > 100 {
		signal = 100
	}
	filled := (signal*width + 50) / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Troubleshooting returns hints for a failed backend call
func Troubleshooting(err error) []string {
	var e *transport.Error
	if !errors.As(err, &e) {
		return nil
	}
	switch e.Type {
	case transport.ErrTypeConnectionRefused:
		return []string{
			"Start the backend and check the port it listens on",
			"Point netdiag at it with --backend or NETDIAG_BACKEND",
			"Run 'netdiag discover' to find backends on the LAN",
		}
	case transport.ErrTypeTimeout:
		return []string{
			"Network scans can take a while; retry with a larger --timeout",
			"Check the backend host is reachable",
		}
	case transport.ErrTypeDNS:
		return []string{"Check the backend host name, or use its IP address"}
	case transport.ErrTypeNetwork:
		return []string{"Check the backend host is reachable from this machine"}
	case transport.ErrTypeHTTP:
		if e.StatusCode >= 500 {
			return []string{"Check the backend's own log for the failure"}
		}
		return []string{"Check that the backend version matches this client"}
	default:
		return nil
	}
}

func orLoading(s string) string {
	if s == "" {
		return "Loading..."
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
