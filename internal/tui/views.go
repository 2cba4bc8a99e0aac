package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sahilm/fuzzy"

	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/ui"
)

func (m AppModel) innerWidth() int {
	w := m.Width
	if w < MinTerminalWidth {
		w = MinTerminalWidth
	}
	return w - 8
}

func (m AppModel) renderHeader() string {
	width := m.innerWidth()

	updated := "Updated: never"
	if !m.snap.LastUpdate.IsZero() {
		updated = "Updated: " + m.snap.LastUpdate.Format("15:04:05")
	}
	right := connectionIndicator(m.snap.Connected) + "  " + LabelStyle.Render(updated)
	top := spread(brandLine(), right, width)

	tabs := make([]string, 0, len(models.AllViews()))
	for i, v := range models.AllViews() {
		label := fmt.Sprintf("%d %s", i+1, v.Title())
		if v == m.snap.ActiveView {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}
	tabLine := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.opts.Origin != "" {
		tabLine = spread(tabLine, LabelStyle.Render(m.opts.Origin), width)
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, tabLine)
}

func (m AppModel) renderFooter() string {
	var lines []string
	if m.snap.Loading {
		lines = append(lines, m.Spinner.View()+" "+LabelStyle.Render("Loading..."))
	} else if m.Status != "" {
		lines = append(lines, StatusLineStyle.Render(m.Status))
	}
	lines = append(lines, m.Help.View(viewHelp{keys: m.Keys, view: m.snap.ActiveView}))
	lines = append(lines, SubtitleStyle.Render(FooterText))
	return strings.Join(lines, "\n")
}

// failureLine renders the latest failure for domain, if its last
// dispatch failed
func (m AppModel) failureLine(d store.Domain) string {
	r, ok := m.snap.Result(d)
	if !ok || r.OK {
		return ""
	}
	return RenderError(r.Message)
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func orLoading(s string) string {
	if s == "" {
		return "Loading..."
	}
	return s
}

func statCard(label, value string, width int) string {
	return CardStyle.Width(width).Render(LabelStyle.Render(label) + "\n" + ValueStyle.Render(value))
}

func (m AppModel) renderDashboard() string {
	width := m.innerWidth()
	cardWidth := (width - 12) / 3
	if cardWidth < 16 {
		cardWidth = 16
	}

	info := m.snap.NetworkInfo
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Local IP", orLoading(info.LocalIP), cardWidth),
		statCard("Gateway", orLoading(info.Gateway), cardWidth),
		statCard("Active Devices", strconv.Itoa(m.snap.ActiveDevices()), cardWidth),
	)

	button := ButtonStyle
	if m.snap.Loading {
		button = DisabledButtonStyle
	}
	actions := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Quick Actions"),
		lipgloss.JoinHorizontal(lipgloss.Top,
			button.Render("s  Scan Network"), " ",
			button.Render("w  Scan WiFi"), " ",
			button.Render("d  Test DNS"),
		),
	)

	recent := m.snap.RecentDevices(m.opts.RecentDevices)
	var rows []string
	for _, d := range recent {
		dot := lipgloss.NewStyle().Foreground(ui.StatusColor(d)).Render(ui.StatusMarker(d))
		rows = append(rows, fmt.Sprintf("%s %-16s %s", dot, d.IP, LabelStyle.Render(d.DisplayHostname())))
	}
	if len(rows) == 0 {
		rows = append(rows, LabelStyle.Render("No devices yet. Press s to scan."))
	}
	recentBlock := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Recent Devices"),
		strings.Join(rows, "\n"),
	)

	return joinNonEmpty(
		stats,
		m.failureLine(store.DomainNetworkInfo),
		actions,
		recentBlock,
		m.failureLine(store.DomainDevices),
	)
}

// deviceSource adapts a device slice for fuzzy matching
type deviceSource []models.Device

func (s deviceSource) String(i int) string {
	d := s[i]
	return strings.Join([]string{d.IP, d.Hostname, d.MAC, d.Vendor}, " ")
}

func (s deviceSource) Len() int {
	return len(s)
}

// visibleDevices applies the filter. Matches are ordered best first.
func (m AppModel) visibleDevices() []models.Device {
	pattern := strings.TrimSpace(m.filter.Value())
	if pattern == "" {
		return m.snap.Devices
	}
	matches := fuzzy.FindFrom(pattern, deviceSource(m.snap.Devices))
	out := make([]models.Device, 0, len(matches))
	for _, match := range matches {
		out = append(out, m.snap.Devices[match.Index])
	}
	return out
}

func (m AppModel) selectedDevice() (models.Device, bool) {
	devices := m.visibleDevices()
	if m.cursor < 0 || m.cursor >= len(devices) {
		return models.Device{}, false
	}
	return devices[m.cursor], true
}

func (m AppModel) renderDevices() string {
	devices := m.visibleDevices()

	summary := LabelStyle.Render(fmt.Sprintf("%d devices, %d online", len(m.snap.Devices), m.snap.ActiveDevices()))
	if m.snap.IsPending(store.DomainDevices) {
		summary += "  " + m.Spinner.View() + LabelStyle.Render(" scanning...")
	}

	filterLine := ""
	if m.filtering || m.filter.Value() != "" {
		filterLine = m.filter.View()
		if !m.filtering {
			filterLine += LabelStyle.Render(fmt.Sprintf("  (%d matches, esc to clear)", len(devices)))
		}
	}

	var body string
	if len(devices) == 0 {
		if len(m.snap.Devices) == 0 {
			body = LabelStyle.Render("No devices yet. Press s to scan the network.")
		} else {
			body = LabelStyle.Render("No devices match the filter.")
		}
	} else {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(ui.MutedColor)).
			Headers("", "IP ADDRESS", "HOSTNAME", "MAC ADDRESS", "VENDOR", "LAST SEEN")
		for _, d := range devices {
			t.Row(ui.StatusMarker(d), d.IP, d.DisplayHostname(), d.DisplayMAC(), d.Vendor, lastSeen(d))
		}
		cursor := m.cursor
		t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.TableHeaderStyle
			}
			if row == cursor {
				return SelectedRowStyle
			}
			if col == 0 && row >= 0 && row < len(devices) {
				return ui.TableCellStyle.Foreground(ui.StatusColor(devices[row]))
			}
			return ui.TableCellStyle
		})
		body = t.Render()
	}

	return joinNonEmpty(
		summary,
		filterLine,
		body,
		m.failureLine(store.DomainDevices),
		m.failureLine(store.DomainPing),
	)
}

func lastSeen(d models.Device) string {
	t, ok := d.LastSeenTime()
	if !ok {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func (m AppModel) renderWifi() string {
	var cards []string
	for _, n := range m.snap.WifiNetworks {
		cards = append(cards, m.wifiCard(n))
	}

	var body string
	switch {
	case len(cards) > 0:
		body = strings.Join(cards, "\n")
	case m.snap.IsPending(store.DomainWifi):
		body = m.Spinner.View() + LabelStyle.Render(" Scanning for networks...")
	default:
		body = LabelStyle.Render("No networks found. Press w to scan.")
	}

	return joinNonEmpty(
		TitleStyle.Render(fmt.Sprintf("WiFi Networks (%d)", len(m.snap.WifiNetworks))),
		body,
		m.failureLine(store.DomainWifi),
	)
}

func (m AppModel) wifiCard(n models.WifiNetwork) string {
	tier := n.Tier()
	color := ui.TierColor(tier)
	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(20),
		progress.WithoutPercentage(),
	)

	ssid := n.SSID
	if ssid == "" {
		ssid = "(hidden)"
	}
	security := n.Security
	if security == "" {
		security = "Open"
	}
	channel := "?"
	if n.Channel > 0 {
		channel = strconv.Itoa(n.Channel)
	}

	title := ValueStyle.Render(ssid)
	signal := bar.ViewAs(float64(n.ClampedSignal())/100) + " " +
		lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%d%% %s", n.Signal, tier))
	details := LabelStyle.Render(fmt.Sprintf("Channel %s • %s", channel, security))

	return CardStyle.Width(m.innerWidth() - 6).Render(lipgloss.JoinVertical(lipgloss.Left, title, signal, details))
}

func (m AppModel) renderDNS() string {
	results := m.snap.DnsResults

	var body string
	switch {
	case len(results) > 0:
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(ui.MutedColor)).
			Headers("", "DOMAIN", "RESULT", "TIME")
		for _, r := range results {
			if r.Succeeded() {
				elapsed := "-"
				if r.TimeMs != nil {
					elapsed = fmt.Sprintf("%.1f ms", *r.TimeMs)
				}
				t.Row(ui.SuccessMarker, r.Domain, r.IP, elapsed)
			} else {
				t.Row(ui.FailureMarker, r.Domain, r.Error, "-")
			}
		}
		t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.TableHeaderStyle
			}
			if col == 0 && row >= 0 && row < len(results) {
				if results[row].Succeeded() {
					return ui.TableCellStyle.Foreground(ui.SuccessColor)
				}
				return ui.TableCellStyle.Foreground(ui.ErrorColor)
			}
			return ui.TableCellStyle
		})
		body = t.Render()
	case m.snap.IsPending(store.DomainDNS):
		body = m.Spinner.View() + LabelStyle.Render(" Resolving test domains...")
	default:
		body = LabelStyle.Render("No results yet. Press d to run the DNS test.")
	}

	return joinNonEmpty(
		TitleStyle.Render("DNS Resolution"),
		body,
		m.failureLine(store.DomainDNS),
	)
}

func (m AppModel) renderNotice() string {
	n := m.snap.Notice
	title := lipgloss.NewStyle().Foreground(ui.WarningColor).Bold(true).
		Render(ui.WarningMarker + "  " + n.Title)
	return ModalStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		n.Message,
		"",
		LabelStyle.Render("enter to dismiss"),
	))
}
