package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/muurk/netdiag/internal/models"
)

// keyMap defines the dashboard key bindings
type keyMap struct {
	NextTab key.Binding
	PrevTab key.Binding
	Jump    key.Binding
	Refresh key.Binding
	Scan    key.Binding
	Wifi    key.Binding
	DNS     key.Binding
	Up      key.Binding
	Down    key.Binding
	Filter  key.Binding
	Ping    key.Binding
	Copy    key.Binding
	Dismiss key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next view"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("shift+tab", "prev view"),
		),
		Jump: key.NewBinding(
			key.WithKeys("1", "2", "3", "4"),
			key.WithHelp("1-4", "jump to view"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Scan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "scan network"),
		),
		Wifi: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "scan wifi"),
		),
		DNS: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "test dns"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Ping: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "ping"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy ip"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("enter", "esc"),
			key.WithHelp("enter", "dismiss"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// viewHelp adapts keyMap to help.KeyMap for the active view
type viewHelp struct {
	keys keyMap
	view models.View
}

// ShortHelp returns keybindings to be shown in the mini help view
func (h viewHelp) ShortHelp() []key.Binding {
	k := h.keys
	switch h.view {
	case models.ViewDevices:
		return []key.Binding{k.NextTab, k.Filter, k.Ping, k.Copy, k.Scan, k.Help, k.Quit}
	case models.ViewWifi:
		return []key.Binding{k.NextTab, k.Wifi, k.Help, k.Quit}
	case models.ViewDNS:
		return []key.Binding{k.NextTab, k.DNS, k.Help, k.Quit}
	default:
		return []key.Binding{k.NextTab, k.Scan, k.Wifi, k.DNS, k.Help, k.Quit}
	}
}

// FullHelp returns keybindings for the expanded help view
func (h viewHelp) FullHelp() [][]key.Binding {
	k := h.keys
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Jump},
		{k.Refresh, k.Scan, k.Wifi, k.DNS},
		{k.Up, k.Down, k.Filter, k.Ping, k.Copy},
		{k.Help, k.Quit},
	}
}
