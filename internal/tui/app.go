package tui

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/transport"
)

// Actions are the backend operations the dashboard can trigger
type Actions interface {
	FetchNetworkInfo(ctx context.Context) error
	FetchDevices(ctx context.Context) error
	ScanNetwork(ctx context.Context) error
	ScanWifi(ctx context.Context) error
	TestDNS(ctx context.Context) error
	PingDevice(ctx context.Context, ip string) (models.PingResult, error)
}

// Options configures the dashboard
type Options struct {
	// Origin is shown in the header
	Origin string

	// RecentDevices is the length of the dashboard's device list
	RecentDevices int
}

// DefaultRecentDevices is the dashboard's recent device count
const DefaultRecentDevices = 5

// Messages for async operations
type actionDoneMsg struct {
	op  string
	err error
}

type pingDoneMsg struct {
	result models.PingResult
	err    error
}

type copiedMsg struct {
	ip  string
	err error
}

// AppModel is the dashboard. It renders the latest store snapshot and
// turns key presses into dispatcher calls; it never mutates collections
// itself.
type AppModel struct {
	ctx     context.Context
	store   *store.Store
	actions Actions
	opts    Options

	relay       *relay
	unsubscribe func()

	snap store.Snapshot

	// UI state
	Width  int
	Height int

	// Devices view
	filter    textinput.Model
	filtering bool
	cursor    int

	// Status is a one-line message from the last ping or copy
	Status string

	Spinner spinner.Model
	Help    help.Model
	Keys    keyMap

	copyFn func(string) error
}

// NewAppModel creates the dashboard for st and subscribes to it. Call
// Close when the program exits.
func NewAppModel(ctx context.Context, st *store.Store, actions Actions, opts Options) AppModel {
	if opts.RecentDevices <= 0 {
		opts.RecentDevices = DefaultRecentDevices
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	filter := textinput.New()
	filter.Placeholder = "ip, hostname, mac or vendor"
	filter.Prompt = "/ "
	filter.CharLimit = 64
	filter.Width = 40

	r := newRelay()
	unsubscribe := st.Subscribe(r.push)

	return AppModel{
		ctx:         ctx,
		store:       st,
		actions:     actions,
		opts:        opts,
		relay:       r,
		unsubscribe: unsubscribe,
		snap:        st.Snapshot(),
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		filter:      filter,
		Spinner:     s,
		Help:        help.New(),
		Keys:        newKeyMap(),
		copyFn:      clipboard.WriteAll,
	}
}

// Close stops receiving snapshots
func (m AppModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Snapshot returns the snapshot being rendered
func (m AppModel) Snapshot() store.Snapshot {
	return m.snap
}

// Init starts the spinner and the snapshot relay
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.relay.next(m.ctx))
}

// Update handles all messages
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width - 4
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.clampCursor()
		return m, m.relay.next(m.ctx)

	case actionDoneMsg:
		if msg.err != nil && !transport.IsCanceled(msg.err) {
			logging.Debug("Dashboard action failed", zap.String("op", msg.op), zap.Error(msg.err))
		}
		return m, nil

	case pingDoneMsg:
		if msg.err != nil {
			m.Status = ""
			return m, nil
		}
		m.Status = fmt.Sprintf("%s is %s", msg.result.IP, msg.result.Status)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.Status = "Copy failed: " + msg.err.Error()
		} else {
			m.Status = "Copied " + msg.ip
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// The notice modal captures input until dismissed
	if m.snap.Notice != nil {
		switch {
		case key.Matches(msg, m.Keys.Dismiss):
			m.dispatch(store.DismissNotice{})
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	if m.filtering {
		return m.updateFilter(msg)
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil
	case key.Matches(msg, m.Keys.NextTab):
		m.switchView(1)
		return m, nil
	case key.Matches(msg, m.Keys.PrevTab):
		m.switchView(-1)
		return m, nil
	case key.Matches(msg, m.Keys.Jump):
		if v, ok := viewAt(int(msg.Runes[0] - '1')); ok {
			m.dispatch(store.SetView{View: v})
		}
		return m, nil
	}

	if m.snap.ActiveView == models.ViewDevices {
		switch {
		case key.Matches(msg, m.Keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, m.Keys.Down):
			if m.cursor < len(m.visibleDevices())-1 {
				m.cursor++
			}
			return m, nil
		case key.Matches(msg, m.Keys.Filter):
			m.filtering = true
			return m, m.filter.Focus()
		case key.Matches(msg, m.Keys.Copy):
			if d, ok := m.selectedDevice(); ok {
				return m, m.copyCmd(d.IP)
			}
			return m, nil
		case key.Matches(msg, m.Keys.Dismiss) && msg.String() == "esc":
			m.filter.SetValue("")
			m.cursor = 0
			return m, nil
		}
	}

	// Everything below talks to the backend and waits for loading to clear
	if m.snap.Loading {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.Keys.Scan):
		m.Status = ""
		return m, m.run("scan_network", m.actions.ScanNetwork)
	case key.Matches(msg, m.Keys.Wifi):
		return m, m.run("scan_wifi", m.actions.ScanWifi)
	case key.Matches(msg, m.Keys.DNS):
		return m, m.run("test_dns", m.actions.TestDNS)
	case key.Matches(msg, m.Keys.Ping) && m.snap.ActiveView == models.ViewDevices:
		if d, ok := m.selectedDevice(); ok {
			m.Status = "Pinging " + d.IP + "..."
			return m, m.pingCmd(d.IP)
		}
	}
	return m, nil
}

func (m AppModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.cursor = 0
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

// dispatch applies a UI action and renders the result immediately
func (m *AppModel) dispatch(a store.Action) {
	m.store.Dispatch(a)
	m.snap = m.store.Snapshot()
	m.clampCursor()
}

func (m *AppModel) switchView(step int) {
	views := models.AllViews()
	idx := 0
	for i, v := range views {
		if v == m.snap.ActiveView {
			idx = i
			break
		}
	}
	idx = (idx + step + len(views)) % len(views)
	m.dispatch(store.SetView{View: views[idx]})
}

func viewAt(idx int) (models.View, bool) {
	views := models.AllViews()
	if idx < 0 || idx >= len(views) {
		return "", false
	}
	return views[idx], true
}

func (m *AppModel) clampCursor() {
	n := len(m.visibleDevices())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// run wraps a dispatcher call in a command
func (m AppModel) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

// refreshCmd reloads whatever the active view shows
func (m AppModel) refreshCmd() tea.Cmd {
	switch m.snap.ActiveView {
	case models.ViewDevices:
		return m.run("fetch_devices", m.actions.FetchDevices)
	case models.ViewWifi:
		return m.run("scan_wifi", m.actions.ScanWifi)
	case models.ViewDNS:
		return m.run("test_dns", m.actions.TestDNS)
	default:
		return tea.Batch(
			m.run("fetch_network_info", m.actions.FetchNetworkInfo),
			m.run("fetch_devices", m.actions.FetchDevices),
		)
	}
}

func (m AppModel) pingCmd(ip string) tea.Cmd {
	ctx, actions := m.ctx, m.actions
	return func() tea.Msg {
		res, err := actions.PingDevice(ctx, ip)
		return pingDoneMsg{result: res, err: err}
	}
}

func (m AppModel) copyCmd(ip string) tea.Cmd {
	copyFn := m.copyFn
	return func() tea.Msg {
		return copiedMsg{ip: ip, err: copyFn(ip)}
	}
}

// View renders the active view or, while a notice is up, the notice modal
func (m AppModel) View() string {
	if m.snap.Notice != nil {
		return RenderModal(m.renderNotice(), m.Width, m.Height)
	}

	var content string
	switch m.snap.ActiveView {
	case models.ViewDevices:
		content = m.renderDevices()
	case models.ViewWifi:
		content = m.renderWifi()
	case models.ViewDNS:
		content = m.renderDNS()
	default:
		content = m.renderDashboard()
	}

	return RenderApplicationContainer(m.renderHeader(), content, m.renderFooter(), m.Width, m.Height)
}
