package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/netdiag/internal/config"
	"github.com/muurk/netdiag/internal/discovery"
	"github.com/muurk/netdiag/internal/logging"
	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/session"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/tui"
	"github.com/muurk/netdiag/internal/ui"
)

// Global flags
var (
	configPath   string
	backendFlag  string
	logLevel     string
	logFile      string
	formatFlag   string
	timeoutFlag  time.Duration
	discoverFlag bool
)

// Resolved in setup
var (
	appConfig    *config.Config
	outputFormat ui.Format
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default is the platform config directory)")
	pf.StringVar(&backendFlag, "backend", "", "Backend origin, e.g. http://192.168.1.20:5000 (overrides config and NETDIAG_BACKEND)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	pf.StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")
	pf.StringVar(&formatFlag, "format", "table", "Output format (table, json)")
	pf.DurationVar(&timeoutFlag, "timeout", 0, "Per-request timeout (default from config)")
	pf.BoolVar(&discoverFlag, "discover", false, "Find the backend over mDNS instead of using the configured origin")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wifiCmd)
	rootCmd.AddCommand(dnsCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads the configuration, applies global flags and starts logging
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		appConfig, err = config.LoadFrom(configPath)
		if err == nil {
			appConfig.ApplyEnv()
		}
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		return err
	}

	if backendFlag != "" {
		if err := appConfig.SetBackend(backendFlag); err != nil {
			return fmt.Errorf("--backend: %w", err)
		}
	}
	if timeoutFlag > 0 {
		appConfig.Backend.Timeout = timeoutFlag
	}

	outputFormat, err = ui.ParseFormat(formatFlag)
	if err != nil {
		return fmt.Errorf("--format: %w", err)
	}

	file := logFile
	if file == "" {
		file = appConfig.LogFile
	}
	// Log lines would tear the dashboard's alternate screen
	if file == "" && cmd.Parent() == nil && (logLevel != "" || os.Getenv(logging.LogLevelEnvVar) != "") {
		if dir, err := config.GetConfigDir(); err == nil {
			file = filepath.Join(dir, "netdiag.log")
		}
	}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := logging.Initialize(logLevel, file); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if discoverFlag {
		return useDiscoveredBackend(cmd.Context())
	}
	return nil
}

func useDiscoveredBackend(ctx context.Context) error {
	scanner := discovery.NewScanner()
	backend, err := scanner.First(ctx)
	if err != nil {
		return err
	}
	if err := appConfig.SetBackend(backend.Origin()); err != nil {
		return fmt.Errorf("discovered backend %s: %w", backend.Instance, err)
	}
	if path := backend.PushPath(); path != "" {
		appConfig.Backend.PushPath = path
	}
	logging.Info("Using discovered backend",
		zap.String("instance", backend.Instance),
		zap.String("origin", appConfig.Backend.Origin),
	)
	return nil
}

// sessionConfig builds a session from the resolved configuration
func sessionConfig(push bool) session.Config {
	c := appConfig
	return session.Config{
		Origin:       c.Backend.Origin,
		PushPath:     c.Backend.PushPath,
		Timeout:      c.Backend.Timeout,
		Reconnect:    c.Push.Reconnect,
		InitialDelay: c.Push.InitialDelay,
		MaxDelay:     c.Push.MaxDelay,
		MergePolicy:  c.MergePolicy(),
		InitialView:  c.DefaultView(),
		DisablePush:  !push,
		SkipMount:    !push,
	}
}

func newPrinter(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout(), outputFormat)
}

func header(title string, cmd *cobra.Command) *ui.Header {
	return ui.NewHeader(title, cmd.CommandPath(), ui.Param{Key: "Backend", Value: appConfig.Backend.Origin})
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// oneShot opens a session without the push channel, runs fn and reports
// its failure with a result box (or a JSON error object).
func oneShot(cmd *cobra.Command, title string, fn func(ctx context.Context, sess *session.Session, p *ui.Printer) error) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	sess, err := session.Open(ctx, sessionConfig(false))
	if err != nil {
		return err
	}
	defer sess.Close()

	p := newPrinter(cmd)
	if err := fn(ctx, sess, p); err != nil {
		p.PrintError(title, err)
		if n := sess.Store().Snapshot().Notice; n != nil {
			p.PrintWarning(n.Title, ui.Param{Key: "Note", Value: n.Message})
		}
		return &reportedError{err: err}
	}
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the backend host's local IP, gateway and subnet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "Network info unavailable", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			if err := sess.Dispatcher().FetchNetworkInfo(ctx); err != nil {
				return err
			}
			p.PrintHeader(header("Network Info", cmd))
			return p.NetworkInfo(sess.Store().Snapshot().NetworkInfo)
		})
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices the backend has seen",
	Long: `List the devices stored by the backend, most recently seen first.

This does not scan; use 'netdiag scan' to refresh the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "Could not load devices", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			if err := sess.Dispatcher().FetchDevices(ctx); err != nil {
				return err
			}
			p.PrintHeader(header("Devices", cmd))
			return p.Devices(sess.Store().Snapshot().Devices)
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the LAN for devices",
	Long: `Ask the backend to scan its subnet and list the devices found.

A scan can take a minute on larger networks; raise --timeout if it times out.`,
	Example: `  # Scan with a generous timeout
  netdiag scan --timeout 2m

  # Machine-readable output
  netdiag scan --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "Network scan failed", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			p.PrintHeader(header("Network Scan", cmd))
			if p.Format() == ui.FormatTable {
				p.Println(ui.HeaderParamKeyStyle.Render("Scanning, this can take a minute..."))
			}

			start := time.Now()
			if err := sess.Dispatcher().ScanNetwork(ctx); err != nil {
				return err
			}

			snap := sess.Store().Snapshot()
			if err := p.Devices(snap.Devices); err != nil {
				return err
			}
			p.PrintSuccess("Scan complete",
				ui.Param{Key: "Devices", Value: strconv.Itoa(len(snap.Devices))},
				ui.Param{Key: "Online", Value: strconv.Itoa(snap.ActiveDevices())},
				ui.Param{Key: "Duration", Value: time.Since(start).Round(100 * time.Millisecond).String()},
			)
			return nil
		})
	},
}

var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Scan for nearby Wi-Fi networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "WiFi scan failed", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			if err := sess.Dispatcher().ScanWifi(ctx); err != nil {
				return err
			}
			p.PrintHeader(header("WiFi Networks", cmd))
			return p.WifiNetworks(sess.Store().Snapshot().WifiNetworks)
		})
	},
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Test DNS resolution from the backend host",
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "DNS test failed", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			if err := sess.Dispatcher().TestDNS(ctx); err != nil {
				return err
			}
			p.PrintHeader(header("DNS Resolution", cmd))
			return p.DNSResults(sess.Store().Snapshot().DnsResults)
		})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping <ip>",
	Short: "Check whether a host answers the backend's ping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "Ping failed", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			res, err := sess.Dispatcher().PingDevice(ctx, args[0])
			if err != nil {
				return err
			}
			return p.Ping(res)
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, "Backend unhealthy", func(ctx context.Context, sess *session.Session, p *ui.Printer) error {
			h, err := sess.Dispatcher().CheckHealth(ctx)
			if err != nil {
				return err
			}
			return p.Health(appConfig.Backend.Origin, h)
		})
	},
}

var watchDuration time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print device and connection changes as they happen",
	Long: `Open the push channel and print a line for every connection change and
every change to the device collection, until interrupted.

With --format json each change is printed as a JSON object.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (default: until interrupted)")
}

// watchEvent is one line of 'watch --format json' output
type watchEvent struct {
	Time      time.Time       `json:"time"`
	Event     string          `json:"event"`
	Connected bool            `json:"connected"`
	Devices   []models.Device `json:"devices,omitempty"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	if watchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchDuration)
		defer cancel()
	}

	sess, err := session.Open(ctx, sessionConfig(true))
	if err != nil {
		return err
	}
	defer sess.Close()

	p := newPrinter(cmd)
	p.PrintHeader(header("Watching", cmd))

	// The subscriber only signals; snapshots are read and diffed here
	changed := make(chan struct{}, 1)
	unsubscribe := sess.Store().Subscribe(func(store.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var prev store.Snapshot
	for {
		snap := sess.Store().Snapshot()
		reportChanges(p, prev, snap)
		prev = snap

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// reportChanges prints what differs between two snapshots
func reportChanges(p *ui.Printer, prev, snap store.Snapshot) {
	now := time.Now()
	if snap.Connected != prev.Connected {
		event := "disconnected"
		if snap.Connected {
			event = "connected"
		}
		printWatch(p, watchEvent{Time: now, Event: event, Connected: snap.Connected}, "")
	}
	if !snap.LastUpdate.Equal(prev.LastUpdate) {
		summary := fmt.Sprintf("devices: %d (%d online)", len(snap.Devices), snap.ActiveDevices())
		printWatch(p, watchEvent{Time: now, Event: "devices", Connected: snap.Connected, Devices: snap.Devices}, summary)
	}
	if r, ok := snap.Result(store.DomainDevices); ok && !r.OK && r != prev.Results[store.DomainDevices] {
		printWatch(p, watchEvent{Time: r.At, Event: "error", Connected: snap.Connected}, "error: "+r.Message)
	}
}

func printWatch(p *ui.Printer, ev watchEvent, summary string) {
	if p.Format() == ui.FormatJSON {
		_ = p.JSON(ev)
		return
	}
	if summary == "" {
		summary = ev.Event
	}
	p.Println(ev.Time.Format("15:04:05") + "  " + summary)
}

var (
	discoverTimeout time.Duration
	discoverSave    bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find netdiag backends on the local network (mDNS)",
	Example: `  # List backends
  netdiag discover

  # Save the first backend found as the default
  netdiag discover --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		scanner := discovery.NewScanner()
		scanner.Timeout = discoverTimeout

		p := newPrinter(cmd)
		if p.Format() == ui.FormatTable {
			p.Println(ui.HeaderParamKeyStyle.Render(fmt.Sprintf("Browsing for %s (%s)...", discovery.ServiceType, discoverTimeout)))
		}
		backends, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		if err := p.Backends(backends); err != nil {
			return err
		}

		if discoverSave {
			if len(backends) == 0 {
				return discovery.ErrNoBackend
			}
			return saveBackend(cmd, backends[0].Origin())
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "scan-timeout", discovery.DefaultScanTimeout, "How long to listen for advertisements")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Save the first backend found as the configured backend")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the saved configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := appConfig.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configSetBackendCmd = &cobra.Command{
	Use:   "set-backend <origin>",
	Short: "Save the default backend origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveBackend(cmd, args[0])
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetBackendCmd)
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// saveBackend writes origin to the config file, leaving environment and
// flag overrides out of it
func saveBackend(cmd *cobra.Command, origin string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	onDisk, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	if err := onDisk.SetBackend(origin); err != nil {
		return err
	}
	if err := onDisk.SaveTo(path); err != nil {
		return err
	}

	newPrinter(cmd).PrintSuccess("Backend saved",
		ui.Param{Key: "Origin", Value: onDisk.Backend.Origin},
		ui.Param{Key: "Config", Value: path},
	)
	return nil
}

// errNoTerminal is returned when the dashboard cannot take over the screen
var errNoTerminal = errors.New("the dashboard needs a terminal; use a subcommand such as 'netdiag devices'")

func runDashboard(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return errNoTerminal
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	sess, err := session.Open(ctx, sessionConfig(true))
	if err != nil {
		return err
	}
	defer sess.Close()

	return tui.Run(ctx, sess, tui.Options{
		Origin:        appConfig.Backend.Origin,
		RecentDevices: appConfig.UI.RecentDevices,
	})
}
