package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/netdiag/internal/models"
	"github.com/muurk/netdiag/internal/store"
	"github.com/muurk/netdiag/internal/transport"
)

const (
	appName    = "netdiag"
	configFile = "config.yaml"

	// CurrentVersion is the config file format version
	CurrentVersion = 1

	// BackendEnvVar overrides backend.origin
	BackendEnvVar = "NETDIAG_BACKEND"
)

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigErr  error

	fileMutex sync.Mutex
)

// Config is the whole configuration file
type Config struct {
	Version int           `yaml:"version"`
	Backend BackendConfig `yaml:"backend"`
	Push    PushConfig    `yaml:"push"`
	Store   StoreConfig   `yaml:"store"`
	UI      UIConfig      `yaml:"ui"`
	LogFile string        `yaml:"log_file,omitempty"` // Empty = no log file
}

// BackendConfig locates the diagnostics backend
type BackendConfig struct {
	Origin   string        `yaml:"origin"`    // e.g. "http://localhost:5000"
	PushPath string        `yaml:"push_path"` // WebSocket path on the same origin
	Timeout  time.Duration `yaml:"timeout"`   // Per-request timeout
}

// PushConfig tunes the push channel
type PushConfig struct {
	Reconnect    bool          `yaml:"reconnect"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// StoreConfig tunes the view-model store
type StoreConfig struct {
	DeviceMerge string `yaml:"device_merge"` // last-write-wins | versioned
}

// UIConfig holds dashboard preferences
type UIConfig struct {
	DefaultView   string `yaml:"default_view"`
	RecentDevices int    `yaml:"recent_devices"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Backend: BackendConfig{
			Origin:   transport.DefaultOrigin,
			PushPath: transport.DefaultPushPath,
			Timeout:  transport.DefaultTimeout,
		},
		Push: PushConfig{
			Reconnect:    true,
			InitialDelay: transport.DefaultInitialDelay,
			MaxDelay:     transport.DefaultMaxDelay,
		},
		Store: StoreConfig{
			DeviceMerge: store.MergeLastWriteWins.String(),
		},
		UI: UIConfig{
			DefaultView:   string(models.ViewDashboard),
			RecentDevices: 5,
		},
	}
}

// GetConfigDir returns the OS-appropriate configuration directory
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the configuration file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load returns the global configuration, reading it from disk on first use
// and applying environment overrides.
func Load() (*Config, error) {
	globalConfigOnce.Do(func() {
		var path string
		path, globalConfigErr = GetConfigPath()
		if globalConfigErr != nil {
			return
		}
		globalConfig, globalConfigErr = LoadFrom(path)
		if globalConfigErr == nil {
			globalConfig.ApplyEnv()
		}
	})
	return globalConfig, globalConfigErr
}

// LoadFrom reads one configuration file. A missing file yields Default().
// Fields absent from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv applies environment variable overrides
func (c *Config) ApplyEnv() {
	if origin := strings.TrimSpace(os.Getenv(BackendEnvVar)); origin != "" {
		c.Backend.Origin = origin
	}
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if _, err := transport.NormalizeOrigin(c.Backend.Origin); err != nil {
		return fmt.Errorf("backend.origin: %w", err)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Push.InitialDelay <= 0 || c.Push.MaxDelay < c.Push.InitialDelay {
		return fmt.Errorf("push delays must satisfy 0 < initial_delay <= max_delay (got %s, %s)", c.Push.InitialDelay, c.Push.MaxDelay)
	}
	if _, err := store.ParseMergePolicy(c.Store.DeviceMerge); err != nil {
		return fmt.Errorf("store.device_merge: %w", err)
	}
	if _, err := models.ParseView(c.UI.DefaultView); err != nil {
		return fmt.Errorf("ui.default_view: %w", err)
	}
	if c.UI.RecentDevices < 0 {
		return fmt.Errorf("ui.recent_devices must not be negative, got %d", c.UI.RecentDevices)
	}
	return nil
}

// MergePolicy returns the parsed store.device_merge value
func (c *Config) MergePolicy() store.MergePolicy {
	p, _ := store.ParseMergePolicy(c.Store.DeviceMerge)
	return p
}

// DefaultView returns the parsed ui.default_view value
func (c *Config) DefaultView() models.View {
	v, err := models.ParseView(c.UI.DefaultView)
	if err != nil {
		return models.ViewDashboard
	}
	return v
}

// SetBackend validates and stores a new backend origin
func (c *Config) SetBackend(origin string) error {
	normalized, err := transport.NormalizeOrigin(origin)
	if err != nil {
		return err
	}
	c.Backend.Origin = normalized
	return nil
}

// Save writes the configuration to the platform config path
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path atomically
func (c *Config) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	header := []byte("# netdiag configuration file\n# Location: " + path + "\n\n")
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Reload discards the cached global configuration and reads it again
func Reload() (*Config, error) {
	fileMutex.Lock()
	globalConfigOnce = sync.Once{}
	fileMutex.Unlock()
	return Load()
}
