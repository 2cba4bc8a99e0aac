// Package config manages the netdiag configuration file.
//
// The file is YAML and lives in the platform's configuration directory:
//   - Linux: $XDG_CONFIG_HOME/netdiag/config.yaml or $HOME/.config/netdiag/config.yaml
//   - macOS: $HOME/.config/netdiag/config.yaml
//   - Windows: %LOCALAPPDATA%\netdiag\config.yaml
//
// A missing file yields the defaults. NETDIAG_BACKEND overrides the backend
// origin from the file; command-line flags override both.
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	cfg.Backend.Origin = "http://diag.lan:5000"
//	if err := cfg.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The global configuration is loaded once with sync.Once. Saves are
// serialized by a mutex and written atomically (temp file, then rename).
package config
