// Package config holds runtime settings and the persistent state file.
// Settings are resolved in three stages: defaults, then an optional JSON
// config file, then command-line flags. Later stages win.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Backend selects the vault persistence backend.
type Backend string

const (
	// BackendKeyring stores the vault JSON in the platform credential store.
	BackendKeyring Backend = "keyring"
	// BackendEnvelope stores a passphrase-encrypted blob in the state file.
	BackendEnvelope Backend = "envelope"
)

// Config holds runtime settings for keyfob.
//
// Fields:
//   - AppID: service identifier used to address the platform credential store.
//   - Backend: which vault persistence backend to use.
//   - StateDir: directory for the state file; empty means the OS user
//     config dir.
//   - FrameInterval: countdown animation tick period.
//   - Workers: background worker pool size for load/save tasks.
type Config struct {
	AppID         string
	Backend       Backend
	StateDir      string
	FrameInterval time.Duration
	Workers       int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.AppID = "keyfob"
	c.Backend = BackendEnvelope
	c.StateDir = ""
	c.FrameInterval = 250 * time.Millisecond
	c.Workers = 2
}

// LoadConfig constructs a Config from defaults, an optional JSON file and
// command-line flags, in that order of precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	fs := flag.NewFlagSet("keyfob", flag.ContinueOnError)
	configPath := fs.String("c", "", "path to JSON config file")
	backend := fs.String("b", "", "vault backend: keyring or envelope")
	stateDir := fs.String("d", "", "state directory (default: OS user config dir)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := parseJson(cfg, *configPath); err != nil {
		return nil, err
	}

	// Flags override the JSON file.
	if *backend != "" {
		cfg.Backend = Backend(*backend)
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendKeyring, BackendEnvelope:
	default:
		return fmt.Errorf("unknown backend %q", string(c.Backend))
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}
