// Package config loads the Brisby TOML configuration file: data
// directory, known index providers, reserved DHT parameters, and
// transfer tuning. Grounded on jxwalker-modfetch's internal/config
// (Load/expandTilde/Validate shape), swapped from YAML to
// BurntSushi/toml per spec.md §6's TOML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// IndexProviderConfig names a known index provider's mixnet address.
type IndexProviderConfig struct {
	Name       string `toml:"name"`
	NymAddress string `toml:"nym_address"`
}

// DHTConfig carries the reserved seeder-discovery DHT parameters
// (spec.md §5, §9); nothing dispatches on them yet.
type DHTConfig struct {
	BootstrapNodes []string `toml:"bootstrap_nodes"`
	K              int      `toml:"k"`
	Alpha          int      `toml:"alpha"`
}

// TransferConfig holds transfer tuning. RequestTimeout bounds the CLI's
// search and publish exchanges; the downloader and seeder loops use
// their own fixed 30s timeouts, and MaxConcurrentRequests is not read.
type TransferConfig struct {
	MaxConcurrentRequests int `toml:"max_concurrent_requests"`
	RequestTimeoutSecs    int `toml:"request_timeout_secs"`
}

// RequestTimeout returns RequestTimeoutSecs as a time.Duration.
func (t TransferConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSecs) * time.Second
}

// Config is the parsed contents of the Brisby TOML config file
// (spec.md §6).
type Config struct {
	DataDir        string                `toml:"data_dir"`
	IndexProviders []IndexProviderConfig `toml:"index_providers"`
	DHT            DHTConfig             `toml:"dht"`
	Transfer       TransferConfig        `toml:"transfer"`
}

// DefaultDataDir is used when a config omits data_dir.
const DefaultDataDir = "~/.brisby"

// Default returns the configuration written by `brisby init` and used
// when no config file is present.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		DHT: DHTConfig{
			K:     10,
			Alpha: 3,
		},
		Transfer: TransferConfig{
			MaxConcurrentRequests: 50,
			RequestTimeoutSecs:    30,
		},
	}
}

// Load reads and parses the TOML config at path, expands a leading
// `~/` in data_dir, and fills in zero-valued fields from Default.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	c.applyDefaults()
	expanded, err := ExpandHome(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("config: expand data_dir: %w", err)
	}
	c.DataDir = expanded
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DHT.K == 0 {
		c.DHT.K = 10
	}
	if c.DHT.Alpha == 0 {
		c.DHT.Alpha = 3
	}
	if c.Transfer.MaxConcurrentRequests == 0 {
		c.Transfer.MaxConcurrentRequests = 50
	}
	if c.Transfer.RequestTimeoutSecs == 0 {
		c.Transfer.RequestTimeoutSecs = 30
	}
}

// Write serializes c as TOML to path, creating parent directories as
// needed.
func Write(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}

// ExpandHome expands a leading `~/` (or bare `~`) in p to the user's
// home directory. Used for data_dir in the config file and for the
// --data-dir CLI flags, which accept the same shorthand.
func ExpandHome(p string) (string, error) {
	if p == "" || p[0] != '~' {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return home, nil
	}
	if len(p) > 1 && p[1] == '/' {
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}

// EnsureDataDirs creates the chunks/, downloads/, and nym/
// subdirectories under dataDir, matching original_source's
// `init_config` behaviour (SPEC_FULL.md supplemented feature 2).
func EnsureDataDirs(dataDir string) error {
	for _, sub := range []string{"chunks", "downloads", "nym"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", sub, err)
		}
	}
	return nil
}
