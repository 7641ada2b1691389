// Package config loads the daemon configuration from a YAML file, layered
// over built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file.
type Config struct {
	// DataDir is where ledger CSVs, summaries, and the shift archive live.
	DataDir   string    `yaml:"data_dir"`
	Broadcast Broadcast `yaml:"broadcast"`
}

// Broadcast configures the live websocket feed and the optional relay.
type Broadcast struct {
	Enabled    bool `yaml:"enabled"`
	ListenPort int  `yaml:"listen_port"`
	// RelayPort is where the external relay process serves plain TCP
	// consumers. Zero disables the relay.
	RelayPort          int  `yaml:"relay_port"`
	RelayAllInterfaces bool `yaml:"relay_all_interfaces"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir: "data",
		Broadcast: Broadcast{
			Enabled:    true,
			ListenPort: 32325,
			RelayPort:  42069,
		},
	}
}

// Load reads configuration from a YAML file layered over Default. If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges. Zero relay port is valid and means no relay.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Broadcast.Enabled && (c.Broadcast.ListenPort < 1 || c.Broadcast.ListenPort > 65535) {
		return fmt.Errorf("broadcast.listen_port %d out of range", c.Broadcast.ListenPort)
	}
	if c.Broadcast.RelayPort < 0 || c.Broadcast.RelayPort > 65535 {
		return fmt.Errorf("broadcast.relay_port %d out of range", c.Broadcast.RelayPort)
	}
	return nil
}
