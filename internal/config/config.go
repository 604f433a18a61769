// Package config loads the supervisor's JSON-with-comments configuration
// file, grounded on the teacher's dependency on github.com/tinode/jsonco
// (its own server config is loaded the same way, stripping // and /* */
// comments before handing the stream to encoding/json).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tinode/jsonco"
)

// Config is the supervisor's full configuration (spec.md §4.G: "Owns
// configuration, logging, and periodic jobs").
type Config struct {
	Listen struct {
		WebSocket string `json:"websocket_addr"`
		TCP       string `json:"tcp_addr"`
	} `json:"listen"`

	Store struct {
		Driver string `json:"driver"`
		DSN    string `json:"dsn"`
	} `json:"store"`

	Auth struct {
		TokenSecretHex   string `json:"token_secret_hex"`
		PBKDF2Iterations int    `json:"pbkdf2_iterations"`
		MaxUsernameLen   int    `json:"max_username_len"`
		MinPasswordLen   int    `json:"min_password_len"`
		LoginMaxTries    int    `json:"login_max_tries"`
		LoginLockoutSec  int    `json:"login_lockout_seconds"`
	} `json:"auth"`

	Directory struct {
		MaxConnections int `json:"max_connections"`
		MaxPerIP       int `json:"max_per_ip"`
		MaxPerUser     int `json:"max_per_user"`
	} `json:"directory"`

	Router struct {
		WorkerCount       int `json:"worker_count"`
		PruneIntervalSec  int `json:"prune_interval_seconds"`
		IdleTimeoutSec    int `json:"idle_timeout_seconds"`
	} `json:"router"`

	IDGen struct {
		WorkerID int `json:"worker_id"`
	} `json:"idgen"`

	Log struct {
		Level string `json:"level"`
	} `json:"log"`
}

// Load reads and parses a JSON-with-comments config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(jsonco.New(f))
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen.WebSocket == "" && c.Listen.TCP == "" {
		c.Listen.WebSocket = ":6060"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "./sims.db"
	}
	if c.Auth.PBKDF2Iterations == 0 {
		c.Auth.PBKDF2Iterations = 210_000
	}
	if c.Auth.MaxUsernameLen == 0 {
		c.Auth.MaxUsernameLen = 50
	}
	if c.Auth.MinPasswordLen == 0 {
		c.Auth.MinPasswordLen = 8
	}
	if c.Auth.LoginMaxTries == 0 {
		c.Auth.LoginMaxTries = 5
	}
	if c.Auth.LoginLockoutSec == 0 {
		c.Auth.LoginLockoutSec = 60
	}
	if c.Router.WorkerCount == 0 {
		c.Router.WorkerCount = 8
	}
	if c.Router.PruneIntervalSec == 0 {
		c.Router.PruneIntervalSec = 30
	}
	if c.Router.IdleTimeoutSec == 0 {
		c.Router.IdleTimeoutSec = 120
	}
}

// LoginLockout returns the configured lockout window as a time.Duration.
func (c *Config) LoginLockout() time.Duration {
	return time.Duration(c.Auth.LoginLockoutSec) * time.Second
}

// PruneInterval returns the directory prune cadence as a time.Duration.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.Router.PruneIntervalSec) * time.Second
}

// IdleTimeout returns the idle-connection cutoff as a time.Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Router.IdleTimeoutSec) * time.Second
}
