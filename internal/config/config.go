package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all environment-based configuration for drivesync.
type Config struct {
	// Account is the active account identifier (user@host).
	Account string `env:"DRIVESYNC_ACCOUNT"`

	// FeedURL is the WebSocket address of the worker event bus.
	FeedURL string `env:"DRIVESYNC_FEED_URL" envDefault:"ws://127.0.0.1:8445/events"`

	// WorkerURL is the HTTP address where worker commands (folder
	// refresh, download requests) are posted.
	WorkerURL string `env:"DRIVESYNC_WORKER_URL" envDefault:"http://127.0.0.1:8445"`

	// CachePath is the metadata cache database location. Defaults to
	// ~/.drivesync/cache.db.
	CachePath string `env:"DRIVESYNC_CACHE_PATH"`

	// ContentDir is where download workers place cached file content.
	// Defaults to ~/.drivesync/content/<account>/.
	ContentDir string `env:"DRIVESYNC_CONTENT_DIR"`

	// AccountsFile optionally points to a YAML file of known account
	// profiles. Used to resolve Account when unset and only one
	// profile exists.
	AccountsFile string `env:"DRIVESYNC_ACCOUNTS_FILE"`

	// DebounceMs overrides the refresh debounce window. Zero keeps the
	// built-in default.
	DebounceMs int `env:"DRIVESYNC_DEBOUNCE_MS" envDefault:"0"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// AccountProfile describes one known account in the accounts file.
type AccountProfile struct {
	Name       string `yaml:"name"`
	ServerURL  string `yaml:"server_url"`
	ContentDir string `yaml:"content_dir"`
}

// Debounce returns the configured debounce window, or zero when the
// default should apply.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables. It first
// attempts to load a .env file if present, then parses env vars and
// fills defaults that need the home directory or the accounts file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Account == "" && cfg.AccountsFile != "" {
		profiles, err := LoadAccounts(cfg.AccountsFile)
		if err != nil {
			return nil, fmt.Errorf("loading accounts file: %w", err)
		}

		if len(profiles) == 1 {
			cfg.Account = profiles[0].Name

			if cfg.ContentDir == "" && profiles[0].ContentDir != "" {
				cfg.ContentDir = profiles[0].ContentDir
			}
		}
	}

	if cfg.Account == "" {
		return nil, fmt.Errorf("DRIVESYNC_ACCOUNT is required")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}

	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(home, ".drivesync", "cache.db")
	}

	if cfg.ContentDir == "" {
		cfg.ContentDir = filepath.Join(home, ".drivesync", "content", cfg.Account)
	}

	return cfg, nil
}

// LoadAccounts parses the YAML accounts file.
func LoadAccounts(path string) ([]AccountProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Accounts []AccountProfile `yaml:"accounts"`
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return doc.Accounts, nil
}
