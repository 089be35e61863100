package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"intracal/internal/model"
)

// StoreConfig points at the remote event store.
type StoreConfig struct {
	// BaseURL is the store API root, e.g. "https://intranet.example.com/api/store".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TimeoutSeconds bounds one store round trip. Zero means the client default.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is the minimum log level ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Timezone is the IANA timezone used as the display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for periodic snapshot refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WindowDays / BackfillDays define the default aggregation window:
	// [today - backfill, today + window].
	WindowDays   int `yaml:"window_days" json:"window_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// DefaultShareRole is assigned to picker targets selected without an
	// explicit role.
	DefaultShareRole string `yaml:"default_share_role" json:"default_share_role"`

	// FeedName is the display name of the exported iCalendar feed.
	FeedName string `yaml:"feed_name" json:"feed_name"`

	Store StoreConfig `yaml:"store" json:"store"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		LogLevel:         "info",
		Timezone:         "Asia/Seoul",
		RefreshCron:      "*/15 * * * *",
		WindowDays:       7,
		BackfillDays:     1,
		DefaultShareRole: string(model.RoleReader),
		FeedName:         "Intranet calendar",
		Store: StoreConfig{
			BaseURL:        "http://127.0.0.1:9090/api/store",
			TimeoutSeconds: 15,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs (e.g. older versions) still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.WindowDays <= 0 {
		c.WindowDays = def.WindowDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if !model.KnownRole(model.Role(c.DefaultShareRole)) {
		c.DefaultShareRole = def.DefaultShareRole
	}
	if c.FeedName == "" {
		c.FeedName = def.FeedName
	}
	if c.Store.BaseURL == "" {
		c.Store.BaseURL = def.Store.BaseURL
	}
	if c.Store.TimeoutSeconds <= 0 {
		c.Store.TimeoutSeconds = def.Store.TimeoutSeconds
	}
}

// DefaultRole returns the normalized default share role.
func (c *Config) DefaultRole() model.Role {
	r := model.Role(c.DefaultShareRole)
	if !model.KnownRole(r) {
		return model.RoleReader
	}
	return r
}

// Load reads configuration from the given YAML path. On first run
// (missing file) it writes a default config with 0600 permissions and
// returns it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".intracal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
