package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Backend kinds.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Synchronization policies. An empty policy selects the backend default.
const (
	PolicyOptimistic    = "optimistic"
	PolicyAuthoritative = "authoritative"
)

// SyncConfig controls how the in-memory collection follows the backend.
type SyncConfig struct {
	// Policy is "optimistic", "authoritative" or empty for the backend default.
	Policy string `mapstructure:"policy" yaml:"policy"`

	// ReloadIntervalSec is how often the watch poller reloads.
	ReloadIntervalSec int `mapstructure:"reload_interval_sec" yaml:"reload_interval_sec"`
}

// SQLiteConfig locates the local key-value database.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// FirestoreConfig holds settings for the remote document collection.
type FirestoreConfig struct {
	ProjectID  string `mapstructure:"project_id" yaml:"project_id"`
	DatabaseID string `mapstructure:"database_id" yaml:"database_id"`
	Collection string `mapstructure:"collection" yaml:"collection"`

	// CredentialsFile is a service account JSON file. When empty the
	// credential stored in the keyring under CredentialsKey is used, and
	// failing that, application default credentials.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	CredentialsKey  string `mapstructure:"credentials_key" yaml:"credentials_key"`
}

// DisplayConfig holds output preferences.
type DisplayConfig struct {
	// Timezone is the IANA zone used for due labels; empty means local.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`

	// Countdown is "short" or "long".
	Countdown string `mapstructure:"countdown" yaml:"countdown"`
}

// LogConfig configures the zerolog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend   string          `mapstructure:"backend" yaml:"backend"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite" yaml:"sqlite"`
	Firestore FirestoreConfig `mapstructure:"firestore" yaml:"firestore"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// EffectivePolicy returns the configured policy, or the default for the
// configured backend: optimistic for the local store, authoritative for the
// remote one.
func (c *AppConfig) EffectivePolicy() string {
	if c.Sync.Policy != "" {
		return c.Sync.Policy
	}
	if c.Backend == BackendFirestore {
		return PolicyAuthoritative
	}
	return PolicyOptimistic
}

// Validate checks enumerated settings.
func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFirestore:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Sync.Policy {
	case "", PolicyOptimistic, PolicyAuthoritative:
	default:
		return fmt.Errorf("unknown sync policy %q", c.Sync.Policy)
	}
	switch c.Display.Countdown {
	case "short", "long":
	default:
		return fmt.Errorf("unknown countdown style %q", c.Display.Countdown)
	}
	if c.Backend == BackendFirestore && c.Firestore.ProjectID == "" {
		return errors.New("firestore.project_id is required for the firestore backend")
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/deadliner/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "deadliner", "config.yaml")
}

// DefaultDatabasePath returns the default SQLite location,
// ~/.local/share/deadliner/deadliner.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "deadliner.db"
	}
	return filepath.Join(home, ".local", "share", "deadliner", "deadliner.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendSQLite,
		Sync: SyncConfig{
			ReloadIntervalSec: 60,
		},
		SQLite: SQLiteConfig{
			Path: DefaultDatabasePath(),
		},
		Firestore: FirestoreConfig{
			DatabaseID:     "(default)",
			Collection:     "deadlines",
			CredentialsKey: "firestore-credentials",
		},
		Display: DisplayConfig{
			Countdown: "short",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("backend", d.Backend)
	v.SetDefault("sync.policy", d.Sync.Policy)
	v.SetDefault("sync.reload_interval_sec", d.Sync.ReloadIntervalSec)
	v.SetDefault("sqlite.path", d.SQLite.Path)
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.database_id", d.Firestore.DatabaseID)
	v.SetDefault("firestore.collection", d.Firestore.Collection)
	v.SetDefault("firestore.credentials_file", "")
	v.SetDefault("firestore.credentials_key", d.Firestore.CredentialsKey)
	v.SetDefault("display.timezone", "")
	v.SetDefault("display.countdown", d.Display.Countdown)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with DEADLINER_ override file values
// (DEADLINER_SQLITE_PATH overrides sqlite.path). If the file does not
// exist, defaults and environment overrides are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DEADLINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults must be registered so AutomaticEnv can see every key
	// during Unmarshal.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.ReloadIntervalSec <= 0 {
		cfg.Sync.ReloadIntervalSec = 60
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("sync", cfg.Sync)
	v.Set("sqlite", cfg.SQLite)
	v.Set("firestore", cfg.Firestore)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
