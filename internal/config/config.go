package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
)

// FileName is the config file looked up in the data directory
const FileName = "dosewise.yaml"

// Config holds all configuration for DoseWise
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Reminders     RemindersConfig     `mapstructure:"reminders" yaml:"reminders"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Catalog       CatalogConfig       `mapstructure:"catalog" yaml:"catalog"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP API settings. The API is unauthenticated and
// should stay on loopback.
type ServerConfig struct {
	Address      string   `mapstructure:"address" yaml:"address"`
	Port         int      `mapstructure:"port" yaml:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout" yaml:"write_timeout"`
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// StorageConfig selects and locates the user record backend
type StorageConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"` // badger, sqlite or memory
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
}

// RemindersConfig tunes the reminder scheduler and history retention
type RemindersConfig struct {
	LeadMinutes    int  `mapstructure:"lead_minutes" yaml:"lead_minutes"`
	MissedFollowUp bool `mapstructure:"missed_followup" yaml:"missed_followup"`
	RetentionDays  int  `mapstructure:"retention_days" yaml:"retention_days"`
}

// NotificationsConfig holds the permission used until a client answers
type NotificationsConfig struct {
	Granted bool `mapstructure:"granted" yaml:"granted"`
}

// CatalogConfig holds medicine lookup settings
type CatalogConfig struct {
	Path           string  `mapstructure:"path" yaml:"path"`
	RemoteEnabled  bool    `mapstructure:"remote_enabled" yaml:"remote_enabled"`
	RemoteURL      string  `mapstructure:"remote_url" yaml:"remote_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = ResolveEnvWithAliases("DOSEWISE_STORAGE_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "dosewise.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("catalog.path", filepath.Join(dataDir, "medicines.yaml"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, FileName)
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "failed to read config")
		}
	}

	// DOSEWISE_SERVER_PORT, DOSEWISE_STORAGE_DRIVER, ...
	v.SetEnvPrefix("DOSEWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration Load produces with no file or env
func Default(dataDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "dosewise.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("catalog.path", filepath.Join(dataDir, "medicines.yaml"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("storage.driver", "badger")

	v.SetDefault("reminders.lead_minutes", 5)
	v.SetDefault("reminders.missed_followup", false)
	v.SetDefault("reminders.retention_days", 90)

	v.SetDefault("notifications.granted", true)

	v.SetDefault("catalog.remote_enabled", true)
	v.SetDefault("catalog.remote_url", "https://rxnav.nlm.nih.gov/REST")
	v.SetDefault("catalog.timeout_seconds", 5)
	v.SetDefault("catalog.rate_per_second", 2.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// DefaultDataDir follows XDG_DATA_HOME, then ~/.local/share
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "dosewise")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "dosewise")
}

// loadEnvOverrides applies the unprefixed aliases people tend to export
func loadEnvOverrides(cfg *Config) {
	if port := ResolveEnvWithAliases("DOSEWISE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := ResolveEnvWithAliases("DOSEWISE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if url := ResolveEnvWithAliases("DOSEWISE_CATALOG_REMOTE_URL"); url != "" {
		cfg.Catalog.RemoteURL = url
	}
	cfg.Catalog.Path = ExpandPath(cfg.Catalog.Path)
	cfg.Storage.DataDir = ExpandPath(cfg.Storage.DataDir)
}

func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "badger", "sqlite", "memory":
	default:
		return apperrors.New(apperrors.ErrConfigInvalid.Code,
			fmt.Sprintf("storage.driver must be badger, sqlite or memory, got %q", cfg.Storage.Driver))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Reminders.LeadMinutes < 1 || cfg.Reminders.LeadMinutes > 120 {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, "reminders.lead_minutes must be between 1 and 120")
	}
	if cfg.Reminders.RetentionDays < 0 {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, "reminders.retention_days cannot be negative")
	}
	if cfg.Catalog.TimeoutSeconds <= 0 {
		cfg.Catalog.TimeoutSeconds = 5
	}
	if cfg.Catalog.RatePerSecond <= 0 {
		cfg.Catalog.RatePerSecond = 2
	}
	return nil
}

// Lead returns the reminder offset as a duration
func (c *Config) Lead() time.Duration {
	return time.Duration(c.Reminders.LeadMinutes) * time.Minute
}

// Listen returns the host:port the API binds to
func (c *Config) Listen() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// WriteFile writes cfg as YAML, refusing to clobber an existing file unless
// force is set
func WriteFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
