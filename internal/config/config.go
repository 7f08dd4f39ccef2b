package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Cache     CacheConfig     `yaml:"cache"`
	Player    PlayerConfig    `yaml:"player"`
	Workout   WorkoutConfig   `yaml:"workout"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// APIConfig points at the workout backend. An empty BaseURL keeps
// progress reports local (logged only).
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	MaxConcurrentDecodes int64         `yaml:"max_concurrent_decodes"`
	MaxEntries           int           `yaml:"max_entries"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	MaxBytes             int64         `yaml:"max_bytes"`
	MinFrameDelay        time.Duration `yaml:"min_frame_delay"`
}

type PlayerConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Scaler string `yaml:"scaler"`
}

type WorkoutConfig struct {
	Countdown         int           `yaml:"countdown"`
	AutoAdvance       time.Duration `yaml:"auto_advance"`
	RepDebounce       time.Duration `yaml:"rep_debounce"`
	PreviousThreshold time.Duration `yaml:"previous_threshold"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Database DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8420},
		API:    APIConfig{Timeout: 10 * time.Second},
		Cache: CacheConfig{
			MaxConcurrentDecodes: 2,
			MaxEntries:           64,
			FetchTimeout:         30 * time.Second,
			MaxBytes:             32 << 20,
			MinFrameDelay:        100 * time.Millisecond,
		},
		Player: PlayerConfig{Width: 480, Height: 360, Scaler: "approx-bilinear"},
		Workout: WorkoutConfig{
			Countdown:         3,
			AutoAdvance:       3 * time.Second,
			RepDebounce:       700 * time.Millisecond,
			PreviousThreshold: 2 * time.Second,
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			Path:     "data/fitcourse.db",
			Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "fitcourse", User: "fitcourse"},
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Tailscale: TailscaleConfig{Hostname: "fitcourse", StateDir: "data/tsnet"},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides. Env vars use the prefix FITCOURSE_ and
// underscore-separated paths:
//
//	FITCOURSE_SERVER_HOST, FITCOURSE_SERVER_PORT, FITCOURSE_SERVER_API_KEY,
//	FITCOURSE_API_BASE_URL, FITCOURSE_API_TOKEN,
//	FITCOURSE_STORE_DRIVER, FITCOURSE_STORE_PATH,
//	FITCOURSE_DB_HOST, FITCOURSE_DB_PORT, FITCOURSE_DB_NAME,
//	FITCOURSE_DB_USER, FITCOURSE_DB_PASSWORD, FITCOURSE_DB_SSLMODE,
//	FITCOURSE_LOG_LEVEL, FITCOURSE_LOG_FORMAT, FITCOURSE_TAILSCALE_ENABLED
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("FITCOURSE_SERVER_HOST", &cfg.Server.Host)
	setInt("FITCOURSE_SERVER_PORT", &cfg.Server.Port)
	setString("FITCOURSE_SERVER_API_KEY", &cfg.Server.APIKey)
	setString("FITCOURSE_API_BASE_URL", &cfg.API.BaseURL)
	setString("FITCOURSE_API_TOKEN", &cfg.API.Token)
	setString("FITCOURSE_STORE_DRIVER", &cfg.Store.Driver)
	setString("FITCOURSE_STORE_PATH", &cfg.Store.Path)
	setString("FITCOURSE_DB_HOST", &cfg.Store.Database.Host)
	setInt("FITCOURSE_DB_PORT", &cfg.Store.Database.Port)
	setString("FITCOURSE_DB_NAME", &cfg.Store.Database.Name)
	setString("FITCOURSE_DB_USER", &cfg.Store.Database.User)
	setString("FITCOURSE_DB_PASSWORD", &cfg.Store.Database.Password)
	setString("FITCOURSE_DB_SSLMODE", &cfg.Store.Database.SSLMode)
	setString("FITCOURSE_LOG_LEVEL", &cfg.Log.Level)
	setString("FITCOURSE_LOG_FORMAT", &cfg.Log.Format)
	if v := os.Getenv("FITCOURSE_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Cache.MaxConcurrentDecodes < 1 {
		return fmt.Errorf("cache.max_concurrent_decodes must be at least 1")
	}
	if c.Cache.MinFrameDelay <= 0 {
		return fmt.Errorf("cache.min_frame_delay must be positive")
	}
	if c.Player.Width <= 0 || c.Player.Height <= 0 {
		return fmt.Errorf("player.width and player.height are required")
	}
	if c.Workout.Countdown < 1 {
		return fmt.Errorf("workout.countdown must be at least 1")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.Database.Host == "" {
			return fmt.Errorf("store.database.host is required")
		}
		if c.Store.Database.Name == "" {
			return fmt.Errorf("store.database.name is required")
		}
		if c.Store.Database.User == "" {
			return fmt.Errorf("store.database.user is required")
		}
	case "none":
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver)
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("log.format must be text, json or pretty, got %q", c.Log.Format)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
