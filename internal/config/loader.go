package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNoConfig is returned when no config file exists and the environment
// does not supply a location either.
var ErrNoConfig = errors.New("no configuration found; run `suntheme locate <place> --save 1` or set SUNTHEME_LATITUDE/SUNTHEME_LONGITUDE")

const (
	appName        = "suntheme"
	configFileName = "config.yaml"
)

// LocationConfig is the fixed place whose sun times drive the mode
type LocationConfig struct {
	Name      string  `yaml:"name,omitempty"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// ThemePair names the light and dark theme for one consumer
type ThemePair struct {
	Light string `yaml:"light"`
	Dark  string `yaml:"dark"`
}

// ThemesConfig holds the theme pair for each consumer
type ThemesConfig struct {
	Ghostty ThemePair `yaml:"ghostty"`
	Neovim  ThemePair `yaml:"neovim"`
}

// PathsConfig locates the files the daemon reads and writes
type PathsConfig struct {
	CacheDir      string `yaml:"cache_dir"`
	StateDir      string `yaml:"state_dir"`
	GhosttyConfig string `yaml:"ghostty_config,omitempty"`
}

// ServicesConfig configures the external lookups
type ServicesConfig struct {
	OracleURL   string        `yaml:"oracle_url"`
	GeocoderURL string        `yaml:"geocoder_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// APIConfig configures the status HTTP server
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SchedulerConfig holds the loop timings
type SchedulerConfig struct {
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	WakeBuffer   time.Duration `yaml:"wake_buffer"`
	MaxSleep     time.Duration `yaml:"max_sleep"`
}

// Config represents the config.yaml structure
type Config struct {
	Location  LocationConfig  `yaml:"location"`
	Themes    ThemesConfig    `yaml:"themes"`
	Paths     PathsConfig     `yaml:"paths"`
	Services  ServicesConfig  `yaml:"services"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default returns a config with every field but the location filled in
func Default() *Config {
	return &Config{
		Themes: ThemesConfig{
			Ghostty: ThemePair{Light: "Builtin Solarized Light", Dark: "Builtin Solarized Dark"},
			Neovim:  ThemePair{Light: "solarized", Dark: "solarized"},
		},
		Paths: PathsConfig{
			CacheDir: defaultCacheDir(),
			StateDir: defaultStateDir(),
		},
		Services: ServicesConfig{
			OracleURL:   "https://api.sunrise-sunset.org",
			GeocoderURL: "https://nominatim.openstreetmap.org",
			Timeout:     10 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Port:    8765,
		},
		Scheduler: SchedulerConfig{
			RetryBackoff: 60 * time.Second,
			WakeBuffer:   5 * time.Second,
			MaxSleep:     time.Hour,
		},
	}
}

// Validate checks ranges and required fields
func (c *Config) Validate() error {
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Location.Longitude)
	}
	if c.Themes.Ghostty.Light == "" || c.Themes.Ghostty.Dark == "" {
		return fmt.Errorf("ghostty themes must not be empty")
	}
	if c.Paths.CacheDir == "" || c.Paths.StateDir == "" {
		return fmt.Errorf("cache_dir and state_dir must be set")
	}
	if c.Services.OracleURL == "" {
		return fmt.Errorf("oracle_url must be set")
	}
	if c.Services.Timeout <= 0 {
		return fmt.Errorf("services timeout must be positive, got %s", c.Services.Timeout)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api port %d out of range", c.API.Port)
	}
	if c.Scheduler.RetryBackoff <= 0 || c.Scheduler.WakeBuffer <= 0 || c.Scheduler.MaxSleep <= 0 {
		return fmt.Errorf("scheduler timings must be positive")
	}
	return nil
}

// CacheFile is the daily sun times cache record
func (c *Config) CacheFile() string {
	return filepath.Join(c.Paths.CacheDir, "sun_times.json")
}

// StateFile is the persisted last-applied mode
func (c *Config) StateFile() string {
	return filepath.Join(c.Paths.StateDir, "current_theme")
}

// HistoryDB is the SQLite transition log
func (c *Config) HistoryDB() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// Loader reads and writes the config file
type Loader struct {
	path   string
	logger *zap.Logger
}

// NewLoader creates a loader for the file at path. An empty path selects
// DefaultPath.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if path == "" {
		path = DefaultPath()
	}
	return &Loader{path: path, logger: logger}
}

// Path returns the config file location
func (l *Loader) Path() string {
	return l.path
}

// Load reads the config file, applies environment overrides and validates
// the result. Without a file, the environment must provide the location.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", l.path, err)
		}
		l.logger.Debug("Loaded configuration", zap.String("path", l.path))
	case os.IsNotExist(err):
		if os.Getenv("SUNTHEME_LATITUDE") == "" || os.Getenv("SUNTHEME_LONGITUDE") == "" {
			return nil, ErrNoConfig
		}
		l.logger.Debug("No config file, using environment", zap.String("path", l.path))
	default:
		return nil, fmt.Errorf("failed to read %s: %w", l.path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the config file, creating its directory
func (l *Loader) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", l.path, err)
	}
	l.logger.Info("Saved configuration", zap.String("path", l.path))
	return nil
}

// LoadOrDefault is Load, except that a missing config yields the defaults
// (plus environment overrides) with no location. Used by commands that create the config.
func (l *Loader) LoadOrDefault() (*Config, error) {
	cfg, err := l.Load()
	if errors.Is(err, ErrNoConfig) {
		cfg = Default()
		if err := applyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func applyEnv(cfg *Config) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"SUNTHEME_LATITUDE", &cfg.Location.Latitude},
		{"SUNTHEME_LONGITUDE", &cfg.Location.Longitude},
	}
	for _, f := range floats {
		if v := os.Getenv(f.key); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = parsed
		}
	}

	if v := os.Getenv("SUNTHEME_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUNTHEME_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"SUNTHEME_ORACLE_URL", &cfg.Services.OracleURL},
		{"SUNTHEME_GEOCODER_URL", &cfg.Services.GeocoderURL},
		{"SUNTHEME_CACHE_DIR", &cfg.Paths.CacheDir},
		{"SUNTHEME_STATE_DIR", &cfg.Paths.StateDir},
		{"SUNTHEME_GHOSTTY_CONFIG", &cfg.Paths.GhosttyConfig},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}
	return nil
}

// DefaultPath returns $SUNTHEME_CONFIG, or config.yaml in the user config dir
func DefaultPath() string {
	if p := os.Getenv("SUNTHEME_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(dir, appName, configFileName)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(dir, appName)
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, ".local", "state", appName)
}
