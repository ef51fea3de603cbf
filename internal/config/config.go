package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default coordinates used when no device location is known (Vancouver, BC).
const (
	DefaultLatitude  = 49.2827
	DefaultLongitude = -123.1207
)

// LocationConfig holds the fallback coordinates for weather and daylight lookups.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	// UseDefault ignores any stored device location and always uses
	// Latitude/Longitude.
	UseDefault bool `yaml:"use_default" json:"use_default"`
}

// WeatherConfig configures the OpenWeatherMap client.
type WeatherConfig struct {
	APIKey  string `yaml:"api_key" json:"-"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	// CacheDir holds per-URL response caches. Empty disables the disk cache.
	CacheDir          string `yaml:"cache_dir" json:"cache_dir"`
	CacheTTLMinutes   int    `yaml:"cache_ttl_minutes" json:"cache_ttl_minutes"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RedisConfig is used when Storage.Driver is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	// Driver is "file" (default), "redis" or "memory".
	Driver string      `yaml:"driver" json:"driver"`
	Path   string      `yaml:"path" json:"path"`
	Redis  RedisConfig `yaml:"redis" json:"redis"`
}

// ScheduleConfig tunes how stored schedules feed the slot suggestion.
type ScheduleConfig struct {
	// SkipUnparseable drops entries with unreadable times instead of
	// treating them as starting or ending at midnight.
	SkipUnparseable bool `yaml:"skip_unparseable" json:"skip_unparseable"`
}

// ICSConfig describes a calendar subscription whose events count as busy time.
type ICSConfig struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
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

	// Timezone is the IANA timezone used to render sunrise/sunset and pick "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// for the background weather refresh and reminder.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Location LocationConfig `yaml:"location" json:"location"`
	Weather  WeatherConfig  `yaml:"weather" json:"weather"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// ICS is the list of subscribed calendars.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
	// ICSCacheDir holds the per-feed conditional-request cache.
	ICSCacheDir string `yaml:"ics_cache_dir" json:"ics_cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "America/Vancouver",
		LogLevel:    "info",
		RefreshCron: "*/30 * * * *",
		Location: LocationConfig{
			Latitude:  DefaultLatitude,
			Longitude: DefaultLongitude,
		},
		Weather: WeatherConfig{
			BaseURL:           "https://api.openweathermap.org",
			CacheDir:          "./var/weather-cache",
			CacheTTLMinutes:   10,
			TimeoutSeconds:    15,
			RequestsPerMinute: 50,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "./var/sadlamp-store.json",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "sadlamp",
			},
		},
		ICS:         []ICSConfig{},
		ICSCacheDir: "./var/ics-cache",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.Location.Latitude == 0 && c.Location.Longitude == 0 {
		c.Location.Latitude = def.Location.Latitude
		c.Location.Longitude = def.Location.Longitude
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = def.Weather.BaseURL
	}
	c.Weather.BaseURL = strings.TrimRight(c.Weather.BaseURL, "/")
	if c.Weather.CacheTTLMinutes <= 0 {
		c.Weather.CacheTTLMinutes = def.Weather.CacheTTLMinutes
	}
	if c.Weather.TimeoutSeconds <= 0 {
		c.Weather.TimeoutSeconds = def.Weather.TimeoutSeconds
	}
	if c.Weather.RequestsPerMinute <= 0 {
		c.Weather.RequestsPerMinute = def.Weather.RequestsPerMinute
	}

	switch c.Storage.Driver {
	case "file", "redis", "memory":
		// ok
	default:
		// Unknown value; fall back to the file store.
		c.Storage.Driver = def.Storage.Driver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = def.Storage.Redis.Addr
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = def.Storage.Redis.Prefix
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.ICSCacheDir == "" {
		c.ICSCacheDir = def.ICSCacheDir
	}
}

// Load loads configuration from the given YAML path and applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are never written back to disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				ApplyEnv(cfg)
				return cfg, err
			}
			ApplyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	ApplyEnv(&cfg)

	return &cfg, nil
}

// ApplyEnv overrides selected fields from the environment.
//
//	OPENWEATHERMAP_API_KEY, SADLAMP_WEATHER_API_KEY -> weather.api_key
//	SADLAMP_LISTEN                                  -> listen
//	SADLAMP_TIMEZONE                                -> timezone
//	SADLAMP_LOG_LEVEL                               -> log_level
//	SADLAMP_STORAGE_DRIVER                          -> storage.driver
//	SADLAMP_REDIS_ADDR                              -> storage.redis.addr
//	SADLAMP_USE_DEFAULT_LOCATION                    -> location.use_default
func ApplyEnv(c *Config) {
	v := viper.New()
	_ = v.BindEnv("weather.api_key", "SADLAMP_WEATHER_API_KEY", "OPENWEATHERMAP_API_KEY")
	_ = v.BindEnv("listen", "SADLAMP_LISTEN")
	_ = v.BindEnv("timezone", "SADLAMP_TIMEZONE")
	_ = v.BindEnv("log_level", "SADLAMP_LOG_LEVEL")
	_ = v.BindEnv("storage.driver", "SADLAMP_STORAGE_DRIVER")
	_ = v.BindEnv("storage.redis.addr", "SADLAMP_REDIS_ADDR")
	_ = v.BindEnv("location.use_default", "SADLAMP_USE_DEFAULT_LOCATION")

	if s := v.GetString("weather.api_key"); s != "" {
		c.Weather.APIKey = s
	}
	if s := v.GetString("listen"); s != "" {
		c.Listen = s
	}
	if s := v.GetString("timezone"); s != "" {
		c.Timezone = s
	}
	if s := v.GetString("log_level"); s != "" {
		c.LogLevel = s
	}
	if s := v.GetString("storage.driver"); s != "" {
		c.Storage.Driver = s
	}
	if s := v.GetString("storage.redis.addr"); s != "" {
		c.Storage.Redis.Addr = s
	}
	if v.IsSet("location.use_default") {
		c.Location.UseDefault = v.GetBool("location.use_default")
	}
	c.Normalize()
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".sadlamp-config-*.tmp")
}

// WriteFileAtomic writes data next to path under a temp name, fsyncs,
// chmods to 0600 and renames over path.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
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
