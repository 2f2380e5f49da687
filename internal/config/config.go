package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"contestcal/internal/model"
)

// APIConfig describes the remote contest service.
type APIConfig struct {
	// BaseURL is the prefix for /contests/upcoming and /contests/calendar,
	// e.g. "http://localhost:5000/api".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TimeoutSeconds bounds each request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// RequestsPerSecond throttles outbound queries; 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// CacheConfig selects where conditional-request metadata and bodies live.
type CacheConfig struct {
	// Backend is one of "disk" (default), "redis" or "none".
	Backend       string `yaml:"backend" json:"backend"`
	Dir           string `yaml:"dir" json:"dir"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
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

	// Timezone is the IANA zone every calendar-day computation uses. The
	// process-local zone is never consulted.
	Timezone string `yaml:"timezone" json:"timezone"`

	API APIConfig `yaml:"api" json:"api"`

	// Platforms is the initial platform filter.
	Platforms []string `yaml:"platforms" json:"platforms"`

	// UpcomingLimit is the page size of the upcoming list.
	UpcomingLimit int `yaml:"upcoming_limit" json:"upcoming_limit"`

	// Timeframe is the initial calendar range selector.
	Timeframe model.Timeframe `yaml:"timeframe" json:"timeframe"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// periodic refetching. Empty disables scheduled refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Cache CacheConfig `yaml:"cache" json:"cache"`
	Log   LogConfig   `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPlatforms is the filter used when none is configured.
var DefaultPlatforms = []string{"CODEFORCES", "ATCODER", "LEETCODE"}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "UTC",
		API: APIConfig{
			BaseURL:           "http://localhost:5000/api",
			TimeoutSeconds:    15,
			RequestsPerSecond: 5,
		},
		Platforms:     append([]string(nil), DefaultPlatforms...),
		UpcomingLimit: 20,
		Timeframe:     model.TimeframeThisMonth,
		RefreshCron:   "*/15 * * * *",
		Cache: CacheConfig{
			Backend:    "disk",
			Dir:        "./var/contest-cache",
			RedisAddr:  "localhost:6379",
			TTLSeconds: 3600,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		BasicAuth: nil,
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
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if c.API.RequestsPerSecond < 0 {
		c.API.RequestsPerSecond = 0
	}
	if c.Platforms == nil {
		c.Platforms = def.Platforms
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = def.UpcomingLimit
	}
	switch c.Timeframe {
	case model.TimeframeThisMonth, model.TimeframeNext30Days:
		// ok
	default:
		c.Timeframe = model.TimeframeThisMonth
	}

	switch c.Cache.Backend {
	case "disk", "redis", "none":
	case "":
		c.Cache.Backend = def.Cache.Backend
	default:
		c.Cache.Backend = "none"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = def.Cache.RedisAddr
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = def.Cache.TTLSeconds
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}
}

// Validate reports settings that cannot be repaired by Normalize.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
		}
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RequestTimeout is API.TimeoutSeconds as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
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
// Environment overrides (see ApplyEnv) are applied on top in both cases.
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
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// LoadDotEnv reads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays CONTESTCAL_* environment variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("CONTESTCAL_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_TIMEZONE"); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_API_BASE_URL"); ok && v != "" {
		c.API.BaseURL = strings.TrimRight(v, "/")
	}
	if v := getEnvAsInt("CONTESTCAL_API_TIMEOUT_SECONDS", 0); v > 0 {
		c.API.TimeoutSeconds = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_PLATFORMS"); ok && v != "" {
		c.Platforms = splitCSV(v)
	}
	if v := getEnvAsInt("CONTESTCAL_UPCOMING_LIMIT", 0); v > 0 {
		c.UpcomingLimit = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_REFRESH"); ok {
		c.RefreshCron = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_CACHE_BACKEND"); ok && v != "" {
		c.Cache.Backend = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_REDIS_ADDR"); ok && v != "" {
		c.Cache.RedisAddr = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_REDIS_PASSWORD"); ok {
		c.Cache.RedisPassword = v
	}
	if v, ok := os.LookupEnv("CONTESTCAL_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	c.Normalize()
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	return fallback
}

func splitCSV(s string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
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

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".contestcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
