package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/sunflux/internal/common"
)

const defaultUserAgent = "sunflux/1.0 (+https://github.com/i474232898/sunflux)"

var validate = validator.New()

// Duration is a time.Duration that reads from YAML either as a number of
// seconds (1900) or as a Go duration string ("6h").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// FeedConfig configures one record feed.
type FeedConfig struct {
	URL       string   `yaml:"url" validate:"omitempty,url"`
	CacheFile string   `yaml:"cache_file" validate:"required"`
	CacheTime Duration `yaml:"cache_time" validate:"gte=0"`

	// Retain caps the cache to the newest N records (0 = unlimited).
	Retain int `yaml:"retain" validate:"gte=0"`
	// MaxAge drops records older than this (0 = unlimited).
	MaxAge Duration `yaml:"max_age" validate:"gte=0"`
}

// ImagesConfig configures the station images.
type ImagesConfig struct {
	BaseURL   string   `yaml:"base_url" validate:"omitempty,url"`
	CacheDir  string   `yaml:"cache_dir"`
	CacheTime Duration `yaml:"cache_time" validate:"gte=0"`

	// Sources overrides or adds image paths, keyed by image name.
	Sources map[string]string `yaml:"sources"`
}

// DXConfig points at the DX spot database. An empty DSN disables the DX
// endpoints.
type DXConfig struct {
	Driver string `yaml:"db_driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN    string `yaml:"db_name"`
}

type AppConfig struct {
	Port            string        `yaml:"-" validate:"required,numeric"`
	HTTPTimeout     time.Duration `yaml:"-" validate:"gt=0"`
	RefreshInterval time.Duration `yaml:"-" validate:"gte=1m"`
	CacheDir        string        `yaml:"-" validate:"required"`
	CacheBackend    string        `yaml:"-" validate:"oneof=file memory"`
	LogLevel        string        `yaml:"-"`
	LogJSON         bool          `yaml:"-"`
	UserAgent       string        `yaml:"-"`

	KpForecast FeedConfig   `yaml:"kpiforecast"`
	Sunspot    FeedConfig   `yaml:"ssngraph"`
	Alerts     FeedConfig   `yaml:"alerts"`
	Images     ImagesConfig `yaml:"images"`
	DX         DXConfig     `yaml:"showdxcc"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		Port:            "8080",
		HTTPTimeout:     10 * time.Second,
		RefreshInterval: 15 * time.Minute,
		CacheDir:        "/tmp",
		CacheBackend:    "file",
		LogLevel:        "INFO",
		UserAgent:       defaultUserAgent,

		KpForecast: FeedConfig{
			CacheFile: "kpforecast.json",
			CacheTime: Duration(6 * time.Hour),
			MaxAge:    Duration(30 * 24 * time.Hour),
		},
		Sunspot: FeedConfig{
			CacheFile: "ssn.json",
			CacheTime: Duration(12 * time.Hour),
			Retain:    90,
		},
		Alerts: FeedConfig{
			CacheFile: "alerts.json",
			CacheTime: Duration(4 * time.Hour),
			Retain:    100,
		},
		Images: ImagesConfig{
			CacheDir:  "images",
			CacheTime: Duration(1900 * time.Second),
		},
		DX: DXConfig{
			Driver: "sqlite",
		},
	}
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from a YAML file. Keys missing from the file keep their defaults;
// environment variables win over the file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found or error loading it", "error", err)
	}
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading CONFIG_FILE: %w", err)
		}
		if err := cfg.Overlay(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay applies a YAML document on top of cfg. Unknown keys are ignored.
func (c *AppConfig) Overlay(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return yaml.Unmarshal(data, c)
}

// Validate checks the configuration after defaults and overrides.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DXEnabled reports whether a DX database is configured.
func (c *AppConfig) DXEnabled() bool {
	return c.DX.DSN != ""
}

func (c *AppConfig) applyEnv() error {
	var err error

	c.Port = getenvDefault("PORT", c.Port)
	c.CacheDir = getenvDefault("CACHE_DIR", c.CacheDir)
	c.CacheBackend = strings.ToLower(getenvDefault("CACHE_BACKEND", c.CacheBackend))
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getenvBool("LOG_JSON", c.LogJSON)
	c.UserAgent = common.FirstNonEmpty(os.Getenv("USER_AGENT"), c.UserAgent, defaultUserAgent)

	if c.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", c.RefreshInterval); err != nil {
		return err
	}

	c.DX.Driver = strings.ToLower(common.FirstNonEmpty(os.Getenv("DX_DB_DRIVER"), c.DX.Driver, "sqlite"))
	c.DX.DSN = common.FirstNonEmpty(os.Getenv("DX_DB_DSN"), c.DX.DSN)
	return nil
}

// resolvePaths makes relative cache locations relative to CacheDir.
func (c *AppConfig) resolvePaths() {
	for _, f := range []*FeedConfig{&c.KpForecast, &c.Sunspot, &c.Alerts} {
		f.CacheFile = c.under(f.CacheFile)
	}
	c.Images.CacheDir = c.under(c.Images.CacheDir)
}

func (c *AppConfig) under(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.CacheDir, p)
}

// parseDuration accepts plain seconds ("1900", "0.5") or a Go duration.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
