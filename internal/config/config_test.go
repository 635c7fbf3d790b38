package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
kpiforecast:
  url: https://example.com/kp.json
  cache_time: 3600
ssngraph:
  cache_file: /var/cache/sunflux/ssn.json
  cache_time: 12h
  retain: 30
alerts:
  max_age: 168h
images:
  cache_time: 1900
  sources:
    ki: images/station-k-index.png
showdxcc:
  db_driver: postgres
  db_name: postgres://localhost/dx
unknown_section:
  foo: bar
`

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.KpForecast.CacheTime.D() != 6*time.Hour || cfg.Sunspot.Retain != 90 || cfg.Alerts.Retain != 100 {
		t.Fatalf("unexpected feed defaults %+v %+v %+v", cfg.KpForecast, cfg.Sunspot, cfg.Alerts)
	}
	for name, f := range map[string]FeedConfig{
		"kpforecast": cfg.KpForecast,
		"ssn":        cfg.Sunspot,
		"alerts":     cfg.Alerts,
	} {
		if f.Retain <= 0 && f.MaxAge <= 0 {
			t.Errorf("%s: history has no retain or max_age bound", name)
		}
	}
	if cfg.Sunspot.CacheFile != filepath.Join("/tmp", "ssn.json") {
		t.Fatalf("unexpected cache file %s", cfg.Sunspot.CacheFile)
	}
	if cfg.DXEnabled() {
		t.Fatalf("DX must be disabled without a DSN")
	}
}

func TestOverlayKeepsMissingKeys(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Overlay([]byte(sampleYAML)); err != nil {
		t.Fatalf("overlay: %v", err)
	}

	if cfg.KpForecast.URL != "https://example.com/kp.json" || cfg.KpForecast.CacheTime.D() != time.Hour {
		t.Fatalf("unexpected kp config %+v", cfg.KpForecast)
	}
	if cfg.KpForecast.CacheFile != "kpforecast.json" {
		t.Fatalf("missing cache_file must keep the default, got %q", cfg.KpForecast.CacheFile)
	}
	if cfg.Sunspot.Retain != 30 || cfg.Sunspot.CacheTime.D() != 12*time.Hour {
		t.Fatalf("unexpected ssn config %+v", cfg.Sunspot)
	}
	if cfg.Alerts.MaxAge.D() != 7*24*time.Hour || cfg.Alerts.Retain != 100 {
		t.Fatalf("unexpected alerts config %+v", cfg.Alerts)
	}
	if cfg.Images.CacheTime.D() != 1900*time.Second || cfg.Images.Sources["ki"] == "" {
		t.Fatalf("unexpected images config %+v", cfg.Images)
	}
	if cfg.DX.Driver != "postgres" || !cfg.DXEnabled() {
		t.Fatalf("unexpected dx config %+v", cfg.DX)
	}
}

func TestOverlayRejectsBadDuration(t *testing.T) {
	cfg := Defaults()
	err := cfg.Overlay([]byte("ssngraph:\n  cache_time: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected a duration error, got %v", err)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sunflux.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CACHE_DIR", dir)
	t.Setenv("PORT", "9090")
	t.Setenv("REFRESH_INTERVAL", "30m")
	t.Setenv("CACHE_BACKEND", "Memory")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("DX_DB_DRIVER", "sqlite")
	t.Setenv("DX_DB_DSN", filepath.Join(dir, "dx.db"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "9090" || cfg.RefreshInterval != 30*time.Minute || cfg.CacheBackend != "memory" || !cfg.LogJSON {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.KpForecast.CacheFile != filepath.Join(dir, "kpforecast.json") {
		t.Fatalf("relative cache file not resolved: %s", cfg.KpForecast.CacheFile)
	}
	if cfg.Sunspot.CacheFile != "/var/cache/sunflux/ssn.json" {
		t.Fatalf("absolute cache file must be kept: %s", cfg.Sunspot.CacheFile)
	}
	if cfg.Images.CacheDir != filepath.Join(dir, "images") {
		t.Fatalf("unexpected image dir %s", cfg.Images.CacheDir)
	}
	if cfg.DX.Driver != "sqlite" || cfg.DX.DSN != filepath.Join(dir, "dx.db") {
		t.Fatalf("unexpected dx config %+v", cfg.DX)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"CACHE_BACKEND":    "redis",
		"REFRESH_INTERVAL": "10s",
		"PORT":             "http",
		"HTTP_TIMEOUT":     "never",
		"DX_DB_DRIVER":     "mysql",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, val)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":     0,
		"1900": 1900 * time.Second,
		"0.5":  500 * time.Millisecond,
		"4h":   4 * time.Hour,
		"90m":  90 * time.Minute,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		if err != nil || got != want {
			t.Errorf("parseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseDuration("fortnight"); err == nil {
		t.Errorf("expected an error for an unknown unit")
	}
}
