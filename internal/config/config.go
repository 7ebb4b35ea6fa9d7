package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "TT_"

type Config struct {
	Listen   string   `yaml:"listen" env:"LISTEN"`
	DataDir  string   `yaml:"data_dir" env:"DATA_DIR"`
	Language string   `yaml:"language" env:"LANGUAGE"`
	Modes    []string `yaml:"modes" env:"MODES" envSeparator:","`

	Upstream UpstreamConfig `yaml:"upstream" envPrefix:"UPSTREAM_"`
	Overlay  OverlayConfig  `yaml:"overlay" envPrefix:"OVERLAY_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
}

// UpstreamConfig selects where payloads come from: a directory of JSON files
// (Dir) or a GraphQL endpoint (URL). Dir wins when both are set.
type UpstreamConfig struct {
	Dir     string        `yaml:"dir" env:"DIR"`
	URL     string        `yaml:"url" env:"URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// RefreshEvery reloads every mode in the background; zero disables it.
	RefreshEvery time.Duration `yaml:"refresh_every" env:"REFRESH_EVERY"`
}

type OverlayConfig struct {
	URL       string        `yaml:"url" env:"URL"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RejectDir string        `yaml:"reject_dir" env:"REJECT_DIR"`
}

type CacheConfig struct {
	Path     string        `yaml:"path" env:"PATH"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
	Disabled bool          `yaml:"disabled" env:"DISABLED"`
}

const (
	DefaultCacheTTL = 12 * time.Hour
	MaxCacheTTL     = 24 * time.Hour
)

var knownModes = map[string]bool{"regular": true, "pve": true}

// Load reads path (optional) over the defaults, then applies TT_* environment
// overrides, then normalizes and validates.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		Listen:   ":8080",
		DataDir:  "./data",
		Language: "en",
		Modes:    []string{"regular", "pve"},
		Upstream: UpstreamConfig{
			URL:     "https://api.tarkov.dev/graphql",
			Timeout: 30 * time.Second,
		},
		Overlay: OverlayConfig{
			TTL:     time.Hour,
			Timeout: 5 * time.Second,
		},
		Cache: CacheConfig{TTL: DefaultCacheTTL},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Listen = strings.TrimSpace(c.Listen)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./data"
	}

	lang := strings.TrimSpace(strings.ReplaceAll(c.Language, "_", "-"))
	if tag, err := language.Parse(lang); err == nil {
		c.Language = tag.String()
	} else if lang == "" {
		c.Language = "en"
	}

	seen := map[string]bool{}
	modes := c.Modes[:0:0]
	for _, m := range c.Modes {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		modes = append(modes, m)
	}
	c.Modes = modes

	c.Upstream.Dir = strings.TrimSpace(c.Upstream.Dir)
	c.Upstream.URL = strings.TrimSpace(c.Upstream.URL)
	c.Overlay.URL = strings.TrimSpace(c.Overlay.URL)
	if c.Overlay.RejectDir == "" {
		c.Overlay.RejectDir = c.DataDir
	}
	if c.Cache.Path == "" {
		c.Cache.Path = c.DataDir + "/cache.db"
	}
	switch {
	case c.Cache.TTL <= 0:
		c.Cache.TTL = DefaultCacheTTL
	case c.Cache.TTL > MaxCacheTTL:
		c.Cache.TTL = MaxCacheTTL
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if _, err := language.Parse(c.Language); err != nil {
		errs = append(errs, fmt.Errorf("language %q: %w", c.Language, err))
	}
	if len(c.Modes) == 0 {
		errs = append(errs, errors.New("at least one mode is required"))
	}
	for _, m := range c.Modes {
		if !knownModes[m] {
			errs = append(errs, fmt.Errorf("unknown mode %q", m))
		}
	}
	if c.Upstream.Dir == "" && c.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream.dir or upstream.url is required"))
	}
	if c.Upstream.Dir == "" && c.Upstream.URL != "" {
		if err := validURL(c.Upstream.URL); err != nil {
			errs = append(errs, fmt.Errorf("upstream.url: %w", err))
		}
	}
	if c.Overlay.URL != "" {
		if err := validURL(c.Overlay.URL); err != nil {
			errs = append(errs, fmt.Errorf("overlay.url: %w", err))
		}
	}
	if c.Upstream.Timeout < 0 || c.Overlay.Timeout < 0 || c.Overlay.TTL < 0 || c.Upstream.RefreshEvery < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
