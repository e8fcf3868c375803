package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in the
// manager or the command line.
type Config struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr"`
	CacheDir   string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	LibraryDir string `json:"library_dir" yaml:"library_dir" toml:"library_dir"`

	MaxQueues               int `json:"max_queues" yaml:"max_queues" toml:"max_queues"`
	QueueIdleTimeoutSeconds int `json:"queue_idle_timeout_seconds" yaml:"queue_idle_timeout_seconds" toml:"queue_idle_timeout_seconds"`
	LRUSize                 int `json:"lru_size" yaml:"lru_size" toml:"lru_size"`
	MaxAnimations           int `json:"max_animations" yaml:"max_animations" toml:"max_animations"`

	ConnectTimeoutMs    int   `json:"connect_timeout_ms" yaml:"connect_timeout_ms" toml:"connect_timeout_ms"`
	ReadTimeoutMs       int   `json:"read_timeout_ms" yaml:"read_timeout_ms" toml:"read_timeout_ms"`
	NetworkCacheEnabled *bool `json:"network_cache_enabled" yaml:"network_cache_enabled" toml:"network_cache_enabled"`

	DefaultWidth      int     `json:"default_width" yaml:"default_width" toml:"default_width"`
	DefaultHeight     int     `json:"default_height" yaml:"default_height" toml:"default_height"`
	LimitFps          bool    `json:"limit_fps" yaml:"limit_fps" toml:"limit_fps"`
	ScreenRefreshRate float64 `json:"screen_refresh_rate" yaml:"screen_refresh_rate" toml:"screen_refresh_rate"`

	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods  []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders  []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can honor. Zero stays valid and
// means "use the default".
func (c Config) Validate() error {
	var errs *multierror.Error
	nonNegative := func(name string, v int) {
		if v < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be >= 0, got %d", name, v))
		}
	}
	nonNegative("max_queues", c.MaxQueues)
	nonNegative("queue_idle_timeout_seconds", c.QueueIdleTimeoutSeconds)
	nonNegative("lru_size", c.LRUSize)
	nonNegative("max_animations", c.MaxAnimations)
	nonNegative("connect_timeout_ms", c.ConnectTimeoutMs)
	nonNegative("read_timeout_ms", c.ReadTimeoutMs)
	nonNegative("default_width", c.DefaultWidth)
	nonNegative("default_height", c.DefaultHeight)
	if c.ScreenRefreshRate < 0 {
		errs = multierror.Append(errs, fmt.Errorf("screen_refresh_rate must be >= 0, got %v", c.ScreenRefreshRate))
	}
	if c.MaxBodyBytes < 0 {
		errs = multierror.Append(errs, fmt.Errorf("max_body_bytes must be >= 0, got %d", c.MaxBodyBytes))
	}
	return errs.ErrorOrNil()
}

func (c Config) QueueIdleTimeout() time.Duration {
	return time.Duration(c.QueueIdleTimeoutSeconds) * time.Second
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// NetworkCache reports whether URL loads consult the on-disk cache. It
// defaults to true.
func (c Config) NetworkCache() bool {
	return c.NetworkCacheEnabled == nil || *c.NetworkCacheEnabled
}
