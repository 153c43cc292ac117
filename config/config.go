// Package config manages application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all markserve configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// YtdlpPath is the yt-dlp executable.
	YtdlpPath    string
	YtdlpTimeout time.Duration
	// HTTPTimeout bounds a single outbound HTTP attempt.
	HTTPTimeout time.Duration
	// MinTranscriptLength is the quality gate threshold in characters.
	MinTranscriptLength int
	// YouTubeAPIKey enables title lookups through the Data API when set.
	YouTubeAPIKey string

	// StorageConfigFile persists the session storage root.
	StorageConfigFile string
	// MaxUploadBytes caps multipart request bodies.
	MaxUploadBytes int64

	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// LogLevel is debug, info, warn or error. LogFormat is text or json.
	LogLevel  string
	LogFormat string
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:                ":5000",
		YtdlpPath:           "yt-dlp",
		YtdlpTimeout:        2 * time.Minute,
		HTTPTimeout:         30 * time.Second,
		MinTranscriptLength: 50,
		StorageConfigFile:   "storage_config.json",
		MaxUploadBytes:      100 << 20,
		MaxRetries:          2,
		InitialBackoff:      500 * time.Millisecond,
		MaxBackoff:          5 * time.Second,
		BackoffMultiplier:   2.0,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// fileConfig mirrors Config in a JSON file. Durations are strings such as
// "30s"; absent keys keep their current value.
type fileConfig struct {
	Addr                *string  `json:"addr"`
	YtdlpPath           *string  `json:"ytdlp_path"`
	YtdlpTimeout        *string  `json:"ytdlp_timeout"`
	HTTPTimeout         *string  `json:"http_timeout"`
	MinTranscriptLength *int     `json:"min_transcript_length"`
	YouTubeAPIKey       *string  `json:"youtube_api_key"`
	StorageConfigFile   *string  `json:"storage_config_file"`
	MaxUploadBytes      *int64   `json:"max_upload_bytes"`
	MaxRetries          *int     `json:"max_retries"`
	InitialBackoff      *string  `json:"initial_backoff"`
	MaxBackoff          *string  `json:"max_backoff"`
	BackoffMultiplier   *float64 `json:"backoff_multiplier"`
	LogLevel            *string  `json:"log_level"`
	LogFormat           *string  `json:"log_format"`
}

// Load builds configuration from defaults, then a config file, then
// MARKSERVE_* environment variables. A .env file in the working directory
// is loaded into the environment first.
//
// The config file is MARKSERVE_CONFIG if set, otherwise the first of
// markserve.json and ~/.config/markserve/markserve.json that exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := cfg.loadFromFile(configPaths()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configPaths() []string {
	if p := os.Getenv("MARKSERVE_CONFIG"); p != "" {
		return []string{p}
	}
	paths := []string{"markserve.json"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "markserve", "markserve.json"))
	}
	return paths
}

// loadFromFile applies the first readable file in paths. It returns
// os.ErrNotExist when none exists.
func (c *Config) loadFromFile(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}

		var fc fileConfig
		if err := json.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := c.apply(fc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	return os.ErrNotExist
}

func (c *Config) apply(fc fileConfig) error {
	setString(&c.Addr, fc.Addr)
	setString(&c.YtdlpPath, fc.YtdlpPath)
	setString(&c.YouTubeAPIKey, fc.YouTubeAPIKey)
	setString(&c.StorageConfigFile, fc.StorageConfigFile)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.MinTranscriptLength != nil {
		c.MinTranscriptLength = *fc.MinTranscriptLength
	}
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.BackoffMultiplier != nil {
		c.BackoffMultiplier = *fc.BackoffMultiplier
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"ytdlp_timeout", fc.YtdlpTimeout, &c.YtdlpTimeout},
		{"http_timeout", fc.HTTPTimeout, &c.HTTPTimeout},
		{"initial_backoff", fc.InitialBackoff, &c.InitialBackoff},
		{"max_backoff", fc.MaxBackoff, &c.MaxBackoff},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// loadFromEnv overrides config with environment variables. PORT is honored
// for hosting platforms that set it.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("MARKSERVE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("MARKSERVE_YTDLP_PATH"); v != "" {
		c.YtdlpPath = v
	}
	if v := os.Getenv("MARKSERVE_YOUTUBE_API_KEY"); v != "" {
		c.YouTubeAPIKey = v
	}
	if v := os.Getenv("MARKSERVE_STORAGE_CONFIG_FILE"); v != "" {
		c.StorageConfigFile = v
	}
	if v := os.Getenv("MARKSERVE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MARKSERVE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}

	durations := map[string]*time.Duration{
		"MARKSERVE_YTDLP_TIMEOUT":   &c.YtdlpTimeout,
		"MARKSERVE_HTTP_TIMEOUT":    &c.HTTPTimeout,
		"MARKSERVE_INITIAL_BACKOFF": &c.InitialBackoff,
		"MARKSERVE_MAX_BACKOFF":     &c.MaxBackoff,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"MARKSERVE_MIN_TRANSCRIPT_LENGTH": &c.MinTranscriptLength,
		"MARKSERVE_MAX_RETRIES":           &c.MaxRetries,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("MARKSERVE_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MARKSERVE_MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	if v := os.Getenv("MARKSERVE_BACKOFF_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MARKSERVE_BACKOFF_MULTIPLIER: %w", err)
		}
		c.BackoffMultiplier = f
	}
	return nil
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.YtdlpPath == "" {
		return fmt.Errorf("ytdlp_path must not be empty")
	}
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.MinTranscriptLength <= 0 {
		return fmt.Errorf("min_transcript_length must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
