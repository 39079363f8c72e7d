// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/telemetry"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, def string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, def)
}

// Load resolves configuration with precedence ENV > File > Defaults and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.DataDir, "output")
	}
	if cfg.Sources != "" && !filepath.IsAbs(cfg.Sources) && l.configPath != "" {
		cfg.Sources = filepath.Join(filepath.Dir(l.configPath), cfg.Sources)
	}
	cfg.Version = l.version
	cfg.Telemetry.ServiceVersion = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "data",
		Sources: "sources.yaml",
		Engine: EngineConfig{
			Timezone: "Australia/Sydney",
			MinGap:   epg.DefaultMinGap,
			Workers:  4,
			Days:     7,
		},
		API: APIConfig{
			ListenAddr:   ":8080",
			RateLimit:    600,
			ProcessLimit: 10,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			TTL:        10 * time.Minute,
			MaxEntries: 512,
		},
		Schedule: ScheduleConfig{
			Cron:       "15 */6 * * *",
			RunOnStart: true,
		},
		Fetch: FetchConfig{
			Timeout:     60 * time.Second,
			MaxAge:      2 * time.Hour,
			Concurrency: 4,
		},
		Telemetry: telemetry.Config{
			ServiceName:  "webepg",
			Environment:  "production",
			ExporterType: telemetry.ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Log: LogConfig{Level: "info"},
	}
}

// loadFile decodes a YAML file over cfg. Unknown keys are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.OutputDir = l.envString("OUTPUT_DIR", cfg.OutputDir)
	cfg.Sources = l.envString("SOURCES", cfg.Sources)

	cfg.Engine.Timezone = l.envString("TIMEZONE", cfg.Engine.Timezone)
	cfg.Engine.MinGap = l.envDuration("MIN_GAP", cfg.Engine.MinGap)
	cfg.Engine.Workers = l.envInt("WORKERS", cfg.Engine.Workers)
	cfg.Engine.Days = l.envInt("DAYS", cfg.Engine.Days)

	cfg.API.ListenAddr = l.envString("LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.ProcessLimit = l.envInt("PROCESS_RATE_LIMIT", cfg.API.ProcessLimit)
	cfg.API.AllowedOrigins = l.envList("ALLOWED_ORIGINS", cfg.API.AllowedOrigins)

	cfg.Cache.Backend = l.envString("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = l.envString("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt("REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Schedule.Cron = l.envString("CRON", cfg.Schedule.Cron)
	cfg.Schedule.RunOnStart = l.envBool("RUN_ON_START", cfg.Schedule.RunOnStart)

	cfg.Fetch.Timeout = l.envDuration("FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.MaxAge = l.envDuration("FETCH_MAX_AGE", cfg.Fetch.MaxAge)
	cfg.Fetch.Concurrency = l.envInt("FETCH_CONCURRENCY", cfg.Fetch.Concurrency)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
}
