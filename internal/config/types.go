// SPDX-License-Identifier: MIT

package config

import (
	"time"

	"github.com/bacco007/webepg/internal/telemetry"
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	// DataDir holds downloaded feeds and the generated output tree.
	DataDir string `yaml:"dataDir"`
	// OutputDir defaults to {DataDir}/output.
	OutputDir string `yaml:"outputDir"`
	// Sources is the path of the source index file.
	Sources string `yaml:"sources"`

	Engine    EngineConfig     `yaml:"engine"`
	API       APIConfig        `yaml:"api"`
	Cache     CacheConfig      `yaml:"cache"`
	Schedule  ScheduleConfig   `yaml:"schedule"`
	Fetch     FetchConfig      `yaml:"fetch"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Log       LogConfig        `yaml:"log"`
}

// EngineConfig controls normalization.
type EngineConfig struct {
	Timezone string        `yaml:"timezone"`
	MinGap   time.Duration `yaml:"minGap"`
	Workers  int           `yaml:"workers"`
	// Days is how far ahead SQL sources are read.
	Days int `yaml:"days"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	ListenAddr     string        `yaml:"listenAddr"`
	RateLimit      int           `yaml:"rateLimit"`        // requests per minute per client
	ProcessLimit   int           `yaml:"processRateLimit"` // POST /process per minute per client
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig selects the timeline cache.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig addresses the Redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ScheduleConfig controls periodic ingestion. An empty Cron disables it.
type ScheduleConfig struct {
	Cron       string `yaml:"cron"`
	RunOnStart bool   `yaml:"runOnStart"`
}

// FetchConfig controls remote feed downloads.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAge      time.Duration `yaml:"maxAge"`
	Concurrency int           `yaml:"concurrency"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level"`
}
