// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bacco007/webepg/internal/telemetry"
)

// CronParser accepts standard five-field expressions and descriptors such
// as "@daily".
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if cfg.DataDir == "" {
		add("dataDir", "must not be empty")
	}
	if _, err := time.LoadLocation(cfg.Engine.Timezone); err != nil || cfg.Engine.Timezone == "" {
		add("engine.timezone", "unknown timezone %q", cfg.Engine.Timezone)
	}
	if cfg.Engine.MinGap < 0 {
		add("engine.minGap", "must not be negative")
	}
	if cfg.Engine.Workers < 1 {
		add("engine.workers", "must be at least 1")
	}
	if cfg.Engine.Days < 1 {
		add("engine.days", "must be at least 1")
	}

	if _, _, err := net.SplitHostPort(cfg.API.ListenAddr); err != nil {
		add("api.listenAddr", "%v", err)
	}
	if cfg.API.RateLimit < 0 || cfg.API.ProcessLimit < 0 {
		add("api.rateLimit", "must not be negative")
	}

	switch cfg.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			add("cache.redis.addr", "required for the redis backend")
		}
	default:
		add("cache.backend", "unsupported backend %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL <= 0 {
		add("cache.ttl", "must be positive")
	}

	if cfg.Schedule.Cron != "" {
		if _, err := CronParser.Parse(cfg.Schedule.Cron); err != nil {
			add("schedule.cron", "%v", err)
		}
	}

	if cfg.Fetch.Concurrency < 1 {
		add("fetch.concurrency", "must be at least 1")
	}
	if cfg.Fetch.Timeout <= 0 {
		add("fetch.timeout", "must be positive")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case telemetry.ExporterGRPC, telemetry.ExporterHTTP:
		default:
			add("telemetry.exporter", "unsupported exporter %q", cfg.Telemetry.ExporterType)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate", "must be within [0, 1]")
		}
	}

	return errors.Join(errs...)
}
