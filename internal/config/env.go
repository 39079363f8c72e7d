// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bacco007/webepg/internal/log"
)

// EnvPrefix is prepended to every environment key read by the loader.
const EnvPrefix = "WEBEPG_"

// lookupEnv returns the value of key when it is set and not empty. Sensitive
// values are never logged.
func lookupEnv(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	lk := strings.ToLower(key)
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if strings.Contains(lk, "password") || strings.Contains(lk, "dsn") {
		ev.Bool("sensitive", true).Msg("using environment variable")
	} else {
		ev.Str("value", v).Msg("using environment variable")
	}
	return v, true
}

// ParseString reads a string from the environment or returns def.
func ParseString(key, def string) string {
	if v, ok := lookupEnv(log.WithComponent("config"), key); ok {
		return v
	}
	return def
}

// ParseInt reads an integer from the environment. Invalid values fall back
// to def with a warning.
func ParseInt(key string, def int) int {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", def).
			Msg("invalid integer in environment variable, using default")
		return def
	}
	return i
}

// ParseBool reads a boolean from the environment.
func ParseBool(key string, def bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Bool("default", def).
			Msg("invalid boolean in environment variable, using default")
		return def
	}
	return b
}

// ParseDuration reads a Go duration ("90s", "2h") from the environment.
func ParseDuration(key string, def time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Dur("default", def).
			Msg("invalid duration in environment variable, using default")
		return def
	}
	return d
}

// ParseFloat reads a float from the environment.
func ParseFloat(key string, def float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Float64("default", def).
			Msg("invalid float in environment variable, using default")
		return def
	}
	return f
}

// ParseList reads a comma separated list from the environment.
func ParseList(key string, def []string) []string {
	v, ok := lookupEnv(log.WithComponent("config"), key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
