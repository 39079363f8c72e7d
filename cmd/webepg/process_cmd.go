// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bacco007/webepg/internal/jobs"
	applog "github.com/bacco007/webepg/internal/log"
)

// runProcessCLI performs a single ingestion run and prints its final
// status as JSON. It exits 1 when the run failed.
func runProcessCLI(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	force := fs.Bool("force", false, "download remote feeds even when fresh")
	only := fs.String("sources", "", "comma-separated source ids (default: all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	applog.Configure(applog.Config{Level: "info", Service: "webepg", Version: version})
	logger := applog.WithComponent("cli")
	cfg, _ := loadConfig(logger, *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, _, err := newRunner(cfg)
	if err != nil {
		logger.Error().Err(err).Str("event", "process.init_failed").Msg("cannot start ingestion")
		return 1
	}

	opts := jobs.Options{Force: *force}
	if *only != "" {
		for _, id := range strings.Split(*only, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.Sources = append(opts.Sources, id)
			}
		}
	}

	status, err := runner.Run(ctx, opts)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
	if err != nil || status.State == jobs.StateFailed {
		return 1
	}
	return 0
}
