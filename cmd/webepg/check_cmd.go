// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bacco007/webepg/internal/config"
	"github.com/bacco007/webepg/internal/source"
	"github.com/bacco007/webepg/internal/store"
)

func storeFor(cfg config.AppConfig) *store.Store { return store.New(cfg.OutputDir) }

// runCheckCLI validates the configuration and the source index, and
// checks that every SQL source database is reachable and intact.
//
// Exit codes: 0 valid, 1 invalid, 2 usage error.
func runCheckCLI(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	skipDB := fs.Bool("skip-db", false, "do not open SQL source databases")
	timeout := fs.Duration("timeout", 30*time.Second, "database check timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return check(ctx, os.Stdout, *configPath, !*skipDB)
}

func check(ctx context.Context, out io.Writer, configPath string, checkDB bool) int {
	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		fmt.Fprintf(out, "configuration: %v\n", err)
		return 1
	}
	sources, err := config.LoadSources(cfg.Sources)
	if err != nil {
		fmt.Fprintf(out, "sources %s: %v\n", cfg.Sources, err)
		return 1
	}
	fmt.Fprintf(out, "configuration ok, %d sources\n", len(sources))

	if !checkDB {
		return 0
	}
	code := 0
	for _, src := range sources {
		if src.Kind != config.KindSQL {
			continue
		}
		if err := checkSQL(ctx, src); err != nil {
			fmt.Fprintf(out, "source %s: %v\n", src.ID, err)
			code = 1
			continue
		}
		fmt.Fprintf(out, "source %s: database ok\n", src.ID)
	}
	return code
}

func checkSQL(ctx context.Context, src config.Source) error {
	db, err := source.OpenSQL(src.Driver, src.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.Check(ctx)
}
