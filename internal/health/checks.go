// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IndexChecker reports whether a source index has been published. Before
// the first ingestion the daemon is up but has nothing to serve.
type IndexChecker struct {
	path string
}

// NewIndexChecker checks the index file at path.
func NewIndexChecker(path string) *IndexChecker { return &IndexChecker{path: path} }

// Name implements Checker.
func (c *IndexChecker) Name() string { return "source_index" }

// Check implements Checker.
func (c *IndexChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return CheckResult{Status: StatusDegraded, Message: "no data published yet"}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	case info.Size() == 0:
		return CheckResult{Status: StatusDegraded, Message: "index is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "published " + info.ModTime().UTC().Format(time.RFC3339)}
}

// RunInfo is what LastRunChecker needs to know about the latest run.
type RunInfo struct {
	State      string
	FinishedAt time.Time
}

// LastRunChecker degrades when the latest ingestion failed or is older
// than maxAge. It never reports unhealthy: stale data is still served.
type LastRunChecker struct {
	last   func() RunInfo
	maxAge time.Duration
	now    func() time.Time
}

// NewLastRunChecker returns a checker over last.
func NewLastRunChecker(last func() RunInfo, maxAge time.Duration) *LastRunChecker {
	return &LastRunChecker{last: last, maxAge: maxAge, now: time.Now}
}

// Name implements Checker.
func (c *LastRunChecker) Name() string { return "last_ingestion" }

// Check implements Checker.
func (c *LastRunChecker) Check(context.Context) CheckResult {
	info := c.last()
	switch {
	case info.State == "running":
		return CheckResult{Status: StatusHealthy, Message: "ingestion in progress"}
	case info.FinishedAt.IsZero():
		return CheckResult{Status: StatusDegraded, Message: "no ingestion run yet"}
	case info.State == "failed":
		return CheckResult{Status: StatusDegraded, Message: "last ingestion failed"}
	case c.maxAge > 0 && c.now().Sub(info.FinishedAt) > c.maxAge:
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("last ingestion older than %s", c.maxAge)}
	}
	return CheckResult{Status: StatusHealthy, Message: "last ingestion " + info.State}
}

// PingFunc probes a dependency.
type PingFunc func(ctx context.Context) error

// DependencyChecker marks the daemon unhealthy while ping fails.
type DependencyChecker struct {
	name    string
	ping    PingFunc
	timeout time.Duration
}

// NewDependencyChecker returns a checker bounded by timeout.
func NewDependencyChecker(name string, ping PingFunc, timeout time.Duration) *DependencyChecker {
	return &DependencyChecker{name: name, ping: ping, timeout: timeout}
}

// Name implements Checker.
func (c *DependencyChecker) Name() string { return c.name }

// Check implements Checker.
func (c *DependencyChecker) Check(ctx context.Context) CheckResult {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// EnsureWritableDir creates dir if needed and verifies files can be
// created in it.
func EnsureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", dir, err)
	}
	return os.Remove(probe)
}
