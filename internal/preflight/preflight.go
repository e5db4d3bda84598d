// Package preflight validates the runtime environment before a render
// service starts: directory access, listen address shape, and external
// binaries required by the configured backend.
package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"gifsmith/internal/config"
	"gifsmith/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}
	results = append(results, CheckBindAddress(cfg.HTTP.Bind))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: statusDetail(status),
		})
	}
	return results
}

// Failures filters results down to the failed checks.
func Failures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckDirectoryAccess verifies the path exists, is a directory, and is
// readable, writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBindAddress validates the HTTP listen address without binding it.
func CheckBindAddress(bind string) Result {
	const name = "HTTP bind address"
	trimmed := strings.TrimSpace(bind)
	if trimmed == "" {
		return Result{Name: name, Detail: "missing bind address"}
	}
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", trimmed, err)}
	}
	if port == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing port)", trimmed)}
	}
	if host != "" {
		if ip := net.ParseIP(host); ip == nil && host != "localhost" {
			if _, err := net.LookupHost(host); err != nil {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: unresolvable host)", trimmed)}
			}
		}
	}
	return Result{Name: name, Passed: true, Detail: trimmed}
}

// CheckSystemDeps evaluates the external binaries the configured backend
// needs. Both the serve command and the engine status command use this.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.ForConfig(cfg))
}

func statusDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	return status.Detail
}
