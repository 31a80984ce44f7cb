// Copyright 2026 The Stockade Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/stockade-project/stockade/jail"
)

func main() {
	cfg, err := jail.NewParser().Parse(os.Args[1:])
	if err != nil {
		switch {
		case errors.Is(err, jail.ErrHelp):
			jail.RenderUsage(os.Stdout)
			os.Exit(0)
		case errors.Is(err, jail.ErrUsage):
			fmt.Fprintf(os.Stderr, "stockade: %v\n\n", err)
			jail.RenderUsage(os.Stderr)
			os.Exit(1)
		default:
			slog.New(newHandler(os.Stderr, false)).Error("configuration failed", "error", err)
			os.Exit(1)
		}
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stockade: %v\n", err)
		os.Exit(1)
	}

	logParams(logger, cfg)

	// Handoff point: the finalized config is now owned by the isolation
	// engine (namespace setup, mounts, seccomp, supervision).
}

func newHandler(w *os.File, verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    w != os.Stderr,
	})
}

// setupLogging builds the process logger from the compiled configuration.
// Failure to open the requested log file is fatal.
func setupLogging(cfg *jail.JailConfig) (*slog.Logger, error) {
	w := os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %q: %w", cfg.LogFile, err)
		}
		w = f
	}
	logger := slog.New(newHandler(w, cfg.Verbose))
	slog.SetDefault(logger)
	return logger, nil
}

// logParams summarizes the compiled jail parameters the way the engine will
// consume them, one line for the scalars and one per mount and id mapping.
func logParams(logger *slog.Logger, cfg *jail.JailConfig) {
	logger.Info("mode", "mode", cfg.Mode.String())
	logger.Info("jail parameters",
		"hostname", cfg.Hostname,
		"chroot", cfg.Chroot,
		"process", cfg.Command[0],
		"bind", fmt.Sprintf("[%s]:%d", cfg.BindHost, cfg.Port),
		"max_conns_per_ip", cfg.MaxConnsPerIP,
		"uid", fmt.Sprintf("(ns:%d, global:%d)", cfg.InsideUID, cfg.OutsideUID),
		"gid", fmt.Sprintf("(ns:%d, global:%d)", cfg.InsideGID, cfg.OutsideGID),
		"time_limit", cfg.TimeLimit,
		"personality", fmt.Sprintf("%#x", cfg.Personality),
		"daemonize", cfg.Daemonize,
		"clone_newnet", cfg.Namespaces.Net,
		"clone_newuser", cfg.Namespaces.User,
		"clone_newns", cfg.Namespaces.Mount,
		"clone_newpid", cfg.Namespaces.PID,
		"clone_newipc", cfg.Namespaces.IPC,
		"clone_newuts", cfg.Namespaces.UTS,
		"clone_newcgroup", cfg.Namespaces.Cgroup,
		"apply_sandbox", cfg.ApplySandbox,
		"keep_caps", cfg.KeepCaps,
		"disable_no_new_privs", cfg.DisableNoNewPrivs,
		"tmpfs_size", cfg.TmpfsSize,
		"pivot_root_only", cfg.PivotRootOnly,
		"pass_fds", cfg.PassFds.Sorted(),
	)
	for _, m := range cfg.Mounts {
		logger.Info("mount point",
			"src", m.Source, "dst", m.Dest, "type", m.FSType,
			"flags", fmt.Sprintf("%#x", m.Flags), "options", m.Options)
	}
	for _, m := range cfg.UIDMappings {
		logger.Info("uid mapping", "inside", m.Inside, "outside", m.Outside, "count", m.Count)
	}
	for _, m := range cfg.GIDMappings {
		logger.Info("gid mapping", "inside", m.Inside, "outside", m.Outside, "count", m.Count)
	}
}
