// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// weft-space-service hosts a single space: it opens the space
// database, listens on the boundary socket, and optionally watches a
// schema directory for definitions to load. One process per space;
// the weft CLI is the matching client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/weft-foundation/weft/lib/boundary"
	"github.com/weft-foundation/weft/lib/clock"
	"github.com/weft-foundation/weft/lib/config"
	"github.com/weft-foundation/weft/lib/identity"
	"github.com/weft-foundation/weft/lib/process"
	"github.com/weft-foundation/weft/lib/space"
	"github.com/weft-foundation/weft/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("weft-space-service", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to the weft.yaml config file (default $WEFT_CONFIG)")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if *showVersion {
		version.Print("weft-space-service")
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	passphrase, err := cfg.Passphrase()
	if err != nil {
		return err
	}
	signer, err := identity.Load(cfg.Keyfile.Path, passphrase)
	passphrase.Close()
	if err != nil {
		return fmt.Errorf("loading keyfile %s: %w (create one with 'weft key generate')", cfg.Keyfile.Path, err)
	}
	defer signer.Close()

	contentKey, err := cfg.ContentKey()
	if err != nil {
		return err
	}
	if contentKey != nil {
		defer contentKey.Close()
	}

	roots, err := cfg.RootKeys()
	if err != nil {
		return err
	}

	sp, err := space.Open(ctx, space.Config{
		Path:       cfg.SpacePath(),
		Signer:     signer,
		Clock:      clock.Real(),
		Logger:     logger,
		Roots:      roots,
		ContentKey: contentKey,
	})
	if err != nil {
		return err
	}
	defer sp.Close()

	logger.Info("space open",
		"space", cfg.Space,
		"path", cfg.SpacePath(),
		"owner", signer.PubKey(),
		"encrypted", contentKey != nil,
	)

	if cfg.SchemaDir != "" {
		watcher := &schemaWatcher{
			space:  sp,
			dir:    cfg.SchemaDir,
			logger: logger,
		}
		if err := watcher.Run(ctx); err != nil {
			return err
		}
	}

	server := boundary.NewServer(cfg.SocketPath, logger)
	limits := boundary.Limits{
		MaxValueBytes: cfg.Limits.MaxValueBytes,
		MaxQueryLimit: cfg.Limits.MaxQueryLimit,
	}
	boundary.NewHandlers(sp, logger, &limits).Register(server)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- server.Serve(ctx)
	}()

	logger.Info("weft-space-service running", "socket", cfg.SocketPath)

	// Wait for a shutdown signal, or for the socket server to fail on
	// its own (bad socket path, accept error).
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := <-socketDone; err != nil {
			logger.Error("boundary server error", "error", err)
		}
		return nil
	case err := <-socketDone:
		return err
	}
}

// loadConfig resolves the effective configuration: an explicit
// --config path wins, otherwise $WEFT_CONFIG or the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger builds the process logger from the log config. Text format
// colorizes only when stderr is a terminal; json is for collectors.
func newLogger(cfg config.LogConfig) *slog.Logger {
	if cfg.Format == "text" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: time.TimeOnly,
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}
