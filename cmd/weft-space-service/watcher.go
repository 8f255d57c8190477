// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/jsonc"

	"github.com/weft-foundation/weft/lib/space"
)

// schemaWatcher loads schema definitions from a directory into the
// space. Definitions are .json or .jsonc files; loading is idempotent,
// so reloading an unchanged file is a no-op and rewriting a file with
// a changed definition supersedes the title.
type schemaWatcher struct {
	space  *space.Space
	dir    string
	logger *slog.Logger
}

// Run loads every definition already in the directory, then starts a
// goroutine that loads files as they are created or rewritten. The
// goroutine exits when ctx is cancelled.
func (w *schemaWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching schema dir: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching schema dir %s: %w", w.dir, err)
	}

	// Scan after Add so a file landing between the two is seen by at
	// least one of them. Seeing it twice is harmless.
	if err := w.loadAll(ctx); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					w.loadFile(ctx, event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("schema watcher error", "error", err)
			}
		}
	}()
	return nil
}

// loadAll loads every definition file currently in the directory.
func (w *schemaWatcher) loadAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading schema dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.loadFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// loadFile loads one definition file. Failures are logged, not fatal:
// a half-written or invalid file must not take the service down, and
// a corrected rewrite triggers another attempt.
func (w *schemaWatcher) loadFile(ctx context.Context, path string) {
	if !isSchemaFile(path) {
		return
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading schema file", "path", path, "error", err)
		return
	}
	loaded, err := w.space.LoadOrCreateSchema(ctx, jsonc.ToJSON(doc))
	if err != nil {
		w.logger.Warn("loading schema file", "path", path, "error", err)
		return
	}
	w.logger.Info("schema loaded", "path", path, "title", loaded.Title, "digest", loaded.Digest())
}

func isSchemaFile(path string) bool {
	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		return true
	}
	return false
}
