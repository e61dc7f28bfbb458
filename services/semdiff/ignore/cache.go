// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ignore implements the persistent ignore-cache: a durable set
// of symbols already proven equal in earlier comparison runs.
//
// Additions go through a stage/rollback/commit protocol. Exactly one
// uncommitted staging batch exists at a time; a failed simplification
// retry rolls its batch back so a partially-applied update never leaks
// into persistent state. The on-disk layout is a flat list of symbol
// names, read fully at process start and rewritten atomically at
// commit.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use. The fsnotify
//	watcher goroutine only flips a dirty flag; reloads happen under
//	the cache mutex on the next lookup.
package ignore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/compgraph"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

// FileName is the symbol list file inside the cache directory.
const FileName = "ignored-symbols.txt"

// Options configures cache construction.
type Options struct {
	// WatchExternal enables reloading the symbol list when another
	// process rewrites it. Long-lived processes use this to observe
	// commits made by concurrent comparison runs.
	WatchExternal bool
}

// Cache is the persistent ignore-cache.
type Cache struct {
	mu      sync.Mutex
	dir     string
	path    string
	symbols map[string]struct{}
	staged  []string

	// degraded is set when the durable store could not be read; the
	// cache then serves lookups from memory only.
	degraded bool

	dirty   atomic.Bool
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  *slog.Logger
}

// New opens (or creates) the ignore-cache rooted at dir.
//
// The symbol list is read fully on open. A missing list file is not an
// error; an unreadable one puts the cache into degraded mode: lookups
// are served from the (empty) in-memory set and the error is returned
// by the first Commit so it is never silently swallowed.
func New(dir string, logger *slog.Logger, opts Options) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating ignore-cache directory %s: %w", dir, err)
	}

	c := &Cache{
		dir:     dir,
		path:    filepath.Join(dir, FileName),
		symbols: make(map[string]struct{}),
		done:    make(chan struct{}),
		logger:  logger.With(slog.String("component", "ignore_cache")),
	}

	if err := c.load(); err != nil {
		c.degraded = true
		c.logger.Warn("ignore-cache unreadable, continuing in-memory only",
			slog.String("path", c.path),
			slog.String("error", err.Error()),
		)
	}

	if opts.WatchExternal {
		if err := c.startWatcher(); err != nil {
			// Watching is an optimization, not a correctness
			// requirement.
			c.logger.Warn("ignore-cache watcher unavailable",
				slog.String("error", err.Error()),
			)
		}
	}

	return c, nil
}

// Dir returns the cache directory, handed to the external simplifier
// so it can skip symbols proven equal in earlier runs.
func (c *Cache) Dir() string {
	return c.dir
}

// Lookup reports whether the symbol was previously proven equal.
func (c *Cache) Lookup(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloadIfDirtyLocked()
	_, ok := c.symbols[symbol]
	return ok
}

// Len returns the number of durable symbols (staged additions are not
// counted until committed).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloadIfDirtyLocked()
	return len(c.symbols)
}

// Stage records candidate additions from a batch of graph vertices
// without committing them.
//
// Vertices with UNKNOWN or ASSUMED_EQUAL verdicts are never staged:
// neither carries evidence that would justify skipping the symbol in a
// later run. NONE vertices are skipped for the same reason.
func (c *Cache) Stage(vertices []*compgraph.Vertex) {
	c.mu.Lock()
	defer c.mu.Unlock()

	staged := make(map[string]struct{}, len(c.staged))
	for _, s := range c.staged {
		staged[s] = struct{}{}
	}

	for _, v := range vertices {
		switch v.Kind {
		case result.KindNone, result.KindUnknown, result.KindAssumedEqual:
			continue
		}
		if _, ok := c.symbols[v.Name]; ok {
			continue
		}
		if _, ok := staged[v.Name]; ok {
			continue
		}
		staged[v.Name] = struct{}{}
		c.staged = append(c.staged, v.Name)
	}
}

// Rollback discards all staged additions since the last commit.
//
// Called before a simplification retry so a partially-applied update
// does not leak into persistent state if the retry fails.
func (c *Cache) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = c.staged[:0]
}

// StagedCount returns the size of the current uncommitted batch.
func (c *Cache) StagedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.staged)
}

// Commit makes staged additions durable.
//
// The symbol list is rewritten atomically: a temporary file in the
// same directory is written in full and renamed over the old list.
// On I/O failure the staged batch is kept in the in-memory set so the
// current process still benefits, and the error is returned.
func (c *Cache) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.staged) == 0 {
		return nil
	}

	c.reloadIfDirtyLocked()
	for _, s := range c.staged {
		c.symbols[s] = struct{}{}
	}
	count := len(c.staged)
	c.staged = c.staged[:0]

	if err := c.rewriteLocked(); err != nil {
		c.degraded = true
		return fmt.Errorf("committing ignore-cache: %w", err)
	}

	c.logger.Debug("ignore-cache committed",
		slog.Int("added", count),
		slog.Int("total", len(c.symbols)),
	)
	return nil
}

// Close stops the external-change watcher, if any.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil {
		return nil
	}
	close(c.done)
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// load reads the full symbol list from disk.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	symbols := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		symbols[line] = struct{}{}
	}
	c.symbols = symbols
	return nil
}

// rewriteLocked writes the symbol list to a temporary file and renames
// it over the old one. Caller must hold c.mu.
func (c *Cache) rewriteLocked() error {
	names := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		names = append(names, s)
	}
	sort.Strings(names)

	tmp, err := os.CreateTemp(c.dir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strings.Join(names, "\n") + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// reloadIfDirtyLocked re-reads the symbol list after an external
// rewrite was observed. Caller must hold c.mu.
func (c *Cache) reloadIfDirtyLocked() {
	if !c.dirty.Swap(false) {
		return
	}
	if err := c.load(); err != nil {
		c.logger.Warn("ignore-cache reload failed",
			slog.String("error", err.Error()),
		)
	}
}

// startWatcher watches the cache directory for external rewrites of
// the symbol list. Commits replace the file by rename, so the watch is
// on the directory, not the file.
func (c *Cache) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", c.dir, err)
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case <-c.done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == FileName &&
					ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					c.dirty.Store(true)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("ignore-cache watcher error",
					slog.String("error", err.Error()),
				)
			}
		}
	}()
	return nil
}
