// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot resolves symbol definitions from prebuilt module
// trees.
//
// A snapshot is a directory of compiled modules plus a symbol index
// mapping each exported symbol to the module file that defines it. The
// comparator consults a snapshot whenever the simplifier reports a
// symbol it could not find a body for; the returned module is linked
// into the side being compared and the comparison re-run.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for definition lookup.
var (
	// ErrDefinitionNotFound indicates the snapshot holds no definition
	// for the requested symbol.
	ErrDefinitionNotFound = errors.New("definition not found in snapshot")

	// ErrStaleDefinition indicates the definition exists but was built
	// after the comparison's freshness bound.
	ErrStaleDefinition = errors.New("definition newer than freshness bound")
)

// IndexFileName is the symbol index carried at a snapshot directory's
// root.
const IndexFileName = "symbols.yaml"

// maxIndexBytes caps the symbol index read from disk.
const maxIndexBytes = 16 * 1024 * 1024

// Source resolves a symbol to the path of a module file defining it.
//
// Implementations must be safe for concurrent use. A zero notAfter
// disables the freshness check.
type Source interface {
	FindDefinition(ctx context.Context, symbol string, notAfter time.Time) (string, error)
}

// Snapshot pairs a primary definition source with an optional
// fallback consulted when the primary misses.
type Snapshot struct {
	Primary  Source
	Fallback Source

	// CreatedAt bounds how fresh a resolved definition may be; modules
	// built after it are rejected. Zero disables the bound.
	CreatedAt time.Time
}

// FindDefinition resolves symbol through the primary source, then the
// fallback. A nil receiver or a snapshot with no sources resolves
// nothing.
func (s *Snapshot) FindDefinition(ctx context.Context, symbol string) (string, error) {
	if s == nil {
		return "", ErrDefinitionNotFound
	}
	sources := []Source{s.Primary, s.Fallback}
	for _, src := range sources {
		if src == nil {
			continue
		}
		path, err := src.FindDefinition(ctx, symbol, s.CreatedAt)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, ErrDefinitionNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDefinitionNotFound, symbol)
}

// indexEntry is one symbol record in the index file.
type indexEntry struct {
	Symbol string `yaml:"symbol"`
	Module string `yaml:"module"`
}

// DirSource resolves symbols against a snapshot directory's index.
//
// The index is loaded once on construction; the directory is treated
// as immutable for the source's lifetime.
//
// Thread Safety: safe for concurrent use after construction.
type DirSource struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	symbols map[string]string
}

// NewDirSource opens a snapshot directory and loads its symbol index.
func NewDirSource(dir string, logger *slog.Logger) (*DirSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DirSource{
		dir:    dir,
		logger: logger.With(slog.String("component", "snapshot_source"), slog.String("dir", dir)),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadIndex reads and validates the symbol index.
func (s *DirSource) loadIndex() error {
	path := filepath.Join(s.dir, IndexFileName)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("opening snapshot index %s: %w", path, err)
	}
	if info.Size() > maxIndexBytes {
		return fmt.Errorf("snapshot index %s exceeds %d bytes", path, maxIndexBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading snapshot index %s: %w", path, err)
	}

	var entries []indexEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing snapshot index %s: %w", path, err)
	}

	symbols := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Symbol == "" || e.Module == "" {
			return fmt.Errorf("snapshot index %s: entry missing symbol or module", path)
		}
		symbols[e.Symbol] = e.Module
	}

	s.mu.Lock()
	s.symbols = symbols
	s.mu.Unlock()

	s.logger.Debug("snapshot index loaded", slog.Int("symbols", len(symbols)))
	return nil
}

// Len reports the number of indexed symbols.
func (s *DirSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// FindDefinition resolves symbol to an absolute module path under the
// snapshot directory. Index paths are relative to the directory root.
func (s *DirSource) FindDefinition(ctx context.Context, symbol string, notAfter time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	rel, ok := s.symbols[symbol]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDefinitionNotFound, symbol)
	}

	path := filepath.Join(s.dir, rel)
	info, err := os.Stat(path)
	if err != nil {
		// Indexed but absent on disk counts as not found so the
		// fallback source still gets a chance.
		s.logger.Warn("indexed module missing on disk",
			slog.String("symbol", symbol),
			slog.String("path", path),
		)
		return "", fmt.Errorf("%w: %s (module file missing)", ErrDefinitionNotFound, symbol)
	}

	if !notAfter.IsZero() && info.ModTime().After(notAfter) {
		return "", fmt.Errorf("%w: %s built %s, bound %s",
			ErrStaleDefinition, symbol,
			info.ModTime().Format(time.RFC3339), notAfter.Format(time.RFC3339))
	}
	return path, nil
}
