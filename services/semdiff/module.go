// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semdiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrLinkFailed indicates the external linker could not merge a
// definition module into a compared module.
var ErrLinkFailed = errors.New("linking definition module failed")

// backupSuffix names the pristine copy kept next to a module while
// resolved definitions are linked into it.
const backupSuffix = ".orig"

// Module is one side of a comparison: a module file that resolved
// definitions can be linked into and that can be restored to its
// pristine state afterwards.
//
// Thread Safety: not safe for concurrent use. A module belongs to a
// single comparison.
type Module struct {
	path   string
	linker string
	logger *slog.Logger

	backup string
	linked map[string]bool
}

// NewModule wraps a module file. An empty linker defaults to
// "llvm-link"; a nil logger defaults to slog.Default().
func NewModule(path, linker string, logger *slog.Logger) *Module {
	if linker == "" {
		linker = "llvm-link"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{
		path:   path,
		linker: linker,
		logger: logger.With(slog.String("component", "module"), slog.String("module", path)),
		linked: make(map[string]bool),
	}
}

// Path returns the module file path.
func (m *Module) Path() string {
	return m.path
}

// Link merges the definition module at defPath into this module.
//
// The first link backs up the pristine module next to itself so
// Restore can undo all links at once. Linking the same definition
// module twice is a no-op reported as no progress.
//
// Outputs: true when the definition was newly linked, false when it
// had already been linked into this module.
func (m *Module) Link(ctx context.Context, defPath string) (bool, error) {
	if ctx == nil {
		return false, errors.New("nil context")
	}
	if m.linked[defPath] {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), filepath.Base(m.path)+".link-*")
	if err != nil {
		return false, fmt.Errorf("creating link output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, m.linker, "-S", "-o", tmpPath, m.path, defPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmpPath)
		m.logger.Error("linker failed",
			slog.String("definition", defPath),
			slog.String("output", string(out)),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("%w: %s: %v", ErrLinkFailed, defPath, err)
	}

	if m.backup == "" {
		backup := m.path + backupSuffix
		if err := os.Rename(m.path, backup); err != nil {
			os.Remove(tmpPath)
			return false, fmt.Errorf("backing up module: %w", err)
		}
		m.backup = backup
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("installing linked module: %w", err)
	}

	m.linked[defPath] = true
	m.logger.Debug("linked definition module", slog.String("definition", defPath))
	return true, nil
}

// Restore puts the pristine module back in place, undoing every link.
// Restoring an unlinked module is a no-op.
func (m *Module) Restore() error {
	if m.backup == "" {
		return nil
	}
	if err := os.Rename(m.backup, m.path); err != nil {
		return fmt.Errorf("restoring module %s: %w", m.path, err)
	}
	m.backup = ""
	m.linked = make(map[string]bool)
	return nil
}
