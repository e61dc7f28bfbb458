// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syndiff renders human-readable syntactic diffs for compared
// objects.
//
// Function and type differences are rendered by extracting the
// definition's line range from both source files and running the
// external line differ on the two snippets; the resulting hunks are
// rebased to absolute line numbers in the original files. Pure
// syntactic differences (expanded macro values and the like) are
// rendered directly from the body text captured during graph
// extraction.
package syndiff

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

// Sentinel errors for diff rendering.
var (
	// ErrEndLineNotFound indicates the end of a function or type
	// definition could not be located in its source file.
	ErrEndLineNotFound = errors.New("definition end line not found")

	// ErrUnsupportedDiffKind indicates a diff kind this renderer has
	// no line-range rule for.
	ErrUnsupportedDiffKind = errors.New("unsupported diff kind")
)

// Differ renders definition diffs using an external line differ.
//
// Thread Safety: safe for concurrent use; each call creates its own
// temp files and process.
type Differ struct {
	binary string
	logger *slog.Logger
}

// NewDiffer creates a differ. An empty binary defaults to "diff"; a
// nil logger defaults to slog.Default().
func NewDiffer(binary string, logger *slog.Logger) *Differ {
	if binary == "" {
		binary = "diff"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Differ{
		binary: binary,
		logger: logger.With(slog.String("component", "syndiff")),
	}
}

// DiffDefinition renders a unified diff of one definition across the
// two source files, keyed by the recorded start lines.
//
// Returns the empty string when the extracted snippets are identical.
func (d *Differ) DiffDefinition(ctx context.Context, firstFile, secondFile string, kind result.DiffKind, firstLine, secondLine int) (string, error) {
	firstBody, err := definitionText(firstFile, firstLine, kind)
	if err != nil {
		return "", fmt.Errorf("extracting %s from %s: %w", kind, firstFile, err)
	}
	secondBody, err := definitionText(secondFile, secondLine, kind)
	if err != nil {
		return "", fmt.Errorf("extracting %s from %s: %w", kind, secondFile, err)
	}
	if firstBody == secondBody {
		return "", nil
	}

	raw, err := d.runDiff(ctx, firstBody, secondBody)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", nil
	}

	return rebaseHunks(raw, firstLine, secondLine)
}

// runDiff writes the two snippets to temp files and runs the external
// differ in unified mode. Exit status 1 means differences were found
// and is not an error.
func (d *Differ) runDiff(ctx context.Context, first, second string) (string, error) {
	dir, err := os.MkdirTemp("", "semdiff-syndiff-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	firstPath := filepath.Join(dir, "first")
	secondPath := filepath.Join(dir, "second")
	if err := os.WriteFile(firstPath, []byte(first), 0600); err != nil {
		return "", fmt.Errorf("writing snippet: %w", err)
	}
	if err := os.WriteFile(secondPath, []byte(second), 0600); err != nil {
		return "", fmt.Errorf("writing snippet: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.binary, "-u", firstPath, secondPath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err = cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return stdout.String(), nil
		}
		return "", fmt.Errorf("running %s: %w", d.binary, err)
	}
	return stdout.String(), nil
}

// rebaseHunks parses the raw unified diff and rewrites hunk headers so
// line numbers refer to the original source files instead of the
// extracted snippets. The temp-file headers are dropped.
func rebaseHunks(raw string, firstLine, secondLine int) (string, error) {
	fd, err := godiff.ParseFileDiff([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("parsing differ output: %w", err)
	}

	var b strings.Builder
	for _, h := range fd.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n",
			h.OrigStartLine+int32(firstLine)-1, h.OrigLines,
			h.NewStartLine+int32(secondLine)-1, h.NewLines,
		)
		b.Write(h.Body)
		if len(h.Body) > 0 && h.Body[len(h.Body)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// FormatSyntactic renders a pure syntactic difference from the left
// and right body text captured during graph extraction.
func FormatSyntactic(left, right string) string {
	return fmt.Sprintf("  %s\n\n  %s\n", left, right)
}

// definitionText returns the definition starting at the given line,
// up to and including its terminator line.
func definitionText(path string, start int, kind result.DiffKind) (string, error) {
	end, lines, err := endLine(path, start, kind)
	if err != nil {
		return "", err
	}
	return strings.Join(lines[start-1:end], "\n") + "\n", nil
}

// endLine locates the line a definition ends on. The end of a function
// is the first line holding nothing but "}" or ");"; a type ends on
// "};".
func endLine(path string, start int, kind result.DiffKind) (int, []string, error) {
	var terminators []string
	switch kind {
	case result.DiffFunction:
		terminators = []string{"}", ");"}
	case result.DiffType:
		terminators = []string{"};"}
	default:
		return 0, nil, fmt.Errorf("%w: %s", ErrUnsupportedDiffKind, kind)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}
	if start < 1 || start > len(lines) {
		return 0, nil, fmt.Errorf("%w: start line %d outside %s", ErrEndLineNotFound, start, path)
	}

	for n := start; n <= len(lines); n++ {
		trimmed := strings.TrimRight(lines[n-1], " \t")
		for _, term := range terminators {
			if trimmed == term {
				return n, lines, nil
			}
		}
	}
	return 0, nil, fmt.Errorf("%w: from line %d in %s", ErrEndLineNotFound, start, path)
}
