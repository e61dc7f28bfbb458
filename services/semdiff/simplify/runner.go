// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package simplify drives the external structural simplifier.
//
// The simplifier reduces two modules to the code reachable from a
// function (or from a global variable's uses inside it), compares the
// reduced forms structurally, and reports a comparison graph plus any
// symbols whose body it could not find. This package owns the process
// invocation and the report parsing; the retry loop that resolves
// missing symbols lives in the comparator.
package simplify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/compgraph"
)

// Sentinel errors for simplifier invocation.
var (
	// ErrSimplifierFailed indicates the simplifier process exited
	// abnormally or could not be started.
	ErrSimplifierFailed = errors.New("simplifier invocation failed")

	// ErrMalformedReport indicates the simplifier produced output
	// that does not parse as a report.
	ErrMalformedReport = errors.New("malformed simplifier report")
)

// maxReportBytes caps the report read from the simplifier's stdout.
const maxReportBytes = 64 * 1024 * 1024

// Request describes one simplifier invocation.
type Request struct {
	// First and Second are the module file paths.
	First  string
	Second string

	// FunFirst and FunSecond are the (possibly identical) root
	// function names.
	FunFirst  string
	FunSecond string

	// GlobalVar optionally restricts the comparison to the effect of
	// one global variable.
	GlobalVar string

	// Suffix names the simplified output files.
	Suffix string

	// CacheDir optionally points the simplifier at the ignore-cache
	// directory so it can skip symbols proven equal in earlier runs.
	CacheDir string

	// ControlFlowOnly ignores data-only differences.
	ControlFlowOnly bool

	// PrintAsmDiffs includes assembly diffs in the report.
	PrintAsmDiffs bool

	// Verbose passes the simplifier's own verbosity flag through.
	Verbose bool
}

// MissingDef is one per-side missing-definition report: a symbol whose
// body the simplifier could not find. Either side may be empty.
type MissingDef struct {
	First  string `yaml:"first,omitempty"`
	Second string `yaml:"second,omitempty"`
}

// Output is the parsed result of one simplifier invocation.
type Output struct {
	// FirstSimpl and SecondSimpl are the simplified module paths.
	FirstSimpl  string
	SecondSimpl string

	// Graph is the comparison graph the simplifier derived.
	Graph *compgraph.Graph

	// MissingDefs lists symbols without definitions, per side.
	MissingDefs []MissingDef
}

// Runner invokes the external simplifier binary.
//
// Thread Safety: safe for concurrent use; each Run creates its own
// process.
type Runner struct {
	binary string
	logger *slog.Logger
}

// NewRunner creates a runner for the given simplifier binary.
//
// An empty binary defaults to "simpll" resolved through PATH. A nil
// logger defaults to slog.Default().
func NewRunner(binary string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = "simpll"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		binary: binary,
		logger: logger.With(slog.String("component", "simplify_runner")),
	}
}

// Run invokes the simplifier and parses its report.
//
// A non-zero exit or an unparseable report is a tool-level error; the
// comparator turns it into an ERROR result for the whole comparison.
func (r *Runner) Run(ctx context.Context, req Request) (*Output, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}

	args := buildArgs(req)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("running simplifier",
		slog.String("binary", r.binary),
		slog.Any("args", args),
	)

	if err := cmd.Run(); err != nil {
		r.logger.Error("simplifier failed",
			slog.String("error", err.Error()),
			slog.String("stderr", stderr.String()),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrSimplifierFailed, r.binary, err)
	}
	if stdout.Len() > maxReportBytes {
		return nil, fmt.Errorf("%w: report exceeds %d bytes", ErrMalformedReport, maxReportBytes)
	}

	out, err := ParseReport(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	r.logger.Debug("simplifier finished",
		slog.Duration("duration", time.Since(start)),
		slog.Int("vertices", out.Graph.Len()),
		slog.Int("missing_defs", len(out.MissingDefs)),
	)
	return out, nil
}

// buildArgs assembles the simplifier command line per its process
// contract.
func buildArgs(req Request) []string {
	args := []string{
		req.First,
		req.Second,
		"--fun=" + req.FunFirst + "," + req.FunSecond,
	}
	if req.GlobalVar != "" {
		args = append(args, "--var="+req.GlobalVar)
	}
	if req.Suffix != "" {
		args = append(args, "--suffix="+req.Suffix)
	}
	if req.CacheDir != "" {
		args = append(args, "--cache-dir="+req.CacheDir)
	}
	if req.ControlFlowOnly {
		args = append(args, "--control-flow-only")
	}
	if req.PrintAsmDiffs {
		args = append(args, "--print-asm-diffs")
	}
	if req.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
