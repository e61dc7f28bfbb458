// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verify drives the external relational-verification tool and
// the SMT solver for semantic function comparison.
//
// The verifier takes two modules in bitvector IR and generates a
// first-order formula; the formula is piped directly into the solver's
// standard input. If the formula is unsatisfiable the compared
// functions are semantically equal, if satisfiable they differ.
//
// The two processes are started together, torn down together, and
// covered by a single wall-clock watchdog. The watchdog is the sole
// source of cancellation: it fires at most once, kills both processes,
// and forces the outcome to TIMEOUT regardless of any output read from
// the killed processes.
package verify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

// ErrToolStart indicates the verifier or solver process could not be
// started.
var ErrToolStart = errors.New("starting verification tool")

// DefaultTimeout is the joint wall-clock budget for one verifier plus
// solver invocation.
const DefaultTimeout = 40 * time.Second

// Config configures the semantic equivalence engine.
type Config struct {
	// VerifierBin is the relational-verification tool binary.
	// Default: "llreve".
	VerifierBin string

	// SolverBin is the SMT solver binary. Default: "z3".
	SolverBin string

	// Timeout is the joint wall-clock budget for both processes.
	// Default: DefaultTimeout.
	Timeout time.Duration
}

// ApplyDefaults fills zero fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.VerifierBin == "" {
		c.VerifierBin = "llreve"
	}
	if c.SolverBin == "" {
		c.SolverBin = "z3"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Engine runs semantic equivalence checks.
//
// Thread Safety: safe for concurrent use; each Compare owns its two
// processes and watchdog.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an engine with the given configuration. A nil
// logger defaults to slog.Default().
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "verify_engine")),
	}
}

// Compare checks two functions for semantic equality.
//
// The coupled pairs are assumption hints pairing helper functions of
// one module with their counterparts in the other. The escalation is
// single-shot: there is no automatic retry at a weaker assumption
// level, assumption strength is fixed by the coupled set supplied.
//
// Classification from the solver's final recognized line:
// unsat -> EQUAL, sat -> NOT_EQUAL, unknown -> UNKNOWN. A non-zero
// solver exit or no recognized line is an ERROR. A watchdog expiry is
// a TIMEOUT and overrides everything else.
func (e *Engine) Compare(ctx context.Context, first, second, funFirst, funSecond string, coupled [][2]string) (result.Kind, error) {
	if ctx == nil {
		return result.KindError, errors.New("nil context")
	}

	args := verifierArgs(first, second, funFirst, funSecond, coupled)
	verifier := exec.CommandContext(ctx, e.cfg.VerifierBin, args...)
	solver := exec.CommandContext(ctx, e.cfg.SolverBin, "fixedpoint.engine=duality", "-in")

	// Connect the verifier's stdout to the solver's stdin with a raw
	// OS pipe so neither end goes through a copy goroutine.
	pr, pw, err := os.Pipe()
	if err != nil {
		return result.KindError, fmt.Errorf("creating pipe: %w", err)
	}
	verifier.Stdout = pw
	solver.Stdin = pr

	solverOut, err := solver.StdoutPipe()
	if err != nil {
		pw.Close()
		pr.Close()
		return result.KindError, fmt.Errorf("solver stdout: %w", err)
	}

	e.logger.Debug("running semantic check",
		slog.String("verifier", e.cfg.VerifierBin),
		slog.Any("args", args),
		slog.Duration("timeout", e.cfg.Timeout),
	)

	if err := verifier.Start(); err != nil {
		pw.Close()
		pr.Close()
		return result.KindError, fmt.Errorf("%w: %s: %v", ErrToolStart, e.cfg.VerifierBin, err)
	}
	if err := solver.Start(); err != nil {
		_ = verifier.Process.Kill()
		pw.Close()
		pr.Close()
		_ = verifier.Wait()
		return result.KindError, fmt.Errorf("%w: %s: %v", ErrToolStart, e.cfg.SolverBin, err)
	}
	// The children own the pipe ends now.
	pw.Close()
	pr.Close()

	// Single watchdog for both processes. Fires at most once; the
	// kill is unconditional and idempotent.
	var fired atomic.Bool
	watchdog := time.AfterFunc(e.cfg.Timeout, func() {
		fired.Store(true)
		_ = verifier.Process.Kill()
		_ = solver.Process.Kill()
	})
	defer watchdog.Stop()

	// Reap the verifier concurrently; it finishes before the solver
	// in the normal case, and must be reaped even when killed.
	var group errgroup.Group
	group.Go(verifier.Wait)

	kind := result.KindError
	scanner := bufio.NewScanner(solverOut)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "sat":
			kind = result.KindNotEqual
		case "unsat":
			kind = result.KindEqual
		case "unknown":
			kind = result.KindUnknown
		}
	}

	solverErr := solver.Wait()
	verifierErr := group.Wait()
	watchdog.Stop()

	if fired.Load() {
		// Whatever classification was read from the killed
		// processes is discarded.
		e.logger.Warn("semantic check timed out",
			slog.Duration("timeout", e.cfg.Timeout),
		)
		return result.KindTimeout, nil
	}

	if verifierErr != nil {
		// The verifier's exit status is advisory: the solver's
		// verdict on whatever formula it received decides.
		e.logger.Warn("verifier exited abnormally",
			slog.String("error", verifierErr.Error()),
		)
	}
	if solverErr != nil {
		return result.KindError, fmt.Errorf("solver %s: %w", e.cfg.SolverBin, solverErr)
	}

	return kind, nil
}

// verifierArgs assembles the verifier command line: both modules,
// the function pair, one coupling hint per pair, and the fixed profile
// selecting bitvector IR input with automatic coupling disabled.
func verifierArgs(first, second, funFirst, funSecond string, coupled [][2]string) []string {
	args := []string{
		first,
		second,
		"--fun=" + funFirst + "," + funSecond,
		"-muz",
		"--ir-input",
		"--bitvect",
		"--infer-marks",
		"--disable-auto-coupling",
	}
	for _, c := range coupled {
		args = append(args, fmt.Sprintf("--couple-functions=%s,%s", c[0], c[1]))
	}
	return args
}
