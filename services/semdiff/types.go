// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semdiff compares the runtime semantics of functions across
// two compiled-module versions.
//
// The comparator orchestrates an external structural simplifier, an
// optional semantic equivalence backend, snapshot-based resolution of
// missing symbol definitions, a shared comparison-graph cache, and a
// persistent ignore-cache of symbols already proven equal. One
// Comparator serves many comparisons; one comparison runs strictly
// sequentially.
package semdiff

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/simplify"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/snapshot"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingModule is returned when a comparison names an empty
	// module path.
	ErrMissingModule = errors.New("module path must not be empty")

	// ErrMissingFunction is returned when a comparison names an empty
	// root function.
	ErrMissingFunction = errors.New("function name must not be empty")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config configures a Comparator.
type Config struct {
	// SemdiffTool enables the semantic equivalence backend. When
	// false, graph-supplied verdicts are accepted as-is and syntactic
	// differences are never escalated.
	SemdiffTool bool

	// Timeout is the joint wall-clock budget for one verifier plus
	// solver invocation. Zero means the backend default.
	Timeout time.Duration

	// ControlFlowOnly restricts simplification to control-flow
	// differences.
	ControlFlowOnly bool

	// PrintAsmDiffs includes assembly diffs in simplifier reports.
	PrintAsmDiffs bool

	// Verbose passes verbosity through to the external tools.
	Verbose bool

	// OutputSuffix names the simplified module files. Default:
	// "simpl".
	OutputSuffix string

	// SimplifierBin, VerifierBin, SolverBin, LinkerBin and DiffBin
	// override the external tool binaries. Empty means each tool's
	// default resolved through PATH.
	SimplifierBin string
	VerifierBin   string
	SolverBin     string
	LinkerBin     string
	DiffBin       string
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.OutputSuffix == "" {
		c.OutputSuffix = "simpl"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("Timeout must be >= 0")
	}
	return nil
}

// GlobalVar optionally restricts a comparison to the semantic effect
// of a single global variable inside the compared functions.
type GlobalVar struct {
	// Name is the variable's symbol name.
	Name string
}

// Request names one comparison: a function pair across two modules.
type Request struct {
	// FirstModule and SecondModule are the compared module file paths.
	FirstModule  string
	SecondModule string

	// FunFirst and FunSecond are the root function names, usually
	// identical across versions.
	FunFirst  string
	FunSecond string

	// Var optionally restricts the comparison to one global variable.
	Var *GlobalVar

	// FirstSnapshot and SecondSnapshot resolve missing definitions for
	// their side. Either may be nil.
	FirstSnapshot  *snapshot.Snapshot
	SecondSnapshot *snapshot.Snapshot
}

// Validate checks if the request is complete.
func (r *Request) Validate() error {
	if r.FirstModule == "" || r.SecondModule == "" {
		return ErrMissingModule
	}
	if r.FunFirst == "" || r.FunSecond == "" {
		return ErrMissingFunction
	}
	return nil
}

// -----------------------------------------------------------------------------
// Collaborator Interfaces
// -----------------------------------------------------------------------------

// Simplifier runs the external structural simplifier.
//
// Thread Safety: implementations must be safe for concurrent use.
type Simplifier interface {
	Run(ctx context.Context, req simplify.Request) (*simplify.Output, error)
}

// Verifier runs the semantic equivalence backend for one function
// pair.
//
// Thread Safety: implementations must be safe for concurrent use.
type Verifier interface {
	Compare(ctx context.Context, first, second, funFirst, funSecond string, coupled [][2]string) (result.Kind, error)
}

// DiffRenderer renders a definition diff for a differing object.
//
// Thread Safety: implementations must be safe for concurrent use.
type DiffRenderer interface {
	DiffDefinition(ctx context.Context, firstFile, secondFile string, kind result.DiffKind, firstLine, secondLine int) (string, error)
}
