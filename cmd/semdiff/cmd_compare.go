// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDiff/pkg/ux"
	"github.com/AleutianAI/AleutianDiff/pkg/validation"
	"github.com/AleutianAI/AleutianDiff/services/semdiff"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/compgraph"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/ignore"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/snapshot"
)

var (
	funPair         string
	globalVar       string
	snapshotFirst   string
	snapshotSecond  string
	semantic        bool
	timeout         time.Duration
	controlFlowOnly bool
	printAsmDiffs   bool
	noColor         bool

	compareCmd = &cobra.Command{
		Use:   "compare [first-module] [second-module]",
		Short: "Compare one function pair across two module files",
		Long: `Compares the named function across the two module versions. The
function name may be a single name used on both sides, or a
"first,second" pair when the symbol was renamed between versions.`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}
)

func init() {
	compareCmd.Flags().StringVar(&funPair, "fun", "", "function to compare, or first,second pair (required)")
	compareCmd.Flags().StringVar(&globalVar, "var", "", "restrict the comparison to the effect of one global variable")
	compareCmd.Flags().StringVar(&snapshotFirst, "snapshot-first", "", "snapshot directory resolving first-side missing definitions")
	compareCmd.Flags().StringVar(&snapshotSecond, "snapshot-second", "", "snapshot directory resolving second-side missing definitions")
	compareCmd.Flags().BoolVar(&semantic, "semantic", false, "escalate unresolved differences to the semantic backend")
	compareCmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget for one semantic check (default 40s)")
	compareCmd.Flags().BoolVar(&controlFlowOnly, "control-flow-only", false, "ignore data-only differences")
	compareCmd.Flags().BoolVar(&printAsmDiffs, "print-asm-diffs", false, "include assembly diffs in reports")
	compareCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	_ = compareCmd.MarkFlagRequired("fun")

	rootCmd.AddCommand(compareCmd)
}

// splitFunPair parses the --fun value into per-side names.
func splitFunPair(s string) (string, string) {
	if first, second, found := strings.Cut(s, ","); found {
		return strings.TrimSpace(first), strings.TrimSpace(second)
	}
	return s, s
}

func runCompare(cmd *cobra.Command, args []string) error {
	funFirst, funSecond := splitFunPair(funPair)
	if err := validation.ValidateSymbol(funFirst); err != nil {
		return fmt.Errorf("invalid --fun: %w", err)
	}
	if err := validation.ValidateSymbol(funSecond); err != nil {
		return fmt.Errorf("invalid --fun: %w", err)
	}
	if globalVar != "" {
		if err := validation.ValidateSymbol(globalVar); err != nil {
			return fmt.Errorf("invalid --var: %w", err)
		}
	}

	cfg := semdiff.Config{
		SemdiffTool:     semantic || config.Compare.Semantic,
		Timeout:         timeout,
		ControlFlowOnly: controlFlowOnly || config.Compare.ControlFlowOnly,
		PrintAsmDiffs:   printAsmDiffs || config.Compare.PrintAsmDiffs,
		Verbose:         verbose,
		OutputSuffix:    config.Compare.OutputSuffix,
		SimplifierBin:   config.Tools.Simplifier,
		VerifierBin:     config.Tools.Verifier,
		SolverBin:       config.Tools.Solver,
		LinkerBin:       config.Tools.Linker,
		DiffBin:         config.Tools.Diff,
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = config.Compare.Timeout
	}

	comparator, err := semdiff.NewComparator(cfg, logger.Slog())
	if err != nil {
		return err
	}

	var ignoreCache *ignore.Cache
	if config.CacheDir != "" {
		ignoreCache, err = ignore.New(config.CacheDir, logger.Slog(), ignore.Options{})
		if err != nil {
			return fmt.Errorf("opening ignore cache: %w", err)
		}
		defer ignoreCache.Close()
	}

	req := semdiff.Request{
		FirstModule:  args[0],
		SecondModule: args[1],
		FunFirst:     funFirst,
		FunSecond:    funSecond,
	}
	if globalVar != "" {
		req.Var = &semdiff.GlobalVar{Name: globalVar}
	}
	if req.FirstSnapshot, err = openSnapshot(snapshotFirst); err != nil {
		return err
	}
	if req.SecondSnapshot, err = openSnapshot(snapshotSecond); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *result.Result
	spinnerOn := !verbose && isatty.IsTerminal(os.Stderr.Fd())
	err = ux.WithSpinner(os.Stderr, "comparing "+funFirst, spinnerOn, func() error {
		res, err = comparator.CompareFunctions(ctx, req, compgraph.New(), ignoreCache)
		return err
	})
	if err != nil {
		return err
	}

	printResult(os.Stdout, res, useColor())
	exitCode = exitCodeFor(res.OverallKind())
	return nil
}

// openSnapshot opens a snapshot directory as a primary-only snapshot.
func openSnapshot(dir string) (*snapshot.Snapshot, error) {
	if dir == "" {
		return nil, nil
	}
	src, err := snapshot.NewDirSource(dir, logger.Slog())
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", dir, err)
	}
	// The index is written when the snapshot is captured; modules
	// authored after it are not part of the snapshot.
	info, err := os.Stat(filepath.Join(dir, snapshot.IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", dir, err)
	}
	return &snapshot.Snapshot{Primary: src, CreatedAt: info.ModTime()}, nil
}
