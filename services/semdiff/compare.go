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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/compgraph"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/ignore"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/simplify"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/snapshot"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/syndiff"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/verify"
)

// diffUnavailable marks a difference whose diff could not be rendered.
const diffUnavailable = "(diff unavailable)\n"

// Comparator orchestrates function-pair comparisons.
//
// Thread Safety: safe for concurrent use as long as concurrent calls
// do not share a comparison-graph cache or an ignore-cache; within one
// comparison the control flow is strictly sequential.
type Comparator struct {
	cfg        Config
	simplifier Simplifier
	verifier   Verifier
	differ     DiffRenderer
	logger     *slog.Logger
}

// NewComparator creates a comparator backed by the real external
// tools. A nil logger defaults to slog.Default().
func NewComparator(cfg Config, logger *slog.Logger) (*Comparator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	var verifier Verifier
	if cfg.SemdiffTool {
		verifier = verify.NewEngine(verify.Config{
			VerifierBin: cfg.VerifierBin,
			SolverBin:   cfg.SolverBin,
			Timeout:     cfg.Timeout,
		}, logger)
	}
	return NewComparatorWith(cfg,
		simplify.NewRunner(cfg.SimplifierBin, logger),
		verifier,
		syndiff.NewDiffer(cfg.DiffBin, logger),
		logger)
}

// NewComparatorWith creates a comparator with injected collaborators.
// The verifier may be nil when no semantic backend is configured.
func NewComparatorWith(cfg Config, simplifier Simplifier, verifier Verifier, differ DiffRenderer, logger *slog.Logger) (*Comparator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if simplifier == nil {
		return nil, fmt.Errorf("%w: simplifier must not be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{
		cfg:        cfg,
		simplifier: simplifier,
		verifier:   verifier,
		differ:     differ,
		logger:     logger.With(slog.String("component", "comparator")),
	}, nil
}

// definiteVerdict reports whether a cached verdict settles the root
// pair without re-running the simplifier. ASSUMED_EQUAL is a traversal
// marker and never short-circuits.
func definiteVerdict(k result.Kind) bool {
	switch k {
	case result.KindNone, result.KindUnknown, result.KindAssumedEqual:
		return false
	default:
		return true
	}
}

// extraction is what the simplification stage hands to aggregation.
type extraction struct {
	objects     []compgraph.ObjectPair
	bodiesLeft  map[string]string
	bodiesRight map[string]string

	// firstSimpl and secondSimpl are the simplified module paths.
	// Empty when the cache answered without a simplifier run, in which
	// case semantic escalation has nothing to run on and is skipped.
	firstSimpl  string
	secondSimpl string
}

// CompareFunctions compares one function pair across the two modules
// and returns a composite result.
//
// Description:
//
//	Runs the simplify / resolve-missing retry loop, absorbs every
//	simplifier report into the caller's cache graph, escalates
//	unresolved non-function differences to the semantic backend when
//	one is configured, and attaches rendered diffs to NOT_EQUAL inner
//	results. Tool-level failures surface as an ERROR result at the
//	smallest possible scope; they never poison the caller's cache.
//
// Inputs:
//   - ctx: Context for all external tool invocations. Must not be nil.
//   - req: The module/function pair plus optional snapshots.
//   - cache: Long-lived comparison graph shared across comparisons.
//     May be nil, in which case a throwaway graph is used.
//   - ignoreCache: Persistent proven-equal symbol cache. May be nil.
//
// Outputs:
//   - *Result: Never nil; its Kind is ERROR when err is non-nil.
//   - error: Non-nil only for invocation-level failures.
//
// Thread Safety: safe for concurrent use with distinct caches.
func (c *Comparator) CompareFunctions(ctx context.Context, req Request, cache *compgraph.Graph, ignoreCache *ignore.Cache) (*result.Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = compgraph.New()
	}

	log := c.logger.With(
		slog.String("comparison_id", uuid.NewString()),
		slog.String("fun_first", req.FunFirst),
		slog.String("fun_second", req.FunSecond),
	)
	start := time.Now()
	defer func() {
		comparisonDuration.Observe(time.Since(start).Seconds())
	}()

	res := result.NewPair(req.FunFirst, req.FunSecond)
	res.Cache = cache

	ext, err := c.simplifyStage(ctx, log, req, cache, ignoreCache)
	if err != nil {
		res.Kind = result.KindError
		comparisonsTotal.WithLabelValues(res.Kind.String()).Inc()
		return res, err
	}

	c.aggregate(ctx, log, req, cache, ext, res)

	comparisonsTotal.WithLabelValues(res.OverallKind().String()).Inc()
	log.Info("comparison finished",
		slog.String("verdict", res.OverallKind().String()),
		slog.Int("inner", len(res.Inner)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// simplifyStage runs INIT and the SIMPLIFY / RESOLVE_MISSING loop.
//
// Every exit path leaves the ignore-cache with no staged batch: the
// staged symbols are committed on success and rolled back on failure.
// The modules are restored to their pre-linking state either way.
func (c *Comparator) simplifyStage(ctx context.Context, log *slog.Logger, req Request, cache *compgraph.Graph, ignoreCache *ignore.Cache) (ext extraction, err error) {
	// INIT: a definite cached verdict for the root pair answers the
	// comparison from the cached graph alone.
	if v, ok := cache.Vertex(req.FunFirst); ok && definiteVerdict(v.Kind) {
		cacheShortCircuitsTotal.Inc()
		log.Debug("root verdict served from cache",
			slog.String("verdict", v.Kind.String()),
		)
		ext.objects, ext.bodiesLeft, ext.bodiesRight = cache.Extract(req.FunFirst, req.FunSecond)
		return ext, nil
	}

	firstMod := NewModule(req.FirstModule, c.cfg.LinkerBin, log)
	secondMod := NewModule(req.SecondModule, c.cfg.LinkerBin, log)
	defer func() {
		if rerr := firstMod.Restore(); rerr != nil {
			log.Error("restoring first module", slog.String("error", rerr.Error()))
		}
		if rerr := secondMod.Restore(); rerr != nil {
			log.Error("restoring second module", slog.String("error", rerr.Error()))
		}
		if ignoreCache == nil {
			return
		}
		if err != nil {
			ignoreCache.Rollback()
			return
		}
		if cerr := ignoreCache.Commit(); cerr != nil {
			// Degraded persistence; the in-memory set still serves
			// this process.
			log.Warn("ignore-cache commit failed", slog.String("error", cerr.Error()))
		}
	}()

	sreq := simplify.Request{
		FunFirst:        req.FunFirst,
		FunSecond:       req.FunSecond,
		Suffix:          c.cfg.OutputSuffix,
		ControlFlowOnly: c.cfg.ControlFlowOnly,
		PrintAsmDiffs:   c.cfg.PrintAsmDiffs,
		Verbose:         c.cfg.Verbose,
	}
	if req.Var != nil {
		sreq.GlobalVar = req.Var.Name
	}
	if ignoreCache != nil {
		sreq.CacheDir = ignoreCache.Dir()
	}

	for {
		// A retry starts a new staging batch; any prior batch is
		// rolled back first.
		if ignoreCache != nil {
			ignoreCache.Rollback()
		}

		sreq.First = firstMod.Path()
		sreq.Second = secondMod.Path()

		simplifierRunsTotal.Inc()
		out, runErr := c.simplifier.Run(ctx, sreq)
		if runErr != nil {
			return ext, runErr
		}

		if ignoreCache != nil {
			ignoreCache.Stage(out.Graph.Vertices())
		}
		cache.Absorb(out.Graph)

		ext.firstSimpl = out.FirstSimpl
		ext.secondSimpl = out.SecondSimpl
		ext.objects, ext.bodiesLeft, ext.bodiesRight = cache.Extract(req.FunFirst, req.FunSecond)

		if len(out.MissingDefs) == 0 || !hasFunctionObject(ext.objects) {
			return ext, nil
		}

		linked := c.resolveMissing(ctx, log, out.MissingDefs, req, firstMod, secondMod)
		if linked == 0 {
			// No progress: the remaining symbols are unresolvable.
			log.Debug("missing definitions unresolved",
				slog.Int("remaining", len(out.MissingDefs)),
			)
			return ext, nil
		}
		log.Debug("definitions linked, re-running simplifier",
			slog.Int("linked", linked),
		)
	}
}

// hasFunctionObject reports whether the extracted list still holds at
// least one function-kind pair worth resolving definitions for.
func hasFunctionObject(objects []compgraph.ObjectPair) bool {
	for _, o := range objects {
		if o.First.DiffKind == result.DiffFunction {
			return true
		}
	}
	return false
}

// resolveMissing asks each side's snapshot for the reported missing
// definitions and links what it finds. A failure to resolve or link
// one symbol never aborts resolution of the others.
//
// Outputs: the number of definitions newly linked this pass.
func (c *Comparator) resolveMissing(ctx context.Context, log *slog.Logger, missing []simplify.MissingDef, req Request, firstMod, secondMod *Module) int {
	linked := 0
	resolve := func(symbol string, snap *snapshot.Snapshot, mod *Module, side string) {
		defPath, err := snap.FindDefinition(ctx, symbol)
		if err != nil {
			// Not found is the normal end of the line for a symbol.
			log.Debug("definition not resolved",
				slog.String("side", side),
				slog.String("symbol", symbol),
				slog.String("reason", err.Error()),
			)
			return
		}
		progressed, err := mod.Link(ctx, defPath)
		if err != nil {
			log.Warn("linking resolved definition failed",
				slog.String("side", side),
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			return
		}
		if progressed {
			definitionsLinkedTotal.Inc()
			linked++
		}
	}

	for _, md := range missing {
		if md.First != "" && req.FirstSnapshot != nil {
			resolve(md.First, req.FirstSnapshot, firstMod, "first")
		}
		if md.Second != "" && req.SecondSnapshot != nil {
			resolve(md.Second, req.SecondSnapshot, secondMod, "second")
		}
	}
	return linked
}

// aggregate turns the extracted object list into inner results,
// escalating to the semantic backend and rendering diffs per object.
//
// An empty object list means the root pair simplified to identical
// form: the whole comparison is EQUAL_SYNTAX.
func (c *Comparator) aggregate(ctx context.Context, log *slog.Logger, req Request, cache *compgraph.Graph, ext extraction, res *result.Result) {
	if len(ext.objects) == 0 {
		res.Kind = result.KindEqualSyntax
		return
	}

	for _, obj := range ext.objects {
		kind := obj.Kind
		diffKind := obj.First.DiffKind

		// Non-function objects get their verdict re-derived
		// semantically when a backend is configured. A cache-answered
		// comparison has no simplified modules to verify against, so
		// the graph verdict stands.
		if c.cfg.SemdiffTool && c.verifier != nil &&
			diffKind != result.DiffFunction && ext.firstSimpl != "" {
			coupled := cache.CoupledPairs(obj.First.Name)
			verdict, err := c.verifier.Compare(ctx,
				ext.firstSimpl, ext.secondSimpl,
				obj.First.Name, obj.Second.Name, coupled)
			if err != nil {
				log.Warn("semantic check failed",
					slog.String("object", obj.First.Name),
					slog.String("error", err.Error()),
				)
			}
			semanticChecksTotal.WithLabelValues(verdict.String()).Inc()
			kind = verdict
		}

		inner := result.New(kind, obj.First, obj.Second)
		if kind == result.KindNotEqual {
			inner.Diff = c.renderDiff(ctx, log, obj, diffKind, ext)
		}
		res.AddInner(inner)
	}
}

// renderDiff renders the diff for one NOT_EQUAL object, dispatching on
// its diff kind.
func (c *Comparator) renderDiff(ctx context.Context, log *slog.Logger, obj compgraph.ObjectPair, diffKind result.DiffKind, ext extraction) string {
	switch diffKind {
	case result.DiffFunction, result.DiffType:
		if c.differ == nil {
			return diffUnavailable
		}
		diff, err := c.differ.DiffDefinition(ctx,
			obj.First.File, obj.Second.File,
			diffKind, obj.First.Line, obj.Second.Line)
		if err != nil {
			log.Warn("rendering definition diff failed",
				slog.String("object", obj.First.Name),
				slog.String("error", err.Error()),
			)
			return diffUnavailable
		}
		return diff
	case result.DiffSyntactic:
		return syndiff.FormatSyntactic(
			ext.bodiesLeft[obj.First.Name],
			ext.bodiesRight[obj.Second.Name])
	case result.DiffMacro:
		// Macro differences carry neither a source range nor captured
		// bodies; annotate instead of failing the comparison.
		log.Warn("no diff renderer for object",
			slog.String("object", obj.First.Name),
			slog.String("diff_kind", diffKind.String()),
		)
		return diffUnavailable
	default:
		log.Warn("unknown diff kind reached aggregation",
			slog.String("object", obj.First.Name),
		)
		return diffUnavailable
	}
}
