// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package result defines the outcome model for semantic comparisons.
//
// A comparison of two module versions produces a tree of Result values:
// one composite root for the compared function pair, with one inner
// Result per object the comparison depends on. Every Result carries a
// Kind, and the composite kind is always the worst (most severe) kind
// found anywhere in the tree.
//
// Thread Safety:
//
//	Result trees are built single-threaded and are immutable once
//	returned to the caller. Kind and DiffKind values are plain
//	constants and safe to share.
package result

// =============================================================================
// Result Kind
// =============================================================================

// Kind is the mutually exclusive verdict tag of a comparison.
//
// The zero value is KindNone (no evidence yet).
type Kind int

const (
	// KindNone means no evidence has been collected yet.
	KindNone Kind = iota

	// KindEqualSyntax means the objects are structurally identical
	// after simplification.
	KindEqualSyntax

	// KindEqual means the objects were proven semantically equal.
	KindEqual

	// KindNotEqual means the objects were proven different.
	KindNotEqual

	// KindAssumedEqual means the objects are treated as equal on an
	// unproven assumption. Used only to break recursive comparisons.
	KindAssumedEqual

	// KindUnknown means the solver could not decide.
	KindUnknown

	// KindTimeout means the time budget was exceeded.
	KindTimeout

	// KindError means a tool failure or invalid input.
	KindError
)

// severityRank orders kinds for aggregation. Higher rank wins:
// ERROR > NOT_EQUAL > UNKNOWN > TIMEOUT > EQUAL > EQUAL_SYNTAX >
// ASSUMED_EQUAL > NONE.
var severityRank = map[Kind]int{
	KindNone:         0,
	KindAssumedEqual: 1,
	KindEqualSyntax:  2,
	KindEqual:        3,
	KindTimeout:      4,
	KindUnknown:      5,
	KindNotEqual:     6,
	KindError:        7,
}

// Severity returns the aggregation rank of the kind.
//
// Unrecognized kinds rank as KindNone.
func (k Kind) Severity() int {
	return severityRank[k]
}

// Worse returns the more severe of two kinds per the aggregation
// ordering.
func Worse(a, b Kind) Kind {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEqualSyntax:
		return "equal-syntax"
	case KindEqual:
		return "equal"
	case KindNotEqual:
		return "not-equal"
	case KindAssumedEqual:
		return "assumed-equal"
	case KindUnknown:
		return "unknown"
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// ParseKind parses the canonical kind name used in simplifier reports.
//
// Returns false for unrecognized names.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "none":
		return KindNone, true
	case "equal-syntax":
		return KindEqualSyntax, true
	case "equal":
		return KindEqual, true
	case "not-equal":
		return KindNotEqual, true
	case "assumed-equal":
		return KindAssumedEqual, true
	case "unknown":
		return KindUnknown, true
	case "timeout":
		return KindTimeout, true
	case "error":
		return KindError, true
	default:
		return KindNone, false
	}
}

// =============================================================================
// Diff Kind
// =============================================================================

// DiffKind classifies how a difference between two objects is rendered.
//
// The set is closed: function, type, syntactic, macro. Simplifier
// reports carrying any other value fail to parse at the report
// boundary, so an unmatched kind can only appear through a cache built
// by an older process, and is handled as a best-effort missing-diff
// annotation at render time.
type DiffKind int

const (
	// DiffFunction is a difference in a function body.
	DiffFunction DiffKind = iota

	// DiffType is a difference in a type definition.
	DiffType

	// DiffSyntactic is a pure syntactic difference carrying its own
	// left/right body text (e.g. an expanded macro value).
	DiffSyntactic

	// DiffMacro is a difference in a macro definition.
	DiffMacro
)

// String returns the canonical lowercase name of the diff kind.
func (d DiffKind) String() string {
	switch d {
	case DiffFunction:
		return "function"
	case DiffType:
		return "type"
	case DiffSyntactic:
		return "syntactic"
	case DiffMacro:
		return "macro"
	default:
		return "invalid"
	}
}

// ParseDiffKind parses a diff-kind name from a simplifier report.
//
// Returns false for values outside the closed set.
func ParseDiffKind(s string) (DiffKind, bool) {
	switch s {
	case "function":
		return DiffFunction, true
	case "type":
		return DiffType, true
	case "syntactic":
		return DiffSyntactic, true
	case "macro":
		return DiffMacro, true
	default:
		return DiffFunction, false
	}
}

// =============================================================================
// Entity
// =============================================================================

// Entity identifies one side of a compared object pair.
type Entity struct {
	// Name is the module-qualified symbol name.
	Name string

	// File is the source file the object was recorded in. May be
	// empty for objects without a source location.
	File string

	// Line is the 1-based line the object starts at in File.
	Line int

	// DiffKind classifies the object for diff rendering.
	DiffKind DiffKind
}

// =============================================================================
// Result
// =============================================================================

// Result is one node of the comparison outcome tree.
//
// A leaf Result carries the verdict for a single object pair. A
// composite Result additionally holds the ordered inner results it was
// aggregated from. Invariant: a composite's Kind is always the
// aggregation of its inner kinds plus any directly attached verdict,
// maintained by AddInner.
type Result struct {
	// First and Second identify the compared objects.
	First  Entity
	Second Entity

	// Kind is the verdict for this node.
	Kind Kind

	// Diff is an optional rendered textual diff. Only attached to
	// NOT_EQUAL leaves.
	Diff string

	// Inner holds sub-results in the order they were compared.
	Inner []*Result

	// Cache references the comparison graph in effect when this
	// result was produced. Held untyped so this package stays a leaf;
	// it is always a *compgraph.Graph.
	Cache any
}

// New creates a leaf Result with the given kind and compared entities.
func New(kind Kind, first, second Entity) *Result {
	return &Result{First: first, Second: second, Kind: kind}
}

// NewPair creates an empty (KindNone) Result for a compared function
// pair identified only by name.
func NewPair(funFirst, funSecond string) *Result {
	return &Result{
		First:  Entity{Name: funFirst, DiffKind: DiffFunction},
		Second: Entity{Name: funSecond, DiffKind: DiffFunction},
	}
}

// AddInner appends a sub-result and recomputes this Result's kind via
// the aggregation ordering.
//
// Recomputation is monotonic: adding a worse inner result can only
// raise or hold the parent's severity, never lower it.
func (r *Result) AddInner(inner *Result) {
	r.Inner = append(r.Inner, inner)
	r.Kind = Worse(r.Kind, inner.Kind)
}

// OverallKind returns the aggregated kind of this node.
func (r *Result) OverallKind() Kind {
	return r.Kind
}

// HasAssumptions reports whether any verdict in the tree rests on an
// unproven ASSUMED_EQUAL cycle-break.
func (r *Result) HasAssumptions() bool {
	if r.Kind == KindAssumedEqual {
		return true
	}
	for _, inner := range r.Inner {
		if inner.HasAssumptions() {
			return true
		}
	}
	return false
}
