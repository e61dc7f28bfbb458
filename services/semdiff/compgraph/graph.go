// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compgraph implements the comparison graph cache.
//
// The graph maps symbol names to per-symbol verdicts. Edges encode
// "comparing A requires first resolving B". A fresh graph is produced
// by every simplifier invocation and absorbed into a long-lived cache
// graph, so verdicts accumulate across comparison runs and across the
// steps of one multi-step comparison.
//
// Thread Safety:
//
//	A Graph is NOT safe for concurrent use. The engine mutates it only
//	at well-defined absorb points, never concurrently with extraction
//	(see the comparator's single-threaded control flow).
package compgraph

import (
	"sort"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

// Vertex is the per-symbol verdict node of a comparison graph.
//
// A vertex is keyed by the first-side symbol name; the per-side
// identities may differ in file and line (and, for renamed symbols, in
// name) and are kept for extraction.
type Vertex struct {
	// Name is the symbol name the vertex is keyed by.
	Name string

	// Kind is the verdict recorded for this symbol pair.
	Kind result.Kind

	// DiffKind classifies the difference for rendering.
	DiffKind result.DiffKind

	// First and Second are the per-side object identities.
	First  result.Entity
	Second result.Entity

	// Deps are dependency edges to other vertex names, in the order
	// the simplifier discovered them.
	Deps []string

	// FirstBody and SecondBody hold the left/right body text for
	// syntactic-only differences. Empty for other diff kinds.
	FirstBody  string
	SecondBody string
}

// clone returns a deep copy of the vertex.
func (v *Vertex) clone() *Vertex {
	c := *v
	c.Deps = append([]string(nil), v.Deps...)
	return &c
}

// ObjectPair is one entry of the ordered object list produced by
// Extract: a pair of corresponding objects that still needs comparison,
// with the verdict the graph currently holds for it.
type ObjectPair struct {
	First  result.Entity
	Second result.Entity
	Kind   result.Kind
}

// Graph is a mutable mapping from symbol name to Vertex.
type Graph struct {
	vertices map[string]*Vertex
	order    []string // insertion order, for deterministic iteration
}

// New creates an empty comparison graph.
func New() *Graph {
	return &Graph{vertices: make(map[string]*Vertex)}
}

// Add inserts or replaces a vertex.
func (g *Graph) Add(v *Vertex) {
	if _, ok := g.vertices[v.Name]; !ok {
		g.order = append(g.order, v.Name)
	}
	g.vertices[v.Name] = v
}

// Vertex returns the vertex for a symbol name.
func (g *Graph) Vertex(name string) (*Vertex, bool) {
	v, ok := g.vertices[name]
	return v, ok
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.vertices)
}

// Vertices returns all vertices in insertion order.
func (g *Graph) Vertices() []*Vertex {
	out := make([]*Vertex, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.vertices[name])
	}
	return out
}

// isDefinite reports whether a kind carries real evidence. NONE and
// UNKNOWN do not; ASSUMED_EQUAL is a traversal marker, not evidence.
func isDefinite(k result.Kind) bool {
	switch k {
	case result.KindNone, result.KindUnknown, result.KindAssumedEqual:
		return false
	default:
		return true
	}
}

// Absorb merges another graph into this one.
//
// For each vertex present in both, the existing verdict is kept unless
// it is NONE or UNKNOWN and the incoming vertex supplies something more
// definite; an incoming vertex strictly less informative than the
// existing one is dropped. Dependency edges are unioned either way.
//
// The direction matters: absorbing a fresh partial result into a
// durable cache must never erase previously-proven verdicts, so
// repeated comparisons converge instead of oscillating.
func (g *Graph) Absorb(from *Graph) {
	if from == nil {
		return
	}
	for _, name := range from.order {
		incoming := from.vertices[name]
		existing, ok := g.vertices[name]
		if !ok {
			g.Add(incoming.clone())
			continue
		}
		if !isDefinite(existing.Kind) && isDefinite(incoming.Kind) {
			merged := incoming.clone()
			merged.Deps = unionDeps(existing.Deps, incoming.Deps)
			g.vertices[name] = merged
			continue
		}
		existing.Deps = unionDeps(existing.Deps, incoming.Deps)
	}
}

// unionDeps appends names from extra that are not already in base,
// preserving base order.
func unionDeps(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, d := range base {
		seen[d] = struct{}{}
	}
	out := append([]string(nil), base...)
	for _, d := range extra {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}

// Extract traverses the graph from the two root symbols and returns,
// in deterministic preorder, the object pairs whose verdict is not
// EQUAL_SYNTAX or EQUAL, plus the name-to-body maps used to render
// syntactic-only diffs.
//
// A vertex already visited in the current traversal is reported once
// and never re-entered, which breaks dependency cycles. Calling
// Extract twice on an unchanged graph yields identical output.
func (g *Graph) Extract(rootFirst, rootSecond string) ([]ObjectPair, map[string]string, map[string]string) {
	objects := make([]ObjectPair, 0)
	bodiesLeft := make(map[string]string)
	bodiesRight := make(map[string]string)

	root, ok := g.vertices[rootFirst]
	if !ok && rootSecond != rootFirst {
		root, ok = g.vertices[rootSecond]
	}
	if !ok {
		return objects, bodiesLeft, bodiesRight
	}

	visited := make(map[string]struct{})
	stack := []string{root.Name}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}

		v, ok := g.vertices[name]
		if !ok {
			continue
		}

		if v.Kind != result.KindEqualSyntax && v.Kind != result.KindEqual {
			objects = append(objects, ObjectPair{First: v.First, Second: v.Second, Kind: v.Kind})
			if v.DiffKind == result.DiffSyntactic {
				bodiesLeft[v.First.Name] = v.FirstBody
				bodiesRight[v.Second.Name] = v.SecondBody
			}
		}

		// Push deps in reverse so they pop in discovery order.
		for i := len(v.Deps) - 1; i >= 0; i-- {
			if _, seen := visited[v.Deps[i]]; !seen {
				stack = append(stack, v.Deps[i])
			}
		}
	}

	return objects, bodiesLeft, bodiesRight
}

// CoupledPairs returns the helper-function name pairs reachable from
// the root symbol whose two sides correspond by name equality, sorted
// by name for a deterministic verifier invocation. The root itself is
// not coupled to itself.
func (g *Graph) CoupledPairs(root string) [][2]string {
	v, ok := g.vertices[root]
	if !ok {
		return nil
	}

	visited := map[string]struct{}{root: {}}
	stack := append([]string(nil), v.Deps...)
	var names []string
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}

		dep, ok := g.vertices[name]
		if !ok {
			continue
		}
		if dep.DiffKind == result.DiffFunction && dep.First.Name == dep.Second.Name {
			names = append(names, dep.First.Name)
		}
		stack = append(stack, dep.Deps...)
	}

	sort.Strings(names)
	pairs := make([][2]string, 0, len(names))
	for _, n := range names {
		pairs = append(pairs, [2]string{n, n})
	}
	return pairs
}
