// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simplify

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/compgraph"
	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

// report mirrors the simplifier's YAML report layout.
type report struct {
	FirstOutput  string          `yaml:"first-output"`
	SecondOutput string          `yaml:"second-output"`
	Graph        []reportVertex  `yaml:"graph"`
	MissingDefs  []MissingDef    `yaml:"missing-defs"`
}

// reportVertex is one graph vertex as serialized by the simplifier.
type reportVertex struct {
	Name         string       `yaml:"name"`
	Kind         string       `yaml:"kind"`
	DiffKind     string       `yaml:"diff-kind"`
	First        reportObject `yaml:"first"`
	Second       reportObject `yaml:"second"`
	Dependencies []string     `yaml:"dependencies"`
	FirstBody    string       `yaml:"first-body"`
	SecondBody   string       `yaml:"second-body"`
}

// reportObject is one side of a vertex.
type reportObject struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

// ParseReport parses a simplifier report into an Output.
//
// Every vertex must carry a recognized kind and diff-kind; anything
// else fails the whole report, per the contract that malformed
// simplifier output is a tool-level error, not a partial result.
func ParseReport(data []byte) (*Output, error) {
	var rep report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if rep.FirstOutput == "" || rep.SecondOutput == "" {
		return nil, fmt.Errorf("%w: missing output module paths", ErrMalformedReport)
	}

	graph := compgraph.New()
	for _, rv := range rep.Graph {
		if rv.Name == "" {
			return nil, fmt.Errorf("%w: vertex without a name", ErrMalformedReport)
		}
		kind, ok := result.ParseKind(rv.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: vertex %s has unknown kind %q",
				ErrMalformedReport, rv.Name, rv.Kind)
		}
		diffKind, ok := result.ParseDiffKind(rv.DiffKind)
		if !ok {
			return nil, fmt.Errorf("%w: vertex %s has unknown diff-kind %q",
				ErrMalformedReport, rv.Name, rv.DiffKind)
		}

		first := rv.First
		if first.Name == "" {
			first.Name = rv.Name
		}
		second := rv.Second
		if second.Name == "" {
			second.Name = rv.Name
		}

		graph.Add(&compgraph.Vertex{
			Name:     rv.Name,
			Kind:     kind,
			DiffKind: diffKind,
			First: result.Entity{
				Name:     first.Name,
				File:     first.File,
				Line:     first.Line,
				DiffKind: diffKind,
			},
			Second: result.Entity{
				Name:     second.Name,
				File:     second.File,
				Line:     second.Line,
				DiffKind: diffKind,
			},
			Deps:       rv.Dependencies,
			FirstBody:  rv.FirstBody,
			SecondBody: rv.SecondBody,
		})
	}

	for i, md := range rep.MissingDefs {
		if md.First == "" && md.Second == "" {
			return nil, fmt.Errorf("%w: missing-def entry %d names no symbol",
				ErrMalformedReport, i)
		}
	}

	return &Output{
		FirstSimpl:  rep.FirstOutput,
		SecondSimpl: rep.SecondOutput,
		Graph:       graph,
		MissingDefs: rep.MissingDefs,
	}, nil
}
