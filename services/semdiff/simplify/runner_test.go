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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

const sampleReport = `
first-output: /tmp/first-simpl.ll
second-output: /tmp/second-simpl.ll
graph:
  - name: do_settimeofday
    kind: not-equal
    diff-kind: function
    first:
      name: do_settimeofday
      file: kernel/time.c
      line: 120
    second:
      name: do_settimeofday
      file: kernel/time.c
      line: 131
    dependencies: [read_persistent_clock, HZ]
  - name: read_persistent_clock
    kind: equal-syntax
    diff-kind: function
    first:
      name: read_persistent_clock
      file: kernel/time.c
      line: 40
    second:
      name: read_persistent_clock
      file: kernel/time.c
      line: 40
  - name: HZ
    kind: not-equal
    diff-kind: syntactic
    first-body: "#define HZ 100"
    second-body: "#define HZ 250"
missing-defs:
  - first: update_wall_time
  - second: tick_setup
`

func TestParseReport(t *testing.T) {
	out, err := ParseReport([]byte(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/first-simpl.ll", out.FirstSimpl)
	assert.Equal(t, "/tmp/second-simpl.ll", out.SecondSimpl)
	assert.Equal(t, 3, out.Graph.Len())

	v, ok := out.Graph.Vertex("do_settimeofday")
	require.True(t, ok)
	assert.Equal(t, result.KindNotEqual, v.Kind)
	assert.Equal(t, result.DiffFunction, v.DiffKind)
	assert.Equal(t, 120, v.First.Line)
	assert.Equal(t, 131, v.Second.Line)
	assert.Equal(t, []string{"read_persistent_clock", "HZ"}, v.Deps)

	hz, ok := out.Graph.Vertex("HZ")
	require.True(t, ok)
	assert.Equal(t, result.DiffSyntactic, hz.DiffKind)
	assert.Equal(t, "HZ", hz.First.Name, "side name defaults to vertex name")
	assert.Equal(t, "#define HZ 100", hz.FirstBody)

	require.Len(t, out.MissingDefs, 2)
	assert.Equal(t, "update_wall_time", out.MissingDefs[0].First)
	assert.Equal(t, "tick_setup", out.MissingDefs[1].Second)
}

func TestParseReportRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"not yaml":         "::: not yaml {{{",
		"no output paths":  "graph: []",
		"unknown kind":     "first-output: a\nsecond-output: b\ngraph:\n  - name: f\n    kind: maybe\n    diff-kind: function",
		"unknown diffkind": "first-output: a\nsecond-output: b\ngraph:\n  - name: f\n    kind: equal\n    diff-kind: template",
		"nameless vertex":  "first-output: a\nsecond-output: b\ngraph:\n  - kind: equal\n    diff-kind: function",
		"empty missingdef": "first-output: a\nsecond-output: b\nmissing-defs:\n  - {}",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReport([]byte(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedReport), "got: %v", err)
		})
	}
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs(Request{
		First:           "a.ll",
		Second:          "b.ll",
		FunFirst:        "f",
		FunSecond:       "g",
		GlobalVar:       "jiffies",
		Suffix:          "jiffies",
		CacheDir:        "/var/cache/semdiff",
		ControlFlowOnly: true,
		PrintAsmDiffs:   true,
	})
	assert.Equal(t, []string{
		"a.ll", "b.ll", "--fun=f,g", "--var=jiffies", "--suffix=jiffies",
		"--cache-dir=/var/cache/semdiff", "--control-flow-only", "--print-asm-diffs",
	}, args)
}

func TestBuildArgsMinimal(t *testing.T) {
	args := buildArgs(Request{First: "a.ll", Second: "b.ll", FunFirst: "f", FunSecond: "f"})
	assert.Equal(t, []string{"a.ll", "b.ll", "--fun=f,f"}, args)
}

// writeStub writes an executable shell script to dir and returns its
// path.
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestRunParsesProcessOutput(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "simpll", `cat <<'EOF'
first-output: /tmp/a.simpl.ll
second-output: /tmp/b.simpl.ll
graph:
  - name: f
    kind: equal-syntax
    diff-kind: function
EOF`)

	r := NewRunner(stub, nil)
	out, err := r.Run(context.Background(), Request{
		First: "a.ll", Second: "b.ll", FunFirst: "f", FunSecond: "f",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Graph.Len())
	assert.Empty(t, out.MissingDefs)
}

func TestRunReportsProcessFailure(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "simpll", "echo boom >&2; exit 3")

	r := NewRunner(stub, nil)
	_, err := r.Run(context.Background(), Request{
		First: "a.ll", Second: "b.ll", FunFirst: "f", FunSecond: "f",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSimplifierFailed))
}

func TestRunReportsMalformedOutput(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "simpll", "echo 'graph: []'")

	r := NewRunner(stub, nil)
	_, err := r.Run(context.Background(), Request{
		First: "a.ll", Second: "b.ll", FunFirst: "f", FunSecond: "f",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))
}
