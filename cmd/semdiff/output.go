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
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianDiff/services/semdiff/result"
)

// ANSI colors for verdict rendering.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// useColor reports whether stdout wants colored verdicts.
func useColor() bool {
	if noColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// verdictColor picks a color for a verdict line.
func verdictColor(k result.Kind) string {
	switch k {
	case result.KindEqual, result.KindEqualSyntax, result.KindAssumedEqual:
		return colorGreen
	case result.KindNotEqual, result.KindError:
		return colorRed
	default:
		return colorYellow
	}
}

// paintKind renders a verdict name, optionally colored.
func paintKind(k result.Kind, color bool) string {
	if !color {
		return k.String()
	}
	return verdictColor(k) + k.String() + colorReset
}

// printResult writes the composite verdict and, for differing inner
// objects, their rendered diffs.
func printResult(w io.Writer, res *result.Result, color bool) {
	header := res.First.Name
	if res.Second.Name != res.First.Name {
		header = res.First.Name + " -> " + res.Second.Name
	}
	fmt.Fprintf(w, "%s: %s\n", header, paintKind(res.OverallKind(), color))
	if res.HasAssumptions() {
		fmt.Fprintln(w, "  (verdict relies on assumed-equal helpers)")
	}

	for _, inner := range res.Inner {
		if inner.Kind == result.KindEqual || inner.Kind == result.KindEqualSyntax {
			continue
		}
		fmt.Fprintf(w, "\n  %s (%s): %s\n",
			inner.First.Name, inner.First.DiffKind, paintKind(inner.Kind, color))
		if inner.First.File != "" {
			fmt.Fprintf(w, "  %s:%d <-> %s:%d\n",
				inner.First.File, inner.First.Line,
				inner.Second.File, inner.Second.Line)
		}
		if inner.Diff != "" {
			fmt.Fprint(w, indent(inner.Diff, "  "))
		}
	}
}

// indent prefixes every non-empty line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// exitCodeFor maps a composite verdict to the process exit code:
// 0 equal, 1 differs, 2 inconclusive or failed.
func exitCodeFor(k result.Kind) int {
	switch k {
	case result.KindNone, result.KindEqual, result.KindEqualSyntax, result.KindAssumedEqual:
		return 0
	case result.KindNotEqual:
		return 1
	default:
		return 2
	}
}
