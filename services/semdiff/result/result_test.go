// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOrdering(t *testing.T) {
	// ERROR > NOT_EQUAL > UNKNOWN > TIMEOUT > EQUAL > EQUAL_SYNTAX >
	// ASSUMED_EQUAL > NONE
	ordered := []Kind{
		KindNone,
		KindAssumedEqual,
		KindEqualSyntax,
		KindEqual,
		KindTimeout,
		KindUnknown,
		KindNotEqual,
		KindError,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Severity(), ordered[i-1].Severity(),
			"%s must outrank %s", ordered[i], ordered[i-1])
	}
}

func TestWorse(t *testing.T) {
	assert.Equal(t, KindError, Worse(KindEqual, KindError))
	assert.Equal(t, KindError, Worse(KindError, KindEqual))
	assert.Equal(t, KindNotEqual, Worse(KindNotEqual, KindTimeout))
	assert.Equal(t, KindEqual, Worse(KindEqual, KindEqualSyntax))
	assert.Equal(t, KindNone, Worse(KindNone, KindNone))
}

func TestParseKindRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindNone, KindEqualSyntax, KindEqual, KindNotEqual,
		KindAssumedEqual, KindUnknown, KindTimeout, KindError,
	}
	for _, k := range kinds {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok, "ParseKind(%q)", k.String())
		assert.Equal(t, k, parsed)
	}

	_, ok := ParseKind("definitely-not-a-kind")
	assert.False(t, ok)
}

func TestParseDiffKind(t *testing.T) {
	for _, d := range []DiffKind{DiffFunction, DiffType, DiffSyntactic, DiffMacro} {
		parsed, ok := ParseDiffKind(d.String())
		require.True(t, ok)
		assert.Equal(t, d, parsed)
	}

	_, ok := ParseDiffKind("template")
	assert.False(t, ok)
}

func TestResultZeroValueIsNone(t *testing.T) {
	r := NewPair("init_module", "init_module")
	assert.Equal(t, KindNone, r.OverallKind())
	assert.Empty(t, r.Inner)
}

func TestAddInnerAggregates(t *testing.T) {
	r := NewPair("do_work", "do_work")

	r.AddInner(New(KindEqualSyntax, Entity{Name: "helper_a"}, Entity{Name: "helper_a"}))
	assert.Equal(t, KindEqualSyntax, r.OverallKind())

	r.AddInner(New(KindEqual, Entity{Name: "helper_b"}, Entity{Name: "helper_b"}))
	assert.Equal(t, KindEqual, r.OverallKind())

	r.AddInner(New(KindNotEqual, Entity{Name: "helper_c"}, Entity{Name: "helper_c"}))
	assert.Equal(t, KindNotEqual, r.OverallKind())
}

func TestAddInnerIsMonotonic(t *testing.T) {
	r := NewPair("do_work", "do_work")
	r.AddInner(New(KindNotEqual, Entity{Name: "a"}, Entity{Name: "a"}))
	require.Equal(t, KindNotEqual, r.OverallKind())

	// A better inner result must never lower the parent's severity.
	r.AddInner(New(KindEqual, Entity{Name: "b"}, Entity{Name: "b"}))
	assert.Equal(t, KindNotEqual, r.OverallKind())

	r.AddInner(New(KindEqualSyntax, Entity{Name: "c"}, Entity{Name: "c"}))
	assert.Equal(t, KindNotEqual, r.OverallKind())
}

func TestAddInnerKeepsDirectVerdict(t *testing.T) {
	// A parent with a directly attached verdict keeps it when the
	// inner results are less severe.
	r := New(KindUnknown, Entity{Name: "f"}, Entity{Name: "f"})
	r.AddInner(New(KindEqual, Entity{Name: "g"}, Entity{Name: "g"}))
	assert.Equal(t, KindUnknown, r.OverallKind())
}

func TestHasAssumptions(t *testing.T) {
	r := NewPair("f", "f")
	r.AddInner(New(KindEqual, Entity{Name: "g"}, Entity{Name: "g"}))
	assert.False(t, r.HasAssumptions())

	nested := New(KindEqual, Entity{Name: "h"}, Entity{Name: "h"})
	nested.AddInner(New(KindAssumedEqual, Entity{Name: "i"}, Entity{Name: "i"}))
	r.AddInner(nested)
	assert.True(t, r.HasAssumptions())
}
