// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateSymbol_Valid(t *testing.T) {
	valid := []string{
		"do_settimeofday",
		"_raw_spin_lock",
		"jiffies",
		"kfree.cold",
		"memcpy$VARIANT$Haswell",
		"x",
		strings.Repeat("a", maxSymbolLen),
	}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Errorf("ValidateSymbol(%q) = %v, want nil", s, err)
		}
	}
}

func TestValidateSymbol_Invalid(t *testing.T) {
	invalid := map[string]string{
		"empty":          "",
		"leading dash":   "-fun",
		"flag smuggling": "--var=jiffies",
		"leading digit":  "9lives",
		"whitespace":     "do settimeofday",
		"shell meta":     "f;rm -rf /",
		"comma":          "f,g",
		"too long":       strings.Repeat("a", maxSymbolLen+1),
	}
	for name, s := range invalid {
		t.Run(name, func(t *testing.T) {
			if err := ValidateSymbol(s); err == nil {
				t.Errorf("ValidateSymbol(%q) = nil, want error", s)
			}
		})
	}
}
