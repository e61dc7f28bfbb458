// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for security-critical
// operations.
//
// Symbol and variable names supplied on the command line end up as
// arguments to external processes (simplifier, verifier, linker).
// Validating them first prevents flag smuggling and keeps garbage out
// of the comparison pipeline.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// maxSymbolLen bounds accepted symbol names. Mangled and suffixed
// names in compiled modules run long, but nothing legitimate
// approaches this.
const maxSymbolLen = 512

// symbolPattern matches linker-level symbol names: an identifier
// start, then identifier characters plus the '.' and '$' separators
// compilers emit for internal and versioned symbols.
var symbolPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.$]*$`)

// ValidateSymbol validates a function or global-variable symbol name
// before it is passed to an external tool.
//
// Valid symbols:
//   - start with a letter or underscore
//   - continue with letters, digits, underscores, dots, or dollars
//   - at most 512 characters
//
// Returns an error describing the first violated rule.
//
// Example:
//
//	if err := validation.ValidateSymbol(fun); err != nil {
//	    return fmt.Errorf("invalid function name: %w", err)
//	}
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > maxSymbolLen {
		return fmt.Errorf("symbol exceeds %d characters", maxSymbolLen)
	}
	if strings.HasPrefix(symbol, "-") {
		return fmt.Errorf("symbol cannot start with '-'")
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("symbol %q contains invalid characters", symbol)
	}
	return nil
}
