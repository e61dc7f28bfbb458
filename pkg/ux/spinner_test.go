// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a goroutine-safe bytes.Buffer for spinner output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerRendersFramesAndClears(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "simplifying modules", true)

	s.Start()
	time.Sleep(5 * frameInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "simplifying modules") {
		t.Error("spinner output should contain the message")
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Error("Stop should clear the spinner line")
	}
}

func TestSpinnerDisabledIsSilent(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "hidden", false)

	s.Start()
	time.Sleep(3 * frameInterval)
	s.Stop()

	if buf.String() != "" {
		t.Errorf("disabled spinner wrote output: %q", buf.String())
	}
}

func TestSpinnerNilWriterIsSilent(t *testing.T) {
	s := NewSpinner(nil, "hidden", true)
	s.Start()
	s.Stop() // must not panic
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "work", true)
	s.Start()
	s.Stop()
	s.Stop() // must not panic or block
}

func TestSpinnerDoubleStart(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "work", true)
	s.Start()
	s.Start() // no-op
	s.Stop()
}

func TestSpinnerUpdateMessage(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "first pass", true)
	s.Start()
	time.Sleep(2 * frameInterval)
	s.UpdateMessage("second pass")
	time.Sleep(3 * frameInterval)
	s.Stop()

	if !strings.Contains(buf.String(), "second pass") {
		t.Error("updated message should appear in output")
	}
}

func TestWithSpinnerPropagatesError(t *testing.T) {
	buf := &syncBuffer{}
	wantErr := errors.New("solver failed")

	err := WithSpinner(buf, "verifying", true, func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("WithSpinner error = %v, want %v", err, wantErr)
	}
}

func TestWithSpinnerSuccess(t *testing.T) {
	err := WithSpinner(nil, "verifying", true, func() error { return nil })
	if err != nil {
		t.Errorf("WithSpinner error = %v, want nil", err)
	}
}
