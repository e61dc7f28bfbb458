// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal progress feedback for long-running
// comparisons. External simplifier and solver runs can take tens of
// seconds each; the spinner keeps interactive sessions from looking
// hung without polluting piped output.
package ux

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// frameInterval is the spinner animation rate.
const frameInterval = 80 * time.Millisecond

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner provides an animated progress indicator on a terminal.
//
// A disabled spinner (nil writer or Enabled false) is a no-op, so
// callers never need to branch on whether output is a tty.
type Spinner struct {
	w       io.Writer
	enabled bool

	mu         sync.Mutex
	message    string
	running    bool
	frameIndex int
	stop       chan struct{}
	done       chan struct{}
}

// NewSpinner creates a spinner writing to w. A nil writer disables it.
func NewSpinner(w io.Writer, message string, enabled bool) *Spinner {
	return &Spinner{
		w:       w,
		enabled: enabled && w != nil,
		message: message,
	}
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.animate(s.stop, s.done)
}

// animate renders frames until the stop channel closes, then clears
// the spinner line.
func (s *Spinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			fmt.Fprint(s.w, "\r\033[K")
			close(done)
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := frames[s.frameIndex%len(frames)]
			s.frameIndex++
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s %s", frame, msg)
		}
	}
}

// Stop halts the animation and clears the spinner line. Stopping a
// stopped or disabled spinner is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// UpdateMessage changes the message shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn under a spinner and stops it when fn returns.
func WithSpinner(w io.Writer, message string, enabled bool, fn func() error) error {
	spin := NewSpinner(w, message, enabled)
	spin.Start()
	defer spin.Stop()
	return fn()
}
