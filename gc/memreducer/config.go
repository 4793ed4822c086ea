// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

// Config holds the three policy constants that parameterize Step. Keeping
// them in a value rather than package-level constants lets memreducerd and
// memreducer-sim override them from flags while Step remains a pure
// function of (Config, State, Event).
type Config struct {
	// LongDelayMs is the delay used while waiting for allocation to quiet
	// down.
	LongDelayMs float64
	// ShortDelayMs is the delay used between successive reducer-initiated
	// GCs within one episode.
	ShortDelayMs float64
	// MaxNumberOfGCs caps the number of reducer-initiated GCs per episode.
	// Must be at least 2.
	MaxNumberOfGCs int
}

// DefaultConfig mirrors the constants V8's own memory reducer is built
// with.
func DefaultConfig() Config {
	return Config{
		LongDelayMs:    20000,
		ShortDelayMs:   500,
		MaxNumberOfGCs: 3,
	}
}
