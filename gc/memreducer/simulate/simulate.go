// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package simulate stands in for the allocation-rate estimator of a real
// heap, which this module does not implement. It produces boolean signals
// (low allocation, likely context disposal, likely idleness) that
// memreducerd turns into Events, without claiming to model a real V8 heap.
// The collector and the platform task queue are simulated by memreducerd
// itself, not by this package.
package simulate

import (
	"math/rand"
)

// Mutator generates a synthetic allocation-rate signal: alternating
// high-allocation and quiescent phases of randomized length, used to
// decide how the next Timer event's LowAllocationRate field should read.
// It is the simulator's analog of V8's allocation-rate tracker, an
// external collaborator this package only stands in for, not implements.
type Mutator struct {
	rnd *rand.Rand

	highPhase      bool
	remainingTicks int

	// HighPhaseTicks and LowPhaseTicks bound how many ticks (Timer events)
	// a phase lasts before the mutator randomly switches, as a half-open
	// range [lo, hi). NewMutator sets them to {3, 8} and {5, 15}; a pair
	// whose upper bound is not above its lower bound gives phases of
	// exactly the lower bound's length, so zero values are not replaced by
	// a default.
	HighPhaseTicks [2]int
	LowPhaseTicks  [2]int
}

// NewMutator builds a Mutator seeded deterministically from seed, so runs
// of memreducerd or tests can be reproduced exactly.
func NewMutator(seed int64) *Mutator {
	m := &Mutator{
		rnd:            rand.New(rand.NewSource(seed)),
		highPhase:      true,
		HighPhaseTicks: [2]int{3, 8},
		LowPhaseTicks:  [2]int{5, 15},
	}
	m.remainingTicks = m.nextPhaseLength()
	return m
}

func (m *Mutator) nextPhaseLength() int {
	bounds := m.LowPhaseTicks
	if m.highPhase {
		bounds = m.HighPhaseTicks
	}
	lo, hi := bounds[0], bounds[1]
	if hi <= lo {
		return lo
	}
	return lo + m.rnd.Intn(hi-lo)
}

// Tick advances the mutator by one Timer event and reports whether
// allocation is currently low.
func (m *Mutator) Tick() (lowAllocationRate bool) {
	m.remainingTicks--
	if m.remainingTicks <= 0 {
		m.highPhase = !m.highPhase
		m.remainingTicks = m.nextPhaseLength()
	}
	return !m.highPhase
}

// ContextDisposalLikely reports whether this tick should also carry a
// ContextDisposed signal, modeling a navigation or tab close: it is true
// with a one-in-ten chance on any tick of a high-allocation phase, and
// never during a quiescent phase.
func (m *Mutator) ContextDisposalLikely() bool {
	return m.highPhase && m.rnd.Intn(10) == 0
}

// IdleLikely reports whether this tick should also carry a
// BackgroundIdleNotification, modeling the host noticing idle time.
func (m *Mutator) IdleLikely() bool {
	return !m.highPhase && m.rnd.Intn(6) == 0
}
