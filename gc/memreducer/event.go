// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

// EventType is a closed enumeration of the signals the Driver accepts.
type EventType int

const (
	// Timer fires when a previously scheduled delay elapses.
	Timer EventType = iota
	// MarkCompact fires at the end of every full mark-compact cycle,
	// whether initiated by the reducer or by the mutator itself.
	MarkCompact
	// ContextDisposed fires when the host discards a top-level execution
	// context.
	ContextDisposed
	// BackgroundIdleNotification fires when the host believes the mutator
	// is idle.
	BackgroundIdleNotification
)

func (t EventType) String() string {
	switch t {
	case Timer:
		return "Timer"
	case MarkCompact:
		return "MarkCompact"
	case ContextDisposed:
		return "ContextDisposed"
	case BackgroundIdleNotification:
		return "BackgroundIdleNotification"
	default:
		return "EventType(?)"
	}
}

// Event is a flat record carrying every field any EventType might need.
// Step only ever reads the fields documented as relevant for the event's
// Type; a flat record is simpler to marshal to JSON for the replay tool
// than a tagged union would be.
type Event struct {
	Type EventType `json:"type"`

	// TimeMs is the wall-clock time, in milliseconds since a fixed epoch,
	// at which the event was observed. Callers are expected to supply a
	// non-decreasing sequence of TimeMs values across a Driver's lifetime,
	// though Step is total and well-defined even if they do not.
	TimeMs float64 `json:"time_ms"`

	// LowAllocationRate is meaningful for Timer only: true iff the
	// mutator's recent allocation rate is below the reducer's quiescence
	// threshold.
	LowAllocationRate bool `json:"low_allocation_rate,omitempty"`

	// NextGCLikelyToCollectMore is meaningful for MarkCompact only: true
	// iff the just-finished collection indicates further reduction is
	// likely worthwhile.
	NextGCLikelyToCollectMore bool `json:"next_gc_likely_to_collect_more,omitempty"`

	// CanStartIncrementalGC is meaningful for Timer and
	// BackgroundIdleNotification: false iff some other incremental
	// collection is already in progress, forbidding a new one.
	CanStartIncrementalGC bool `json:"can_start_incremental_gc,omitempty"`
}
