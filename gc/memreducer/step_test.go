// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// cfg is the config shared by the scenarios below.
var cfg = Config{LongDelayMs: 1000, ShortDelayMs: 100, MaxNumberOfGCs: 3}

func TestStepScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		start State
		event Event
		want  State
	}{
		{
			// Done -> Wait on MarkCompact.
			name:  "done_to_wait_on_mark_compact",
			start: State{Action: Done, StartedGCs: 0, NextGCStartMs: 0},
			event: Event{Type: MarkCompact, TimeMs: 0, NextGCLikelyToCollectMore: false},
			want:  State{Action: Wait, StartedGCs: 0, NextGCStartMs: cfg.LongDelayMs},
		},
		{
			// Wait -> Wait on high allocation rate.
			name:  "wait_to_wait_on_high_allocation",
			start: State{Action: Wait, StartedGCs: 2, NextGCStartMs: 1000},
			event: Event{Type: Timer, TimeMs: 2000, LowAllocationRate: false, CanStartIncrementalGC: true},
			want:  State{Action: Wait, StartedGCs: 2, NextGCStartMs: 2000 + cfg.LongDelayMs},
		},
		{
			// Wait -> Run on quiescence.
			name:  "wait_to_run_on_quiescence",
			start: State{Action: Wait, StartedGCs: 0, NextGCStartMs: 1000},
			event: Event{Type: Timer, TimeMs: 1001, LowAllocationRate: true, CanStartIncrementalGC: true},
			want:  State{Action: Run, StartedGCs: 1, NextGCStartMs: 0},
		},
		{
			// Wait -> Done at cap.
			name:  "wait_to_done_at_cap",
			start: State{Action: Wait, StartedGCs: cfg.MaxNumberOfGCs, NextGCStartMs: 0},
			event: Event{Type: Timer, TimeMs: 2000, LowAllocationRate: true, CanStartIncrementalGC: true},
			want:  State{Action: Done, StartedGCs: 0, NextGCStartMs: 0},
		},
		{
			// Run -> Wait when more garbage likely.
			name:  "run_to_wait_more_garbage_likely",
			start: State{Action: Run, StartedGCs: 2, NextGCStartMs: 0},
			event: Event{Type: MarkCompact, TimeMs: 2000, NextGCLikelyToCollectMore: true},
			want:  State{Action: Wait, StartedGCs: 2, NextGCStartMs: 2000 + cfg.ShortDelayMs},
		},
		{
			// Run -> Done when no more garbage and enough cycles done.
			name:  "run_to_done_no_more_garbage",
			start: State{Action: Run, StartedGCs: 2, NextGCStartMs: 0},
			event: Event{Type: MarkCompact, TimeMs: 2000, NextGCLikelyToCollectMore: false},
			want:  State{Action: Done, StartedGCs: 0, NextGCStartMs: 0},
		},
		{
			// Wait idle tick starts an incremental GC without leaving Wait.
			name:  "wait_idle_notification_increments_without_leaving_wait",
			start: State{Action: Wait, StartedGCs: 0, NextGCStartMs: 1000},
			event: Event{Type: BackgroundIdleNotification, TimeMs: 2000, CanStartIncrementalGC: true},
			want:  State{Action: Wait, StartedGCs: 1, NextGCStartMs: 1000},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Step(cfg, tc.start, tc.event)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Step(%+v, %+v) mismatch (-want +got):\n%s", tc.start, tc.event, diff)
			}
		})
	}
}

// TestStepInvariantStartedGCsInRange checks that for every reachable
// (state, event), the result's StartedGCs stays within [0, MaxNumberOfGCs].
func TestStepInvariantStartedGCsInRange(t *testing.T) {
	t.Parallel()
	for _, state := range allStatesUpTo(cfg.MaxNumberOfGCs) {
		for _, event := range allEventKinds() {
			got := Step(cfg, state, event)
			if got.StartedGCs < 0 || got.StartedGCs > cfg.MaxNumberOfGCs {
				t.Errorf("Step(%+v, %+v) = %+v, StartedGCs out of range", state, event, got)
			}
		}
	}
}

// TestStepInvariantDoneIsClean checks that every transition into Done
// resets StartedGCs and NextGCStartMs to zero.
func TestStepInvariantDoneIsClean(t *testing.T) {
	t.Parallel()
	for _, state := range allStatesUpTo(cfg.MaxNumberOfGCs) {
		for _, event := range allEventKinds() {
			got := Step(cfg, state, event)
			if got.Action == Done && (got.StartedGCs != 0 || got.NextGCStartMs != 0) {
				t.Errorf("Step(%+v, %+v) = %+v, Done state not clean", state, event, got)
			}
		}
	}
}

// TestStepIsPure checks that equal inputs produce equal outputs.
func TestStepIsPure(t *testing.T) {
	t.Parallel()
	state := State{Action: Wait, StartedGCs: 1, NextGCStartMs: 500}
	event := Event{Type: Timer, TimeMs: 600, LowAllocationRate: true, CanStartIncrementalGC: true}
	a := Step(cfg, state, event)
	b := Step(cfg, state, event)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Step was not deterministic (-first +second):\n%s", diff)
	}
}

// TestStepReachesDone checks that from any reachable state, a finite
// sequence of events reaches Done. The simplest
// witness is a Timer with a low allocation rate and no competing
// incremental GC repeated until the GC cap forces Done, or the
// corresponding MarkCompact sequence from Run.
func TestStepReachesDone(t *testing.T) {
	t.Parallel()
	for _, start := range allStatesUpTo(cfg.MaxNumberOfGCs) {
		state := start
		reached := state.Action == Done
		t_ms := state.NextGCStartMs + 1
		for i := 0; i < 2*cfg.MaxNumberOfGCs+4 && !reached; i++ {
			var event Event
			switch state.Action {
			case Wait:
				event = Event{Type: Timer, TimeMs: t_ms, LowAllocationRate: true, CanStartIncrementalGC: true}
			case Run:
				event = Event{Type: MarkCompact, TimeMs: t_ms, NextGCLikelyToCollectMore: false}
			default:
				reached = true
				continue
			}
			state = Step(cfg, state, event)
			t_ms += cfg.LongDelayMs + cfg.ShortDelayMs + 1
			if state.Action == Done {
				reached = true
			}
		}
		if !reached {
			t.Errorf("starting from %+v, Done was not reached within the step budget", start)
		}
	}
}

// TestStepContextDisposedIsIdempotentInWaitAndRun checks that
// ContextDisposed never changes state once an episode is in progress.
func TestStepContextDisposedIsIdempotentInWaitAndRun(t *testing.T) {
	t.Parallel()
	for _, state := range allStatesUpTo(cfg.MaxNumberOfGCs) {
		if state.Action == Done {
			continue
		}
		event := Event{Type: ContextDisposed, TimeMs: 42}
		got := Step(cfg, state, event)
		if diff := cmp.Diff(state, got); diff != "" {
			t.Errorf("ContextDisposed on %+v was not idempotent (-want +got):\n%s", state, diff)
		}
	}
}

// TestStepTimerNoOpInDone checks that a Timer event is ignored while Done.
func TestStepTimerNoOpInDone(t *testing.T) {
	t.Parallel()
	state := State{Action: Done, StartedGCs: 0, NextGCStartMs: 0}
	for _, event := range []Event{
		{Type: Timer, TimeMs: 10, LowAllocationRate: true, CanStartIncrementalGC: true},
		{Type: Timer, TimeMs: 10, LowAllocationRate: false, CanStartIncrementalGC: false},
	} {
		got := Step(cfg, state, event)
		if diff := cmp.Diff(state, got); diff != "" {
			t.Errorf("Timer on Done was not a no-op (-want +got):\n%s", diff)
		}
	}
}

// TestStepBackgroundIdleCannotStartIsIdempotent checks that a
// BackgroundIdleNotification which cannot start a GC leaves state unchanged.
func TestStepBackgroundIdleCannotStartIsIdempotent(t *testing.T) {
	t.Parallel()
	state := State{Action: Wait, StartedGCs: 1, NextGCStartMs: 500}
	event := Event{Type: BackgroundIdleNotification, TimeMs: 10, CanStartIncrementalGC: false}
	got := Step(cfg, state, event)
	if diff := cmp.Diff(state, got); diff != "" {
		t.Errorf("BackgroundIdleNotification with CanStartIncrementalGC=false was not idempotent (-want +got):\n%s", diff)
	}
}

// TestStepBoundaryTimeEqualsNextGCStart checks that the comparison against
// NextGCStartMs is inclusive.
func TestStepBoundaryTimeEqualsNextGCStart(t *testing.T) {
	t.Parallel()
	state := State{Action: Wait, StartedGCs: 0, NextGCStartMs: 500}
	event := Event{Type: Timer, TimeMs: 500, LowAllocationRate: true, CanStartIncrementalGC: true}
	got := Step(cfg, state, event)
	want := State{Action: Run, StartedGCs: 1, NextGCStartMs: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("boundary Timer mismatch (-want +got):\n%s", diff)
	}
}

// TestStepCapForcesDoneNotRun checks that reaching the GC cap while Wait
// forces Done rather than starting one more Run.
func TestStepCapForcesDoneNotRun(t *testing.T) {
	t.Parallel()
	state := State{Action: Wait, StartedGCs: cfg.MaxNumberOfGCs, NextGCStartMs: 0}
	event := Event{Type: Timer, TimeMs: 1, LowAllocationRate: true, CanStartIncrementalGC: true}
	got := Step(cfg, state, event)
	if got.Action != Done {
		t.Errorf("Step(%+v, %+v) = %+v, want Action=Done", state, event, got)
	}
}

func allStatesUpTo(max int) []State {
	states := []State{}
	for _, a := range []Action{Done, Wait, Run} {
		for gcs := 0; gcs <= max; gcs++ {
			for _, next := range []float64{0, 500, 1500} {
				states = append(states, State{Action: a, StartedGCs: gcs, NextGCStartMs: next})
			}
		}
	}
	return states
}

func allEventKinds() []Event {
	events := []Event{}
	for _, typ := range []EventType{Timer, MarkCompact, ContextDisposed, BackgroundIdleNotification} {
		for _, b1 := range []bool{true, false} {
			for _, b2 := range []bool{true, false} {
				for _, b3 := range []bool{true, false} {
					for _, t := range []float64{0, 500, 1500} {
						events = append(events, Event{
							Type:                      typ,
							TimeMs:                    t,
							LowAllocationRate:         b1,
							NextGCLikelyToCollectMore: b2,
							CanStartIncrementalGC:     b3,
						})
					}
				}
			}
		}
	}
	return events
}
