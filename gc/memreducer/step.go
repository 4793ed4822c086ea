// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

// Step is the total, pure transition function: given the controller's
// current state, an incoming event, and the policy constants, it computes
// the next state. Step has no side effects; it does not log, does not
// touch a clock, and does not know about timers or the collector. Equal
// (cfg, state, event) inputs always produce an equal result.
func Step(cfg Config, state State, event Event) State {
	switch state.Action {
	case Done:
		return stepDone(cfg, state, event)
	case Wait:
		return stepWait(cfg, state, event)
	case Run:
		return stepRun(cfg, state, event)
	default:
		return state
	}
}

func stepDone(cfg Config, state State, event Event) State {
	switch event.Type {
	case MarkCompact, ContextDisposed:
		return State{Action: Wait, StartedGCs: 0, NextGCStartMs: event.TimeMs + cfg.LongDelayMs}
	default:
		// Timer and BackgroundIdleNotification are ignored while Done; the
		// result is always the clean Done state.
		return State{Action: Done, StartedGCs: 0, NextGCStartMs: 0}
	}
}

func stepWait(cfg Config, state State, event Event) State {
	switch event.Type {
	case ContextDisposed:
		return state

	case MarkCompact:
		return State{Action: Wait, StartedGCs: state.StartedGCs, NextGCStartMs: event.TimeMs + cfg.LongDelayMs}

	case Timer:
		if !event.LowAllocationRate || !event.CanStartIncrementalGC {
			return State{Action: Wait, StartedGCs: state.StartedGCs, NextGCStartMs: event.TimeMs + cfg.LongDelayMs}
		}
		if state.StartedGCs >= cfg.MaxNumberOfGCs {
			return State{Action: Done, StartedGCs: 0, NextGCStartMs: 0}
		}
		if event.TimeMs >= state.NextGCStartMs {
			return State{Action: Run, StartedGCs: state.StartedGCs + 1, NextGCStartMs: 0}
		}
		return state

	case BackgroundIdleNotification:
		if event.CanStartIncrementalGC && state.StartedGCs < cfg.MaxNumberOfGCs {
			return State{Action: Wait, StartedGCs: state.StartedGCs + 1, NextGCStartMs: state.NextGCStartMs}
		}
		return state

	default:
		return state
	}
}

func stepRun(cfg Config, state State, event Event) State {
	switch event.Type {
	case MarkCompact:
		switch {
		case !event.NextGCLikelyToCollectMore && state.StartedGCs > 1:
			return State{Action: Done, StartedGCs: 0, NextGCStartMs: 0}
		case state.StartedGCs >= cfg.MaxNumberOfGCs:
			return State{Action: Done, StartedGCs: 0, NextGCStartMs: 0}
		default:
			return State{Action: Wait, StartedGCs: state.StartedGCs, NextGCStartMs: event.TimeMs + cfg.ShortDelayMs}
		}
	default:
		// Timer, ContextDisposed, and BackgroundIdleNotification are all
		// harmless while an incremental GC the reducer started is still
		// running.
		return state
	}
}
