// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

import (
	"context"
	"time"

	"go.chromium.org/luci/common/clock"
)

// TimerScheduler is the Driver's view of the platform task queue: it asks
// the host to invoke NotifyTimer after delay has elapsed. Implementations
// must not block past enqueueing the callback.
type TimerScheduler interface {
	ScheduleTimer(ctx context.Context, delay time.Duration)
}

// GCStarter is the Driver's view of the collector: it asks the collector to
// begin an incremental mark-compact cycle. The caller will eventually be
// notified of completion through a MarkCompact event; GCStarter does not
// return a result.
type GCStarter interface {
	StartIncrementalGC(ctx context.Context)
}

// RealTimer schedules timers against a go.chromium.org/luci/common/clock
// clock pulled from the context, so the delay respects context
// cancellation the same way the rest of this codebase's timers do.
type RealTimer struct {
	// OnFire is invoked, on its own goroutine, when the delay elapses and
	// the context has not been canceled. It is expected to route the call
	// back into a Driver's NotifyTimer with an appropriately constructed
	// Event.
	OnFire func(ctx context.Context)
}

// ScheduleTimer implements TimerScheduler.
func (r RealTimer) ScheduleTimer(ctx context.Context, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	timer := clock.NewTimer(ctx)
	timer.Reset(delay)
	go func() {
		select {
		case res := <-timer.GetC():
			if res.Err == nil && r.OnFire != nil {
				r.OnFire(ctx)
			}
		case <-ctx.Done():
			timer.Stop()
		}
	}()
}

// RealGCStarter forwards StartIncrementalGC to an injected callback, which
// in memreducerd marks a GC as in progress and starts a simulated GC cycle
// on its own goroutine.
type RealGCStarter struct {
	OnStart func(ctx context.Context)
}

// StartIncrementalGC implements GCStarter.
func (r RealGCStarter) StartIncrementalGC(ctx context.Context) {
	if r.OnStart != nil {
		r.OnStart(ctx)
	}
}

// RecordedTimer is one call captured by RecordingCommands.ScheduleTimer.
type RecordedTimer struct {
	Delay time.Duration
}

// RecordingCommands is a TimerScheduler and GCStarter test double that
// appends every call it receives, so a test can diff the recorded calls
// against an expectation.
type RecordingCommands struct {
	Timers   []RecordedTimer
	GCStarts int
}

// ScheduleTimer implements TimerScheduler.
func (r *RecordingCommands) ScheduleTimer(ctx context.Context, delay time.Duration) {
	r.Timers = append(r.Timers, RecordedTimer{Delay: delay})
}

// StartIncrementalGC implements GCStarter.
func (r *RecordingCommands) StartIncrementalGC(ctx context.Context) {
	r.GCStarts++
}
