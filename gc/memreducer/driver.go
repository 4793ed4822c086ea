// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.chromium.org/luci/common/logging"
)

// Driver owns the single mutable State for the heap it manages and turns
// Step's pure decisions into calls against TimerScheduler and GCStarter.
// Driver is not safe for concurrent Notify* calls: callers are expected to
// deliver events from a single logical caller, and Driver does not add
// locking that would imply otherwise. The internal mutex is held only
// while the state is read or written, so that State(), the read path used
// by status/metrics reporting, is safe alongside a Notify* call; it does
// not make concurrent Notify* calls safe, since the timer and GC commands
// are issued outside it.
type Driver struct {
	cfg     Config
	timers  TimerScheduler
	gc      GCStarter
	onState func(State)

	mu      sync.Mutex
	state   State
	episode string
}

// NewDriver constructs a Driver in the initial state. timers and gc are the
// Driver's only side-effecting dependencies; onState, if non-nil, is called
// synchronously after every accepted transition and is intended for
// metrics/observability hooks, not policy.
func NewDriver(cfg Config, timers TimerScheduler, gc GCStarter, onState func(State)) *Driver {
	return &Driver{
		cfg:     cfg,
		timers:  timers,
		gc:      gc,
		onState: onState,
		state:   InitialState,
	}
}

// State returns a snapshot of the current state. Safe to call concurrently
// with Notify* calls, which is why it takes the mutex; Notify* calls
// themselves must still come from a single logical caller.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// NotifyTimer handles a Timer event.
func (d *Driver) NotifyTimer(ctx context.Context, event Event) {
	event.Type = Timer
	d.apply(ctx, event)
}

// NotifyMarkCompact handles a MarkCompact event.
func (d *Driver) NotifyMarkCompact(ctx context.Context, event Event) {
	event.Type = MarkCompact
	d.apply(ctx, event)
}

// NotifyContextDisposed handles a ContextDisposed event.
func (d *Driver) NotifyContextDisposed(ctx context.Context, event Event) {
	event.Type = ContextDisposed
	d.apply(ctx, event)
}

// NotifyBackgroundIdleNotification handles a BackgroundIdleNotification
// event.
func (d *Driver) NotifyBackgroundIdleNotification(ctx context.Context, event Event) {
	event.Type = BackgroundIdleNotification
	d.apply(ctx, event)
}

func (d *Driver) apply(ctx context.Context, event Event) {
	d.mu.Lock()
	old := d.state
	next := Step(d.cfg, old, event)
	d.state = next
	if old.Action != Done && next.Action == Done {
		d.episode = ""
	} else if old.Action == Done && next.Action != Done {
		d.episode = uuid.NewString()
	}
	episode := d.episode
	d.mu.Unlock()

	if next != old {
		logging.Debugf(ctx, "memreducer[%s]: %s event at t=%.0fms: %s -> %s (started_gcs=%d)",
			episode, event.Type, event.TimeMs, old.Action, next.Action, next.StartedGCs)
	}

	if d.onState != nil {
		d.onState(next)
	}

	enteredWait := next.Action == Wait && old.Action != Wait
	idleIncrement := next.Action == Wait && old.Action == Wait && next.StartedGCs == old.StartedGCs+1

	if enteredWait && d.timers != nil {
		delay := next.NextGCStartMs - event.TimeMs
		if delay < 0 {
			delay = 0
		}
		d.timers.ScheduleTimer(ctx, time.Duration(delay)*time.Millisecond)
	}

	if (next.Action == Run || idleIncrement) && d.gc != nil {
		d.gc.StartIncrementalGC(ctx)
	}
}
