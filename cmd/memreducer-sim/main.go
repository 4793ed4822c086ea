// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command memreducer-sim replays a captured sequence of memory reducer
// events against the Driver and prints every resulting transition and
// command, the way a captured production trace can be reviewed offline
// without needing a running V8 heap.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"

	"infra/gc/memreducer"
)

var (
	input        = flag.String("input", "-", "Path to a JSON array of events, or - for stdin.")
	longDelayMs  = flag.Float64("long-delay-ms", memreducer.DefaultConfig().LongDelayMs, "")
	shortDelayMs = flag.Float64("short-delay-ms", memreducer.DefaultConfig().ShortDelayMs, "")
	maxGCs       = flag.Int("max-gcs", memreducer.DefaultConfig().MaxNumberOfGCs, "")
)

func main() {
	flag.Parse()
	ctx := gologger.StdConfig.Use(context.Background())

	if err := run(ctx); err != nil {
		logging.Errorf(ctx, "memreducer-sim: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	events, err := readEvents(*input)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}

	cfg := memreducer.Config{
		LongDelayMs:    *longDelayMs,
		ShortDelayMs:   *shortDelayMs,
		MaxNumberOfGCs: *maxGCs,
	}
	cmds := &memreducer.RecordingCommands{}
	d := memreducer.NewDriver(cfg, cmds, cmds, nil)

	for i, event := range events {
		before := d.State()
		timersBefore, gcStartsBefore := len(cmds.Timers), cmds.GCStarts

		switch event.Type {
		case memreducer.Timer:
			d.NotifyTimer(ctx, event)
		case memreducer.MarkCompact:
			d.NotifyMarkCompact(ctx, event)
		case memreducer.ContextDisposed:
			d.NotifyContextDisposed(ctx, event)
		case memreducer.BackgroundIdleNotification:
			d.NotifyBackgroundIdleNotification(ctx, event)
		default:
			return fmt.Errorf("event %d: unknown type %v", i, event.Type)
		}

		after := d.State()
		fmt.Printf("t=%.0fms %-26s %s -> %s (started_gcs=%d, next_gc_start_ms=%.0f)\n",
			event.TimeMs, event.Type, before.Action, after.Action, after.StartedGCs, after.NextGCStartMs)
		for _, t := range cmds.Timers[timersBefore:] {
			fmt.Printf("           schedule timer: %s\n", t.Delay)
		}
		if cmds.GCStarts > gcStartsBefore {
			fmt.Printf("           start incremental GC\n")
		}
	}
	return nil
}

func readEvents(path string) ([]memreducer.Event, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var events []memreducer.Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, err
	}
	return events, nil
}
