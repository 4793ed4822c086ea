// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command memreducerd runs the memory reducer against a synthetic mutator
// and exposes its state over Prometheus metrics and a debug HTTP endpoint.
// There is no real V8 heap behind this binary: it exists so the reducer's
// state machine can be observed running continuously, the way
// cmd/drone-prober exists to observe Docker run latency continuously.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"
	"go.chromium.org/luci/common/runtime/paniccatcher"

	"infra/gc/memreducer"
	"infra/gc/memreducer/simulate"
)

var (
	address      = flag.String("address", "127.0.0.1:9092", "Address to serve /metrics and /status on.")
	longDelayMs  = flag.Float64("long-delay-ms", memreducer.DefaultConfig().LongDelayMs, "Delay used while waiting for allocation to quiet down.")
	shortDelayMs = flag.Float64("short-delay-ms", memreducer.DefaultConfig().ShortDelayMs, "Delay between successive reducer-initiated GCs within one episode.")
	maxGCs       = flag.Int("max-gcs", memreducer.DefaultConfig().MaxNumberOfGCs, "Cap on reducer-initiated GCs per episode.")
	tickInterval = flag.Duration("tick-interval", 250*time.Millisecond, "How often the synthetic mutator is sampled for context-disposal and idle signals.")
	gcDuration   = flag.Duration("gc-duration", 50*time.Millisecond, "How long a simulated incremental GC cycle takes to complete.")
	seed         = flag.Int64("seed", 1, "Seed for the synthetic mutator's allocation pattern.")
)

func main() {
	ctx := gologger.StdConfig.Use(context.Background())
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	flag.Parse()
	if err := run(ctx); err != nil {
		logging.Errorf(ctx, "memreducerd exiting: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := memreducer.Config{
		LongDelayMs:    *longDelayMs,
		ShortDelayMs:   *shortDelayMs,
		MaxNumberOfGCs: *maxGCs,
	}

	reg := prometheus.NewRegistry()
	metrics := memreducer.NewMetrics(reg)

	d := newDaemon(ctx, cfg, metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", d.serveStatus)
	srv := &http.Server{Addr: *address, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go d.run(ctx)

	logging.Infof(ctx, "memreducerd listening on %s", *address)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// daemon wires a memreducer.Driver to a synthetic mutator. All Notify*
// calls on the Driver happen from the single goroutine executing run, which
// preserves the single-caller assumption documented on Driver.
type daemon struct {
	cfg     memreducer.Config
	mutator *simulate.Mutator
	driver  *memreducer.Driver

	startedAt time.Time

	mu           sync.Mutex
	gcInProgress bool

	timerFired chan struct{}
	gcDone     chan memreducer.Event
}

func newDaemon(ctx context.Context, cfg memreducer.Config, metrics *memreducer.Metrics) *daemon {
	d := &daemon{
		cfg:        cfg,
		mutator:    simulate.NewMutator(*seed),
		startedAt:  clock.Now(ctx),
		timerFired: make(chan struct{}, 1),
		gcDone:     make(chan memreducer.Event, 1),
	}

	timers := memreducer.RealTimer{OnFire: func(ctx context.Context) {
		select {
		case d.timerFired <- struct{}{}:
		case <-ctx.Done():
		}
	}}
	gc := memreducer.RealGCStarter{OnStart: func(ctx context.Context) {
		d.mu.Lock()
		d.gcInProgress = true
		d.mu.Unlock()
		go d.runSimulatedGC(ctx)
	}}

	d.driver = memreducer.NewDriver(cfg, timers, gc, metrics.Observer(time.Now))
	return d
}

func (d *daemon) elapsedMs(ctx context.Context) float64 {
	return float64(clock.Now(ctx).Sub(d.startedAt).Milliseconds())
}

func (d *daemon) canStartIncrementalGC() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.gcInProgress
}

func (d *daemon) runSimulatedGC(ctx context.Context) {
	select {
	case <-clock.After(ctx, *gcDuration):
	case <-ctx.Done():
		return
	}
	d.mu.Lock()
	d.gcInProgress = false
	d.mu.Unlock()

	event := memreducer.Event{
		TimeMs:                    d.elapsedMs(ctx),
		NextGCLikelyToCollectMore: d.mutator.Tick(),
	}
	select {
	case d.gcDone <- event:
	case <-ctx.Done():
	}
}

func (d *daemon) run(ctx context.Context) {
	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.timerFired:
			d.safeNotify(ctx, func(ctx context.Context) {
				d.driver.NotifyTimer(ctx, memreducer.Event{
					TimeMs:                d.elapsedMs(ctx),
					LowAllocationRate:     d.mutator.Tick(),
					CanStartIncrementalGC: d.canStartIncrementalGC(),
				})
			})
		case event := <-d.gcDone:
			d.safeNotify(ctx, func(ctx context.Context) {
				d.driver.NotifyMarkCompact(ctx, event)
			})
		case <-ticker.C:
			d.safeNotify(ctx, d.sampleMutator)
		}
	}
}

// sampleMutator delivers the host-originated signals that do not come from
// the reducer's own timer or its own GC: context disposal and background
// idle notifications. It delivers no MarkCompact events; those reach the
// Driver only when a simulated GC started by the reducer completes.
func (d *daemon) sampleMutator(ctx context.Context) {
	nowMs := d.elapsedMs(ctx)
	if d.mutator.ContextDisposalLikely() {
		d.driver.NotifyContextDisposed(ctx, memreducer.Event{TimeMs: nowMs})
	}
	if d.mutator.IdleLikely() {
		d.driver.NotifyBackgroundIdleNotification(ctx, memreducer.Event{
			TimeMs:                nowMs,
			CanStartIncrementalGC: d.canStartIncrementalGC(),
		})
	}
}

// safeNotify runs f with a panic catcher so a bug in event construction
// cannot take down the whole daemon, mirroring vm_leaser's cron runner.
func (d *daemon) safeNotify(ctx context.Context, f func(context.Context)) {
	defer paniccatcher.Catch(func(p *paniccatcher.Panic) {
		logging.Errorf(ctx, "memreducerd: caught panic: %s\n%s", p.Reason, p.Stack)
	})
	f(ctx)
}

type statusResponse struct {
	Action        string  `json:"action"`
	StartedGCs    int     `json:"started_gcs"`
	NextGCStartMs float64 `json:"next_gc_start_ms"`
}

func (d *daemon) serveStatus(w http.ResponseWriter, r *http.Request) {
	s := d.driver.State()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Action:        s.Action.String(),
		StartedGCs:    s.StartedGCs,
		NextGCStartMs: s.NextGCStartMs,
	})
}
