// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a Prometheus instrumentation bundle for a Driver: it tracks
// how many GCs the reducer has started, which action it is currently in,
// and how long each episode lasts.
type Metrics struct {
	startedGCsTotal   prometheus.Counter
	action            *prometheus.GaugeVec
	episodeDurationS  prometheus.Histogram
	lastStartedGCs    int
	episodeStartedAt  time.Time
	inEpisode         bool
}

// NewMetrics registers the reducer's Prometheus collectors against reg and
// returns the bundle. Call Observer to get an onState callback suitable for
// NewDriver.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		startedGCsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memreducer_started_gcs_total",
			Help: "Number of incremental GC cycles the memory reducer has initiated.",
		}),
		action: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memreducer_action",
			Help: "1 for the memory reducer's current action, 0 otherwise.",
		}, []string{"action"}),
		episodeDurationS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memreducer_episode_duration_seconds",
			Help:    "Duration of a full Done->...->Done memory reducer episode.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.startedGCsTotal, m.action, m.episodeDurationS)
	for _, a := range []Action{Done, Wait, Run} {
		m.action.WithLabelValues(a.String()).Set(0)
	}
	m.action.WithLabelValues(Done.String()).Set(1)
	return m
}

// Observer returns a function suitable for NewDriver's onState parameter.
// now is injected so tests can control episode-duration measurements; pass
// time.Now in production.
func (m *Metrics) Observer(now func() time.Time) func(State) {
	return func(s State) {
		for _, a := range []Action{Done, Wait, Run} {
			v := 0.0
			if a == s.Action {
				v = 1.0
			}
			m.action.WithLabelValues(a.String()).Set(v)
		}

		if s.StartedGCs > m.lastStartedGCs {
			m.startedGCsTotal.Add(float64(s.StartedGCs - m.lastStartedGCs))
		}
		m.lastStartedGCs = s.StartedGCs

		switch {
		case s.Action != Done && !m.inEpisode:
			m.inEpisode = true
			m.episodeStartedAt = now()
		case s.Action == Done && m.inEpisode:
			m.inEpisode = false
			m.episodeDurationS.Observe(now().Sub(m.episodeStartedAt).Seconds())
		}
	}
}
