// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package memreducer implements the memory reducer: a heap-side controller
// that watches mutator allocation behavior through a stream of events and
// decides when to ask the collector to run additional incremental
// mark-compact cycles to reclaim garbage left over from a burst of
// allocation.
//
// The package is split into a pure transition table (Step) and a Driver
// that owns the mutable State and turns Step's decisions into calls against
// two small injectable capabilities, TimerScheduler and GCStarter. Nothing
// in this package measures heap size, estimates allocation rate, or
// performs a collection; those are the caller's job, signaled to the
// Driver through Event values.
package memreducer
