// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memreducer

// State is the controller's current state: an immutable triple of the
// current phase, the number of GCs initiated since the reducer last left
// Done, and the earliest time the next reducer-initiated GC may begin.
//
// Invariants:
//  1. 0 <= StartedGCs <= Config.MaxNumberOfGCs at all times.
//  2. In Done, StartedGCs is 0 and NextGCStartMs is 0.
//  3. In Run, NextGCStartMs is preserved but not consulted.
type State struct {
	Action        Action
	StartedGCs    int
	NextGCStartMs float64
}

// InitialState is the state a freshly constructed Driver starts in.
var InitialState = State{Action: Done, StartedGCs: 0, NextGCStartMs: 0}
