// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stats provides the counters kept by the ranks of a run. A
// rank counts into a Map; at the end of the run, it snapshots the map
// into Values, which are shipped to the driver and summed across the
// group.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Names of the counters kept by every rank.
const (
	// Replica is the number of symbols of the rank's replica of the
	// sequence.
	Replica = "replica"
	// Symbols is the number of symbols in the rank's range.
	Symbols = "symbols"
	// Chunks is the number of thread chunks mapped by the rank.
	Chunks = "chunks"
	// Skipped is the number of thread chunks not mapped because an
	// earlier chunk stopped translation.
	Skipped = "skipped"
	// Contributed is the number of values contributed by the rank to
	// the aggregate: counts for reductions, symbols or tokens for
	// gathers.
	Contributed = "contributed"
)

// Values is a snapshot of a set of counters.
type Values map[string]int64

// Add adds the counters in w to v.
func (v Values) Add(w Values) {
	for k, n := range w {
		v[k] += n
	}
}

// String returns the values in v, sorted by key.
func (v Values) String() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		keys[i] = fmt.Sprintf("%s:%d", key, v[key])
	}
	return strings.Join(keys, " ")
}

// A Map is a set of counters keyed by name. A nil Map discards its
// counts.
type Map struct {
	mu     sync.Mutex
	values map[string]*Int
}

// NewMap returns a fresh Map.
func NewMap() *Map {
	return &Map{values: make(map[string]*Int)}
}

// Int returns the counter with the provided name, creating it if it
// does not already exist.
func (m *Map) Int(name string) *Int {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.values[name]
	if v == nil {
		v = new(Int)
		m.values[name] = v
	}
	return v
}

// Snapshot returns the current values of the counters in m.
func (m *Map) Snapshot() Values {
	vals := make(Values)
	if m == nil {
		return vals
	}
	m.mu.Lock()
	for k, v := range m.values {
		vals[k] = v.Get()
	}
	m.mu.Unlock()
	return vals
}

// An Int is an integer counter that may be incremented atomically.
// Operations on a nil Int are no-ops.
type Int struct {
	val int64
}

// Add increments v by delta.
func (v *Int) Add(delta int64) {
	if v == nil {
		return
	}
	atomic.AddInt64(&v.val, delta)
}

// Get returns the current value of v.
func (v *Int) Get() int64 {
	if v == nil {
		return 0
	}
	return atomic.LoadInt64(&v.val)
}
