// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/bigseq/internal/trace"
)

// A tracer tracks the stages of the runs of a session. Trace events
// are logged in the Chrome tracing format and can be visualized using
// its built-in visualization tool (chrome://tracing). The driver is
// represented as Chrome "process" 0, and each rank r as process r+1.
// Each stage is rendered as a complete event (X) on the process that
// performed it.
type tracer struct {
	mu     sync.Mutex
	events []trace.Event
	// named holds the pids for which process name metadata has been
	// emitted.
	named map[int]bool

	// firstEvent is used to store the time of the first observed
	// event so that the offsets in the trace are meaningful.
	firstEvent time.Time
}

func newTracer() *tracer {
	return &tracer{named: make(map[int]bool)}
}

// Run records the stage timings of the run with the provided ID.
// Timings of coordinator-only stages (Load and Output) are attributed
// to the driver.
func (t *tracer) Run(id, op string, timings []Timing) {
	if t == nil || len(timings) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstEvent.IsZero() {
		t.firstEvent = timings[0].Start
		for _, timing := range timings {
			if timing.Start.Before(t.firstEvent) {
				t.firstEvent = timing.Start
			}
		}
	}
	for _, timing := range timings {
		pid := timing.Rank + 1
		if timing.Stage == Load || timing.Stage == Output {
			pid = 0
		}
		ts := timing.Start.Sub(t.firstEvent).Nanoseconds() / 1e3
		if !t.named[pid] {
			t.named[pid] = true
			name := "driver"
			if pid > 0 {
				name = fmt.Sprintf("rank %d", pid-1)
			}
			// Attach "process" name metadata so we can identify where a
			// stage ran.
			t.events = append(t.events, trace.Event{
				Pid:  pid,
				Ts:   ts,
				Ph:   "M",
				Name: "process_name",
				Args: map[string]interface{}{"name": name},
			})
		}
		dur := timing.Duration().Nanoseconds() / 1e3
		if dur == 0 {
			dur = 1
		}
		t.events = append(t.events, trace.Event{
			Pid:  pid,
			Ts:   ts,
			Ph:   "X",
			Dur:  dur,
			Name: timing.Stage.String(),
			Cat:  op,
			Args: map[string]interface{}{"run": id, "rank": timing.Rank},
		})
	}
}

// Marshal writes the trace captured by t into the writer w in
// Chrome's event tracing format.
func (t *tracer) Marshal(w io.Writer) error {
	t.mu.Lock()
	events := make([]trace.Event, len(t.events))
	copy(events, t.events)
	t.mu.Unlock()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Ts < events[j].Ts
	})
	return (&trace.T{Events: events}).Encode(w)
}
