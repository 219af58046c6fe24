// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/exec"
	"github.com/grailbio/bigseq/internal/trace"
)

func TestPrintCounts(t *testing.T) {
	res := &exec.Result{
		Result: bigseq.Result{Counts: bigseq.Counts{"A": 3, "C": 1, "G": 1, "T": 2}},
		Len:    7,
	}
	var b bytes.Buffer
	printCounts(&b, res)
	if got, want := b.String(), "base counts of 7 symbols:\nA: 3\nC: 1\nG: 1\nT: 2\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintProtein(t *testing.T) {
	res := &exec.Result{Result: bigseq.Result{Tokens: []int32{5, 3}, Stopped: true}}
	var b bytes.Buffer
	printProtein(&b, res)
	if got, want := b.String(), "protein (2 amino acids): 5 3\ntranslation ended at a stop codon\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintTimings(t *testing.T) {
	now := time.Now()
	res := &exec.Result{
		Op:      bigseq.CountBases(),
		Elapsed: 3 * time.Second,
		Timings: []exec.Timing{
			{Stage: exec.Broadcast, Rank: 0, Start: now, End: now.Add(time.Second)},
			{Stage: exec.Broadcast, Rank: 1, Start: now, End: now.Add(2 * time.Second)},
		},
	}
	var b bytes.Buffer
	printTimings(&b, res)
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if got, want := len(lines), 1+len(exec.Stages); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !strings.Contains(lines[0], "count") || !strings.Contains(lines[0], "3s") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[2], "broadcast") || !strings.Contains(lines[2], "2s") {
		t.Errorf("unexpected broadcast line %q", lines[2])
	}
}

func TestStageStats(t *testing.T) {
	event := func(run, stage string, ts, dur int64) trace.Event {
		return trace.Event{
			Ph:   "X",
			Name: stage,
			Cat:  "count",
			Ts:   ts,
			Dur:  dur,
			Args: map[string]interface{}{"run": run},
		}
	}
	events := []trace.Event{
		{Ph: "M", Name: "process_name", Args: map[string]interface{}{"name": "driver"}},
		event("r1", "load", 0, 10),
		event("r1", "broadcast", 10, 5),
		event("r1", "broadcast", 12, 15),
		event("r1", "broadcast", 11, 10),
		event("r2", "load", 100, 20),
	}
	stats := buildStageStats(events)
	if got, want := len(stats), 3; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	bcast := stats[1]
	if got, want := bcast.stage, "broadcast"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := bcast.n, 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := bcast.start, 10*time.Microsecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := bcast.q2, 10*time.Microsecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := bcast.max, 15*time.Microsecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := stats[2].run, "r2"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
