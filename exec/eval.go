// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package exec implements the runtime of bigseq: sessions, the
// executors that run a group of ranks, the collectives through which
// ranks exchange data, and the local map-reduce engine that each rank
// uses to process its part of a sequence.
package exec

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/stats"
)

// Executor defines an interface used to provide implementations of
// rank runners. An Executor is responsible for running every rank of a
// group over the same sequence and returning the ranks' reports.
type Executor interface {
	// Start starts the executor. It is called before any run is
	// performed and after all ops have been registered. Start need not
	// return: for example, the Bigmachine implementation of Executor
	// uses Start as an entry point for worker processes.
	Start(*Session) (shutdown func())

	// Name returns a human-friendly name for this executor.
	Name() string

	// Run runs every rank of the request's group to completion. Only
	// the coordinator is given the sequence; ranks must broadcast it.
	// Run returns the ranks' reports, indexed by rank.
	Run(ctx context.Context, req runRequest) ([]rankReport, error)

	// HandleDebug adds executor-specific debug handlers to the provided
	// http.ServeMux.
	HandleDebug(handler *http.ServeMux)
}

// A runRequest describes a single run of an op over a sequence.
type runRequest struct {
	// ID uniquely identifies the run.
	ID string
	// Op is the name of the op to run.
	Op string
	// Codons is the codon table of the op, shipped to remote ranks.
	Codons *bigseq.CodonTable
	// Ranks is the size of the group.
	Ranks int
	// Threads is the number of threads used by each rank.
	Threads int
	// Seq is the coordinator's sequence.
	Seq []byte

	op *bigseq.Op
}

// Stage enumerates the stages of a run. A run proceeds through the
// stages in order; Load and Output happen only on the coordinator.
type Stage int

const (
	// Load reads the sequence on the coordinator.
	Load Stage = iota
	// Broadcast replicates the sequence to every rank.
	Broadcast
	// Partition computes each rank's range.
	Partition
	// LocalProcess maps a rank's range across its threads.
	LocalProcess
	// Aggregate combines the ranks' results at the coordinator.
	Aggregate
	// Output hands the aggregate result to the run's sinks.
	Output
)

// Stages lists the stages of a run, in order.
var Stages = []Stage{Load, Broadcast, Partition, LocalProcess, Aggregate, Output}

var stageNames = [...]string{
	Load:         "load",
	Broadcast:    "broadcast",
	Partition:    "partition",
	LocalProcess: "local",
	Aggregate:    "aggregate",
	Output:       "output",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// A Timing records the wall-clock span of a stage on a rank.
type Timing struct {
	Stage      Stage
	Rank       int
	Start, End time.Time
}

// Duration returns the duration of the stage.
func (t Timing) Duration() time.Duration { return t.End.Sub(t.Start) }

func (t Timing) String() string {
	return fmt.Sprintf("rank %d %s %s", t.Rank, t.Stage, t.Duration())
}

// A rankReport is returned by every rank after a run. Only the
// coordinator's report carries the aggregate result.
type rankReport struct {
	Rank    int
	Range   bigseq.Range
	Result  bigseq.Result
	Timings []Timing
	Stats   stats.Values
}

// A rank runs the stages of a run that are performed by every member
// of a group.
type rank struct {
	comm    *Comm
	op      *bigseq.Op
	threads int

	// procs limits the number of threads that may be used at once by
	// the ranks sharing a process. Its capacity is maxProcs.
	procs    *limiter.Limiter
	maxProcs int

	status *status.Task
}

func (r *rank) printf(format string, args ...interface{}) {
	if r.status != nil {
		r.status.Printf(format, args...)
	}
}

// Run performs the Broadcast, Partition, LocalProcess, and Aggregate
// stages for the rank. Seq is significant only on the coordinator.
func (r *rank) run(ctx context.Context, seq []byte) (report rankReport, err error) {
	report.Rank = r.comm.Rank()
	counters := stats.NewMap()
	defer func() {
		report.Stats = counters.Snapshot()
	}()
	timed := func(stage Stage, fn func() error) error {
		r.printf("%s", stage)
		t := Timing{Stage: stage, Rank: report.Rank, Start: time.Now()}
		err := fn()
		t.End = time.Now()
		report.Timings = append(report.Timings, t)
		log.Debug.Printf("rank %d: %s: %s", report.Rank, stage, t.Duration())
		return err
	}
	if err = timed(Broadcast, func() (err error) {
		seq, err = r.comm.BroadcastSequence(ctx, Coordinator, seq)
		counters.Int(stats.Replica).Add(int64(len(seq)))
		return
	}); err != nil {
		return
	}
	var ranges []bigseq.Range
	if err = timed(Partition, func() (err error) {
		ranges, err = bigseq.Partition(len(seq), r.comm.Size(), r.op.Alignment)
		if err == nil {
			report.Range = ranges[report.Rank]
		}
		return
	}); err != nil {
		return
	}
	var local bigseq.Result
	if err = timed(LocalProcess, func() (err error) {
		n := r.threads
		if r.procs != nil {
			if n > r.maxProcs {
				n = r.maxProcs
			}
			if err = r.procs.Acquire(ctx, n); err != nil {
				return
			}
			defer r.procs.Release(n)
		}
		log.Debug.Printf("rank %d: %s %s (%s) on %d threads",
			report.Rank, r.op.Name, report.Range, data.Size(report.Range.Len()), n)
		counters.Int(stats.Symbols).Add(int64(report.Range.Len()))
		local, err = mapReduce(ctx, r.op, seq[report.Range.Start:report.Range.End], n, counters)
		return
	}); err != nil {
		return
	}
	err = timed(Aggregate, func() (err error) {
		var agg bigseq.Result
		contributed := counters.Int(stats.Contributed)
		switch r.op.Shape {
		case bigseq.CountsShape:
			contributed.Add(int64(len(r.op.Keys)))
			agg.Counts, err = r.comm.ReduceCounts(ctx, Coordinator, r.op.Keys, local.Counts)
		case bigseq.BufferShape:
			contributed.Add(int64(len(local.Buffer)))
			agg.Buffer, err = r.comm.GatherFixed(ctx, Coordinator, local.Buffer, ranges)
		case bigseq.TokensShape:
			contributed.Add(int64(len(local.Tokens)))
			agg.Tokens, err = r.comm.GatherVariable(ctx, Coordinator, local.Tokens)
		default:
			err = fmt.Errorf("op %s: invalid shape %v", r.op.Name, r.op.Shape)
		}
		if err == nil && report.Rank == Coordinator {
			report.Result = r.op.Shape.Finalize(agg)
		}
		return
	})
	if err == nil {
		r.printf("done")
	}
	return
}
