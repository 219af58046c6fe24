// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigseq/internal/trace"
)

func traceUsage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: bigseq trace path

Command trace summarizes the trace file written by a bigseq session
(see the -trace flag of the operation commands). For each run, it
prints the number of participants in each stage along with the
distribution of the time they spent in it.
`)
	flags.PrintDefaults()
	os.Exit(2)
}

func traceCmd(args []string) {
	flags := flag.NewFlagSet("bigseq trace", flag.ExitOnError)
	flags.Usage = func() { traceUsage(flags) }
	must.Nil(flags.Parse(args))
	if flags.NArg() != 1 {
		flags.Usage()
	}
	ctx := context.Background()
	path := flags.Arg(0)
	f, err := file.Open(ctx, path)
	if err != nil {
		log.Fatal(err)
	}
	var t trace.T
	err = t.Decode(f.Reader(ctx))
	must.Nil(f.Close(ctx))
	if err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
	printStageStats(os.Stdout, buildStageStats(t.Events))
}

// stageStat holds the statistics of a stage of a run, computed over
// the participants that performed it.
type stageStat struct {
	run, op, stage string
	// start is the earliest start of the stage, as an offset from the
	// start of tracing.
	start time.Duration
	// n is the number of participants.
	n                    int
	min, q1, q2, q3, max time.Duration
}

func buildStageStats(events []trace.Event) []stageStat {
	type key struct{ run, stage string }
	type accum struct {
		op        string
		start     time.Duration
		durations []time.Duration
	}
	accums := make(map[key]*accum)
	for _, event := range events {
		if !event.Complete() {
			continue
		}
		run := event.Arg("run")
		if run == "" {
			log.Printf("event without run: %#v", event)
			continue
		}
		var (
			k     = key{run, event.Name}
			start = time.Duration(event.Ts) * time.Microsecond
		)
		a, ok := accums[k]
		if !ok {
			a = &accum{op: event.Cat, start: start}
			accums[k] = a
		}
		if start < a.start {
			a.start = start
		}
		a.durations = append(a.durations, time.Duration(event.Dur)*time.Microsecond)
	}
	stats := make([]stageStat, 0, len(accums))
	for k, a := range accums {
		sort.Slice(a.durations, func(i, j int) bool { return a.durations[i] < a.durations[j] })
		q1, q2, q3 := quartiles(a.durations)
		stats = append(stats, stageStat{
			run:   k.run,
			op:    a.op,
			stage: k.stage,
			start: a.start,
			n:     len(a.durations),
			min:   a.durations[0],
			q1:    q1,
			q2:    q2,
			q3:    q3,
			max:   a.durations[len(a.durations)-1],
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].start != stats[j].start {
			return stats[i].start < stats[j].start
		}
		return stats[i].stage < stats[j].stage
	})
	return stats
}

func printStageStats(w io.Writer, stats []stageStat) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "run\top\tstage\tn\tmin\tq1\tq2\tq3\tmax")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.run, s.op, s.stage, s.n,
			round(s.min), round(s.q1), round(s.q2), round(s.q3), round(s.max))
	}
	tw.Flush()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}
