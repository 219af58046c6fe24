// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/backgroundcontext"
	"github.com/grailbio/base/data"
	"github.com/grailbio/base/diagnostic/dump"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/eventlog"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/stats"
)

// Session represents a bigseq compute session. A session shares a
// binary, an executor, and a fixed group topology, and is valid for the
// run of the binary. A session can run multiple ops, one sequence per
// run.
//
// A session is started by the Start function. Some executors may
// launch multiple copies of the binary: these additional binaries are
// called workers, and Start does not return in them. Thus all ops
// must be registered before Start is called:
//
//	func main() {
//		sess := exec.Start(exec.Ranks(4))
//		defer sess.Shutdown()
//		res, err := sess.Run(ctx, bigseq.CountBases(), seqio.File("dna_sequence.fasta"))
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(res.Counts)
//	}
type Session struct {
	context.Context
	index     int32
	shutdown  func()
	ranks     int
	threads   int
	p         int
	executor  Executor
	status    *status.Status
	eventer   eventlog.Eventer
	tracePath string

	tracer *tracer
}

func newSession() *Session {
	return &Session{
		Context: backgroundcontext.Get(),
		index:   atomic.AddInt32(&nextSessionIndex, 1) - 1,
		eventer: eventlog.Nop{},
	}
}

// An Option represents a session configuration parameter value.
type Option func(s *Session)

// Local configures a session with the local in-binary executor: each
// rank runs in its own goroutine.
var Local Option = func(s *Session) {
	s.executor = newLocalExecutor()
}

// Bigmachine configures a session using the bigmachine executor
// configured with the provided system: each rank runs on its own
// machine. If any params are provided, they are applied to each
// bigmachine allocated by bigseq.
func Bigmachine(system bigmachine.System, params ...bigmachine.Param) Option {
	return func(s *Session) {
		s.executor = newBigmachineExecutor(system, params...)
	}
}

// Ranks configures the number of ranks of the session's group. Rank 0
// is the coordinator.
func Ranks(n int) Option {
	if n <= 0 {
		panic("exec.Ranks: n <= 0")
	}
	return func(s *Session) {
		s.ranks = n
	}
}

// Threads configures the number of threads used by each rank to
// process its part of a sequence.
func Threads(n int) Option {
	if n <= 0 {
		panic("exec.Threads: n <= 0")
	}
	return func(s *Session) {
		s.threads = n
	}
}

// Parallelism configures the maximum number of threads that may run
// at once in the local executor, across all ranks.
func Parallelism(p int) Option {
	if p <= 0 {
		panic("exec.Parallelism: p <= 0")
	}
	return func(s *Session) {
		s.p = p
	}
}

// Status configures the session with a status object to which
// run statuses are reported.
func Status(status *status.Status) Option {
	return func(s *Session) {
		s.status = status

		name := fmt.Sprintf("bigseq-%02d-status", s.index)
		dump.Register(name, func(ctx context.Context, w io.Writer) error {
			return status.Marshal(w)
		})
	}
}

// Eventer configures the session with an Eventer that will be used to log
// session events (for analytics).
func Eventer(e eventlog.Eventer) Option {
	return func(s *Session) {
		s.eventer = e
	}
}

// TracePath configures the path to which a trace event file for the session
// will be written on shutdown.
func TracePath(path string) Option {
	return func(s *Session) {
		s.tracePath = path
	}
}

// nextSessionIndex is the index of the next session that will be started by
// Start. In general, there should be only one session per process, but we
// violate this in tests.
var nextSessionIndex int32

// Start creates and starts a new bigseq session, configuring it
// according to the provided options. The returned session remains
// valid for the lifetime of the binary. If no executor is configured,
// the session is configured to use the bigmachine executor with the
// local system. By default, a session has a single rank, which uses
// GOMAXPROCS threads.
func Start(options ...Option) *Session {
	s := newSession()
	for _, opt := range options {
		opt(s)
	}
	if s.ranks == 0 {
		s.ranks = 1
	}
	if s.p == 0 {
		s.p = runtime.GOMAXPROCS(0)
	}
	if s.threads == 0 {
		s.threads = s.p
	}
	if s.executor == nil {
		s.executor = newBigmachineExecutor(bigmachine.Local)
	}
	s.start()
	return s
}

func (s *Session) start() {
	s.shutdown = s.executor.Start(s)
	s.eventer.Event("bigseq:sessionStart",
		"command", strings.Join(os.Args, " "),
		"executorType", s.executor.Name(),
		"ranks", s.ranks,
		"threads", s.threads,
		"parallelism", s.p)
	s.tracer = newTracer()

	name := fmt.Sprintf("bigseq-%02d-trace", s.index)
	dump.Register(name, func(ctx context.Context, w io.Writer) error {
		return s.tracer.Marshal(w)
	})
}

// A Source provides the sequence of a run. Load is called only on the
// coordinator.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// A Sink consumes the aggregate result of a run.
type Sink interface {
	Output(ctx context.Context, res *Result) error
}

// A Result is the outcome of a run.
type Result struct {
	bigseq.Result
	// ID identifies the run.
	ID string
	// Op is the op that was run.
	Op *bigseq.Op
	// Len is the length of the sequence.
	Len int
	// Ranges holds each rank's range, indexed by rank.
	Ranges []bigseq.Range
	// Timings holds the timings of each stage performed by the driver
	// and the ranks.
	Timings []Timing
	// Stats holds the counters of the run, summed across ranks.
	Stats stats.Values
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// StageDuration returns the duration of a stage, taken as the longest
// time spent in it by any participant.
func (r *Result) StageDuration(stage Stage) time.Duration {
	var d time.Duration
	for _, t := range r.Timings {
		if t.Stage == stage && t.Duration() > d {
			d = t.Duration()
		}
	}
	return d
}

// Run runs op over the sequence provided by src. The sequence is
// loaded by the driver, distributed among the session's ranks, and the
// ranks' results are aggregated; the aggregate result is then handed
// to each sink in turn. Run returns when the run has completed, or
// else on error.
//
// A source that is unavailable is treated as an empty sequence. A run
// over an empty sequence fails with an EmptySequence error, after the
// ranks have agreed to abort. A sink that fails with a
// DestinationUnavailable error does not fail the run.
func (s *Session) Run(ctx context.Context, op *bigseq.Op, src Source, sinks ...Sink) (*Result, error) {
	// Remote ranks reconstruct the op by name.
	if _, err := bigseq.Lookup(op.Name, op.Codons); err != nil {
		return nil, err
	}
	var (
		res   = &Result{ID: uuid.New().String(), Op: op}
		start = time.Now()
		task  *status.Task
	)
	if s.status != nil {
		task = s.status.Groupf("run %s", op.Name).Start(res.ID)
		defer task.Done()
	}
	timed := func(stage Stage, fn func() error) error {
		if task != nil {
			task.Print(stage)
		}
		t := Timing{Stage: stage, Rank: Coordinator, Start: time.Now()}
		err := fn()
		t.End = time.Now()
		res.Timings = append(res.Timings, t)
		return err
	}

	var seq []byte
	if err := timed(Load, func() (err error) {
		seq, err = src.Load(ctx)
		if bigseq.IsSourceUnavailable(err) {
			log.Error.Printf("run %s: %v; proceeding with an empty sequence", res.ID, err)
			seq, err = nil, nil
		}
		return
	}); err != nil {
		return nil, err
	}
	res.Len = len(seq)
	log.Printf("run %s: %s over %s on %d ranks, %d threads each", res.ID, op.Name, data.Size(len(seq)), s.ranks, s.threads)

	reports, err := s.executor.Run(ctx, runRequest{
		ID:      res.ID,
		Op:      op.Name,
		Codons:  op.Codons,
		Ranks:   s.ranks,
		Threads: s.threads,
		Seq:     seq,
		op:      op,
	})
	if err != nil {
		if task != nil {
			task.Printf("error: %v", err)
		}
		s.eventer.Event("bigseq:run",
			"id", res.ID,
			"op", op.Name,
			"length", len(seq),
			"error", err.Error())
		return nil, err
	}
	if len(reports) != s.ranks {
		return nil, errors.E(errors.Fatal, fmt.Sprintf("run %s: %d rank reports, want %d", res.ID, len(reports), s.ranks))
	}
	res.Result = reports[Coordinator].Result
	res.Ranges = make([]bigseq.Range, len(reports))
	res.Stats = make(stats.Values)
	for i, report := range reports {
		res.Ranges[i] = report.Range
		res.Timings = append(res.Timings, report.Timings...)
		res.Stats.Add(report.Stats)
	}

	if err := timed(Output, func() error {
		for _, sink := range sinks {
			err := sink.Output(ctx, res)
			switch {
			case err == nil:
			case bigseq.IsDestinationUnavailable(err):
				log.Error.Printf("run %s: %v", res.ID, err)
			default:
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)
	s.tracer.Run(res.ID, op.Name, res.Timings)
	s.eventer.Event("bigseq:run",
		"id", res.ID,
		"op", op.Name,
		"length", len(seq),
		"ranks", s.ranks,
		"threads", s.threads,
		"elapsed", res.Elapsed.Seconds())
	log.Printf("run %s: %s done in %s: %s", res.ID, op.Name, res.Elapsed, res.Stats)
	return res, nil
}

// Must is a version of Run that panics if the run fails.
func (s *Session) Must(ctx context.Context, op *bigseq.Op, src Source, sinks ...Sink) *Result {
	res, err := s.Run(ctx, op, src, sinks...)
	if err != nil {
		log.Panicf("exec.Run: %v", err)
	}
	return res
}

// Ranks returns the number of ranks in the session's group.
func (s *Session) Ranks() int {
	return s.ranks
}

// Threads returns the number of threads used by each rank.
func (s *Session) Threads() int {
	return s.threads
}

// Parallelism returns the process-wide thread budget.
func (s *Session) Parallelism() int {
	return s.p
}

// Status returns the session's status aggregator.
func (s *Session) Status() *status.Status {
	return s.status
}

// Shutdown tears down resources associated with this session.
// It should be called when the session is discarded.
func (s *Session) Shutdown() {
	if s.shutdown != nil {
		s.shutdown()
	}
	if s.tracePath != "" {
		writeTraceFile(s.tracer, s.tracePath)
	}
}

func (s *Session) HandleDebug(handler *http.ServeMux) {
	s.executor.HandleDebug(handler)
	if s.tracer != nil {
		handler.HandleFunc("/debug/trace", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("content-type", "application/json; charset=utf-8")
			if err := s.tracer.Marshal(w); err != nil {
				log.Error.Printf("exec.Session: /debug/trace: marshal: %v", err)
			}
		})
	}
}

func writeTraceFile(tracer *tracer, path string) {
	ctx := backgroundcontext.Get()
	f, err := file.Create(ctx, path)
	if err != nil {
		log.Error.Printf("error creating trace file at %q: %v", path, err)
		return
	}
	defer func() {
		if closeErr := f.Close(ctx); closeErr != nil {
			log.Error.Printf("error closing trace file at %q: %v", path, closeErr)
		}
	}()
	if err := tracer.Marshal(f.Writer(ctx)); err != nil {
		log.Error.Printf("error marshaling to trace file at %q: %v", path, err)
	}
}
