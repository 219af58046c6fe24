// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/grailbio/base/backgroundcontext"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigseq"
	"golang.org/x/sync/errgroup"
)

func init() {
	gob.Register(&rankService{})
}

// BigmachineStatusGroup is the status group under which the
// session's machines are reported.
const BigmachineStatusGroup = "bigmachine"

// bigmachineExecutor is an executor that runs each rank of a group on
// its own bigmachine machine. Machines are started on the first run
// and serve every subsequent run of the session. The coordinator's
// machine hosts the rendezvous of each run; the other ranks reach it
// through RPC.
type bigmachineExecutor struct {
	system bigmachine.System
	params []bigmachine.Param

	sess   *Session
	b      *bigmachine.B
	status *status.Group

	mu       sync.Mutex
	machines []*bigmachine.Machine
	err      error
}

func newBigmachineExecutor(system bigmachine.System, params ...bigmachine.Param) *bigmachineExecutor {
	return &bigmachineExecutor{system: system, params: params}
}

// Start registers the rank service with bigmachine and then starts
// the bigmachine. On worker machines, Start does not return.
func (b *bigmachineExecutor) Start(sess *Session) (shutdown func()) {
	b.sess = sess
	b.b = bigmachine.Start(b.system)
	if status := sess.Status(); status != nil {
		b.status = status.Group(BigmachineStatusGroup)
	}
	return b.b.Shutdown
}

func (b *bigmachineExecutor) Name() string { return "bigmachine:" + b.system.Name() }

// start returns the session's machines, starting n of them if they
// have not yet been started. A machine that fails to start fails the
// session: there is no way to run a group with a missing rank.
func (b *bigmachineExecutor) start(n int) ([]*bigmachine.Machine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if b.machines != nil {
		if len(b.machines) != n {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("session has %d ranks, run requires %d", len(b.machines), n))
		}
		return b.machines, nil
	}
	ctx := backgroundcontext.Get()
	params := append([]bigmachine.Param{bigmachine.Services{"Rank": &rankService{}}}, b.params...)
	machines, err := b.b.Start(ctx, n, params...)
	if err != nil {
		b.err = errors.E(errors.Fatal, "starting machines", err)
		return nil, b.err
	}
	if len(machines) != n {
		b.err = errors.E(errors.Fatal, fmt.Sprintf("started %d machines, want %d", len(machines), n))
		return nil, b.err
	}
	g, _ := errgroup.WithContext(ctx)
	for i, m := range machines {
		i, m := i, m
		var task *status.Task
		if b.status != nil {
			task = b.status.Start()
			task.Print("waiting for machine to boot")
		}
		g.Go(func() error {
			<-m.Wait(bigmachine.Running)
			if err := m.Err(); err != nil {
				log.Printf("machine %s failed to start: %v", m.Addr, err)
				if task != nil {
					task.Printf("failed to start: %v", err)
					task.Done()
				}
				return errors.E(errors.Fatal, fmt.Sprintf("rank %d: machine %s failed to start", i, m.Addr), err)
			}
			if task != nil {
				task.Title(fmt.Sprintf("rank %d: %s", i, m.Addr))
				task.Print("running")
			}
			log.Printf("machine %v is ready for rank %d", m.Addr, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.err = err
		return nil, err
	}
	b.machines = machines
	return machines, nil
}

func (b *bigmachineExecutor) Run(ctx context.Context, req runRequest) ([]rankReport, error) {
	machines, err := b.start(req.Ranks)
	if err != nil {
		return nil, err
	}
	var (
		reports = make([]rankReport, req.Ranks)
		hub     = machines[Coordinator].Addr
	)
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range machines {
		i, m := i, m
		rreq := rankRequest{
			Run:     req.ID,
			Op:      req.Op,
			Codons:  req.Codons,
			Rank:    i,
			Size:    req.Ranks,
			Threads: req.Threads,
			Hub:     hub,
		}
		if i == Coordinator {
			rreq.Seq = req.Seq
		}
		g.Go(func() error {
			if err := m.Call(ctx, "Rank.Run", rreq, &reports[i]); err != nil {
				return errors.E(fmt.Sprintf("rank %d (%s)", i, m.Addr), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (b *bigmachineExecutor) HandleDebug(handler *http.ServeMux) {
	b.b.HandleDebug(handler)
}

// A rankRequest describes the part of a run performed by one rank.
type rankRequest struct {
	Run     string
	Op      string
	Codons  *bigseq.CodonTable
	Rank    int
	Size    int
	Threads int
	// Hub is the address of the machine that hosts the run's
	// rendezvous.
	Hub string
	// Seq is the sequence; it is set only for the coordinator.
	Seq []byte
}

type exchangeRequest struct {
	Run          string
	Size         int
	Contribution contribution
}

type exchangeReply struct {
	Parts []contribution
}

// A rankService is the bigmachine service that runs a rank's part of
// each run. The coordinator's rankService also hosts the rendezvous
// through which the group's collectives are performed.
type rankService struct {
	// Exported just satisfies gob's persnickety nature: we need at least
	// one exported field.
	Exported struct{}

	b *bigmachine.B

	procs    *limiter.Limiter
	maxProcs int

	mu   sync.Mutex
	hubs map[string]*rendezvous
	// done holds runs whose rendezvous has been torn down.
	done map[string]bool
}

func (s *rankService) Init(b *bigmachine.B) error {
	s.b = b
	s.hubs = make(map[string]*rendezvous)
	s.done = make(map[string]bool)
	s.maxProcs = b.System().Maxprocs()
	if s.maxProcs == 0 {
		s.maxProcs = runtime.GOMAXPROCS(0)
	}
	s.procs = limiter.New()
	s.procs.Release(s.maxProcs)
	return nil
}

func (s *rankService) hub(run string, size int) (*rendezvous, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[run] {
		return nil, errors.E(errors.Invalid, errors.Fatal, fmt.Sprintf("run %s: rendezvous closed", run))
	}
	h := s.hubs[run]
	if h == nil {
		h = newRendezvous(size)
		s.hubs[run] = h
	}
	if h.size != size {
		return nil, errors.E(errors.Invalid, errors.Fatal, fmt.Sprintf("run %s: group of %d ranks, rendezvous has %d", run, size, h.size))
	}
	return h, nil
}

func (s *rankService) closeHub(run string) {
	s.mu.Lock()
	delete(s.hubs, run)
	s.done[run] = true
	s.mu.Unlock()
}

// Exchange contributes to a collective round of the rendezvous hosted
// by this machine.
func (s *rankService) Exchange(ctx context.Context, req exchangeRequest, reply *exchangeReply) error {
	h, err := s.hub(req.Run, req.Size)
	if err != nil {
		return err
	}
	reply.Parts, err = h.Exchange(ctx, req.Contribution)
	return err
}

// Run runs one rank of a run to completion.
func (s *rankService) Run(ctx context.Context, req rankRequest, reply *rankReport) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.E(errors.Fatal, fmt.Errorf("panic in rank %d: %v\n%s", req.Rank, e, debug.Stack()))
		}
		if err != nil {
			log.Printf("run %s: rank %d error: %v", req.Run, req.Rank, err)
		}
	}()
	op, err := bigseq.Lookup(req.Op, req.Codons)
	if err != nil {
		return errors.E(errors.Fatal, err)
	}
	var x exchanger
	if req.Rank == Coordinator {
		x, err = s.hub(req.Run, req.Size)
		if err != nil {
			return err
		}
		defer s.closeHub(req.Run)
	} else {
		m, err := s.b.Dial(ctx, req.Hub)
		if err != nil {
			return errors.E(errors.Net, fmt.Sprintf("rank %d: dial %s", req.Rank, req.Hub), err)
		}
		x = remoteExchanger{machine: m, run: req.Run, size: req.Size}
	}
	r := &rank{
		comm:     newComm(req.Rank, req.Size, x),
		op:       op,
		threads:  req.Threads,
		procs:    s.procs,
		maxProcs: s.maxProcs,
	}
	*reply, err = r.run(ctx, req.Seq)
	return err
}

// A remoteExchanger performs collective rounds through the rendezvous
// hosted by a remote machine.
type remoteExchanger struct {
	machine *bigmachine.Machine
	run     string
	size    int
}

func (x remoteExchanger) Exchange(ctx context.Context, c contribution) ([]contribution, error) {
	var reply exchangeReply
	err := x.machine.Call(ctx, "Rank.Exchange", exchangeRequest{Run: x.run, Size: x.size, Contribution: c}, &reply)
	return reply.Parts, err
}
