// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/status"
	"golang.org/x/sync/errgroup"
)

// LocalExecutor is an executor that runs every rank in-process in a
// separate goroutine. Ranks share a single rendezvous per run, and
// their threads draw from a single process-wide budget.
type localExecutor struct {
	mu      sync.Mutex
	running map[string]*rendezvous
	limiter *limiter.Limiter
	sess    *Session
}

func newLocalExecutor() *localExecutor {
	return &localExecutor{
		running: make(map[string]*rendezvous),
		limiter: limiter.New(),
	}
}

func (l *localExecutor) Start(sess *Session) (shutdown func()) {
	l.sess = sess
	l.limiter.Release(sess.p)
	return
}

func (*localExecutor) Name() string { return "local" }

func (l *localExecutor) Run(ctx context.Context, req runRequest) ([]rankReport, error) {
	hub := newRendezvous(req.Ranks)
	l.mu.Lock()
	l.running[req.ID] = hub
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.running, req.ID)
		l.mu.Unlock()
	}()

	var group *status.Group
	if l.sess.status != nil {
		group = l.sess.status.Groupf("run %s ranks", req.ID)
	}
	reports := make([]rankReport, req.Ranks)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < req.Ranks; i++ {
		i := i
		r := &rank{
			comm:     newComm(i, req.Ranks, hub),
			op:       req.op,
			threads:  req.Threads,
			procs:    l.limiter,
			maxProcs: l.sess.p,
		}
		if group != nil {
			r.status = group.Start(fmt.Sprintf("rank %d", i))
		}
		var seq []byte
		if i == Coordinator {
			seq = req.Seq
		}
		g.Go(func() (err error) {
			defer func() {
				if e := recover(); e != nil {
					err = errors.E(errors.Fatal, fmt.Errorf("panic in rank %d: %v\n%s", i, e, debug.Stack()))
				}
				if r.status != nil {
					if err != nil {
						r.status.Printf("error: %v", err)
					}
					r.status.Done()
				}
			}()
			reports[i], err = r.run(ctx, seq)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (l *localExecutor) HandleDebug(handler *http.ServeMux) {
	handler.HandleFunc("/debug/ranks", func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		defer l.mu.Unlock()
		for id, hub := range l.running {
			hub.mu.Lock()
			fmt.Fprintf(w, "run %s: %d ranks, %d rounds pending\n", id, hub.size, len(hub.rounds))
			hub.mu.Unlock()
		}
	})
}
