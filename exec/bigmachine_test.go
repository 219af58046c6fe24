// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigmachine/testsystem"
	"github.com/grailbio/bigseq"
)

func TestRankServiceHub(t *testing.T) {
	s := &rankService{
		hubs: make(map[string]*rendezvous),
		done: make(map[string]bool),
	}
	h, err := s.hub("run", 3)
	if err != nil {
		t.Fatal(err)
	}
	if h2, err := s.hub("run", 3); err != nil || h2 != h {
		t.Errorf("got %p, %v, want %p", h2, err, h)
	}
	if _, err := s.hub("run", 4); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
	s.closeHub("run")
	if _, err := s.hub("run", 3); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
	if _, err := s.hub("other", 2); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBigmachineReuse(t *testing.T) {
	sess := Start(Bigmachine(testsystem.New()), Ranks(4), Threads(2))
	defer sess.Shutdown()
	ctx := context.Background()
	// Machines are started by the first run and serve subsequent runs.
	for _, seq := range []string{"AUGCAGAUGUAA", "AUGAUGAUG", "CCC"} {
		res, err := sess.Run(ctx, bigseq.CountStartCodons(), bytesSource(seq))
		if err != nil {
			t.Fatal(err)
		}
		want := bigseq.CountStartCodons().Map([]byte(seq)).Counts
		if got, want := res.Counts[bigseq.StartCodon], want[bigseq.StartCodon]; got != want {
			t.Errorf("%s: got %v, want %v", seq, got, want)
		}
	}
}
