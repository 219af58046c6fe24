// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/sync/ctxsync"
)

// A rendezvous is the meeting point of a group of ranks. It implements
// exchanger: each collective round completes once every rank of the
// group has contributed to it. Rounds are keyed by their sequence
// number; a round is retained until every rank has taken its outcome.
type rendezvous struct {
	size int

	mu     sync.Mutex
	cond   *ctxsync.Cond
	rounds map[uint64]*round
}

type round struct {
	parts   []contribution
	present []bool
	// first is the rank of the first contribution, against which
	// subsequent contributions are checked.
	first   int
	arrived int
	taken   int
	err     error
}

func newRendezvous(size int) *rendezvous {
	h := &rendezvous{size: size, rounds: make(map[uint64]*round)}
	h.cond = ctxsync.NewCond(&h.mu)
	return h
}

// Exchange implements exchanger.
func (h *rendezvous) Exchange(ctx context.Context, c contribution) ([]contribution, error) {
	if c.Rank < 0 || c.Rank >= h.size {
		return nil, errors.E(errors.Invalid, errors.Fatal, fmt.Sprintf("round %d: rank %d out of range [0, %d)", c.Round, c.Rank, h.size))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rounds[c.Round]
	if r == nil {
		r = &round{
			parts:   make([]contribution, h.size),
			present: make([]bool, h.size),
			first:   c.Rank,
		}
		h.rounds[c.Round] = r
	}
	switch {
	case r.err != nil:
	case r.present[c.Rank]:
		r.err = errors.E(errors.Invalid, errors.Fatal, fmt.Sprintf("round %d: rank %d contributed twice", c.Round, c.Rank))
	case c.Owner < 0 || c.Owner >= h.size:
		r.err = errors.E(errors.Invalid, errors.Fatal, fmt.Sprintf("round %d: owner %d out of range [0, %d)", c.Round, c.Owner, h.size))
	case r.arrived > 0:
		r.err = compatible(r.parts[r.first], c)
	}
	if !r.present[c.Rank] {
		r.parts[c.Rank] = c
		r.present[c.Rank] = true
		r.arrived++
	}
	if r.arrived == h.size || r.err != nil {
		h.cond.Broadcast()
	}
	for r.arrived < h.size && r.err == nil {
		if err := h.cond.Wait(ctx); err != nil {
			return nil, err
		}
	}
	r.taken++
	if r.taken >= h.size {
		delete(h.rounds, c.Round)
	}
	if r.err != nil {
		return nil, r.err
	}
	if c.Collective == broadcast {
		return []contribution{r.parts[c.Owner]}, nil
	}
	if c.Rank == c.Owner {
		return r.parts, nil
	}
	return nil, nil
}

// Compatible checks that contribution c belongs to the same collective
// as contribution ref.
func compatible(ref, c contribution) error {
	if ref.Collective != c.Collective {
		return errors.E(errors.Invalid, errors.Fatal,
			fmt.Sprintf("round %d: rank %d invoked %s, rank %d invoked %s", c.Round, ref.Rank, ref.Collective, c.Rank, c.Collective))
	}
	if ref.Owner != c.Owner {
		return errors.E(errors.Invalid, errors.Fatal,
			fmt.Sprintf("round %d: rank %d named owner %d, rank %d named owner %d", c.Round, ref.Rank, ref.Owner, c.Rank, c.Owner))
	}
	if c.Collective != reduce {
		return nil
	}
	if len(ref.Keys) != len(c.Keys) || len(c.Keys) != len(c.Counts) {
		return errors.E(errors.Invalid, errors.Fatal,
			fmt.Sprintf("round %d: rank %d reduces keys %v, rank %d reduces keys %v", c.Round, ref.Rank, ref.Keys, c.Rank, c.Keys))
	}
	for i := range ref.Keys {
		if ref.Keys[i] != c.Keys[i] {
			return errors.E(errors.Invalid, errors.Fatal,
				fmt.Sprintf("round %d: rank %d reduces keys %v, rank %d reduces keys %v", c.Round, ref.Rank, ref.Keys, c.Rank, c.Keys))
		}
	}
	return nil
}
