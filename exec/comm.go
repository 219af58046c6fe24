// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigseq"
	"github.com/spaolacci/murmur3"
)

// Coordinator is the rank that loads the sequence and receives
// aggregate results.
const Coordinator = 0

// Collective enumerates the kinds of collective rounds.
type collective int

const (
	broadcast collective = iota
	reduce
	gather
)

func (c collective) String() string {
	switch c {
	case broadcast:
		return "broadcast"
	case reduce:
		return "reduce"
	case gather:
		return "gather"
	default:
		return fmt.Sprintf("collective(%d)", int(c))
	}
}

// A contribution is a single rank's part in a collective round. Which
// of the payload fields are set depends on the collective.
type contribution struct {
	Round      uint64
	Collective collective
	Owner      int
	Rank       int

	Bytes  []byte
	Ints   []int32
	Len    int
	Keys   []string
	Counts []int64
	Sum    uint64
}

// An exchanger performs collective rounds on behalf of a rank.
// Exchange blocks until every rank of the group has contributed to the
// round. For broadcast rounds, it returns the owner's contribution to
// every rank. For other rounds, it returns the contributions of all
// ranks, indexed by rank, to the owner, and nil to other ranks.
type exchanger interface {
	Exchange(ctx context.Context, c contribution) ([]contribution, error)
}

// A Comm is a rank's handle to the collectives of its group. Every rank
// of a group must invoke the same sequence of collectives, with the
// same owners, or the run fails. Collectives are not safe for
// concurrent use.
type Comm struct {
	rank, size int
	round      uint64
	x          exchanger
}

func newComm(rank, size int, x exchanger) *Comm {
	return &Comm{rank: rank, size: size, x: x}
}

// Rank returns the rank of this participant.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of participants in the group.
func (c *Comm) Size() int { return c.size }

func (c *Comm) exchange(ctx context.Context, contrib contribution) ([]contribution, error) {
	contrib.Round = c.round
	contrib.Rank = c.rank
	c.round++
	return c.x.Exchange(ctx, contrib)
}

// BroadcastSequence replicates the owner's sequence to every rank. The
// owner's seq is returned on the owner; every other rank receives its
// own copy, which is verified against the owner's checksum.
// BroadcastSequence returns an EmptySequence error on every rank if the
// owner's sequence is empty.
func (c *Comm) BroadcastSequence(ctx context.Context, owner int, seq []byte) ([]byte, error) {
	contrib := contribution{Collective: broadcast, Owner: owner}
	if c.rank == owner {
		contrib.Bytes = seq
		contrib.Len = len(seq)
		contrib.Sum = murmur3.Sum64(seq)
	}
	parts, err := c.exchange(ctx, contrib)
	if err != nil {
		return nil, err
	}
	p := parts[0]
	replica := seq
	if c.rank != owner {
		replica = make([]byte, len(p.Bytes))
		copy(replica, p.Bytes)
	}
	if len(replica) != p.Len {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("rank %d: replica has %d symbols, want %d", c.rank, len(replica), p.Len))
	}
	if sum := murmur3.Sum64(replica); sum != p.Sum {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("rank %d: replica checksum %x, want %x", c.rank, sum, p.Sum))
	}
	if len(replica) == 0 {
		return nil, bigseq.EmptySequence()
	}
	return replica, nil
}

// ReduceCounts sums the local counts of every rank, key by key, in the
// order given by keys. The sum is returned on the owner; other ranks
// receive nil. Every rank must reduce the same keys.
func (c *Comm) ReduceCounts(ctx context.Context, owner int, keys []string, local bigseq.Counts) (bigseq.Counts, error) {
	parts, err := c.exchange(ctx, contribution{
		Collective: reduce,
		Owner:      owner,
		Keys:       keys,
		Counts:     local.Vector(keys),
	})
	if err != nil || c.rank != owner {
		return nil, err
	}
	sum := make([]int64, len(keys))
	for _, p := range parts {
		for i, n := range p.Counts {
			sum[i] += n
		}
	}
	return bigseq.CountsOf(keys, sum), nil
}

// GatherFixed concatenates the ranks' buffers in rank order on the
// owner. Each rank's buffer must have the length of its range in
// ranges; the buffer of rank r is placed at offset ranges[r].Start.
// Other ranks receive nil.
func (c *Comm) GatherFixed(ctx context.Context, owner int, local []byte, ranges []bigseq.Range) ([]byte, error) {
	if len(ranges) != c.size {
		return nil, errors.E(errors.Invalid, errors.Fatal, fmt.Sprintf("gather: %d ranges for %d ranks", len(ranges), c.size))
	}
	parts, err := c.exchange(ctx, contribution{Collective: gather, Owner: owner, Bytes: local})
	if err != nil || c.rank != owner {
		return nil, err
	}
	buf := make([]byte, ranges[c.size-1].End)
	for r, p := range parts {
		if got, want := len(p.Bytes), ranges[r].Len(); got != want {
			return nil, errors.E(errors.Invalid, errors.Fatal,
				fmt.Sprintf("gather: rank %d contributed %d symbols, want %d for range %s", r, got, want, ranges[r]))
		}
		copy(buf[ranges[r].Start:], p.Bytes)
	}
	return buf, nil
}

// GatherVariable concatenates the ranks' token sequences in rank order
// on the owner. The gather proceeds in two rounds: first the length of
// each rank's sequence is gathered, from which the owner computes each
// rank's offset; then the sequences themselves are gathered and
// placed at their offsets. Other ranks receive nil.
func (c *Comm) GatherVariable(ctx context.Context, owner int, local []int32) ([]int32, error) {
	parts, err := c.exchange(ctx, contribution{Collective: gather, Owner: owner, Len: len(local)})
	if err != nil {
		return nil, err
	}
	var (
		sizes   []int
		offsets []int
		total   int
	)
	if c.rank == owner {
		sizes = make([]int, len(parts))
		for r, p := range parts {
			sizes[r] = p.Len
			total += p.Len
		}
		offsets = prefixOffsets(sizes)
	}
	parts, err = c.exchange(ctx, contribution{Collective: gather, Owner: owner, Ints: local})
	if err != nil || c.rank != owner {
		return nil, err
	}
	out := make([]int32, total)
	for r, p := range parts {
		if got, want := len(p.Ints), sizes[r]; got != want {
			return nil, errors.E(errors.Invalid, errors.Fatal,
				fmt.Sprintf("gather: rank %d contributed %d tokens, announced %d", r, got, want))
		}
		copy(out[offsets[r]:], p.Ints)
	}
	return out, nil
}

// PrefixOffsets returns the exclusive prefix sums of sizes: the offset
// at which each element is placed when the elements are concatenated.
func prefixOffsets(sizes []int) []int {
	offsets := make([]int, len(sizes))
	for i := 1; i < len(sizes); i++ {
		offsets[i] = offsets[i-1] + sizes[i-1]
	}
	return offsets
}
