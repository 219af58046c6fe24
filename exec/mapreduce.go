// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"sync/atomic"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/stats"
)

// MapReduce computes op over data using a pool of threads. Data is
// split into one aligned chunk per thread; each chunk is mapped
// independently, and the partial results are merged in chunk order,
// regardless of the order in which chunks complete.
//
// For token results, once a chunk has produced a stop, chunks that
// follow it in sequence order may be skipped; chunks that precede it
// are always processed. Mapped and skipped chunks are counted in
// counters, which may be nil.
func mapReduce(ctx context.Context, op *bigseq.Op, data []byte, threads int, counters *stats.Map) (bigseq.Result, error) {
	if len(data) == 0 {
		return op.Identity(), nil
	}
	if threads <= 0 {
		threads = 1
	}
	var (
		chunks   = bigseq.Split(len(data), threads, op.Alignment)
		partials = make([]bigseq.Result, len(chunks))
		// stopped is the index of the earliest chunk known to contain
		// a stop.
		stopped = int64(len(chunks))
		mapped  = counters.Int(stats.Chunks)
		skipped = counters.Int(stats.Skipped)
	)
	err := traverse.Limit(threads).Each(len(chunks), func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if int64(i) > atomic.LoadInt64(&stopped) {
			skipped.Add(1)
			return nil
		}
		c := chunks[i]
		partials[i] = op.Map(data[c.Start:c.End])
		mapped.Add(1)
		if !partials[i].Stopped {
			return nil
		}
		for {
			cur := atomic.LoadInt64(&stopped)
			if int64(i) >= cur || atomic.CompareAndSwapInt64(&stopped, cur, int64(i)) {
				return nil
			}
		}
	})
	if err != nil {
		return bigseq.Result{}, err
	}
	r := op.Identity()
	for _, p := range partials {
		r = op.Shape.Merge(r, p)
	}
	return r, nil
}
