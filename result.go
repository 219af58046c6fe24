// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigseq

import (
	"fmt"
	"sort"
	"strings"
)

// Stop is the token that terminates translation.
const Stop int32 = 0

// Counts maps symbol keys to occurrence counts.
type Counts map[string]int64

// Add adds each count in d to c. C must be non-nil.
func (c Counts) Add(d Counts) {
	for k, n := range d {
		c[k] += n
	}
}

// Vector returns the counts of keys, in key order.
func (c Counts) Vector(keys []string) []int64 {
	v := make([]int64, len(keys))
	for i, k := range keys {
		v[i] = c[k]
	}
	return v
}

// CountsOf returns the counts represented by vector v, whose entries
// are indexed as keys.
func CountsOf(keys []string, v []int64) Counts {
	if len(keys) != len(v) {
		panic(fmt.Sprintf("bigseq.CountsOf: %d keys, %d values", len(keys), len(v)))
	}
	c := make(Counts, len(keys))
	for i, k := range keys {
		c[k] = v[i]
	}
	return c
}

// String returns the counts formatted as "key:count" pairs, sorted by
// key.
func (c Counts) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		keys[i] = fmt.Sprintf("%s:%d", k, c[k])
	}
	return strings.Join(keys, " ")
}

// Shape describes the form of an op's results, and thus how partial
// results are combined.
type Shape int

const (
	// CountsShape results are Counts, combined by summing each key.
	CountsShape Shape = iota
	// BufferShape results are byte buffers of the same length as their
	// input, combined by concatenation in sequence order.
	BufferShape
	// TokensShape results are token sequences, combined by
	// concatenation in sequence order through the first Stop token.
	TokensShape
)

func (s Shape) String() string {
	switch s {
	case CountsShape:
		return "counts"
	case BufferShape:
		return "buffer"
	case TokensShape:
		return "tokens"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// A Result is the output of an op over some part of a sequence. Which
// of its fields is meaningful is determined by the op's Shape.
type Result struct {
	Counts Counts
	Buffer []byte
	Tokens []int32
	// Stopped tells whether Tokens ends in a Stop token. Tokens that
	// follow the stop in sequence order are never part of the result.
	Stopped bool
}

// Merge combines results a and b, where a precedes b in sequence
// order. Merge does not modify a or b.
func (s Shape) Merge(a, b Result) Result {
	switch s {
	case CountsShape:
		c := make(Counts, len(a.Counts))
		c.Add(a.Counts)
		c.Add(b.Counts)
		return Result{Counts: c}
	case BufferShape:
		buf := make([]byte, 0, len(a.Buffer)+len(b.Buffer))
		buf = append(buf, a.Buffer...)
		return Result{Buffer: append(buf, b.Buffer...)}
	case TokensShape:
		if a.Stopped {
			return a
		}
		tokens := make([]int32, 0, len(a.Tokens)+len(b.Tokens))
		tokens = append(tokens, a.Tokens...)
		return Result{Tokens: append(tokens, b.Tokens...), Stopped: b.Stopped}
	default:
		panic(fmt.Sprintf("bigseq.Merge: invalid shape %v", s))
	}
}

// Finalize prepares an aggregate result for consumption. Token results
// are truncated at their first Stop token, which is itself dropped;
// Stopped reports whether a stop was found.
func (s Shape) Finalize(r Result) Result {
	if s != TokensShape {
		return r
	}
	for i, tok := range r.Tokens {
		if tok == Stop {
			return Result{Tokens: r.Tokens[:i:i], Stopped: true}
		}
	}
	return Result{Tokens: r.Tokens}
}
