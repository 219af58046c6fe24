// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigseq

import (
	"fmt"
)

// A Range is a half-open interval [Start, End) of sequence offsets.
type Range struct {
	Start, End int
}

// Len returns the number of symbols in the range.
func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Partition divides a sequence of n symbols among width workers,
// returning one range per worker in worker order. Every range boundary
// except the end of the sequence is a multiple of alignment. All
// ranges but the last have the same length; the last range extends to
// the end of the sequence, absorbing the remainder. When n is smaller
// than width*alignment, leading workers receive empty ranges.
//
// Partition returns an InvalidInput error if n, width, or alignment is
// not positive.
func Partition(n, width, alignment int) ([]Range, error) {
	switch {
	case n <= 0:
		return nil, invalidInput(fmt.Sprintf("partition: sequence length %d", n))
	case width <= 0:
		return nil, invalidInput(fmt.Sprintf("partition: worker count %d", width))
	case alignment <= 0:
		return nil, invalidInput(fmt.Sprintf("partition: alignment %d", alignment))
	}
	return Split(n, width, alignment), nil
}

// Split is like Partition, but permits empty sequences, for which it
// returns width empty ranges. Split panics if width or alignment is
// not positive.
func Split(n, width, alignment int) []Range {
	if width <= 0 || alignment <= 0 {
		panic(fmt.Sprintf("bigseq.Split: width %d, alignment %d", width, alignment))
	}
	chunk := n / alignment / width * alignment
	ranges := make([]Range, width)
	for i := range ranges {
		ranges[i] = Range{i * chunk, (i + 1) * chunk}
	}
	ranges[width-1].End = n
	return ranges
}
