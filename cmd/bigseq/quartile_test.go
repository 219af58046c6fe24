// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"sort"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
)

func TestQuartiles(t *testing.T) {
	for _, c := range []struct {
		name       string
		ds         []int64
		q1, q2, q3 int64
	}{
		{"OneElement", []int64{7}, 7, 7, 7},
		{"TwoElement", []int64{0, 100}, 0, 50, 100},
		{"ThreeElementLowSame", []int64{0, 0, 200}, 0, 0, 100},
		{"ThreeElementHighSame", []int64{0, 200, 200}, 100, 200, 200},
		{"ThreeElement", []int64{0, 100, 200}, 50, 100, 150},
		{"FourElement", []int64{0, 100, 200, 300}, 50, 150, 250},
		{"FiveElementSomeSame", []int64{0, 100, 100, 100, 200}, 100, 100, 100},
		{"FiveElement", []int64{0, 100, 200, 300, 400}, 100, 200, 300},
		{"OddAverage", []int64{1, 2}, 1, 1, 2},
	} {
		t.Run(c.name, func(t *testing.T) {
			ds := make([]time.Duration, len(c.ds))
			for i := range ds {
				ds[i] = time.Duration(c.ds[i])
			}
			q1, q2, q3 := quartiles(ds)
			if got, want := q1, time.Duration(c.q1); got != want {
				t.Errorf("q1: got %v, want %v", got, want)
			}
			if got, want := q2, time.Duration(c.q2); got != want {
				t.Errorf("q2: got %v, want %v", got, want)
			}
			if got, want := q3, time.Duration(c.q3); got != want {
				t.Errorf("q3: got %v, want %v", got, want)
			}
		})
	}
}

// TestQuartilesFuzz verifies that quartiles of fuzzed durations lie
// within [min, max] and are monotonically increasing.
func TestQuartilesFuzz(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 50)
	for i := 0; i < 1000; i++ {
		var ns []uint32
		f.Fuzz(&ns)
		ds := make([]time.Duration, len(ns))
		for i := range ns {
			ds[i] = time.Duration(ns[i])
		}
		sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
		min, max := ds[0], ds[len(ds)-1]
		q1, q2, q3 := quartiles(ds)
		if q1 < min || q2 < q1 || q3 < q2 || max < q3 {
			t.Errorf("%v: invalid quartiles %v %v %v", ds, q1, q2, q3)
		}
	}
}
