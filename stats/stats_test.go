// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stats

import (
	"sync"
	"testing"
)

func TestMap(t *testing.T) {
	m := NewMap()
	var (
		x = m.Int(Chunks)
		_ = m.Int(Skipped)
	)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x.Add(3)
		}()
	}
	wg.Wait()
	if got, want := m.Int(Chunks).Get(), int64(24); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	vals := m.Snapshot()
	if got, want := vals.String(), "chunks:24 skipped:0"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	vals.Add(Values{Chunks: 1, Symbols: 10})
	if got, want := vals.String(), "chunks:25 skipped:0 symbols:10"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNil(t *testing.T) {
	var m *Map
	m.Int(Chunks).Add(1)
	if got, want := m.Int(Chunks).Get(), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(m.Snapshot()), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
