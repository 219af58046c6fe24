// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package seqconfig

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/seqio"
	"github.com/grailbio/testutil"
)

func TestLoad(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "config")
	if err := ioutil.WriteFile(path, []byte("param bigseq (\n\tranks = 3\n\tthreads = 2\n)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sess, err := Load(path, map[string]string{"ranks": "4"})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Shutdown()
	if got, want := sess.Ranks(), 4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := sess.Threads(), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	res, err := sess.Run(context.Background(), bigseq.CountBases(), seqio.Bytes("GATTACA"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.Counts.String(), "A:3 C:1 G:1 T:2"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "config")
	if err := ioutil.WriteFile(path, []byte("param bigseq ranks = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Error("expected error")
	}
}

func TestLoadMissing(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	sess, err := Load(filepath.Join(dir, "config"), map[string]string{"ranks": "2"})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Shutdown()
	if got, want := sess.Ranks(), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
