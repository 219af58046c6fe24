// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package seqcmd_test

import (
	"context"
	"flag"
	"reflect"
	"testing"

	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/exec"
	"github.com/grailbio/bigseq/seqcmd"
	"github.com/grailbio/bigseq/seqflags"
	"github.com/grailbio/bigseq/seqio"
)

func parseFlags(t *testing.T, args ...string) seqflags.Flags {
	t.Helper()
	var (
		fs = flag.NewFlagSet("test", flag.ContinueOnError)
		fl seqflags.Flags
	)
	seqflags.RegisterFlagsWithDefaults(fs, &fl, "", seqflags.Defaults{System: "internal", Ranks: 1})
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return fl
}

func TestRun(t *testing.T) {
	fl := parseFlags(t, "-ranks=3", "-threads=2")
	var counts bigseq.Counts
	err := seqcmd.Run(fl, func(sess *exec.Session) error {
		if got, want := sess.Ranks(), 3; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if got, want := sess.Threads(), 2; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		res, err := sess.Run(context.Background(), bigseq.CountBases(), seqio.Bytes("GATTACA"))
		if err != nil {
			return err
		}
		counts = res.Counts
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := counts, (bigseq.Counts{"A": 3, "C": 1, "G": 1, "T": 2}); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunError(t *testing.T) {
	fl := parseFlags(t, "-ranks=2")
	err := seqcmd.Run(fl, func(sess *exec.Session) error {
		_, err := sess.Run(context.Background(), bigseq.Transcribe(), seqio.Bytes(nil))
		return err
	})
	if !bigseq.IsEmptySequence(err) {
		t.Errorf("got %v, want empty sequence", err)
	}

	fl = parseFlags(t, "-ranks=0")
	called := false
	err = seqcmd.Run(fl, func(*exec.Session) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("got %v, called %v; want error", err, called)
	}
}
