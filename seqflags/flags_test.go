// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package seqflags_test

import (
	"flag"
	"io/ioutil"
	"testing"

	"github.com/grailbio/bigseq/seqflags"
)

func TestProvider(t *testing.T) {
	local := &seqflags.Local{}
	if got, want := local.Name(), "local"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	internal := &seqflags.Internal{}
	if got, want := internal.Name(), "internal"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	ec2 := &seqflags.EC2{}
	if got, want := ec2.Name(), "EC2"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := ec2.Set("x=y"); err == nil {
		t.Errorf("expected an error")
	}
	if err := ec2.Set("dataspace=x"); err == nil {
		t.Errorf("expected an error")
	}
	if err := ec2.Set("dataspace=122"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ec2.Set("ondemand=true"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSystemFlag(t *testing.T) {
	tf := &seqflags.Flags{}
	if err := tf.System.Set("local"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := tf.System.Set("local:an=option"); err == nil {
		t.Errorf("expected an error")
	}
	tf = &seqflags.Flags{}
	if err := tf.System.Set("internal"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := tf.System.Set("internal:an=option"); err == nil {
		t.Errorf("expected an error")
	}
	tf = &seqflags.Flags{}
	if err := tf.System.Set("nonexistent"); err == nil {
		t.Errorf("expected an error")
	}
	if err := tf.System.Set("ec2:an=option"); err == nil {
		t.Errorf("expected an error")
	}
	if err := tf.System.Set("ec2:dataspace=200,rootsize=10"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got, want := tf.System.String(), "EC2:dataspace=200,rootsize=10"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProfile(t *testing.T) {
	seqflags.RegisterSystemProfile("test-ec2", "ec2:instance=c5.xlarge")
	var tf seqflags.Flags
	if err := tf.System.Set("test-ec2:ondemand=true"); err != nil {
		t.Fatal(err)
	}
	if got, want := tf.System.String(), "EC2:instance=c5.xlarge,ondemand=true"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	_, profiles := seqflags.ProvidersAndProfiles()
	if got, want := profiles["test-ec2"], "ec2:instance=c5.xlarge"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRegisterFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	var tf seqflags.Flags
	seqflags.RegisterFlags(fs, &tf, "seq-")
	if err := fs.Parse([]string{"-seq-ranks=4", "-seq-threads=2", "-seq-system=internal"}); err != nil {
		t.Fatal(err)
	}
	if got, want := tf.Ranks, 4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !tf.System.Specified {
		t.Error("expected system to be specified")
	}
	options, err := tf.ExecOptions()
	if err != nil {
		t.Fatal(err)
	}
	// Status, executor, ranks, and threads.
	if got, want := len(options), 4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	tf.Ranks = 0
	if _, err := tf.ExecOptions(); err == nil {
		t.Error("expected an error")
	}
}
