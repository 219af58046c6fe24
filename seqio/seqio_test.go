// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package seqio

import (
	"bytes"
	"compress/gzip"
	"context"
	"io/ioutil"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/exec"
	"github.com/grailbio/testutil"
)

func TestParse(t *testing.T) {
	for _, c := range []struct {
		in, want string
	}{
		{"", ""},
		{">header only\n", ""},
		{"> DNA Sequence\nACGT\nTTGA\n", "ACGTTTGA"},
		{"ACGT\r\n\r\nGG\n\n", "ACGTGG"},
		{">h\nAC\n>second header\nGT", "ACGT"},
		{"   \nAC  \n", "AC"},
		{strings.Repeat("A", 10000) + "\n>x\nC", strings.Repeat("A", 10000) + "C"},
	} {
		seq, err := Parse(strings.NewReader(c.in))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := string(seq), c.want; got != want {
			t.Errorf("%q: got %q, want %q", c.in, got, want)
		}
	}
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, DefaultRNAPath)
	if err := Write(ctx, path, RNAHeader, []byte("AUCGGA")); err != nil {
		t.Fatal(err)
	}
	p, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(p), "> RNA Sequence\nAUCGGA"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	seq, err := File(path).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(seq), "AUCGGA"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadGzip(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var b bytes.Buffer
	gz := gzip.NewWriter(&b)
	if _, err := gz.Write([]byte("> DNA\nGATT\nACA\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "dna.fasta.gz")
	if err := ioutil.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	seq, err := Read(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(seq), "GATTACA"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadUnavailable(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	_, err := File(filepath.Join(dir, DefaultDNAPath)).Load(ctx)
	if !bigseq.IsSourceUnavailable(err) {
		t.Errorf("got %v, want source unavailable", err)
	}
}

func TestWriteUnavailable(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	notdir := filepath.Join(dir, "file")
	if err := ioutil.WriteFile(notdir, nil, 0644); err != nil {
		t.Fatal(err)
	}
	err := Write(ctx, filepath.Join(notdir, DefaultRNAPath), RNAHeader, []byte("AU"))
	if !bigseq.IsDestinationUnavailable(err) {
		t.Errorf("got %v, want destination unavailable", err)
	}
}

func TestTranscribeToFile(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var (
		dna = filepath.Join(dir, DefaultDNAPath)
		rna = filepath.Join(dir, DefaultRNAPath)
	)
	if err := ioutil.WriteFile(dna, []byte("> DNA Sequence\nATGCAG\nATGTAA\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sess := exec.Start(exec.Local, exec.Ranks(3), exec.Threads(2))
	defer sess.Shutdown()
	if _, err := sess.Run(ctx, bigseq.Transcribe(), File(dna), RNAFile(rna)); err != nil {
		t.Fatal(err)
	}
	res, err := sess.Run(ctx, bigseq.CountStartCodons(), File(rna))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.Counts[bigseq.StartCodon], int64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	res, err = sess.Run(ctx, bigseq.Translate(nil), File(rna))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.Tokens, []int32{bigseq.Methionine, bigseq.Glutamine, bigseq.Methionine}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseCodonTable(t *testing.T) {
	table, err := ParseCodonTable(strings.NewReader("# custom\nAUG 5\nuaa 0 # stop\n\nGGG\t9\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := table.Codons(), map[string]int32{"AUG": 5, "UAA": 0, "GGG": 9}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, bad := range []string{"AUG\n", "AUG x\n", "AUG 1\nAUG 2\n", "AU 1\n", "AUG -1\n"} {
		if _, err := ParseCodonTable(strings.NewReader(bad)); !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: got %v, want invalid", bad, err)
		}
	}
}
