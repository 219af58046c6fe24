// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seqio implements the sources and sinks through which
// sequences enter and results leave bigseq runs. Sequences are read from
// a line-oriented text format: lines starting with '>' are headers and
// are ignored, as are blank lines; the remaining lines are concatenated
// to form the sequence. Paths may name local files or any location
// supported by github.com/grailbio/base/file, such as s3:// URLs.
// Inputs ending in .gz or .zst are decompressed transparently.
package seqio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress/zstd"
	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigseq/exec"
)

// Default paths of the sequences read and written by the bigseq
// commands.
const (
	DefaultDNAPath = "dna_sequence.fasta"
	DefaultRNAPath = "rna_sequence.fasta"
)

// RNAHeader is the header line of transcribed sequences.
const RNAHeader = "> RNA Sequence"

// Read reads the sequence stored at path. Read returns an error of
// kind errors.NotExist if the sequence cannot be opened or read.
func Read(ctx context.Context, path string) (seq []byte, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("open %s", path), err)
	}
	defer func() {
		if closeErr := f.Close(ctx); closeErr != nil && err == nil {
			err = errors.E(errors.NotExist, fmt.Sprintf("close %s", path), closeErr)
		}
	}()
	var r io.Reader = f.Reader(ctx)
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("open (gzip) %s", path), err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("open (zstd) %s", path), err)
		}
		defer zr.Close()
		r = zr
	}
	seq, err = Parse(r)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("read %s", path), err)
	}
	return seq, nil
}

// Parse reads a sequence from r: header lines (starting with '>') and
// blank lines are skipped, line endings are stripped, and the remaining
// lines are concatenated.
func Parse(r io.Reader) ([]byte, error) {
	var (
		br   = bufio.NewReader(r)
		line []byte
		seq  []byte
	)
	for {
		frag, err := br.ReadSlice('\n')
		line = append(line, frag...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if trimmed := bytes.TrimRight(line, " \t\r\n"); len(trimmed) > 0 && trimmed[0] != '>' {
			seq = append(seq, trimmed...)
		}
		line = line[:0]
		switch {
		case err == io.EOF:
			return seq, nil
		case err != nil:
			return nil, err
		}
	}
}

// File is a source that reads the sequence stored at the named path.
type File string

// Load implements exec.Source.
func (f File) Load(ctx context.Context) ([]byte, error) {
	seq, err := Read(ctx, string(f))
	if err == nil {
		log.Debug.Printf("seqio: read %d symbols (%s) from %s", len(seq), data.Size(len(seq)), f)
	}
	return seq, err
}

// Bytes is a source of an in-memory sequence.
type Bytes []byte

// Load implements exec.Source.
func (b Bytes) Load(context.Context) ([]byte, error) { return b, nil }

// Write writes a sequence to path, preceded by the provided header
// line, if any. Write returns an error of kind errors.NotAllowed if the
// sequence cannot be written.
func Write(ctx context.Context, path, header string, seq []byte) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(errors.NotAllowed, fmt.Sprintf("create %s", path), err)
	}
	defer func() {
		if closeErr := f.Close(ctx); closeErr != nil && err == nil {
			err = errors.E(errors.NotAllowed, fmt.Sprintf("close %s", path), closeErr)
		}
	}()
	w := bufio.NewWriter(f.Writer(ctx))
	if header != "" {
		if _, err := w.WriteString(header + "\n"); err != nil {
			return errors.E(errors.NotAllowed, fmt.Sprintf("write %s", path), err)
		}
	}
	if _, err := w.Write(seq); err != nil {
		return errors.E(errors.NotAllowed, fmt.Sprintf("write %s", path), err)
	}
	if err := w.Flush(); err != nil {
		return errors.E(errors.NotAllowed, fmt.Sprintf("write %s", path), err)
	}
	return nil
}

// RNAFile is a sink that writes the transcribed sequence of a run to
// the named path, under RNAHeader.
type RNAFile string

// Output implements exec.Sink.
func (f RNAFile) Output(ctx context.Context, res *exec.Result) error {
	if err := Write(ctx, string(f), RNAHeader, res.Buffer); err != nil {
		return err
	}
	log.Printf("seqio: wrote %d symbols to %s", len(res.Buffer), f)
	return nil
}
