// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package seqio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/bigseq"
)

// ReadCodonTable reads a codon table from path. See ParseCodonTable
// for the format.
func ReadCodonTable(ctx context.Context, path string) (table *bigseq.CodonTable, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("open %s", path), err)
	}
	defer func() {
		if closeErr := f.Close(ctx); closeErr != nil && err == nil {
			err = errors.E(fmt.Sprintf("close %s", path), closeErr)
		}
	}()
	table, err = ParseCodonTable(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(fmt.Sprintf("codon table %s", path), err)
	}
	return table, nil
}

// ParseCodonTable parses a codon table from r. Each non-blank line
// holds a codon and its amino acid code, separated by whitespace, for
// example:
//
//	AUG 5
//	UAA 0
//
// Text following a '#' is ignored.
func ParseCodonTable(r io.Reader) (*bigseq.CodonTable, error) {
	var (
		scan   = bufio.NewScanner(r)
		codes  = make(map[string]int32)
		lineno = 0
	)
	for scan.Scan() {
		lineno++
		line := scan.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: expected codon and code, got %q", lineno, line))
		}
		code, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: invalid code %q", lineno, fields[1]), err)
		}
		codon := strings.ToUpper(fields[0])
		if _, ok := codes[codon]; ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: duplicate codon %s", lineno, codon))
		}
		codes[codon] = int32(code)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return bigseq.NewCodonTable(codes)
}
