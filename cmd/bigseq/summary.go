// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/grailbio/base/data"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/exec"
)

func printCounts(w io.Writer, res *exec.Result) {
	fmt.Fprintf(w, "base counts of %d symbols:\n", res.Len)
	for _, key := range bigseq.BaseKeys {
		fmt.Fprintf(w, "%s: %d\n", key, res.Counts[key])
	}
}

func printTranscription(w io.Writer, res *exec.Result, out *outputFile) {
	if out.err != nil {
		fmt.Fprintf(w, "transcribed %d symbols; could not write %s: %v\n", len(res.Buffer), out.path, out.err)
		return
	}
	fmt.Fprintf(w, "transcribed %d symbols (%s) to %s\n", len(res.Buffer), data.Size(len(res.Buffer)), out.path)
}

func printStartCodons(w io.Writer, res *exec.Result) {
	fmt.Fprintf(w, "start codons (%s): %d\n", bigseq.StartCodon, res.Counts[bigseq.StartCodon])
}

func printProtein(w io.Writer, res *exec.Result) {
	codes := make([]string, len(res.Tokens))
	for i, code := range res.Tokens {
		codes[i] = strconv.Itoa(int(code))
	}
	fmt.Fprintf(w, "protein (%d amino acids): %s\n", len(res.Tokens), strings.Join(codes, " "))
	if res.Stopped {
		fmt.Fprintln(w, "translation ended at a stop codon")
	}
}

// printTimings prints the elapsed time of a run and the time spent in
// each of its stages. The time of a stage performed by the ranks is
// that of its slowest rank.
func printTimings(w io.Writer, res *exec.Result) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\telapsed\t%s\t\n", res.Op.Name, res.Elapsed)
	for _, stage := range exec.Stages {
		fmt.Fprintf(tw, "\t%s\t%s\t\n", stage, res.StageDuration(stage))
	}
	tw.Flush()
	if len(res.Stats) > 0 {
		fmt.Fprintf(w, "stats: %s\n", res.Stats)
	}
}
