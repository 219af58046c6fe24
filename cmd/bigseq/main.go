// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command bigseq runs the bigseq genomic operations over a group of
// ranks. Each operation reads its sequence from a file, computes its
// result across the group, and prints a summary along with the time
// spent in each stage of the run.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, `Bigseq runs genomic sequence operations across a group of ranks.

Usage:

	bigseq <command> [arguments]

The commands are:

	count        count the bases A, C, G, and T of a DNA sequence
	transcribe   transcribe a DNA sequence to RNA
	startcodons  count the AUG start codons of an RNA sequence
	translate    translate an RNA sequence to amino acid codes
	pipeline     count, transcribe, and then count start codons and translate
	trace        summarize the stage timings of a bigseq trace file
	setup-ec2    configure EC2 for use with bigseq

Run "bigseq <command> -help" for the flags of each command.
`)
	os.Exit(2)
}

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("bigseq: ")
	must.Func = log.Fatal
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	default:
		fmt.Fprintln(os.Stderr, "unknown command", cmd)
		flag.Usage()
	case "count", "transcribe", "startcodons", "translate", "pipeline":
		opCmd(cmd, args)
	case "trace":
		traceCmd(args)
	case "setup-ec2":
		setupEc2Cmd(args)
	}
}
