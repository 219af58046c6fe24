// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/exec"
	"github.com/grailbio/bigseq/seqcmd"
	"github.com/grailbio/bigseq/seqconfig"
	"github.com/grailbio/bigseq/seqflags"
	"github.com/grailbio/bigseq/seqio"
)

var opUsage = map[string]string{
	"count": `usage: bigseq count [flags]

Command count counts the bases A, C, G, and T of the DNA sequence
read from -in. Other symbols are ignored.
`,
	"transcribe": `usage: bigseq transcribe [flags]

Command transcribe transcribes the DNA sequence read from -in to RNA,
replacing each T with U, and writes the result to -out.
`,
	"startcodons": `usage: bigseq startcodons [flags]

Command startcodons counts the AUG start codons of the RNA sequence
read from -in, in reading frame 0.
`,
	"translate": `usage: bigseq translate [flags]

Command translate translates the RNA sequence read from -in to amino
acid codes, up to its first stop codon. The standard codon table is
used unless -codons names a table, given as lines of "codon code".
`,
	"pipeline": `usage: bigseq pipeline [flags]

Command pipeline counts the bases of the DNA sequence read from -in,
transcribes it to -out, and then counts the start codons of and
translates the transcribed sequence, all in one session.
`,
}

func opCmd(name string, args []string) {
	var (
		flags   = flag.NewFlagSet("bigseq "+name, flag.ExitOnError)
		fl      seqflags.Flags
		in      = flags.String("in", defaultInput(name), "path of the input sequence")
		out     = flags.String("out", seqio.DefaultRNAPath, "path of the transcribed sequence")
		codons  = flags.String("codons", "", "path of the codon table used for translation")
		profile = flags.Bool("profile", false, "configure the session from the profile at "+seqconfig.Path)
	)
	seqflags.RegisterFlagsWithDefaults(flags, &fl, "", seqflags.Defaults{
		System: "internal",
		Ranks:  1,
	})
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, opUsage[name], "\nThe flags are:\n")
		flags.PrintDefaults()
		os.Exit(2)
	}
	if err := flags.Parse(args); err != nil {
		log.Fatal(err)
	}
	if flags.NArg() != 0 {
		flags.Usage()
	}
	if fl.SystemHelp {
		seqcmd.PrintSystemHelp(fl)
		os.Exit(0)
	}

	ctx := context.Background()
	var table *bigseq.CodonTable
	if *codons != "" {
		var err error
		table, err = seqio.ReadCodonTable(ctx, *codons)
		if err != nil {
			log.Fatal(err)
		}
	}

	drive := func(sess *exec.Session) error {
		d := &driver{sess: sess, in: *in, out: *out, table: table}
		switch name {
		case "count":
			return d.count(ctx)
		case "transcribe":
			_, err := d.transcribe(ctx)
			return err
		case "startcodons":
			return d.startCodons(ctx, seqio.File(*in))
		case "translate":
			return d.translate(ctx, seqio.File(*in))
		default:
			return d.pipeline(ctx)
		}
	}
	if !*profile {
		if err := seqcmd.Run(fl, drive); err != nil {
			log.Fatal(err)
		}
		return
	}
	overrides := make(map[string]string)
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ranks", "threads", "parallelism":
			overrides[f.Name] = f.Value.String()
		}
	})
	sess, err := seqconfig.Load(seqconfig.Path, overrides)
	if err != nil {
		log.Fatal(err)
	}
	seqcmd.DisplayStatus(fl, sess)
	err = drive(sess)
	sess.Shutdown()
	if err != nil {
		log.Fatal(err)
	}
}

func defaultInput(name string) string {
	switch name {
	case "startcodons", "translate":
		return seqio.DefaultRNAPath
	default:
		return seqio.DefaultDNAPath
	}
}

// A driver runs the operations of the bigseq commands in a session,
// printing a summary of each run to stdout.
type driver struct {
	sess    *exec.Session
	in, out string
	table   *bigseq.CodonTable
}

func (d *driver) count(ctx context.Context) error {
	res, err := d.sess.Run(ctx, bigseq.CountBases(), seqio.File(d.in))
	if err != nil {
		return err
	}
	printCounts(os.Stdout, res)
	printTimings(os.Stdout, res)
	return nil
}

func (d *driver) transcribe(ctx context.Context) ([]byte, error) {
	out := &outputFile{path: d.out}
	res, err := d.sess.Run(ctx, bigseq.Transcribe(), seqio.File(d.in), out)
	if err != nil {
		return nil, err
	}
	printTranscription(os.Stdout, res, out)
	printTimings(os.Stdout, res)
	return res.Buffer, nil
}

func (d *driver) startCodons(ctx context.Context, src exec.Source) error {
	res, err := d.sess.Run(ctx, bigseq.CountStartCodons(), src)
	if err != nil {
		return err
	}
	printStartCodons(os.Stdout, res)
	printTimings(os.Stdout, res)
	return nil
}

func (d *driver) translate(ctx context.Context, src exec.Source) error {
	res, err := d.sess.Run(ctx, bigseq.Translate(d.table), src)
	if err != nil {
		return err
	}
	printProtein(os.Stdout, res)
	printTimings(os.Stdout, res)
	return nil
}

func (d *driver) pipeline(ctx context.Context) error {
	if err := d.count(ctx); err != nil {
		return err
	}
	rna, err := d.transcribe(ctx)
	if err != nil {
		return err
	}
	if err := d.startCodons(ctx, seqio.Bytes(rna)); err != nil {
		return err
	}
	return d.translate(ctx, seqio.Bytes(rna))
}

// outputFile is a sink that writes the transcribed sequence to path
// and retains the outcome of the write.
type outputFile struct {
	path string
	err  error
}

func (o *outputFile) Output(ctx context.Context, res *exec.Result) error {
	o.err = seqio.RNAFile(o.path).Output(ctx, res)
	return o.err
}
