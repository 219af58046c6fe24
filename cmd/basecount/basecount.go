// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Basecount is a small bigseq program that counts the bases of each
// DNA sequence named on its command line. Sequences may be stored
// locally or in S3.
//
//	basecount -ranks 4 s3://bucket/chr1.fasta.gz chr2.fasta
package main

import (
	"context"
	"errors"
	"fmt"
	_ "net/http/pprof"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/bigseq"
	"github.com/grailbio/bigseq/exec"
	"github.com/grailbio/bigseq/seqcmd"
	"github.com/grailbio/bigseq/seqio"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	seqcmd.Main(func(sess *exec.Session, args []string) error {
		if len(args) == 0 {
			return errors.New("usage: basecount [flags] sequence...")
		}
		ctx := context.Background()
		for _, path := range args {
			res, err := sess.Run(ctx, bigseq.CountBases(), seqio.File(path))
			if err != nil {
				return fmt.Errorf("%s: %v", path, err)
			}
			fmt.Printf("%s\t%d", path, res.Len)
			for _, key := range bigseq.BaseKeys {
				fmt.Printf("\t%s:%d", key, res.Counts[key])
			}
			fmt.Println()
		}
		return nil
	})
}
