// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package bigseq implements distributed processing of a single large
	genomic sequence. A sequence is loaded once by a coordinator,
	replicated to a fixed group of ranks, divided among them along
	alignment boundaries, processed in parallel within each rank by a
	pool of threads, and finally combined back at the coordinator.

	Package bigseq defines the data model of this process: partition
	ranges (Partition), results and their shapes (Result, Shape), and
	the catalog of operations (Op) that can be run over a sequence:

		CountBases        tallies the bases A, C, G, and T
		Transcribe        transcribes DNA to RNA
		CountStartCodons  counts in-frame AUG codons
		Translate         translates RNA to amino acid codes

	Each op is defined by its alignment, a local function from a chunk
	of the sequence to a partial result, and its result shape, which
	determines how partial results are merged. The runtime, which
	implements the collectives used to distribute and aggregate work,
	lives in package github.com/grailbio/bigseq/exec. Ops run remotely
	are reconstructed by name; custom ops must be registered with
	Register before a session is started.

	Bigseq runs in-process, with ranks as goroutines, or on a cluster
	managed by bigmachine, with one machine per rank. In either case the
	results of an op are the same, regardless of the number of ranks or
	threads used to compute it.
*/
package bigseq
