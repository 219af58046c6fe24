// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigseq

import (
	"fmt"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
)

// Names of the ops in the catalog.
const (
	CountBasesOp       = "count"
	TranscribeOp       = "transcribe"
	CountStartCodonsOp = "startcodons"
	TranslateOp        = "translate"
)

// BaseKeys are the keys of CountBases results, in reduction order.
var BaseKeys = []string{"A", "C", "G", "T"}

// An Op is a transformation of a sequence. An op is defined by the
// alignment of the chunks it operates on, a local function that maps a
// single chunk to a partial result, and the shape of its results, which
// determines how partial results are merged.
type Op struct {
	// Name is the name under which the op is registered.
	Name string
	// Alignment is the granularity, in symbols, at which the sequence
	// may be split for this op.
	Alignment int
	// Shape is the shape of the op's results.
	Shape Shape
	// Keys is the stable order in which CountsShape results are
	// reduced. Every participant reduces the same keys.
	Keys []string
	// Codons is the codon table used by the op, if any.
	Codons *CodonTable
	// Map computes the partial result for a chunk. The chunk starts on
	// an alignment boundary; a trailing partial codon is ignored by
	// codon-level ops. Map must not retain the chunk.
	Map func(chunk []byte) Result
}

func (op *Op) String() string {
	return fmt.Sprintf("%s(alignment=%d, shape=%s)", op.Name, op.Alignment, op.Shape)
}

// Identity returns the op's result over an empty chunk.
func (op *Op) Identity() Result {
	if op.Shape != CountsShape {
		return Result{}
	}
	return Result{Counts: CountsOf(op.Keys, make([]int64, len(op.Keys)))}
}

// CountBases returns an op that tallies the bases A, C, G, and T.
// Other symbols are ignored.
func CountBases() *Op {
	return &Op{
		Name:      CountBasesOp,
		Alignment: 1,
		Shape:     CountsShape,
		Keys:      BaseKeys,
		Map:       countBases,
	}
}

func countBases(chunk []byte) Result {
	var n [256]int64
	for _, b := range chunk {
		n[b]++
	}
	return Result{Counts: Counts{"A": n['A'], "C": n['C'], "G": n['G'], "T": n['T']}}
}

// Transcribe returns an op that transcribes DNA to RNA, replacing each T
// with U. Other symbols are copied unchanged.
func Transcribe() *Op {
	return &Op{
		Name:      TranscribeOp,
		Alignment: 1,
		Shape:     BufferShape,
		Map:       transcribe,
	}
}

func transcribe(chunk []byte) Result {
	rna := make([]byte, len(chunk))
	for i, b := range chunk {
		if b == 'T' {
			b = 'U'
		}
		rna[i] = b
	}
	return Result{Buffer: rna}
}

// CountStartCodons returns an op that counts the non-overlapping codons
// equal to StartCodon, read in frame from the start of the sequence.
func CountStartCodons() *Op {
	return &Op{
		Name:      CountStartCodonsOp,
		Alignment: 3,
		Shape:     CountsShape,
		Keys:      []string{StartCodon},
		Map:       countStartCodons,
	}
}

func countStartCodons(chunk []byte) Result {
	var n int64
	for i := 0; i+3 <= len(chunk); i += 3 {
		if chunk[i] == 'A' && chunk[i+1] == 'U' && chunk[i+2] == 'G' {
			n++
		}
	}
	return Result{Counts: Counts{StartCodon: n}}
}

// Translate returns an op that translates RNA to amino acid codes using
// the provided codon table; the standard table is used if table is nil.
// Translation stops at the first stop codon. Codons absent from the
// table are skipped.
func Translate(table *CodonTable) *Op {
	if table == nil {
		table = StandardCodons()
	}
	return &Op{
		Name:      TranslateOp,
		Alignment: 3,
		Shape:     TokensShape,
		Codons:    table,
		Map: func(chunk []byte) Result {
			return translate(table, chunk)
		},
	}
}

// Translate emits tokens through the chunk's first stop codon, which is
// emitted as a Stop token.
func translate(table *CodonTable, chunk []byte) Result {
	var r Result
	for i := 0; i+3 <= len(chunk); i += 3 {
		code, ok := table.Lookup(chunk[i : i+3])
		if !ok {
			continue
		}
		r.Tokens = append(r.Tokens, code)
		if code == Stop {
			r.Stopped = true
			break
		}
	}
	return r
}

var (
	mu  sync.Mutex
	ops = map[string]func(*CodonTable) *Op{}
)

// Register registers an op constructor under the provided name, so that
// the op can be reconstructed by name in remote workers. The constructor
// is passed the codon table shipped with the run, which may be nil.
// Register panics if the name is already registered.
func Register(name string, makeOp func(*CodonTable) *Op) {
	mu.Lock()
	defer mu.Unlock()
	if ops[name] != nil {
		log.Panicf("bigseq.Register: op %s is already registered", name)
	}
	ops[name] = makeOp
}

// Lookup returns the op registered under name, constructed with the
// provided codon table.
func Lookup(name string, table *CodonTable) (*Op, error) {
	mu.Lock()
	makeOp := ops[name]
	mu.Unlock()
	if makeOp == nil {
		return nil, invalidInput(fmt.Sprintf("op %q is not registered", name))
	}
	return makeOp(table), nil
}

// Ops returns the names of all registered ops, sorted.
func Ops() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(CountBasesOp, func(*CodonTable) *Op { return CountBases() })
	Register(TranscribeOp, func(*CodonTable) *Op { return Transcribe() })
	Register(CountStartCodonsOp, func(*CodonTable) *Op { return CountStartCodons() })
	Register(TranslateOp, Translate)
}
