// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigseq

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
)

// StartCodon is the codon counted by CountStartCodons. It also
// encodes methionine.
const StartCodon = "AUG"

// A CodonTable maps RNA codons to amino acid codes. The code Stop marks
// a stop codon. Codons absent from the table are not translated. A
// CodonTable is immutable; it may be shared freely.
type CodonTable struct {
	codes map[string]int32
}

// NewCodonTable returns a table with the provided codon mappings.
// Every codon must be three symbols long and every code must be
// non-negative.
func NewCodonTable(codes map[string]int32) (*CodonTable, error) {
	t := &CodonTable{codes: make(map[string]int32, len(codes))}
	for codon, code := range codes {
		if len(codon) != 3 {
			return nil, invalidInput(fmt.Sprintf("codon table: codon %q is not 3 symbols", codon))
		}
		if code < 0 {
			return nil, invalidInput(fmt.Sprintf("codon table: codon %s has negative code %d", codon, code))
		}
		t.codes[codon] = code
	}
	return t, nil
}

// Lookup returns the amino acid code of the provided codon, and
// whether the codon is present in the table.
func (t *CodonTable) Lookup(codon []byte) (code int32, ok bool) {
	code, ok = t.codes[string(codon)]
	return
}

// Len returns the number of codons in the table.
func (t *CodonTable) Len() int { return len(t.codes) }

// Codons returns a copy of the table's mappings.
func (t *CodonTable) Codons() map[string]int32 {
	codes := make(map[string]int32, len(t.codes))
	for codon, code := range t.codes {
		codes[codon] = code
	}
	return codes
}

func (t *CodonTable) String() string {
	codons := make([]string, 0, len(t.codes))
	for codon := range t.codes {
		codons = append(codons, codon)
	}
	sort.Strings(codons)
	var b bytes.Buffer
	for i, codon := range codons {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%d", codon, t.codes[codon])
	}
	return b.String()
}

// GobEncode implements a custom gob encoder for codon tables, so that
// they may be shipped to remote workers.
func (t *CodonTable) GobEncode() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(t.codes)
	return b.Bytes(), err
}

// GobDecode implements a custom gob decoder for codon tables.
func (t *CodonTable) GobDecode(p []byte) error {
	var codes map[string]int32
	if err := gob.NewDecoder(bytes.NewReader(p)).Decode(&codes); err != nil {
		return err
	}
	u, err := NewCodonTable(codes)
	if err != nil {
		return err
	}
	*t = *u
	return nil
}

// Amino acid codes of the standard table.
const (
	Proline    int32 = 1
	Serine     int32 = 2
	Glutamine  int32 = 3
	Threonine  int32 = 4
	Methionine int32 = 5
	Cysteine   int32 = 6
	Valine     int32 = 7
)

var aminoAcidNames = map[int32]string{
	Stop:       "Stop",
	Proline:    "Proline",
	Serine:     "Serine",
	Glutamine:  "Glutamine",
	Threonine:  "Threonine",
	Methionine: "Methionine",
	Cysteine:   "Cysteine",
	Valine:     "Valine",
}

// AminoAcidName returns the name of an amino acid code of the standard
// table.
func AminoAcidName(code int32) string {
	if name, ok := aminoAcidNames[code]; ok {
		return name
	}
	return fmt.Sprintf("AminoAcid(%d)", code)
}

var standardCodons = &CodonTable{codes: map[string]int32{
	"CCA": Proline, "CCG": Proline, "CCU": Proline, "CCC": Proline,
	"UCU": Serine, "UCA": Serine, "UCG": Serine, "UCC": Serine,
	"CAG": Glutamine, "CAA": Glutamine,
	"ACA": Threonine, "ACC": Threonine, "ACU": Threonine, "ACG": Threonine,
	"AUG": Methionine,
	"UGA": Stop, "UAA": Stop, "UAG": Stop,
	"UGC": Cysteine, "UGU": Cysteine,
	"GUG": Valine, "GUA": Valine, "GUC": Valine, "GUU": Valine,
}}

// StandardCodons returns the default codon table used by Translate.
func StandardCodons() *CodonTable { return standardCodons }
