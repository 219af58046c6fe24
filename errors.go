// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigseq

import (
	"strings"

	"github.com/grailbio/base/errors"
)

// The error taxonomy of bigseq is expressed with the kinds of
// github.com/grailbio/base/errors, so that errors keep their meaning
// when they cross machine boundaries:
//
//	source unavailable       errors.NotExist
//	empty sequence           errors.Invalid, errors.Fatal ("empty sequence")
//	invalid input            errors.Invalid
//	collective mismatch      errors.Invalid, errors.Fatal
//	destination unavailable  errors.NotAllowed
//	corrupt replica          errors.Integrity

const emptySequenceMessage = "empty sequence"

// EmptySequence returns the error produced by every participant of a
// run whose sequence is empty.
func EmptySequence() error {
	return errors.E(errors.Invalid, errors.Fatal, emptySequenceMessage)
}

func invalidInput(msg string) error {
	return errors.E(errors.Invalid, msg)
}

// IsEmptySequence tells whether err, or an error it wraps, is an
// EmptySequence error.
func IsEmptySequence(err error) bool {
	return find(err, func(e *errors.Error) bool {
		if e.Message != "" {
			return e.Kind == errors.Invalid && e.Message == emptySequenceMessage
		}
		if e.Err == nil {
			return false
		}
		// Errors returned by remote machines carry their message in
		// the wrapped error, possibly flattened to text.
		text := e.Err.Error()
		return text == emptySequenceMessage || strings.HasSuffix(text, "\n\t"+emptySequenceMessage)
	})
}

// IsInvalidInput tells whether err, or an error it wraps, reports
// invalid input. Fatal errors of kind errors.Invalid, such as
// EmptySequence or a mismatch between the collectives of a group, do
// not report invalid input.
func IsInvalidInput(err error) bool {
	if IsEmptySequence(err) {
		return false
	}
	fatal := find(err, func(e *errors.Error) bool {
		return e.Kind == errors.Invalid && e.Severity == errors.Fatal
	})
	return !fatal && isKind(errors.Invalid, err)
}

// IsSourceUnavailable tells whether err, or an error it wraps, reports
// a sequence source that could not be read.
func IsSourceUnavailable(err error) bool {
	return isKind(errors.NotExist, err)
}

// IsDestinationUnavailable tells whether err, or an error it wraps,
// reports an output that could not be written.
func IsDestinationUnavailable(err error) bool {
	return isKind(errors.NotAllowed, err)
}

func isKind(kind errors.Kind, err error) bool {
	return find(err, func(e *errors.Error) bool { return e.Kind == kind })
}

// Find walks the chain of errors rooted at err. Remote errors arrive
// wrapped, so the kind of the outermost error is not sufficient.
func find(err error, pred func(*errors.Error) bool) bool {
	for err != nil {
		e := errors.Recover(err)
		if pred(e) {
			return true
		}
		if e.Err == nil || e.Err == err {
			return false
		}
		err = e.Err
	}
	return false
}
