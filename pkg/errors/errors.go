// Copyright 2021 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors holds the standardized error definitions for lock misuse
// and aborted lock acquisitions.
//
// A failed non-blocking or timed acquisition is not an error: it is reported
// as a false return value. Errors are reserved for the conditions below.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// IllegalState indicates that the caller requested a transition it is
	// not allowed to make from its current hold state, or released a lock
	// it does not hold. It is a bug in the caller.
	IllegalState Kind = iota + 1

	// Unsupported indicates an operation that no lock in this module
	// implements, such as condition variables.
	Unsupported

	// Interrupted indicates that a blocking acquisition was aborted by the
	// cancellation of its context.
	Interrupted
)

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	switch k {
	case IllegalState:
		return "illegal state"
	case Unsupported:
		return "unsupported operation"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a lock error of a given Kind with a descriptive message.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// Sentinels for use with errors.Is. Any *Error matches the sentinel of its
// Kind.
var (
	ErrIllegalState = New(IllegalState, "illegal lock state")
	ErrUnsupported  = New(Unsupported, "operation not supported")
	ErrInterrupted  = New(Interrupted, "lock acquisition interrupted")
)

// New creates a new *Error.
func New(kind Kind, message string) *Error {
	return &Error{
		kind:    kind,
		message: message,
	}
}

// Newf creates a new *Error with a formatted message.
func Newf(kind Kind, format string, v ...any) *Error {
	return New(kind, fmt.Sprintf(format, v...))
}

// Wrap creates a new *Error caused by err. The cause remains visible to
// errors.Is and errors.As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{
		kind:    kind,
		message: message,
		cause:   err,
	}
}

// Error implements error.Error.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Kind returns the Kind of e.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap returns the cause of e, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

// Is is errors.Is, re-exported so that callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so that callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.kind == k
}
