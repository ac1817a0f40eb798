// Copyright 2025 AUTHORS
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

package store

import (
	"errors"
	"fmt"
)

// Kind discriminates the single Error family the store ever returns.
type Kind int

const (
	// KindNotFound is returned when a lookup by id or natural key finds
	// nothing.
	KindNotFound Kind = iota
	// KindAmbiguousMatch names an internal lookup-by-id that matches more
	// than one row. Lookups by id read a single row (ids are primary keys or
	// unique), so no store operation returns this Kind.
	KindAmbiguousMatch
	// KindInvalidInput is returned when a caller-supplied payload is
	// malformed (missing required field, duplicate attachment key, ...).
	KindInvalidInput
	// KindConflict names a primary-key collision. The raw-add paths detect
	// such collisions directly (isConflict) and treat them as a no-op, so no
	// store operation returns this Kind.
	KindConflict
	// KindResourceIO is returned when the local filesystem doesn't hold up
	// its end of a resource transfer (missing source file, missing
	// destination directory, ...).
	KindResourceIO
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAmbiguousMatch:
		return "AmbiguousMatch"
	case KindInvalidInput:
		return "InvalidInput"
	case KindConflict:
		return "Conflict"
	case KindResourceIO:
		return "ResourceIO"
	default:
		return "Unknown"
	}
}

// Error is the single error type produced by the store. Discriminate on Kind
// rather than matching strings.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func notFoundf(format string, args ...any) error {
	return newErr(KindNotFound, nil, format, args...)
}

func ambiguousf(format string, args ...any) error {
	return newErr(KindAmbiguousMatch, nil, format, args...)
}

func invalidInputf(format string, args ...any) error {
	return newErr(KindInvalidInput, nil, format, args...)
}

func conflictf(format string, args ...any) error {
	return newErr(KindConflict, nil, format, args...)
}

func resourceIOf(err error, format string, args ...any) error {
	return newErr(KindResourceIO, err, format, args...)
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// IsNotFound reports whether err represents a NotFound condition.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
