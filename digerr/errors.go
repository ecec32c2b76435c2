// Copyright 2024 Dolthub, Inc.
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

// Package digerr defines the error taxonomy shared by every digstore
// package: not-found, already-exists, validation, corruption, runtime and
// semantic errors all carry a Kind a caller can switch on, plus an
// optional wrapped cause.
package digerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error for callers that want to branch on failure
// category instead of parsing messages.
type Kind int

const (
	KindUnknown Kind = iota

	// not-found
	KindStoreNotFound
	KindFileNotFound
	KindLayerNotFound

	// already-exists
	KindStoreAlreadyExists

	// validation
	KindInvalidStoreId
	KindInvalidHash
	KindInvalidUrn
	KindInvalidRange
	KindInvalidConfig

	// corruption
	KindBadMagic
	KindUnsupportedVersion
	KindTruncated
	KindCountMismatch
	KindCorrupt

	// runtime
	KindIo
	KindBusy

	// semantic
	KindNothingStaged
	KindMissingResource
)

func (k Kind) String() string {
	switch k {
	case KindStoreNotFound:
		return "StoreNotFound"
	case KindFileNotFound:
		return "FileNotFound"
	case KindLayerNotFound:
		return "LayerNotFound"
	case KindStoreAlreadyExists:
		return "StoreAlreadyExists"
	case KindInvalidStoreId:
		return "InvalidStoreId"
	case KindInvalidHash:
		return "InvalidHash"
	case KindInvalidUrn:
		return "InvalidUrn"
	case KindInvalidRange:
		return "InvalidRange"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindBadMagic:
		return "BadMagic"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindTruncated:
		return "Truncated"
	case KindCountMismatch:
		return "CountMismatch"
	case KindCorrupt:
		return "Corrupt"
	case KindIo:
		return "Io"
	case KindBusy:
		return "Busy"
	case KindNothingStaged:
		return "NothingStaged"
	case KindMissingResource:
		return "MissingResource"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned at digstore package
// boundaries. It is always constructed via New or Wrap so Kind is never
// left as KindUnknown by accident.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Cause matches the github.com/pkg/errors idiom used throughout the
// teacher's error-wrapping call sites.
func (e *Error) Cause() error {
	if e.cause == nil {
		return e
	}
	return e.cause
}

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, attaching a stack trace to
// cause via github.com/pkg/errors for logging. The formatted message
// is carried once, in Message; cause keeps its own message so Error()
// does not print it twice.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or KindUnknown if err isn't a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
