// Copyright 2016 Attic Labs, Inc. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package dassert adapts the teacher's go/store/d assertion helpers.
// Unlike the teacher, which also used panics at API boundaries, these
// helpers are reserved for invariants that indicate a bug in this module
// itself (e.g. a decoded layer whose internal bookkeeping disagrees with
// itself after this package's own encode step) — never for anything a
// caller's input can trigger. Caller-triggerable failures always return a
// *digerr.Error instead.
package dassert

// PanicIfTrue panics if cond is true. Used to guard invariants this
// package establishes internally and must never violate.
func PanicIfTrue(cond bool) {
	if cond {
		panic("dassert: invariant violated")
	}
}

// PanicIfFalse panics if cond is false.
func PanicIfFalse(cond bool) {
	if !cond {
		panic("dassert: invariant violated")
	}
}

// PanicIfError panics if err is non-nil, annotating the panic with err.
// Reserved for errors that this package's own prior logic should have
// already made impossible (e.g. re-encoding a value this package just
// decoded).
func PanicIfError(err error) {
	if err != nil {
		panic(err)
	}
}
