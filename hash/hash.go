// Copyright 2019 Dolthub, Inc.
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

// Package hash implements the 256-bit content digest used throughout
// digstore: chunk identity, file content identity, layer identity and
// Merkle node identity are all the same primitive.
package hash

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// ByteLen is the number of bytes in a Hash.
const ByteLen = 32

// StringLen is the number of hex characters in a Hash's string form.
const StringLen = ByteLen * 2

// Hash is an opaque 256-bit content digest. The zero value is the all-zero
// hash, which addresses Layer 0 in an archive's index.
type Hash [ByteLen]byte

var emptyHash Hash

// Of returns the BLAKE3-256 digest of data.
func Of(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// New wraps a hasher that callers can Write to incrementally before calling
// Sum, for streaming hashing of large inputs (e.g. whole files).
func New() *Hasher {
	return &Hasher{h: blake3.New()}
}

// Hasher streams bytes into a BLAKE3-256 digest.
type Hasher struct {
	h *blake3.Hasher
}

func (s *Hasher) Write(p []byte) (int, error) { return s.h.Write(p) }

// Sum returns the digest of everything written so far.
func (s *Hasher) Sum() Hash {
	var out Hash
	copy(out[:], s.h.Sum(nil))
	return out
}

// Combine is the pairwise combiner H(a‖b) used by the Merkle tree and by
// any component that needs to derive one hash from two others.
func Combine(a, b Hash) Hash {
	buf := make([]byte, 0, ByteLen*2)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return Of(buf)
}

// IsEmpty reports whether h is the zero hash (the Layer 0 address).
func (h Hash) IsEmpty() bool {
	return h == emptyHash
}

// String renders h as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of h's underlying bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, ByteLen)
	copy(out, h[:])
	return out
}

// Less reports whether h sorts before other, byte-wise.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Compare returns -1, 0 or 1 as h is less than, equal to, or greater than
// other, matching bytes.Compare's contract.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// Parse decodes a hex string into a Hash, panicking if s isn't a
// well-formed hash. Reserved for call sites that already know s is valid
// (tests, constants); library boundaries should use ParseHash instead.
func Parse(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// MaybeParse decodes a hex string into a Hash, returning ok=false instead
// of an error on malformed input.
func MaybeParse(s string) (Hash, bool) {
	h, err := ParseHash(s)
	if err != nil {
		return emptyHash, false
	}
	return h, true
}

// ParseHash decodes a hex string into a Hash. It is the error-returning
// entry point public APIs (URN parsing, layer-0 JSON, the project
// pointer) should use.
func ParseHash(s string) (Hash, error) {
	if len(s) != StringLen {
		return emptyHash, fmt.Errorf("hash: %q has length %d, want %d", s, len(s), StringLen)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return emptyHash, fmt.Errorf("hash: %q is not valid hex: %w", s, err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// FromBytes copies b (which must be exactly ByteLen long) into a Hash.
func FromBytes(b []byte) (Hash, error) {
	if len(b) != ByteLen {
		return emptyHash, fmt.Errorf("hash: got %d bytes, want %d", len(b), ByteLen)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Set is a set of Hash values, matching the teacher's hash.HashSet
// convenience type.
type Set map[Hash]struct{}

func NewSet(hashes ...Hash) Set {
	s := make(Set, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

func (s Set) Has(h Hash) bool {
	_, ok := s[h]
	return ok
}

func (s Set) Insert(h Hash) {
	s[h] = struct{}{}
}
