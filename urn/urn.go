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

// Package urn parses and resolves digstore resource identifiers of the
// form urn:dig:chia:<store_id>[:<root_hash>][/<path>][#bytes=<range>]
// (spec §4.7), modeled on the teacher's address-parsing packages: a
// strict grammar, an error per malformed piece, and a String method that
// round-trips whatever Parse accepted.
package urn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

const (
	scheme    = "urn"
	namespace = "dig"
	method    = "chia"
)

// ByteRange is an inclusive [Start, End] span, with one bit reserved for
// each of the two open forms the grammar allows ("s-" and "-n").
type ByteRange struct {
	Start     uint64
	End       uint64
	OpenEnd   bool // "s-": from Start to end of file
	SuffixLen bool // "-n": End holds n, the suffix length from end of file
}

// URN is a fully parsed digstore identifier.
type URN struct {
	StoreId      hash.Hash
	RootHash     hash.Hash
	HasRoot      bool
	ResourcePath string
	HasPath      bool
	Range        ByteRange
	HasRange     bool
}

// Parse decodes s into a URN. It accepts only the exact grammar in spec
// §4.7 and fails with InvalidUrn on anything else.
func Parse(s string) (URN, error) {
	rest := s
	frag := ""
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		frag = rest[i+1:]
		rest = rest[:i]
	}

	path := ""
	hasPath := false
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		path = rest[i+1:]
		hasPath = true
		rest = rest[:i]
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 4 || len(parts) > 5 {
		return URN{}, digerr.New(digerr.KindInvalidUrn, "urn: %q: wrong number of colon-separated segments", s)
	}
	if parts[0] != scheme || parts[1] != namespace || parts[2] != method {
		return URN{}, digerr.New(digerr.KindInvalidUrn, "urn: %q: expected urn:dig:chia prefix", s)
	}

	storeId, err := hash.ParseHash(parts[3])
	if err != nil {
		return URN{}, digerr.Wrap(digerr.KindInvalidUrn, err, "urn: %q: bad store id", s)
	}

	u := URN{StoreId: storeId, ResourcePath: path, HasPath: hasPath}

	if len(parts) == 5 {
		root, err := hash.ParseHash(parts[4])
		if err != nil {
			return URN{}, digerr.Wrap(digerr.KindInvalidUrn, err, "urn: %q: bad root hash", s)
		}
		u.RootHash = root
		u.HasRoot = true
	}

	if frag != "" {
		rng, err := parseFragment(frag)
		if err != nil {
			return URN{}, digerr.Wrap(digerr.KindInvalidUrn, err, "urn: %q: bad fragment", s)
		}
		u.Range = rng
		u.HasRange = true
	}

	return u, nil
}

func parseFragment(frag string) (ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(frag, prefix) {
		return ByteRange{}, fmt.Errorf("fragment %q: expected %q prefix", frag, prefix)
	}
	spec := strings.TrimPrefix(frag, prefix)

	switch {
	case strings.HasPrefix(spec, "-"):
		n, err := strconv.ParseUint(spec[1:], 10, 64)
		if err != nil {
			return ByteRange{}, fmt.Errorf("fragment %q: bad suffix length: %w", frag, err)
		}
		return ByteRange{End: n, SuffixLen: true}, nil

	case strings.HasSuffix(spec, "-"):
		start, err := strconv.ParseUint(strings.TrimSuffix(spec, "-"), 10, 64)
		if err != nil {
			return ByteRange{}, fmt.Errorf("fragment %q: bad start: %w", frag, err)
		}
		return ByteRange{Start: start, OpenEnd: true}, nil

	default:
		i := strings.IndexByte(spec, '-')
		if i < 0 {
			return ByteRange{}, fmt.Errorf("fragment %q: expected start-end", frag)
		}
		start, err := strconv.ParseUint(spec[:i], 10, 64)
		if err != nil {
			return ByteRange{}, fmt.Errorf("fragment %q: bad start: %w", frag, err)
		}
		end, err := strconv.ParseUint(spec[i+1:], 10, 64)
		if err != nil {
			return ByteRange{}, fmt.Errorf("fragment %q: bad end: %w", frag, err)
		}
		return ByteRange{Start: start, End: end}, nil
	}
}

// String renders u back into its canonical URN form. Parse(u.String())
// reproduces u exactly (spec §4.7 round-trip guarantee).
func (u URN) String() string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteByte(':')
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(u.StoreId.String())
	if u.HasRoot {
		b.WriteByte(':')
		b.WriteString(u.RootHash.String())
	}
	if u.HasPath {
		b.WriteByte('/')
		b.WriteString(u.ResourcePath)
	}
	if u.HasRange {
		b.WriteString("#bytes=")
		switch {
		case u.Range.SuffixLen:
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(u.Range.End, 10))
		case u.Range.OpenEnd:
			b.WriteString(strconv.FormatUint(u.Range.Start, 10))
			b.WriteByte('-')
		default:
			b.WriteString(strconv.FormatUint(u.Range.Start, 10))
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(u.Range.End, 10))
		}
	}
	return b.String()
}
