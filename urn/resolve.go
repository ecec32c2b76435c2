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

package urn

import (
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

// Store is the subset of *store.Store the resolver needs. Kept as an
// interface so urn doesn't import store directly, which would otherwise
// be the only cross-package edge running from a leaf package back into
// the engine that uses it.
type Store interface {
	GetFile(path string) ([]byte, error)
	GetFileAt(path string, root hash.Hash) ([]byte, error)
	CurrentRoot() (hash.Hash, bool)
}

// Resolve reads u's addressed bytes out of st: the root (explicit or
// latest), the resource path, and the byte range, in that order (spec
// §4.7).
func Resolve(u URN, st Store) ([]byte, error) {
	if !u.HasPath || u.ResourcePath == "" {
		return nil, digerr.New(digerr.KindMissingResource, "urn: %s: no resource path", u)
	}

	var (
		data []byte
		err  error
	)
	if u.HasRoot {
		data, err = st.GetFileAt(u.ResourcePath, u.RootHash)
	} else {
		if _, ok := st.CurrentRoot(); !ok {
			return nil, digerr.New(digerr.KindFileNotFound, "urn: %s: store has no commits", u)
		}
		data, err = st.GetFile(u.ResourcePath)
	}
	if err != nil {
		return nil, err
	}

	if !u.HasRange {
		return data, nil
	}
	return applyRange(data, u.Range)
}

func applyRange(data []byte, r ByteRange) ([]byte, error) {
	n := uint64(len(data))

	switch {
	case r.SuffixLen:
		if r.End > n {
			return data, nil
		}
		return data[n-r.End:], nil

	case r.OpenEnd:
		if r.Start >= n {
			return nil, digerr.New(digerr.KindInvalidRange, "urn: range start %d beyond file size %d", r.Start, n)
		}
		return data[r.Start:], nil

	default:
		if r.Start > r.End {
			return nil, digerr.New(digerr.KindInvalidRange, "urn: range start %d > end %d", r.Start, r.End)
		}
		if r.Start >= n {
			return nil, digerr.New(digerr.KindInvalidRange, "urn: range start %d beyond file size %d", r.Start, n)
		}
		end := r.End + 1
		if end > n {
			end = n
		}
		return data[r.Start:end], nil
	}
}
