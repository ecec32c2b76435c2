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

package layer

import (
	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

// FileMetadata carries the small set of filesystem attributes a layer
// remembers about a file, independent of its content.
type FileMetadata struct {
	Mode         uint32
	ModifiedTime int64
	Flags        uint32
}

// FileEntry records one committed file: its path, its content identity,
// and the ordered chunk references that reassemble it.
//
// Invariant: concatenating the bytes of Chunks in order reproduces
// exactly Size bytes whose hash equals ContentHash. Chunks' offsets are
// strictly increasing and non-overlapping, and the last chunk's
// offset+size == Size.
type FileEntry struct {
	Path        string
	ContentHash hash.Hash
	Size        uint64
	Chunks      []chunk.Ref
	Metadata    FileMetadata
}

// Validate checks the offset/size part of FileEntry's invariant: chunk
// offsets are contiguous from 0 and the chunk sizes sum to Size. It does
// not check ContentHash, since a FileEntry carries no chunk bytes.
func (e FileEntry) Validate() error {
	var total uint64
	for i, c := range e.Chunks {
		if c.Offset != total {
			return digerr.New(digerr.KindCorrupt, "file %q: chunk %d offset %d, want %d", e.Path, i, c.Offset, total)
		}
		total += c.Size
	}
	if total != e.Size {
		return digerr.New(digerr.KindCorrupt, "file %q: chunks sum to %d bytes, want %d", e.Path, total, e.Size)
	}
	return nil
}

// ChunkHashes returns the hashes of e's chunks, in file order.
func (e FileEntry) ChunkHashes() []hash.Hash {
	out := make([]hash.Hash, len(e.Chunks))
	for i, c := range e.Chunks {
		out[i] = c.Hash
	}
	return out
}

// Metadata carries the layer-wide commit metadata (spec §3 Layer).
type Metadata struct {
	Message   string
	FileCount int
	TotalSize uint64
}
