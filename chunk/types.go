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

package chunk

import "github.com/digstore/dig/hash"

// Chunk is a content-defined slice of a file's bytes, named by the hash
// of those bytes. Offset records where the slice starts in the file it
// was cut from — it has no bearing on the chunk's identity, since the
// same bytes at a different offset (or in a different file) hash
// identically and are the same chunk.
type Chunk struct {
	Hash   hash.Hash
	Offset uint64
	Size   uint64
	Data   []byte
}

// Ref is a Chunk reference without the bytes, used wherever chunks are
// addressed by metadata (FileEntry.Chunks, staging records).
type Ref struct {
	Hash   hash.Hash
	Offset uint64
	Size   uint64
}

// Ref strips the data from a Chunk, leaving an addressable reference.
func (c Chunk) Ref() Ref {
	return Ref{Hash: c.Hash, Offset: c.Offset, Size: c.Size}
}
