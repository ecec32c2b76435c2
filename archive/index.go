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

package archive

import (
	"encoding/binary"

	"github.com/dolthub/gozstd"

	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

// indexEntry locates one layer's encoded bytes within the data region.
type indexEntry struct {
	Hash   hash.Hash
	Offset uint64
	Size   uint64
}

// encodeIndex serializes entries as a flat uvarint-count-prefixed table,
// then zstd-compresses it. The index is always appended fresh, never
// rewritten in place, so a half-written index blob can never corrupt a
// prior valid one (spec §4.3).
func encodeIndex(entries []indexEntry) []byte {
	raw := make([]byte, 0, 8+len(entries)*48)
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(entries)))
	raw = append(raw, countBuf[:n]...)

	for _, e := range entries {
		raw = append(raw, e.Hash.Bytes()...)
		var b [binary.MaxVarintLen64]byte
		n = binary.PutUvarint(b[:], e.Offset)
		raw = append(raw, b[:n]...)
		n = binary.PutUvarint(b[:], e.Size)
		raw = append(raw, b[:n]...)
	}

	return gozstd.Compress(nil, raw)
}

func decodeIndex(compressed []byte) ([]indexEntry, error) {
	if len(compressed) == 0 {
		return nil, nil
	}

	raw, err := gozstd.Decompress(nil, compressed)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindCorrupt, err, "archive: decompress index")
	}

	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, digerr.New(digerr.KindCorrupt, "archive: invalid index count prefix")
	}
	raw = raw[n:]

	entries := make([]indexEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(raw) < hash.ByteLen {
			return nil, digerr.New(digerr.KindTruncated, "archive: index entry %d truncated", i)
		}
		h, err := hash.FromBytes(raw[:hash.ByteLen])
		if err != nil {
			return nil, digerr.Wrap(digerr.KindCorrupt, err, "archive: index entry %d hash", i)
		}
		raw = raw[hash.ByteLen:]

		offset, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, digerr.New(digerr.KindCorrupt, "archive: index entry %d offset", i)
		}
		raw = raw[n:]

		size, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, digerr.New(digerr.KindCorrupt, "archive: index entry %d size", i)
		}
		raw = raw[n:]

		entries = append(entries, indexEntry{Hash: h, Offset: offset, Size: size})
	}

	return entries, nil
}
