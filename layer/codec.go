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
	"encoding/binary"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
	"github.com/digstore/dig/internal/dassert"
	"github.com/digstore/dig/merkle"
)

// Layer is a versioned, immutable snapshot unit: a header, the files it
// committed, the chunks those files reference, layer-wide metadata, and
// the Merkle root over file content hashes.
type Layer struct {
	Header     Header
	Files      []FileEntry
	Chunks     []chunk.Chunk
	Metadata   Metadata
	MerkleRoot hash.Hash
}

// Hash returns the layer's identity: H(full encoded bytes). This value is
// also the commit identifier and the archive index key (spec §4.2).
func (l Layer) Hash() hash.Hash {
	encoded := Encode(l)
	dassert.PanicIfTrue(len(encoded) < HeaderSize)
	return hash.Of(encoded)
}

func putUvarint(buf []byte, v uint64) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, v)
	return append(buf, tmp[:n]...)
}

func putString(buf []byte, s string) []byte {
	buf = putUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// Encode serializes l deterministically: header, length-prefixed files
// index, length-prefixed chunks blob, the merkle section, then the
// layer metadata (message, file count, total size). Header's
// FilesCount/ChunksCount/MerkleRoot are derived from Files/Chunks/
// MerkleRoot, not taken as given, so Encode always produces a
// self-consistent layer.
func Encode(l Layer) []byte {
	h := l.Header
	h.FilesCount = uint32(len(l.Files))
	h.ChunksCount = uint32(len(l.Chunks))
	h.MerkleRoot = l.MerkleRoot

	out := make([]byte, 0, HeaderSize+4096)
	out = append(out, EncodeHeader(h)...)

	filesIdx := encodeFiles(l.Files)
	out = putBytes(out, filesIdx)

	chunksBlob := encodeChunks(l.Chunks)
	out = putBytes(out, chunksBlob)

	out = append(out, l.MerkleRoot[:]...)

	out = putString(out, l.Metadata.Message)
	out = putUvarint(out, uint64(l.Metadata.FileCount))
	out = putUvarint(out, l.Metadata.TotalSize)

	return out
}

func encodeFiles(files []FileEntry) []byte {
	var buf []byte
	buf = putUvarint(buf, uint64(len(files)))
	for _, f := range files {
		buf = appendFileEntry(buf, f)
	}
	return buf
}

func appendFileEntry(buf []byte, f FileEntry) []byte {
	buf = putString(buf, f.Path)
	buf = append(buf, f.ContentHash[:]...)
	buf = putUvarint(buf, f.Size)
	buf = putUvarint(buf, uint64(len(f.Chunks)))
	for _, c := range f.Chunks {
		buf = append(buf, c.Hash[:]...)
		buf = putUvarint(buf, c.Offset)
		buf = putUvarint(buf, c.Size)
	}
	buf = putUvarint(buf, uint64(f.Metadata.Mode))
	tmp := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp, uint64(f.Metadata.ModifiedTime))
	buf = append(buf, tmp...)
	buf = putUvarint(buf, uint64(f.Metadata.Flags))
	return buf
}

// EncodeFileEntry serializes a single FileEntry using the same layout
// as the layer files index, for callers (the staging log) that persist
// one record at a time rather than a whole layer's file set.
func EncodeFileEntry(f FileEntry) []byte {
	return appendFileEntry(nil, f)
}

// DecodeFileEntry is the exact inverse of EncodeFileEntry.
func DecodeFileEntry(buf []byte) (FileEntry, error) {
	r := &reader{buf: buf}
	return decodeFileEntry(r)
}

func encodeChunks(chunks []chunk.Chunk) []byte {
	var buf []byte
	buf = putUvarint(buf, uint64(len(chunks)))
	for _, c := range chunks {
		buf = append(buf, c.Hash[:]...)
		buf = putUvarint(buf, c.Offset)
		buf = putBytes(buf, c.Data)
	}
	return buf
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, digerr.New(digerr.KindTruncated, "layer: truncated varint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *reader) bytes(n uint64) ([]byte, error) {
	if uint64(len(r.buf)-r.off) < n {
		return nil, digerr.New(digerr.KindTruncated, "layer: need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *reader) string(n uint64) (string, error) {
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	return r.bytes(n)
}

// Decode is the exact inverse of Encode.
func Decode(buf []byte) (Layer, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Layer{}, err
	}
	if h.Type == TypeDelta {
		return Layer{}, digerr.New(digerr.KindUnsupportedVersion, "layer: delta layers are not supported by this core")
	}

	r := &reader{buf: buf, off: HeaderSize}

	filesIdx, err := r.lenPrefixed()
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindTruncated, err, "layer: files index")
	}
	files, err := decodeFiles(filesIdx)
	if err != nil {
		return Layer{}, err
	}

	chunksBlob, err := r.lenPrefixed()
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindTruncated, err, "layer: chunks blob")
	}
	chunks, err := decodeChunks(chunksBlob)
	if err != nil {
		return Layer{}, err
	}

	rootBytes, err := r.bytes(hash.ByteLen)
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindTruncated, err, "layer: merkle section")
	}
	root, err := hash.FromBytes(rootBytes)
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindCorrupt, err, "layer: merkle root")
	}

	if uint32(len(files)) != h.FilesCount {
		return Layer{}, digerr.New(digerr.KindCountMismatch, "layer: header says %d files, decoded %d", h.FilesCount, len(files))
	}
	if uint32(len(chunks)) != h.ChunksCount {
		return Layer{}, digerr.New(digerr.KindCountMismatch, "layer: header says %d chunks, decoded %d", h.ChunksCount, len(chunks))
	}
	if root != h.MerkleRoot {
		return Layer{}, digerr.New(digerr.KindCorrupt, "layer: merkle section root disagrees with header root")
	}

	msgLen, err := r.uvarint()
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindTruncated, err, "layer: metadata message")
	}
	message, err := r.string(msgLen)
	if err != nil {
		return Layer{}, err
	}
	fileCount, err := r.uvarint()
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindTruncated, err, "layer: metadata file count")
	}
	totalSize, err := r.uvarint()
	if err != nil {
		return Layer{}, digerr.Wrap(digerr.KindTruncated, err, "layer: metadata total size")
	}

	return Layer{
		Header:     h,
		Files:      files,
		Chunks:     chunks,
		MerkleRoot: root,
		Metadata: Metadata{
			Message:   message,
			FileCount: int(fileCount),
			TotalSize: totalSize,
		},
	}, nil
}

func decodeFiles(buf []byte) ([]FileEntry, error) {
	r := &reader{buf: buf}
	count, err := r.uvarint()
	if err != nil {
		return nil, err
	}

	files := make([]FileEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		entry, err := decodeFileEntry(r)
		if err != nil {
			return nil, err
		}
		files = append(files, entry)
	}
	return files, nil
}

func decodeFileEntry(r *reader) (FileEntry, error) {
	pathLen, err := r.uvarint()
	if err != nil {
		return FileEntry{}, err
	}
	path, err := r.string(pathLen)
	if err != nil {
		return FileEntry{}, err
	}
	contentHashBytes, err := r.bytes(hash.ByteLen)
	if err != nil {
		return FileEntry{}, err
	}
	contentHash, err := hash.FromBytes(contentHashBytes)
	if err != nil {
		return FileEntry{}, digerr.Wrap(digerr.KindCorrupt, err, "layer: file %q content hash", path)
	}
	size, err := r.uvarint()
	if err != nil {
		return FileEntry{}, err
	}
	chunkCount, err := r.uvarint()
	if err != nil {
		return FileEntry{}, err
	}
	refs := make([]chunk.Ref, 0, chunkCount)
	for j := uint64(0); j < chunkCount; j++ {
		chHashBytes, err := r.bytes(hash.ByteLen)
		if err != nil {
			return FileEntry{}, err
		}
		chHash, err := hash.FromBytes(chHashBytes)
		if err != nil {
			return FileEntry{}, digerr.Wrap(digerr.KindCorrupt, err, "layer: file %q chunk %d hash", path, j)
		}
		offset, err := r.uvarint()
		if err != nil {
			return FileEntry{}, err
		}
		size, err := r.uvarint()
		if err != nil {
			return FileEntry{}, err
		}
		refs = append(refs, chunk.Ref{Hash: chHash, Offset: offset, Size: size})
	}
	mode, err := r.uvarint()
	if err != nil {
		return FileEntry{}, err
	}
	mtimeBytes, err := r.bytes(8)
	if err != nil {
		return FileEntry{}, err
	}
	mtime := int64(binary.LittleEndian.Uint64(mtimeBytes))
	flags, err := r.uvarint()
	if err != nil {
		return FileEntry{}, err
	}

	entry := FileEntry{
		Path:        path,
		ContentHash: contentHash,
		Size:        size,
		Chunks:      refs,
		Metadata: FileMetadata{
			Mode:         uint32(mode),
			ModifiedTime: mtime,
			Flags:        uint32(flags),
		},
	}
	if err := entry.Validate(); err != nil {
		return FileEntry{}, err
	}
	return entry, nil
}

func decodeChunks(buf []byte) ([]chunk.Chunk, error) {
	r := &reader{buf: buf}
	count, err := r.uvarint()
	if err != nil {
		return nil, err
	}

	chunks := make([]chunk.Chunk, 0, count)
	for i := uint64(0); i < count; i++ {
		hashBytes, err := r.bytes(hash.ByteLen)
		if err != nil {
			return nil, err
		}
		h, err := hash.FromBytes(hashBytes)
		if err != nil {
			return nil, digerr.Wrap(digerr.KindCorrupt, err, "layer: chunk %d hash", i)
		}
		offset, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		data, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		dataCopy := make([]byte, len(data))
		copy(dataCopy, data)

		if hash.Of(dataCopy) != h {
			return nil, digerr.New(digerr.KindCorrupt, "layer: chunk %d hash mismatch", i)
		}

		chunks = append(chunks, chunk.Chunk{Hash: h, Offset: offset, Size: uint64(len(dataCopy)), Data: dataCopy})
	}
	return chunks, nil
}

// New builds a Layer from files and chunks, computing its Merkle root
// over file content hashes and stamping the header with generation,
// parent and timestamp.
func New(files []FileEntry, chunks []chunk.Chunk, parent hash.Hash, generation uint64, timestamp int64, message string) Layer {
	leaves := make([]hash.Hash, len(files))
	var totalSize uint64
	for i, f := range files {
		leaves[i] = f.ContentHash
		totalSize += f.Size
	}
	root := merkle.Root(leaves)

	return Layer{
		Header: Header{
			Version:    FormatVersion,
			Type:       TypeFull,
			Generation: generation,
			Parent:     parent,
			Timestamp:  timestamp,
		},
		Files:      files,
		Chunks:     chunks,
		MerkleRoot: root,
		Metadata: Metadata{
			Message:   message,
			FileCount: len(files),
			TotalSize: totalSize,
		},
	}
}

// Verify checks the decode-time invariants plus the full per-file
// re-validation (spec §4.2 verify contract): header validity, counts,
// every FileEntry's internal invariant, and the files-hash Merkle root
// against the header.
func Verify(l Layer) error {
	if !l.Header.Valid() {
		return digerr.New(digerr.KindUnsupportedVersion, "layer: invalid header")
	}
	if int(l.Header.FilesCount) != len(l.Files) {
		return digerr.New(digerr.KindCountMismatch, "layer: header says %d files, have %d", l.Header.FilesCount, len(l.Files))
	}
	if int(l.Header.ChunksCount) != len(l.Chunks) {
		return digerr.New(digerr.KindCountMismatch, "layer: header says %d chunks, have %d", l.Header.ChunksCount, len(l.Chunks))
	}
	for _, f := range l.Files {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	leaves := make([]hash.Hash, len(l.Files))
	for i, f := range l.Files {
		leaves[i] = f.ContentHash
	}
	if merkle.Root(leaves) != l.Header.MerkleRoot {
		return digerr.New(digerr.KindCorrupt, "layer: merkle root does not match file set")
	}

	return nil
}
