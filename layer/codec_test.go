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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/hash"
)

func buildSampleLayer(t *testing.T) Layer {
	t.Helper()

	data := []byte("hello, digstore! this is file content used for a round trip test.")
	chunker, err := chunk.New(chunk.SmallFiles())
	require.NoError(t, err)
	chunks := chunker.Chunk(data)

	var refs []chunk.Ref
	for _, ch := range chunks {
		refs = append(refs, ch.Ref())
	}

	entry := FileEntry{
		Path:        "hello.txt",
		ContentHash: hash.Of(data),
		Size:        uint64(len(data)),
		Chunks:      refs,
		Metadata:    FileMetadata{Mode: 0o644, ModifiedTime: 1700000000, Flags: 0},
	}
	require.NoError(t, entry.Validate())

	return New([]FileEntry{entry}, chunks, hash.Hash{}, 1, 1700000000, "initial commit")
}

func TestLayerRoundTrip(t *testing.T) {
	l := buildSampleLayer(t)

	encoded := Encode(l)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, l.Header.Generation, decoded.Header.Generation)
	assert.Equal(t, l.Header.Parent, decoded.Header.Parent)
	assert.Equal(t, l.Header.Timestamp, decoded.Header.Timestamp)
	assert.Equal(t, l.MerkleRoot, decoded.MerkleRoot)
	assert.Equal(t, l.Metadata, decoded.Metadata)
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, l.Files[0].Path, decoded.Files[0].Path)
	assert.Equal(t, l.Files[0].ContentHash, decoded.Files[0].ContentHash)
	assert.Equal(t, l.Files[0].Size, decoded.Files[0].Size)

	require.NoError(t, Verify(decoded))
}

func TestLayerHashDeterministic(t *testing.T) {
	l1 := buildSampleLayer(t)
	l2 := buildSampleLayer(t)
	assert.Equal(t, l1.Hash(), l2.Hash())
}

func TestDecodeBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize+16)
	copy(buf, []byte("NOPE"))
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	l := buildSampleLayer(t)
	encoded := Encode(l)
	_, err := Decode(encoded[:len(encoded)-10])
	require.Error(t, err)
}

func TestDecodeCorruptChunkHash(t *testing.T) {
	chunks := []chunk.Chunk{{Hash: hash.Of([]byte("abc")), Offset: 0, Size: 3, Data: []byte("abc")}}
	blob := encodeChunks(chunks)

	// Flip a byte inside the chunk's data region so its recorded hash no
	// longer matches its bytes.
	blob[len(blob)-1] ^= 0xFF

	_, err := decodeChunks(blob)
	require.Error(t, err)
}

func TestFileEntryValidateRejectsGap(t *testing.T) {
	e := FileEntry{
		Path: "x",
		Size: 10,
		Chunks: []chunk.Ref{
			{Hash: hash.Of([]byte("a")), Offset: 0, Size: 4},
			{Hash: hash.Of([]byte("b")), Offset: 5, Size: 5}, // gap: should be offset 4
		},
	}
	require.Error(t, e.Validate())
}

func TestDecodeRejectsDeltaLayer(t *testing.T) {
	l := buildSampleLayer(t)
	l.Header.Type = TypeDelta
	encoded := Encode(l)
	_, err := Decode(encoded)
	require.Error(t, err)
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Version:     FormatVersion,
		Type:        TypeFull,
		Flags:       0x1,
		Generation:  42,
		Parent:      hash.Of([]byte("parent")),
		Timestamp:   123456789,
		FilesCount:  3,
		ChunksCount: 7,
		MerkleRoot:  hash.Of([]byte("root")),
	}
	buf := EncodeHeader(h)
	assert.Len(t, buf, HeaderSize)

	decoded, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
	assert.True(t, decoded.Valid())
}
