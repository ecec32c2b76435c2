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

package proof

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/hash"
)

func sampleFileHashes() (hashes []hash.Hash, index int, content hash.Hash) {
	hashes = []hash.Hash{
		hash.Of([]byte("file a")),
		hash.Of([]byte("file b")),
		hash.Of([]byte("file c")),
	}
	return hashes, 1, hashes[1]
}

func TestFileProofRoundTrip(t *testing.T) {
	hashes, index, content := sampleFileHashes()
	storeId := hash.Of([]byte("store"))

	p, err := NewFileProof(hashes, index, "b.txt", content, storeId, 3, 1700000000)
	require.NoError(t, err)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Proof
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	ok, err := Verify(decoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileProofRejectsWrongRoot(t *testing.T) {
	hashes, index, content := sampleFileHashes()
	storeId := hash.Of([]byte("store"))

	p, err := NewFileProof(hashes, index, "b.txt", content, storeId, 3, 1700000000)
	require.NoError(t, err)

	p.Root = hash.Of([]byte("tampered")).String()

	ok, err := Verify(p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayerProofRoundTrip(t *testing.T) {
	layerHash := hash.Of([]byte("a layer"))
	storeId := hash.Of([]byte("store"))

	p, err := NewLayerProof(layerHash, storeId, 5, 1700000001)
	require.NoError(t, err)

	ok, err := Verify(p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestByteRangeProofRoundTrip(t *testing.T) {
	hashes, index, content := sampleFileHashes()
	storeId := hash.Of([]byte("store"))

	chunks := []chunk.Ref{
		{Hash: hash.Of([]byte("c0")), Offset: 0, Size: 10},
		{Hash: hash.Of([]byte("c1")), Offset: 10, Size: 10},
	}

	p, err := NewByteRangeProof(hashes, index, "b.txt", content, 5, 15, chunks, storeId, 3, 1700000000)
	require.NoError(t, err)

	ok, err := Verify(p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestByteRangeProofRejectsUncoveredRange(t *testing.T) {
	hashes, index, content := sampleFileHashes()
	storeId := hash.Of([]byte("store"))

	chunks := []chunk.Ref{
		{Hash: hash.Of([]byte("c0")), Offset: 0, Size: 10},
	}

	p, err := NewByteRangeProof(hashes, index, "b.txt", content, 5, 15, chunks, storeId, 3, 1700000000)
	require.NoError(t, err)

	ok, err := Verify(p)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestByteRangeProofRejectsNonContiguousChunks(t *testing.T) {
	hashes, index, content := sampleFileHashes()
	storeId := hash.Of([]byte("store"))

	chunks := []chunk.Ref{
		{Hash: hash.Of([]byte("c0")), Offset: 0, Size: 10},
		{Hash: hash.Of([]byte("c1")), Offset: 20, Size: 10}, // gap
	}

	p, err := NewByteRangeProof(hashes, index, "b.txt", content, 0, 25, chunks, storeId, 3, 1700000000)
	require.NoError(t, err)

	ok, err := Verify(p)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsUnknownProofType(t *testing.T) {
	p := Proof{Version: "1.0", ProofType: "bogus", Root: hash.Hash{}.String()}
	ok, err := Verify(p)
	require.Error(t, err)
	assert.False(t, ok)
}
