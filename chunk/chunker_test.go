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

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int, seed int64) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	_, err := r.Read(b)
	require.NoError(t, err)
	return b
}

func TestChunkReconstruction(t *testing.T) {
	c, err := New(SmallFiles())
	require.NoError(t, err)

	sizes := []int{0, 1, 100, 10_000, 500_000}
	for _, n := range sizes {
		t.Run("", func(t *testing.T) {
			data := randomBytes(t, n, int64(n))
			chunks := c.Chunk(data)

			if n == 0 {
				assert.Empty(t, chunks)
				return
			}

			assert.Equal(t, data, Reassemble(chunks))
			assert.True(t, Verify(data, chunks))
		})
	}
}

func TestChunkDeterminism(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	data := randomBytes(t, 3_000_000, 42)
	a := c.Chunk(data)
	b := c.Chunk(data)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Hash, b[i].Hash)
		assert.Equal(t, a[i].Offset, b[i].Offset)
		assert.Equal(t, a[i].Size, b[i].Size)
	}
}

func TestChunkBoundaryStability(t *testing.T) {
	c, err := New(SmallFiles())
	require.NoError(t, err)

	data := randomBytes(t, 200_000, 7)
	modified := make([]byte, len(data))
	copy(modified, data)
	modified[len(modified)/2] ^= 0xFF

	orig := c.Chunk(data)
	mod := c.Chunk(modified)

	origHashes := make(map[string]bool, len(orig))
	for _, ch := range orig {
		origHashes[ch.Hash.String()] = true
	}

	unaffected := 0
	for _, ch := range mod {
		if origHashes[ch.Hash.String()] {
			unaffected++
		}
	}
	// A single-byte change must not invalidate every chunk; most of the
	// file, away from the edit, should still produce identical chunks.
	assert.Greater(t, unaffected, 0)
	assert.Less(t, unaffected, len(mod))
}

func TestChunkOffsetsContiguous(t *testing.T) {
	c, err := New(SmallFiles())
	require.NoError(t, err)

	data := randomBytes(t, 100_000, 99)
	chunks := c.Chunk(data)

	var total uint64
	for _, ch := range chunks {
		assert.Equal(t, total, ch.Offset)
		total += ch.Size
	}
	assert.Equal(t, uint64(len(data)), total)
}

func TestChunkRespectsMinMax(t *testing.T) {
	cfg := Config{MinSize: 1024, AvgSize: 4096, MaxSize: 8192}
	c, err := New(cfg)
	require.NoError(t, err)

	data := randomBytes(t, 2_000_000, 5)
	chunks := c.Chunk(data)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.Size, uint64(cfg.MaxSize))
		if i != len(chunks)-1 {
			assert.GreaterOrEqual(t, ch.Size, uint64(cfg.MinSize))
		}
	}
}

func TestChunkInvalidConfig(t *testing.T) {
	_, err := New(Config{MinSize: 100, AvgSize: 50, MaxSize: 200})
	require.Error(t, err)

	_, err = New(Config{MinSize: 0, AvgSize: 0, MaxSize: 0})
	require.Error(t, err)
}

func TestChunkFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	data := randomBytes(t, 50_000, 3)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := New(SmallFiles())
	require.NoError(t, err)

	chunks, err := c.ChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, Reassemble(chunks))
}

func TestChunkFileMissing(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	_, err = c.ChunkFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestDeduplicationAcrossFiles(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	shared := randomBytes(t, 2<<20, 11)
	tailA := randomBytes(t, 64_000, 21)
	tailB := randomBytes(t, 64_000, 22)

	fileA := append(append([]byte{}, shared...), tailA...)
	fileB := append(append([]byte{}, shared...), tailB...)

	chunksA := c.Chunk(fileA)
	chunksB := c.Chunk(fileB)

	seen := make(map[string]bool, len(chunksA))
	for _, ch := range chunksA {
		seen[ch.Hash.String()] = true
	}

	shared_found := false
	for _, ch := range chunksB {
		if seen[ch.Hash.String()] {
			shared_found = true
			break
		}
	}
	assert.True(t, shared_found, "expected at least one shared chunk across files with a common prefix")
}

func TestChunkFilesParallel(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 8; i++ {
		p := filepath.Join(dir, "f")
		p = p + string(rune('a'+i))
		require.NoError(t, os.WriteFile(p, randomBytes(t, 20_000, int64(i)), 0o644))
		paths = append(paths, p)
	}

	c, err := New(SmallFiles())
	require.NoError(t, err)

	results, err := c.ChunkFiles(paths)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		assert.NotEmpty(t, r.Chunks)
	}
}
