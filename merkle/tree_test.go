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

package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digstore/dig/hash"
)

func leavesOf(words ...string) []hash.Hash {
	out := make([]hash.Hash, len(words))
	for i, w := range words {
		out[i] = hash.Of([]byte(w))
	}
	return out
}

func TestRootEmptyIsZeroHash(t *testing.T) {
	assert.Equal(t, hash.Hash{}, Root(nil))
	assert.Equal(t, hash.Hash{}, Root([]hash.Hash{}))
}

func TestRootSingleLeafIsLeaf(t *testing.T) {
	leaves := leavesOf("only")
	assert.Equal(t, leaves[0], Root(leaves))
}

func TestRootDeterministic(t *testing.T) {
	leaves := leavesOf("a", "b", "c", "d", "e")
	assert.Equal(t, Root(leaves), Root(leaves))
}

func TestOddLevelPromotesLastNodeUnchanged(t *testing.T) {
	leaves := leavesOf("a", "b", "c")
	want := hash.Combine(hash.Combine(leaves[0], leaves[1]), leaves[2])
	assert.Equal(t, want, Root(leaves))
}

func TestProofVerifiesForEveryLeaf(t *testing.T) {
	leaves := leavesOf("a", "b", "c", "d", "e", "f", "g")
	tree := Build(leaves)
	root := tree.Root()

	for i, leaf := range leaves {
		path, err := tree.Proof(i)
		require.NoError(t, err)
		assert.True(t, Verify(root, leaf, path), "leaf %d should verify", i)
	}
}

func TestProofFailsOnTamperedSibling(t *testing.T) {
	leaves := leavesOf("a", "b", "c", "d")
	tree := Build(leaves)
	root := tree.Root()

	path, err := tree.Proof(0)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	path[0].Sibling[0] ^= 0xFF
	assert.False(t, Verify(root, leaves[0], path))
}

func TestProofFailsOnWrongLeaf(t *testing.T) {
	leaves := leavesOf("a", "b", "c", "d")
	tree := Build(leaves)
	root := tree.Root()

	path, err := tree.Proof(0)
	require.NoError(t, err)
	assert.False(t, Verify(root, hash.Of([]byte("not-a")), path))
}

func TestProofOutOfRangeErrors(t *testing.T) {
	tree := Build(leavesOf("a", "b"))
	_, err := tree.Proof(-1)
	require.Error(t, err)
	_, err = tree.Proof(2)
	require.Error(t, err)
}
