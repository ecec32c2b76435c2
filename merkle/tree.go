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

// Package merkle builds binary Merkle trees over ordered leaf hashes and
// produces/verifies inclusion proofs, entirely self-contained — proof
// verification never needs the tree or the originating store (spec §4.6,
// §9 "proofs are self-contained values").
package merkle

import "github.com/digstore/dig/hash"

// Side records which side of a combine a sibling hash sits on.
type Side bool

const (
	Left  Side = false
	Right Side = true
)

// Step is one hop of an inclusion proof: a sibling hash and which side it
// sits on relative to the node being proved at that level.
type Step struct {
	Sibling hash.Hash
	Side    Side
}

// Tree is a built binary Merkle tree retained level-by-level so proofs
// can be generated for any leaf index.
type Tree struct {
	levels [][]hash.Hash // levels[0] = leaves, levels[len-1] = {root}
}

// Build constructs a Tree over leaves by pairwise hashing with
// hash.Combine. A level with an odd node count promotes its last node
// unchanged to the next level rather than duplicating it (spec §4.6).
// The root of an empty leaf list is the zero hash.
func Build(leaves []hash.Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{levels: [][]hash.Hash{{}}}
	}

	level := make([]hash.Hash, len(leaves))
	copy(level, leaves)

	levels := [][]hash.Hash{level}
	for len(level) > 1 {
		next := make([]hash.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hash.Combine(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}
}

// Root returns the tree's root hash. An empty tree's root is the zero
// hash.
func (t *Tree) Root() hash.Hash {
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return hash.Hash{}
	}
	return top[0]
}

// Root computes the Merkle root over leaves directly, for callers that
// don't need a reusable Tree for repeated proof generation.
func Root(leaves []hash.Hash) hash.Hash {
	return Build(leaves).Root()
}

// Proof generates the inclusion proof for the leaf at index, as the
// ordered sibling hashes and left/right bits from leaf to root.
func (t *Tree) Proof(index int) ([]Step, error) {
	leaves := t.levels[0]
	if index < 0 || index >= len(leaves) {
		return nil, errIndexRange(index, len(leaves))
	}

	var steps []Step
	idx := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		if idx%2 == 0 {
			if idx+1 < len(nodes) {
				steps = append(steps, Step{Sibling: nodes[idx+1], Side: Right})
			}
			// odd-node promotion: no sibling to combine with at this level
		} else {
			steps = append(steps, Step{Sibling: nodes[idx-1], Side: Left})
		}
		idx = idx / 2
	}
	return steps, nil
}

// Verify recomputes the root from leaf, following path, and reports
// whether it equals root.
func Verify(root, leaf hash.Hash, path []Step) bool {
	cur := leaf
	for _, step := range path {
		if step.Side == Right {
			cur = hash.Combine(cur, step.Sibling)
		} else {
			cur = hash.Combine(step.Sibling, cur)
		}
	}
	return cur == root
}
