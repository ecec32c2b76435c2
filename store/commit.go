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

package store

import (
	"time"

	"go.uber.org/zap"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
	"github.com/digstore/dig/layer"
)

// Commit atomically materializes every currently staged FileEntry into
// a new full layer, appends it to the archive, appends a new
// root-history entry to Layer 0, and clears staging.
//
// Ordering follows spec §4.5 exactly: (1) the archive/staging mmaps are
// dropped for the duration of the writes that follow, handled inside
// Archive.AddLayer/PutLayer0 and Staging.Clear; (2) the layer is
// serialized in memory before any write; (3) AddLayer appends the bytes
// and updates the archive's index; (4) PutLayer0 rewrites Layer 0 with
// the new root appended, without truncating the archive; (5) the
// archive remaps itself as part of that write; (6) staging is
// truncated to its header; (7) current_root is updated in memory last,
// so a crash between (3) and (4) leaves a layer that's readable by hash
// but not yet current, and a crash before (4) commits nothing.
func (s *Store) Commit(message string) (hash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.staging.AllStaged()
	if len(staged) == 0 {
		return hash.Hash{}, digerr.New(digerr.KindNothingStaged, "store: nothing staged")
	}

	chunks, err := s.collectPendingChunks(staged)
	if err != nil {
		return hash.Hash{}, err
	}

	generation := uint64(len(s.layer0.RootHistory)) + 1
	timestamp := time.Now().Unix()

	l := layer.New(staged, chunks, s.currentRoot, generation, timestamp, message)
	encoded := layer.Encode(l)
	layerHash := l.Hash()

	if err := s.archive.AddLayer(layerHash, encoded); err != nil {
		return hash.Hash{}, err
	}

	nextLayer0 := s.layer0.AppendRoot(layerHash, generation, timestamp)
	buf, err := EncodeLayer0(nextLayer0)
	if err != nil {
		return hash.Hash{}, err
	}
	if err := s.archive.PutLayer0(buf); err != nil {
		return hash.Hash{}, err
	}
	// Linearization point: the new root is now the store's current root.
	s.layer0 = nextLayer0

	if err := s.staging.Clear(); err != nil {
		return hash.Hash{}, err
	}

	s.currentRoot = layerHash
	s.hasRoot = true
	s.pendingChunks = map[hash.Hash]chunk.Chunk{}

	s.log.Debug("store: committed", zap.String("layer", layerHash.String()), zap.Uint64("generation", generation), zap.Int("files", len(staged)))
	return layerHash, nil
}

func (s *Store) collectPendingChunks(staged []layer.FileEntry) ([]chunk.Chunk, error) {
	seen := map[hash.Hash]bool{}
	var chunks []chunk.Chunk
	for _, entry := range staged {
		for _, ref := range entry.Chunks {
			if seen[ref.Hash] {
				continue
			}
			c, ok := s.pendingChunks[ref.Hash]
			if !ok {
				return nil, digerr.New(digerr.KindCorrupt, "store: chunk %s for %q is staged but not held in memory (re-add after reopening the store)", ref.Hash, entry.Path)
			}
			seen[ref.Hash] = true
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}
