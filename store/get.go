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
	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
	"github.com/digstore/dig/layer"
)

// LoadLayer decodes an arbitrary layer from the archive by hash.
func (s *Store) LoadLayer(h hash.Hash) (layer.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLayerLocked(h)
}

func (s *Store) loadLayerLocked(h hash.Hash) (layer.Layer, error) {
	buf, err := s.archive.GetLayerData(h)
	if err != nil {
		return layer.Layer{}, err
	}
	return layer.Decode(buf)
}

// GetFile reassembles path's bytes at the store's current root.
func (s *Store) GetFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRoot {
		return nil, digerr.New(digerr.KindLayerNotFound, "store: no commits yet")
	}
	return s.getFileAtLocked(path, s.currentRoot)
}

// GetFileAt reassembles path's bytes as committed at the given root.
func (s *Store) GetFileAt(path string, root hash.Hash) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getFileAtLocked(path, root)
}

func (s *Store) getFileAtLocked(path string, root hash.Hash) ([]byte, error) {
	l, err := s.loadLayerLocked(root)
	if err != nil {
		return nil, err
	}

	var entry *layer.FileEntry
	for i := range l.Files {
		if l.Files[i].Path == path {
			entry = &l.Files[i]
			break
		}
	}
	if entry == nil {
		return nil, digerr.New(digerr.KindFileNotFound, "store: %q not found at root %s", path, root)
	}

	byHash := make(map[hash.Hash]chunk.Chunk, len(l.Chunks))
	for _, c := range l.Chunks {
		byHash[c.Hash] = c
	}

	chunks := make([]chunk.Chunk, len(entry.Chunks))
	for i, ref := range entry.Chunks {
		c, ok := byHash[ref.Hash]
		if !ok {
			return nil, digerr.New(digerr.KindCorrupt, "store: layer %s missing chunk %s referenced by %q", root, ref.Hash, path)
		}
		chunks[i] = c
	}

	return chunk.Reassemble(chunks), nil
}
