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
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
	"github.com/digstore/dig/layer"
)

// entryFromChunks builds a staged FileEntry from a path's content-defined
// chunks plus its filesystem metadata, and records each chunk's bytes in
// the store's pending pool (keyed by hash, so identical chunks across
// many files are only held once) for the next commit to draw on.
func (s *Store) entryFromChunks(logicalPath string, chunks []chunk.Chunk, info os.FileInfo) layer.FileEntry {
	refs := make([]chunk.Ref, len(chunks))
	var size uint64
	for i, c := range chunks {
		refs[i] = c.Ref()
		size += c.Size
		s.pendingChunks[c.Hash] = c
	}

	content := hash.Of(chunk.Reassemble(chunks))

	return layer.FileEntry{
		Path:        logicalPath,
		ContentHash: content,
		Size:        size,
		Chunks:      refs,
		Metadata: layer.FileMetadata{
			Mode:         uint32(info.Mode().Perm()),
			ModifiedTime: info.ModTime().Unix(),
		},
	}
}

func (s *Store) buildEntry(path, logicalPath string) (layer.FileEntry, error) {
	chunks, err := s.chunker.ChunkFile(path)
	if err != nil {
		return layer.FileEntry{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return layer.FileEntry{}, digerr.Wrap(digerr.KindIo, err, "store: stat %s", path)
	}
	return s.entryFromChunks(logicalPath, chunks, info), nil
}

// AddFile chunks the file at path and stages a FileEntry for it, keyed
// by path's forward-slash form relative to the store's project root.
func (s *Store) AddFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logicalPath, err := s.logicalPathFor(path)
	if err != nil {
		return err
	}

	entry, err := s.buildEntry(path, logicalPath)
	if err != nil {
		return err
	}

	if err := s.staging.StageFile(entry); err != nil {
		return err
	}

	s.log.Debug("store: staged file", zap.String("path", logicalPath), zap.Uint64("size", entry.Size))
	return nil
}

// AddFilesBatch chunks every path in paths concurrently (spec §5), then
// stages the resulting FileEntry records one at a time through the
// staging log's single owning handle.
func (s *Store) AddFilesBatch(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.chunker.ChunkFiles(paths)
	if err != nil {
		return err
	}

	for _, r := range results {
		logicalPath, err := s.logicalPathFor(r.Path)
		if err != nil {
			return err
		}
		info, err := os.Stat(r.Path)
		if err != nil {
			return digerr.Wrap(digerr.KindIo, err, "store: stat %s", r.Path)
		}
		entry := s.entryFromChunks(logicalPath, r.Chunks, info)
		if err := s.staging.StageFile(entry); err != nil {
			return err
		}
	}
	return nil
}

// AddDirectory stages every regular file under path. When recursive is
// false only the directory's immediate children are staged. A
// `.layerstore` project pointer file is never staged.
func (s *Store) AddDirectory(path string, recursive bool) error {
	var paths []string

	if recursive {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && info.Name() != pointerFileName {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return digerr.Wrap(digerr.KindIo, err, "store: walk %s", path)
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return digerr.Wrap(digerr.KindIo, err, "store: read dir %s", path)
		}
		for _, e := range entries {
			if !e.IsDir() && e.Name() != pointerFileName {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
	}

	return s.AddFilesBatch(paths)
}

func (s *Store) logicalPathFor(path string) (string, error) {
	root := s.ProjectPath
	if root == "" {
		root = filepath.Dir(path)
	}
	return NormalizeAddPath(root, path)
}
