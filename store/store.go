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

// Package store binds the chunk, layer, archive, staging and merkle
// packages into the digstore engine: init/open a store, stage adds,
// commit them into a new immutable layer, and read files back out at
// any historical root (spec §4.5).
package store

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/digstore/dig/archive"
	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
	"github.com/digstore/dig/staging"
)

// stateDirEnv overrides the per-user state directory; unset in normal
// operation, used by tests that don't want to touch a real home
// directory.
const stateDirEnv = "DIGSTORE_HOME"

// StateDir resolves the host-provided per-user state directory archives
// live under (spec §6), conventionally ~/.dig.
func StateDir() (string, error) {
	if dir := os.Getenv(stateDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", digerr.Wrap(digerr.KindIo, err, "store: resolve home directory")
	}
	return filepath.Join(home, ".dig"), nil
}

func archivePath(stateDir string, storeId hash.Hash) string {
	return filepath.Join(stateDir, storeId.String()+".dig")
}

// Store is a live handle on one digstore: its archive, its staging log,
// and the in-memory view of Layer 0's current root.
type Store struct {
	mu sync.Mutex

	StoreId     hash.Hash
	ProjectPath string // empty when opened via OpenByID
	GlobalPath  string

	archive     *archive.Archive
	staging     *staging.Staging
	layer0      Layer0
	currentRoot hash.Hash
	hasRoot     bool
	chunker     *chunk.Chunker

	// pendingChunks holds the bytes of every chunk produced by Add* since
	// the last commit, keyed by hash so identical chunks across files are
	// held once. The staging log itself records only chunk refs (hash,
	// offset, size), not bytes, so this in-process pool is what Commit
	// draws the new layer's Chunks list from.
	pendingChunks map[hash.Hash]chunk.Chunk

	log *zap.Logger
}

func stagingPath(globalPath string) string {
	return globalPath + ".staging"
}

func newStoreId() (hash.Hash, error) {
	var b [hash.ByteLen]byte
	if _, err := rand.Read(b[:]); err != nil {
		return hash.Hash{}, digerr.Wrap(digerr.KindIo, err, "store: generate store id")
	}
	return hash.FromBytes(b[:])
}

// Init creates a brand new store rooted at projectPath: a random store
// id, a fresh archive with an empty-history Layer 0, a fresh staging
// log, and the `.layerstore` project pointer. Fails with
// StoreAlreadyExists if projectPath is already bound.
func Init(projectPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := readPointer(projectPath); err == nil {
		return nil, digerr.New(digerr.KindStoreAlreadyExists, "store: %s is already bound to a store", projectPath)
	}

	storeId, err := newStoreId()
	if err != nil {
		return nil, err
	}

	stateDir, err := StateDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, digerr.Wrap(digerr.KindIo, err, "store: create state dir %s", stateDir)
	}

	globalPath := archivePath(stateDir, storeId)
	now := time.Now().Unix()

	a, err := archive.Create(globalPath, log)
	if err != nil {
		return nil, err
	}

	l0 := NewLayer0(storeId, now, chunk.Default())
	if err := writeLayer0(a, l0); err != nil {
		a.Close()
		return nil, err
	}

	st, err := staging.Init(stagingPath(globalPath))
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := writePointer(projectPath, storeId, filepath.Base(projectPath)); err != nil {
		st.Close()
		a.Close()
		return nil, err
	}

	chunker, err := chunk.New(l0.ChunkConfig())
	if err != nil {
		st.Close()
		a.Close()
		return nil, err
	}

	log.Debug("store: initialized", zap.String("store_id", storeId.String()), zap.String("project_path", projectPath))

	return &Store{
		StoreId:       storeId,
		ProjectPath:   projectPath,
		GlobalPath:    globalPath,
		archive:       a,
		staging:       st,
		layer0:        l0,
		chunker:       chunker,
		pendingChunks: map[hash.Hash]chunk.Chunk{},
		log:           log,
	}, nil
}

func writeLayer0(a *archive.Archive, l0 Layer0) error {
	buf, err := EncodeLayer0(l0)
	if err != nil {
		return err
	}
	return a.PutLayer0(buf)
}

func loadLayer0(a *archive.Archive) (Layer0, error) {
	buf := a.GetLayer0()
	if len(buf) == 0 {
		return Layer0{}, digerr.New(digerr.KindCorrupt, "store: archive has no layer 0")
	}
	return DecodeLayer0(buf)
}

// Open reads the `.layerstore` pointer at projectPath, opens the
// addressed archive and staging log, and restores current_root from
// Layer 0's root history.
func Open(projectPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	p, err := readPointer(projectPath)
	if err != nil {
		return nil, err
	}
	storeId, err := hash.ParseHash(p.StoreId)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindInvalidStoreId, err, "store: pointer at %s", projectPath)
	}

	s, err := openById(storeId, log)
	if err != nil {
		return nil, err
	}
	s.ProjectPath = projectPath
	return s, nil
}

// OpenByID opens a store directly by its id, without requiring a
// project pointer.
func OpenByID(storeId hash.Hash, log *zap.Logger) (*Store, error) {
	return openById(storeId, log)
}

func openById(storeId hash.Hash, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	stateDir, err := StateDir()
	if err != nil {
		return nil, err
	}
	globalPath := archivePath(stateDir, storeId)

	a, err := archive.Open(globalPath, log)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindStoreNotFound, err, "store: open archive for %s", storeId)
	}

	l0, err := loadLayer0(a)
	if err != nil {
		a.Close()
		return nil, err
	}

	st, err := staging.Open(stagingPath(globalPath))
	if err != nil {
		a.Close()
		return nil, err
	}

	root, hasRoot, err := l0.CurrentRoot()
	if err != nil {
		st.Close()
		a.Close()
		return nil, err
	}

	chunker, err := chunk.New(l0.ChunkConfig())
	if err != nil {
		st.Close()
		a.Close()
		return nil, err
	}

	return &Store{
		StoreId:       storeId,
		GlobalPath:    globalPath,
		archive:       a,
		staging:       st,
		layer0:        l0,
		currentRoot:   root,
		hasRoot:       hasRoot,
		chunker:       chunker,
		pendingChunks: map[hash.Hash]chunk.Chunk{},
		log:           log,
	}, nil
}

// Close releases the archive and staging file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.staging.Close()
	err2 := s.archive.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
