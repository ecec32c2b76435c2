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

package archive

import (
	"os"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

// Archive is a single packed file holding every layer ever committed to
// one store, plus the Layer 0 root-history blob (spec §4.3).
//
// Reads go through an mmap of the whole file. Every write — appending a
// layer, appending a fresh index, or rewriting Layer 0 — first drops the
// mapping, performs the write, then remaps, retrying the remap with
// bounded backoff (see withMappingDropped and remap).
type Archive struct {
	mu   sync.Mutex
	path string
	f    *os.File
	m    mmap.MMap
	hdr  header
	log  *zap.Logger

	entries []indexEntry
	byHash  map[hash.Hash]indexEntry
}

// Create initializes a brand new, empty archive file at path.
func Create(path string, log *zap.Logger) (*Archive, error) {
	if log == nil {
		log = zap.NewNop()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindIo, err, "archive: create %s", path)
	}

	hdr := header{
		version:      headerFormatVersion,
		dataStart:    uint64(headerSize + layer0SlotSize),
		indexOffset:  0,
		indexLength:  0,
		nextAppend:   uint64(headerSize + layer0SlotSize),
		layer0Length: 0,
	}

	if err := f.Truncate(int64(hdr.dataStart)); err != nil {
		f.Close()
		return nil, digerr.Wrap(digerr.KindIo, err, "archive: allocate header+layer0 slot")
	}
	if _, err := f.WriteAt(encodeHeader(hdr), 0); err != nil {
		f.Close()
		return nil, digerr.Wrap(digerr.KindIo, err, "archive: write header")
	}

	a := &Archive{path: path, f: f, hdr: hdr, log: log, byHash: map[hash.Hash]indexEntry{}}
	if err := a.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

// Open loads an existing archive file, reading its header and index.
func Open(path string, log *zap.Logger) (*Archive, error) {
	if log == nil {
		log = zap.NewNop()
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindStoreNotFound, err, "archive: open %s", path)
	}

	a := &Archive{path: path, f: f, log: log, byHash: map[hash.Hash]indexEntry{}}
	if err := a.remap(); err != nil {
		f.Close()
		return nil, err
	}

	hdr, err := decodeHeader(a.m)
	if err != nil {
		a.m.Unmap()
		f.Close()
		return nil, err
	}
	a.hdr = hdr

	if hdr.indexLength > 0 {
		blob := a.m[hdr.indexOffset : hdr.indexOffset+hdr.indexLength]
		entries, err := decodeIndex(blob)
		if err != nil {
			a.m.Unmap()
			f.Close()
			return nil, err
		}
		a.entries = entries
		for _, e := range entries {
			a.byHash[e.Hash] = e
		}
	}

	return a, nil
}

// Close drops the mapping and closes the underlying file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.m != nil {
		if err := a.m.Unmap(); err != nil {
			a.log.Warn("archive: unmap on close", zap.Error(err))
		}
	}
	return a.f.Close()
}

// remap drops any existing mapping and remaps the whole current file,
// retrying with bounded backoff. Some platforms transiently refuse a
// fresh mmap immediately after a write that changed the file length
// (the historical Windows file-mapping bug this spec calls out), so a
// single failed remap is not fatal.
func (a *Archive) remap() error {
	if a.m != nil {
		if err := a.m.Unmap(); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: unmap before remap")
		}
		a.m = nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)

	op := func() error {
		m, err := mmap.Map(a.f, mmap.RDWR, 0)
		if err != nil {
			return err
		}
		a.m = m
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return digerr.Wrap(digerr.KindBusy, err, "archive: remap %s after retry budget exhausted", a.path)
	}
	return nil
}

// withMappingDropped runs write while the archive's mmap is released,
// then remaps afterward regardless of write's outcome. Every write that
// can change the file's length or rewrite already-mapped bytes must go
// through this (spec §4.3/§9).
func (a *Archive) withMappingDropped(write func() error) error {
	if a.m != nil {
		if err := a.m.Unmap(); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: unmap for write")
		}
		a.m = nil
	}

	writeErr := write()

	if err := a.remap(); err != nil {
		if writeErr != nil {
			return writeErr
		}
		return err
	}
	return writeErr
}

// HasLayer reports whether a layer with the given hash is already
// present in the archive. The all-zero hash addresses Layer 0 (spec
// §4.3) and is present once the archive has ever held Layer 0 content.
func (a *Archive) HasLayer(h hash.Hash) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h.IsEmpty() {
		return a.hdr.layer0Length > 0
	}
	_, ok := a.byHash[h]
	return ok
}

// GetLayerData returns the raw encoded bytes of the layer with hash h.
// The all-zero hash returns the current Layer 0 slot contents.
func (a *Archive) GetLayerData(h hash.Hash) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if h.IsEmpty() {
		if a.hdr.layer0Length == 0 {
			return nil, digerr.New(digerr.KindLayerNotFound, "archive: layer 0 not found")
		}
		return a.getLayer0Locked(), nil
	}

	e, ok := a.byHash[h]
	if !ok {
		return nil, digerr.New(digerr.KindLayerNotFound, "archive: layer %s not found", h)
	}
	buf := make([]byte, e.Size)
	copy(buf, a.m[e.Offset:e.Offset+e.Size])
	return buf, nil
}

// AddLayer appends encoded layer bytes to the data region and then
// appends a fresh index reflecting the new entry. It never rewrites
// previously written layer bytes or truncates the file (spec §4.3).
func (a *Archive) AddLayer(h hash.Hash, encoded []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.byHash[h]; ok {
		return nil
	}

	layerOffset := a.hdr.nextAppend
	newEntries := append(append([]indexEntry{}, a.entries...), indexEntry{Hash: h, Offset: layerOffset, Size: uint64(len(encoded))})
	indexBlob := encodeIndex(newEntries)
	indexOffset := layerOffset + uint64(len(encoded))
	newLen := indexOffset + uint64(len(indexBlob))

	err := a.withMappingDropped(func() error {
		if err := a.f.Truncate(int64(newLen)); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: grow for layer %s", h)
		}
		if _, err := a.f.WriteAt(encoded, int64(layerOffset)); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: write layer %s", h)
		}
		if _, err := a.f.WriteAt(indexBlob, int64(indexOffset)); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: write index")
		}

		a.hdr.indexOffset = indexOffset
		a.hdr.indexLength = uint64(len(indexBlob))
		a.hdr.nextAppend = newLen
		if _, err := a.f.WriteAt(encodeHeader(a.hdr), 0); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: write header after layer %s", h)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.entries = newEntries
	a.byHash[h] = indexEntry{Hash: h, Offset: layerOffset, Size: uint64(len(encoded))}
	a.log.Debug("archive: layer appended", zap.String("hash", h.String()), zap.Uint64("offset", layerOffset), zap.Int("size", len(encoded)))
	return nil
}

// ListLayers returns the hashes of every layer present in the archive,
// in append order. Layer 0, addressed by the all-zero hash, is listed
// first once it has been written (spec §4.3).
func (a *Archive) ListLayers() []hash.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]hash.Hash, 0, len(a.entries)+1)
	if a.hdr.layer0Length > 0 {
		out = append(out, hash.Hash{})
	}
	for _, e := range a.entries {
		out = append(out, e.Hash)
	}
	return out
}

// GetLayer0 returns the raw bytes currently stored in the Layer 0 slot.
func (a *Archive) GetLayer0() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.getLayer0Locked()
}

// getLayer0Locked reads the Layer 0 slot. Callers must hold a.mu.
func (a *Archive) getLayer0Locked() []byte {
	buf := make([]byte, a.hdr.layer0Length)
	copy(buf, a.m[headerSize:headerSize+a.hdr.layer0Length])
	return buf
}

// PutLayer0 rewrites the Layer 0 slot in place. It never truncates the
// file and touches no byte outside the fixed-size header and [headerSize,
// headerSize+layer0SlotSize) — the exact discipline that avoids the
// historical Windows file-mapping truncate bug this spec's regression
// test (archive_layer0_rewrite_test.go) guards against.
func (a *Archive) PutLayer0(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(data) > layer0SlotSize {
		return digerr.New(digerr.KindCorrupt, "archive: layer 0 payload %d exceeds slot size %d", len(data), layer0SlotSize)
	}

	err := a.withMappingDropped(func() error {
		if _, err := a.f.WriteAt(data, int64(headerSize)); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: write layer 0")
		}
		a.hdr.layer0Length = uint64(len(data))
		if _, err := a.f.WriteAt(encodeHeader(a.hdr), 0); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "archive: write header after layer 0 rewrite")
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.log.Debug("archive: layer 0 rewritten", zap.Int("size", len(data)))
	return nil
}

// currentFileSize is used by tests to assert the file never shrinks
// across a Layer 0 rewrite.
func (a *Archive) currentFileSize() (int64, error) {
	info, err := a.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
