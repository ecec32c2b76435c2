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

// Package staging implements the memory-mapped append log of FileEntry
// records waiting for the next commit (spec §4.4). Reads go through a
// mapping that is re-established after every append so enumeration
// always observes what was most recently staged; clearing drops the
// mapping before truncating back to the bare header.
package staging

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/layer"
)

// headerSize is the fixed width of the staging file's header, per spec
// §3/§4.4. Clearing truncates the file back to exactly this many bytes.
const headerSize = 88

var headerMagic = [4]byte{'D', 'I', 'G', 'T'}

const headerFormatVersion uint16 = 1

// Staging is the append-only, memory-mapped log of pending FileEntry
// records for one store.
type Staging struct {
	mu   sync.Mutex
	path string
	f    *os.File
	m    mmap.MMap

	// order preserves append order; byPath holds only the most recent
	// record index per path (last-wins, spec Open Question #1).
	order  []layer.FileEntry
	byPath map[string]int

	// writeOffset is the byte offset the next append lands at. Appends
	// go through WriteAt at this offset rather than relying on the
	// file descriptor's own cursor, so StageFile is correct regardless
	// of whether s.f was just created, reopened, or truncated by Clear.
	writeOffset int64
}

// Init creates a brand new staging file containing only the header.
func Init(path string) (*Staging, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindIo, err, "staging: create %s", path)
	}

	hdr := make([]byte, headerSize)
	copy(hdr[0:4], headerMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], headerFormatVersion)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, digerr.Wrap(digerr.KindIo, err, "staging: write header")
	}

	s := &Staging{path: path, f: f, byPath: map[string]int{}, writeOffset: headerSize}
	if err := s.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Open loads an existing staging file and replays its records.
func Open(path string) (*Staging, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindIo, err, "staging: open %s", path)
	}

	s := &Staging{path: path, f: f, byPath: map[string]int{}}
	if err := s.remap(); err != nil {
		f.Close()
		return nil, err
	}
	s.writeOffset = int64(len(s.m))

	if err := s.validateHeader(); err != nil {
		s.m.Unmap()
		f.Close()
		return nil, err
	}

	if err := s.replay(); err != nil {
		s.m.Unmap()
		f.Close()
		return nil, err
	}

	return s, nil
}

func (s *Staging) validateHeader() error {
	if len(s.m) < headerSize {
		return digerr.New(digerr.KindCorrupt, "staging: file shorter than header")
	}
	if string(s.m[0:4]) != string(headerMagic[:]) {
		return digerr.New(digerr.KindCorrupt, "staging: bad header magic")
	}
	version := binary.LittleEndian.Uint16(s.m[4:6])
	if version != headerFormatVersion {
		return digerr.New(digerr.KindUnsupportedVersion, "staging: header version %d unsupported", version)
	}
	return nil
}

func (s *Staging) replay() error {
	buf := s.m[headerSize:]
	s.order = nil
	s.byPath = map[string]int{}

	for len(buf) > 0 {
		recLen, n := binary.Uvarint(buf)
		if n <= 0 {
			return digerr.New(digerr.KindCorrupt, "staging: invalid record length prefix")
		}
		buf = buf[n:]
		if uint64(len(buf)) < recLen {
			return digerr.New(digerr.KindTruncated, "staging: record truncated")
		}

		entry, err := layer.DecodeFileEntry(buf[:recLen])
		if err != nil {
			return digerr.Wrap(digerr.KindCorrupt, err, "staging: decode record")
		}
		buf = buf[recLen:]

		s.byPath[entry.Path] = len(s.order)
		s.order = append(s.order, entry)
	}

	return nil
}

// Close drops the mapping and closes the underlying file.
func (s *Staging) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m != nil {
		if err := s.m.Unmap(); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "staging: unmap on close")
		}
	}
	return s.f.Close()
}

func (s *Staging) remap() error {
	if s.m != nil {
		if err := s.m.Unmap(); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "staging: unmap before remap")
		}
		s.m = nil
	}
	m, err := mmap.Map(s.f, mmap.RDWR, 0)
	if err != nil {
		return digerr.Wrap(digerr.KindIo, err, "staging: mmap %s", s.path)
	}
	s.m = m
	return nil
}

// StageFile appends entry to the staging log. A prior record for the
// same path is superseded in memory (last-wins) though its on-disk
// bytes remain until the next Clear.
func (s *Staging) StageFile(entry layer.FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded := layer.EncodeFileEntry(entry)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(encoded)))

	if _, err := s.f.WriteAt(lenBuf[:n], s.writeOffset); err != nil {
		return digerr.Wrap(digerr.KindIo, err, "staging: append record length")
	}
	s.writeOffset += int64(n)
	if _, err := s.f.WriteAt(encoded, s.writeOffset); err != nil {
		return digerr.Wrap(digerr.KindIo, err, "staging: append record")
	}
	s.writeOffset += int64(len(encoded))

	if err := s.remap(); err != nil {
		return err
	}

	s.byPath[entry.Path] = len(s.order)
	s.order = append(s.order, entry)
	return nil
}

// IsStaged reports whether path has a current staged record.
func (s *Staging) IsStaged(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byPath[path]
	return ok
}

// GetStagedFile returns the current staged record for path, if any.
func (s *Staging) GetStagedFile(path string) (layer.FileEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byPath[path]
	if !ok {
		return layer.FileEntry{}, false
	}
	return s.order[idx], true
}

// AllStaged returns the winning record per path, in first-staged order.
func (s *Staging) AllStaged() []layer.FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	out := make([]layer.FileEntry, 0, len(s.byPath))
	for _, entry := range s.order {
		if seen[entry.Path] {
			continue
		}
		seen[entry.Path] = true
		out = append(out, s.order[s.byPath[entry.Path]])
	}
	return out
}

// TotalSize sums the Size of every currently-winning staged record.
func (s *Staging) TotalSize() uint64 {
	var total uint64
	for _, e := range s.AllStaged() {
		total += e.Size
	}
	return total
}

// Clear drops the mapping, truncates the file back to the bare header,
// and resets the in-memory index.
func (s *Staging) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m != nil {
		if err := s.m.Unmap(); err != nil {
			return digerr.Wrap(digerr.KindIo, err, "staging: unmap before clear")
		}
		s.m = nil
	}

	if err := s.f.Truncate(headerSize); err != nil {
		return digerr.Wrap(digerr.KindIo, err, "staging: truncate to header")
	}
	s.writeOffset = headerSize

	if err := s.remap(); err != nil {
		return err
	}

	s.order = nil
	s.byPath = map[string]int{}
	return nil
}
