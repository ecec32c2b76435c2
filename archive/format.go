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

// Package archive implements the packed, append-only container that
// holds every layer for one store: a small fixed header, a reserved
// Layer 0 slot, a compressed layer index, and an append-only data region
// (spec §4.3, §6).
package archive

import (
	"encoding/binary"

	"github.com/digstore/dig/digerr"
)

// headerMagic identifies a file as a digstore archive.
var headerMagic = [4]byte{'D', 'I', 'G', 'A'}

const headerFormatVersion uint16 = 1

// headerSize is the fixed on-disk width of the archive header, rewritten
// in place on every commit. It never changes size, so rewriting it is
// always a same-size seek-and-write, never a truncate/extend.
const headerSize = 64

// layer0SlotSize is the fixed capacity reserved for Layer 0's JSON blob,
// immediately following the header. Keeping Layer 0 in a fixed slot lets
// its rewrite-in-place discipline (spec §4.3, §9) hold exactly: the
// rewrite only ever touches bytes in [headerSize, headerSize+layer0SlotSize),
// never the data region that follows, and never needs to truncate the
// file even when root history is shorter than it once was.
//
// At roughly 120 bytes per root-history entry, 64KiB comfortably holds
// several hundred commits' worth of history before a store would need a
// larger slot — acceptable for this core (see DESIGN.md).
const layer0SlotSize = 64 * 1024

// header is the fixed-width record at the start of an archive file.
type header struct {
	version      uint16
	dataStart    uint64 // == headerSize + layer0SlotSize, fixed at creation
	indexOffset  uint64 // where the current compressed index blob starts
	indexLength  uint64 // compressed length of the current index blob
	nextAppend   uint64 // offset at which the next layer/index append lands
	layer0Length uint64 // current length of the live bytes in the Layer 0 slot
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], headerMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.version)
	binary.LittleEndian.PutUint64(buf[8:16], h.dataStart)
	binary.LittleEndian.PutUint64(buf[16:24], h.indexOffset)
	binary.LittleEndian.PutUint64(buf[24:32], h.indexLength)
	binary.LittleEndian.PutUint64(buf[32:40], h.nextAppend)
	binary.LittleEndian.PutUint64(buf[40:48], h.layer0Length)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, digerr.New(digerr.KindTruncated, "archive header: got %d bytes, want %d", len(buf), headerSize)
	}
	if string(buf[0:4]) != string(headerMagic[:]) {
		return header{}, digerr.New(digerr.KindBadMagic, "archive: not a digstore archive")
	}
	var h header
	h.version = binary.LittleEndian.Uint16(buf[4:6])
	if h.version != headerFormatVersion {
		return header{}, digerr.New(digerr.KindUnsupportedVersion, "archive header: version %d unsupported", h.version)
	}
	h.dataStart = binary.LittleEndian.Uint64(buf[8:16])
	h.indexOffset = binary.LittleEndian.Uint64(buf[16:24])
	h.indexLength = binary.LittleEndian.Uint64(buf[24:32])
	h.nextAppend = binary.LittleEndian.Uint64(buf[32:40])
	h.layer0Length = binary.LittleEndian.Uint64(buf[40:48])
	return h, nil
}
