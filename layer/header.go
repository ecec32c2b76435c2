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

// Package layer implements the binary layer format: a fixed header, a
// files index, a chunks blob, a Merkle section and the layer metadata, serialized
// deterministically so a layer's hash can serve as its commit identifier.
package layer

import (
	"encoding/binary"

	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

// HeaderSize is the fixed on-disk width of a LayerHeader.
const HeaderSize = 256

// Magic identifies a byte stream as a digstore layer.
var Magic = [4]byte{'D', 'I', 'G', 'S'}

// FormatVersion is the only version this package currently encodes and
// the only one it will decode.
const FormatVersion uint16 = 1

// Type distinguishes header-only, full and delta layers.
type Type uint8

const (
	TypeHeaderOnly Type = 0
	TypeFull       Type = 1
	TypeDelta      Type = 2
)

// Header is the fixed-width 256-byte record at the start of every binary
// layer.
type Header struct {
	Version     uint16
	Type        Type
	Flags       uint8
	Generation  uint64
	Parent      hash.Hash
	Timestamp   int64
	FilesCount  uint32
	ChunksCount uint32
	MerkleRoot  hash.Hash
}

// Valid reports whether magic and version are as expected. The magic
// itself isn't stored on Header (it's implicit and always written/checked
// by Encode/DecodeHeader) — Valid exists for callers holding a Header
// that came from a successful decode and want to re-check it later.
func (h Header) Valid() bool {
	return h.Version == FormatVersion
}

// EncodeHeader serializes h into exactly HeaderSize bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Type)
	buf[7] = h.Flags
	// buf[8:10] reserved padding, left zero
	binary.LittleEndian.PutUint64(buf[10:18], h.Generation)
	copy(buf[18:50], h.Parent[:])
	binary.LittleEndian.PutUint64(buf[50:58], uint64(h.Timestamp))
	binary.LittleEndian.PutUint32(buf[58:62], h.FilesCount)
	binary.LittleEndian.PutUint32(buf[62:66], h.ChunksCount)
	copy(buf[66:98], h.MerkleRoot[:])
	// buf[98:256] reserved, left zero
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of buf into a Header.
// It validates magic and version, returning BadMagic/UnsupportedVersion
// on mismatch, and Truncated if buf is too short.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, digerr.New(digerr.KindTruncated, "layer header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	if string(buf[0:4]) != string(Magic[:]) {
		return Header{}, digerr.New(digerr.KindBadMagic, "layer header: bad magic %q", buf[0:4])
	}

	var h Header
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	if h.Version != FormatVersion {
		return Header{}, digerr.New(digerr.KindUnsupportedVersion, "layer header: version %d unsupported", h.Version)
	}
	h.Type = Type(buf[6])
	h.Flags = buf[7]
	h.Generation = binary.LittleEndian.Uint64(buf[10:18])
	parent, err := hash.FromBytes(buf[18:50])
	if err != nil {
		return Header{}, digerr.Wrap(digerr.KindCorrupt, err, "layer header: parent hash")
	}
	h.Parent = parent
	h.Timestamp = int64(binary.LittleEndian.Uint64(buf[50:58]))
	h.FilesCount = binary.LittleEndian.Uint32(buf[58:62])
	h.ChunksCount = binary.LittleEndian.Uint32(buf[62:66])
	root, err := hash.FromBytes(buf[66:98])
	if err != nil {
		return Header{}, digerr.Wrap(digerr.KindCorrupt, err, "layer header: merkle root")
	}
	h.MerkleRoot = root

	return h, nil
}
