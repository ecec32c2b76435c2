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

// Package proof composes merkle inclusion paths into the three
// self-contained proof kinds a digstore layer can vouch for: a file's
// membership in a layer's file-set, a byte range within a file, and a
// layer's own commit status (spec §4.6). A Proof verifies without any
// access to the originating store.
package proof

import (
	"encoding/json"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
	"github.com/digstore/dig/merkle"
)

// Type discriminates the three proof kinds.
type Type string

const (
	TypeFile      Type = "file"
	TypeByteRange Type = "byte_range"
	TypeLayer     Type = "layer"
)

// Position is the JSON-facing spelling of a merkle.Side.
type Position string

const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// PathStep is one hop of the proof path, JSON-shaped per spec §6.
type PathStep struct {
	Hash     string   `json:"hash"`
	Position Position `json:"position"`
}

// Metadata is the proof's store/layer provenance, carried so a verifier
// never has to consult the originating store.
type Metadata struct {
	StoreId     string `json:"store_id"`
	LayerNumber uint64 `json:"layer_number,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Proof is the JSON-serializable envelope for all three proof kinds.
type Proof struct {
	Version   string          `json:"version"`
	ProofType Type            `json:"proof_type"`
	Root      string          `json:"root"`
	Target    json.RawMessage `json:"target"`
	ProofPath []PathStep      `json:"proof_path"`
	Metadata  Metadata        `json:"metadata"`
}

const currentVersion = "1.0"

// FileTarget identifies the file a file proof vouches for.
type FileTarget struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
}

// RangeChunk is one chunk bounding a byte-range proof's requested range,
// named by its content-addressed hash and its offset/size within the
// file (spec §4.6's "chunk commitments ... that bound the requested
// range").
type RangeChunk struct {
	Hash   string `json:"hash"`
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

// ByteRangeTarget identifies the inclusive byte range a byte-range proof
// vouches for. ContentHash anchors the file-inclusion leaf exactly as a
// FileTarget does; Chunks lists the file's own chunk refs, in order,
// that together cover [Start, End].
type ByteRangeTarget struct {
	Path        string       `json:"path"`
	ContentHash string       `json:"content_hash"`
	Start       uint64       `json:"start"`
	End         uint64       `json:"end"`
	Chunks      []RangeChunk `json:"chunks"`
}

// LayerTarget identifies the layer a layer proof vouches for.
type LayerTarget struct {
	LayerHash string `json:"layer_hash"`
}

func toPath(steps []merkle.Step) []PathStep {
	out := make([]PathStep, len(steps))
	for i, s := range steps {
		pos := PositionLeft
		if s.Side == merkle.Right {
			pos = PositionRight
		}
		out[i] = PathStep{Hash: s.Sibling.String(), Position: pos}
	}
	return out
}

func fromPath(steps []PathStep) ([]merkle.Step, error) {
	out := make([]merkle.Step, len(steps))
	for i, s := range steps {
		h, err := hash.ParseHash(s.Hash)
		if err != nil {
			return nil, digerr.Wrap(digerr.KindCorrupt, err, "proof: path step %d hash", i)
		}
		side := merkle.Left
		switch s.Position {
		case PositionLeft:
			side = merkle.Left
		case PositionRight:
			side = merkle.Right
		default:
			return nil, digerr.New(digerr.KindCorrupt, "proof: path step %d has invalid position %q", i, s.Position)
		}
		out[i] = merkle.Step{Sibling: h, Side: side}
	}
	return out, nil
}

// NewFileProof builds a file proof that path/contentHash is included
// among fileHashes (the ordered file content hashes committed by a
// layer) at index.
func NewFileProof(fileHashes []hash.Hash, index int, path string, contentHash hash.Hash, storeId hash.Hash, generation uint64, timestamp int64) (Proof, error) {
	tree := merkle.Build(fileHashes)
	steps, err := tree.Proof(index)
	if err != nil {
		return Proof{}, err
	}

	target, err := json.Marshal(FileTarget{Path: path, ContentHash: contentHash.String()})
	if err != nil {
		return Proof{}, digerr.Wrap(digerr.KindIo, err, "proof: marshal file target")
	}

	return Proof{
		Version:   currentVersion,
		ProofType: TypeFile,
		Root:      tree.Root().String(),
		Target:    target,
		ProofPath: toPath(steps),
		Metadata:  Metadata{StoreId: storeId.String(), LayerNumber: generation, Timestamp: timestamp},
	}, nil
}

// NewLayerProof builds a layer proof vouching that layerHash is a known
// commit: the "tree" is degenerate, a single leaf whose root is itself.
func NewLayerProof(layerHash hash.Hash, storeId hash.Hash, generation uint64, timestamp int64) (Proof, error) {
	target, err := json.Marshal(LayerTarget{LayerHash: layerHash.String()})
	if err != nil {
		return Proof{}, digerr.Wrap(digerr.KindIo, err, "proof: marshal layer target")
	}

	return Proof{
		Version:   currentVersion,
		ProofType: TypeLayer,
		Root:      layerHash.String(),
		Target:    target,
		ProofPath: nil,
		Metadata:  Metadata{StoreId: storeId.String(), LayerNumber: generation, Timestamp: timestamp},
	}, nil
}

// NewByteRangeProof builds a byte-range proof for the inclusive range
// [start, end] of path, composed from (a) the file's inclusion path,
// keyed on contentHash exactly like a file proof, and (b) the ordered
// chunk refs from the file's own chunk list that cover the range.
func NewByteRangeProof(fileHashes []hash.Hash, index int, path string, contentHash hash.Hash, start, end uint64, rangeChunks []chunk.Ref, storeId hash.Hash, generation uint64, timestamp int64) (Proof, error) {
	tree := merkle.Build(fileHashes)
	steps, err := tree.Proof(index)
	if err != nil {
		return Proof{}, err
	}

	chunks := make([]RangeChunk, len(rangeChunks))
	for i, c := range rangeChunks {
		chunks[i] = RangeChunk{Hash: c.Hash.String(), Offset: c.Offset, Size: c.Size}
	}

	target, err := json.Marshal(ByteRangeTarget{Path: path, ContentHash: contentHash.String(), Start: start, End: end, Chunks: chunks})
	if err != nil {
		return Proof{}, digerr.Wrap(digerr.KindIo, err, "proof: marshal byte range target")
	}

	return Proof{
		Version:   currentVersion,
		ProofType: TypeByteRange,
		Root:      tree.Root().String(),
		Target:    target,
		ProofPath: toPath(steps),
		Metadata:  Metadata{StoreId: storeId.String(), LayerNumber: generation, Timestamp: timestamp},
	}, nil
}

// Verify recomputes the proof's committed root from its target's leaf
// hash and proof path, and reports whether it matches Root. It never
// consults the originating store (spec §4.6).
func Verify(p Proof) (bool, error) {
	root, err := hash.ParseHash(p.Root)
	if err != nil {
		return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: root")
	}

	steps, err := fromPath(p.ProofPath)
	if err != nil {
		return false, err
	}

	switch p.ProofType {
	case TypeLayer:
		var t LayerTarget
		if err := json.Unmarshal(p.Target, &t); err != nil {
			return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: unmarshal layer target")
		}
		layerHash, err := hash.ParseHash(t.LayerHash)
		if err != nil {
			return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: layer hash")
		}
		return layerHash == root, nil

	case TypeFile:
		var t FileTarget
		if err := json.Unmarshal(p.Target, &t); err != nil {
			return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: unmarshal file target")
		}
		leaf, err := hash.ParseHash(t.ContentHash)
		if err != nil {
			return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: content hash")
		}
		return merkle.Verify(root, leaf, steps), nil

	case TypeByteRange:
		var t ByteRangeTarget
		if err := json.Unmarshal(p.Target, &t); err != nil {
			return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: unmarshal byte range target")
		}
		if t.Start > t.End {
			return false, digerr.New(digerr.KindInvalidRange, "proof: byte range start %d after end %d", t.Start, t.End)
		}
		if len(t.Chunks) == 0 {
			return false, digerr.New(digerr.KindCorrupt, "proof: byte range target has no chunks")
		}
		for i := 1; i < len(t.Chunks); i++ {
			if t.Chunks[i].Offset != t.Chunks[i-1].Offset+t.Chunks[i-1].Size {
				return false, digerr.New(digerr.KindCorrupt, "proof: byte range chunks not contiguous at index %d", i)
			}
		}
		first, last := t.Chunks[0], t.Chunks[len(t.Chunks)-1]
		if t.Start < first.Offset || t.End > last.Offset+last.Size-1 {
			return false, digerr.New(digerr.KindInvalidRange, "proof: chunks [%d,%d) do not cover requested range [%d,%d]", first.Offset, last.Offset+last.Size, t.Start, t.End)
		}

		leaf, err := hash.ParseHash(t.ContentHash)
		if err != nil {
			return false, digerr.Wrap(digerr.KindCorrupt, err, "proof: content hash")
		}
		return merkle.Verify(root, leaf, steps), nil

	default:
		return false, digerr.New(digerr.KindInvalidUrn, "proof: unknown proof_type %q", p.ProofType)
	}
}
