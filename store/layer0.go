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
	"encoding/json"

	"github.com/digstore/dig/chunk"
	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

const formatVersion = 1
const protocolVersion = 1

// RootHistoryEntry is one append-only entry in Layer 0's root history.
type RootHistoryEntry struct {
	RootHash   string `json:"root_hash"`
	Generation uint64 `json:"generation"`
	Timestamp  int64  `json:"timestamp"`
}

// ChunkingConfig is the persisted form of chunk.Config, carried in
// Layer 0 so a store's chunking parameters survive process restarts
// (SPEC_FULL.md supplemented feature, grounded on original_source/'s
// persisted configuration tests).
type ChunkingConfig struct {
	MinSize uint32 `json:"min_size"`
	AvgSize uint32 `json:"avg_size"`
	MaxSize uint32 `json:"max_size"`
}

// Config is Layer 0's `config` object.
type Config struct {
	Chunking ChunkingConfig `json:"chunking"`
}

// Layer0 is the distinguished, JSON-encoded metadata blob addressed by
// the all-zeros layer hash (spec §3 Archive, §6).
type Layer0 struct {
	StoreId         string             `json:"store_id"`
	CreatedAt       int64              `json:"created_at"`
	FormatVersion   int                `json:"format_version"`
	ProtocolVersion int                `json:"protocol_version"`
	RootHistory     []RootHistoryEntry `json:"root_history"`
	Config          Config             `json:"config"`
}

// NewLayer0 builds a fresh Layer 0 for a store created at timestamp
// with the given chunking config and no commits yet.
func NewLayer0(storeId hash.Hash, timestamp int64, cfg chunk.Config) Layer0 {
	return Layer0{
		StoreId:         storeId.String(),
		CreatedAt:       timestamp,
		FormatVersion:   formatVersion,
		ProtocolVersion: protocolVersion,
		RootHistory:     nil,
		Config: Config{Chunking: ChunkingConfig{
			MinSize: cfg.MinSize,
			AvgSize: cfg.AvgSize,
			MaxSize: cfg.MaxSize,
		}},
	}
}

// CurrentRoot returns the last root-history entry's hash, or false if
// the store has never been committed to.
func (l Layer0) CurrentRoot() (hash.Hash, bool, error) {
	if len(l.RootHistory) == 0 {
		return hash.Hash{}, false, nil
	}
	last := l.RootHistory[len(l.RootHistory)-1]
	h, err := hash.ParseHash(last.RootHash)
	if err != nil {
		return hash.Hash{}, false, digerr.Wrap(digerr.KindCorrupt, err, "layer0: root history tail hash")
	}
	return h, true, nil
}

// AppendRoot returns a copy of l with a new root-history entry
// appended. Root history is append-only (spec §3).
func (l Layer0) AppendRoot(root hash.Hash, generation uint64, timestamp int64) Layer0 {
	next := l
	next.RootHistory = append(append([]RootHistoryEntry{}, l.RootHistory...), RootHistoryEntry{
		RootHash:   root.String(),
		Generation: generation,
		Timestamp:  timestamp,
	})
	return next
}

// ChunkConfig reconstructs a chunk.Config from the persisted settings.
func (l Layer0) ChunkConfig() chunk.Config {
	return chunk.Config{
		MinSize: l.Config.Chunking.MinSize,
		AvgSize: l.Config.Chunking.AvgSize,
		MaxSize: l.Config.Chunking.MaxSize,
	}
}

// EncodeLayer0 marshals l to its on-disk JSON form.
func EncodeLayer0(l Layer0) ([]byte, error) {
	buf, err := json.Marshal(l)
	if err != nil {
		return nil, digerr.Wrap(digerr.KindIo, err, "layer0: marshal")
	}
	return buf, nil
}

// DecodeLayer0 parses Layer 0's JSON form.
func DecodeLayer0(buf []byte) (Layer0, error) {
	var l Layer0
	if err := json.Unmarshal(buf, &l); err != nil {
		return Layer0{}, digerr.Wrap(digerr.KindCorrupt, err, "layer0: unmarshal")
	}
	return l, nil
}
