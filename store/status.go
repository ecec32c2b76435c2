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

import "github.com/digstore/dig/hash"

// Status is a point-in-time snapshot of a store's staging state,
// including any records appended since the previous call (spec §4.5).
type Status struct {
	StagedFiles     []string
	TotalStagedSize uint64
	CurrentRoot     *hash.Hash
}

// Status reports the current staging state and root.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.staging.AllStaged()
	paths := make([]string, len(staged))
	var total uint64
	for i, e := range staged {
		paths[i] = e.Path
		total += e.Size
	}

	st := Status{StagedFiles: paths, TotalStagedSize: total}
	if s.hasRoot {
		root := s.currentRoot
		st.CurrentRoot = &root
	}
	return st
}

// CurrentRoot reports the store's latest committed root, or ok=false if
// nothing has been committed yet. Satisfies urn.Store.
func (s *Store) CurrentRoot() (hash.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoot, s.hasRoot
}
