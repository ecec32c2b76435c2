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

package chunk

import (
	"golang.org/x/sync/errgroup"
)

// FileResult pairs a path with its chunked output, for ChunkFiles.
type FileResult struct {
	Path   string
	Chunks []Chunk
}

// ChunkFiles chunks every path concurrently and returns one FileResult per
// path, in the same order as paths. Chunking is independent per file, so
// this fans out across goroutines the way the teacher's archive builder
// fans out per-table work with errgroup (spec §5: chunking of
// independent files may run in parallel; staging/archive writes remain
// serialized elsewhere).
func (c *Chunker) ChunkFiles(paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			chunks, err := c.ChunkFile(p)
			if err != nil {
				return err
			}
			results[i] = FileResult{Path: p, Chunks: chunks}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
