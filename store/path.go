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
	"path/filepath"
	"strings"

	"github.com/digstore/dig/digerr"
)

// NormalizeAddPath turns an OS-specific path to a file under projectRoot
// into the forward-slash, project-root-relative form used as a
// FileEntry.Path, so the same logical file produces the same entry and
// chunk set regardless of the caller's OS or working directory
// (SPEC_FULL.md supplemented feature, grounded on original_source/'s
// path-management regression tests).
func NormalizeAddPath(projectRoot, path string) (string, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", digerr.Wrap(digerr.KindIo, err, "store: resolve project root %s", projectRoot)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", digerr.Wrap(digerr.KindIo, err, "store: resolve path %s", path)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", digerr.Wrap(digerr.KindIo, err, "store: %s is not under project root %s", path, projectRoot)
	}
	if strings.HasPrefix(rel, "..") {
		return "", digerr.New(digerr.KindIo, "store: %s escapes project root %s", path, projectRoot)
	}

	return filepath.ToSlash(rel), nil
}
