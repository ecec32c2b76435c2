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
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/digstore/dig/digerr"
	"github.com/digstore/dig/hash"
)

// pointerFileName is the project-root file that binds a working
// directory to a store (spec §3 Project pointer, §6).
const pointerFileName = ".layerstore"

// Pointer is the decoded form of a `.layerstore` file.
type Pointer struct {
	Version        string `toml:"version"`
	StoreId        string `toml:"store_id"`
	RepositoryName string `toml:"repository_name,omitempty"`
	Encrypted      bool   `toml:"encrypted"`
}

func pointerPath(projectPath string) string {
	return filepath.Join(projectPath, pointerFileName)
}

// writePointer creates a new `.layerstore` file, failing with
// StoreAlreadyExists if one is already present.
func writePointer(projectPath string, storeId hash.Hash, repositoryName string) error {
	path := pointerPath(projectPath)
	if _, err := os.Stat(path); err == nil {
		return digerr.New(digerr.KindStoreAlreadyExists, "store: project pointer already exists at %s", path)
	}

	p := Pointer{
		Version:        "1",
		StoreId:        storeId.String(),
		RepositoryName: repositoryName,
		Encrypted:      false,
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return digerr.Wrap(digerr.KindIo, err, "store: create %s", path)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return digerr.Wrap(digerr.KindIo, err, "store: encode %s", path)
	}
	return nil
}

// readPointer loads an existing `.layerstore` file.
func readPointer(projectPath string) (Pointer, error) {
	path := pointerPath(projectPath)
	var p Pointer
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return Pointer{}, digerr.Wrap(digerr.KindStoreNotFound, err, "store: no project pointer at %s", path)
		}
		return Pointer{}, digerr.Wrap(digerr.KindCorrupt, err, "store: decode %s", path)
	}
	return p, nil
}
