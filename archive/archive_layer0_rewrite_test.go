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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digstore/dig/hash"
)

// TestLayer0RewriteNeverTruncates guards against the historical bug where
// rewriting a fixed-size metadata slot with a shorter payload truncated
// the underlying file out from under a live memory mapping, corrupting
// every layer appended after it. A correct rewrite keeps the file length
// unchanged (or growing, never shrinking) and leaves every previously
// appended layer's bytes untouched.
func TestLayer0RewriteNeverTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.dga")
	a, err := Create(path, nil)
	require.NoError(t, err)
	defer a.Close()

	h := hash.Of([]byte("a committed layer"))
	require.NoError(t, a.AddLayer(h, []byte("a committed layer, encoded")))

	sizeBefore, err := a.currentFileSize()
	require.NoError(t, err)

	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, a.PutLayer0(big))

	small := []byte("tiny")
	require.NoError(t, a.PutLayer0(small))

	sizeAfter, err := a.currentFileSize()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sizeAfter, sizeBefore, "archive file must never shrink on a layer 0 rewrite")

	data, err := a.GetLayerData(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("a committed layer, encoded"), data, "layer bytes must survive an unrelated layer 0 rewrite")

	assert.Equal(t, small, a.GetLayer0())
}

// TestLayer0RewriteSurvivesReopen exercises the same path across a
// Close/Open boundary, confirming the header's layer0Length field (not
// file length) is the source of truth for the slot's live content.
func TestLayer0RewriteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.dga")
	a, err := Create(path, nil)
	require.NoError(t, err)

	require.NoError(t, a.PutLayer0([]byte("first version, quite a bit longer than the next")))
	require.NoError(t, a.PutLayer0([]byte("v2")))
	require.NoError(t, a.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []byte("v2"), reopened.GetLayer0())
}
