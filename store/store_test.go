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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digstore/dig/digerr"
)

// withHome points StateDir at a fresh temp directory for the duration of
// a test, so stores never touch a real ~/.dig.
func withHome(t *testing.T) {
	t.Helper()
	t.Setenv("DIGSTORE_HOME", t.TempDir())
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestInitOpenAddCommitGetRoundTrip(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)

	fooPath := writeFile(t, project, "foo.txt", "hello digstore")
	require.NoError(t, s.AddFile(fooPath))

	status := s.Status()
	assert.Equal(t, []string{"foo.txt"}, status.StagedFiles)
	assert.EqualValues(t, len("hello digstore"), status.TotalStagedSize)
	assert.Nil(t, status.CurrentRoot)

	root, err := s.Commit("first commit")
	require.NoError(t, err)
	assert.False(t, root.IsEmpty())

	status = s.Status()
	assert.Empty(t, status.StagedFiles)
	require.NotNil(t, status.CurrentRoot)
	assert.Equal(t, root, *status.CurrentRoot)

	got, err := s.GetFile("foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello digstore", string(got))

	layers, err := s.ListLayers()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, root.String(), layers[0].Hash)
	assert.EqualValues(t, 1, layers[0].Generation)
	assert.Equal(t, 1, layers[0].FileCount)

	require.NoError(t, s.Close())

	reopened, err := Open(project, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err = reopened.GetFile("foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello digstore", string(got))
}

func TestCommitWithNothingStagedFails(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Commit("empty")
	require.Error(t, err)
	assert.True(t, digerr.Is(err, digerr.KindNothingStaged))
}

func TestInitTwiceFails(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = Init(project, nil)
	require.Error(t, err)
	assert.True(t, digerr.Is(err, digerr.KindStoreAlreadyExists))
}

func TestGetFileBeforeAnyCommitFails(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetFile("nothing.txt")
	require.Error(t, err)
	assert.True(t, digerr.Is(err, digerr.KindLayerNotFound))
}

func TestGetFileAtHistoricalRoot(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)
	defer s.Close()

	path := writeFile(t, project, "a.txt", "version one")
	require.NoError(t, s.AddFile(path))
	rootOne, err := s.Commit("v1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	require.NoError(t, s.AddFile(path))
	rootTwo, err := s.Commit("v2")
	require.NoError(t, err)
	assert.NotEqual(t, rootOne, rootTwo)

	old, err := s.GetFileAt("a.txt", rootOne)
	require.NoError(t, err)
	assert.Equal(t, "version one", string(old))

	current, err := s.GetFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "version two", string(current))

	layers, err := s.ListLayers()
	require.NoError(t, err)
	require.Len(t, layers, 2)
}

func TestAddDirectoryBatchStagesAllFiles(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)
	defer s.Close()

	writeFile(t, project, "one.txt", "content one")
	writeFile(t, project, "two.txt", "content two")

	require.NoError(t, s.AddDirectory(project, false))

	status := s.Status()
	assert.ElementsMatch(t, []string{"one.txt", "two.txt"}, status.StagedFiles)

	root, err := s.Commit("batch")
	require.NoError(t, err)
	assert.False(t, root.IsEmpty())

	one, err := s.GetFile("one.txt")
	require.NoError(t, err)
	assert.Equal(t, "content one", string(one))
}

func TestAddAfterCommitSurvivesReopen(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)

	fooPath := writeFile(t, project, "foo.txt", "hello digstore")
	require.NoError(t, s.AddFile(fooPath))
	_, err = s.Commit("first commit")
	require.NoError(t, err)

	barPath := writeFile(t, project, "bar.txt", "staged but not committed")
	require.NoError(t, s.AddFile(barPath))

	status := s.Status()
	assert.Equal(t, []string{"bar.txt"}, status.StagedFiles)

	require.NoError(t, s.Close())

	reopened, err := Open(project, nil)
	require.NoError(t, err)
	defer reopened.Close()

	status = reopened.Status()
	assert.Equal(t, []string{"bar.txt"}, status.StagedFiles)

	got, err := reopened.GetFile("foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello digstore", string(got))
}

func TestGetFileNotFoundAtRoot(t *testing.T) {
	withHome(t)
	project := t.TempDir()

	s, err := Init(project, nil)
	require.NoError(t, err)
	defer s.Close()

	path := writeFile(t, project, "a.txt", "present")
	require.NoError(t, s.AddFile(path))
	_, err = s.Commit("one file")
	require.NoError(t, err)

	_, err = s.GetFile("missing.txt")
	require.Error(t, err)
	assert.True(t, digerr.Is(err, digerr.KindFileNotFound))
}
