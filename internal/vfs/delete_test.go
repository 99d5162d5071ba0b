// Copyright 2024 DriveFS Authors
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

package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/common"
)

func TestDeleteFolder(t *testing.T) {
	t.Parallel()

	t.Run("tombstones folders and purges files", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)

		a := mustCreateFolder(t, d, "BrowserCache::a")
		b := mustCreateFolder(t, d, "BrowserCache::a/b")
		c := mustCreateFolder(t, d, "BrowserCache::a/b/c")
		f1 := mustUpsertFile(t, d, "BrowserCache::a/one.txt")
		f2 := mustUpsertFile(t, d, "BrowserCache::a/b/c/two.txt")
		keep := mustUpsertFile(t, d, "BrowserCache::other/keep.txt")

		require.NoError(t, d.DeleteFolder(a.ID))

		for _, id := range []string{a.ID, b.ID, c.ID} {
			rec := d.GetFolderByID(id)
			require.NotNil(t, rec, "tombstoned folder must stay retrievable")
			assert.True(t, rec.Deleted)
			assert.Nil(t, d.GetFolderByPath(rec.FullPath))
		}
		for _, id := range []string{f1, f2} {
			assert.Nil(t, d.GetFileByID(id))
		}
		assert.Nil(t, d.GetFileByPath("BrowserCache::a/one.txt"))
		assert.Nil(t, d.GetFileByPath("BrowserCache::a/b/c/two.txt"))
		assert.NotNil(t, d.GetFileByID(keep))
		require.NoError(t, d.Check())
	})

	t.Run("tombstoned folder keeps child lists", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)

		a := mustCreateFolder(t, d, "BrowserCache::a")
		b := mustCreateFolder(t, d, "BrowserCache::a/b")
		f := mustUpsertFile(t, d, "BrowserCache::a/f.txt")

		require.NoError(t, d.DeleteFolder(a.ID))

		rec := d.GetFolderByID(a.ID)
		assert.Equal(t, []string{b.ID}, rec.SubfolderIDs)
		assert.Equal(t, []string{f}, rec.FileIDs)
		assert.Contains(t, d.GetFolderByPath("BrowserCache::").SubfolderIDs, a.ID)
	})

	t.Run("purges superseded versions listed in folder", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		a := mustCreateFolder(t, d, "BrowserCache::a")
		v1 := mustUpsertFile(t, d, "BrowserCache::a/f.txt")
		v2 := mustUpsertFile(t, d, "BrowserCache::a/f.txt")

		require.NoError(t, d.DeleteFolder(a.ID))
		assert.Nil(t, d.GetFileByID(v2))
		// v1 was unlisted from the folder when v2 replaced it.
		rec := d.GetFileByID(v1)
		require.NotNil(t, rec)
		assert.Empty(t, rec.NextVersion)
		require.NoError(t, d.Check())
	})

	t.Run("path can be recreated", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		a := mustCreateFolder(t, d, "BrowserCache::a")
		require.NoError(t, d.DeleteFolder(a.ID))

		again := mustCreateFolder(t, d, "BrowserCache::a")
		assert.NotEqual(t, a.ID, again.ID)
		assert.Equal(t, again.ID, d.GetFolderByPath("BrowserCache::a/").ID)
		require.NoError(t, d.Check())
	})

	t.Run("after file deletion", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		a := mustCreateFolder(t, d, "BrowserCache::a")
		f := mustUpsertFile(t, d, "BrowserCache::a/f.txt")
		require.NoError(t, d.DeleteFile(f))

		require.NoError(t, d.DeleteFolder(a.ID))
		assert.True(t, d.GetFolderByID(a.ID).Deleted)
	})

	t.Run("twice is allowed", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		a := mustCreateFolder(t, d, "BrowserCache::a")
		require.NoError(t, d.DeleteFolder(a.ID))
		require.NoError(t, d.DeleteFolder(a.ID))
		assert.True(t, d.GetFolderByID(a.ID).Deleted)
	})

	t.Run("root", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		mustUpsertFile(t, d, "BrowserCache::a/f.txt")
		root := d.GetFolderByPath("BrowserCache::")

		require.NoError(t, d.DeleteFolder(root.ID))
		assert.Equal(t, 0, d.Stats().FolderPaths)
		assert.Equal(t, 0, d.Stats().Files)

		// A fresh root is created on next use.
		fresh := mustCreateFolder(t, d, "BrowserCache::")
		assert.NotEqual(t, root.ID, fresh.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		mustCreateFolder(t, d, "BrowserCache::a")

		requireUnchanged(t, d, func() {
			assert.ErrorIs(t, d.DeleteFolder("missing"), common.ErrNotFound)
		})
	})
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()

	t.Run("purges and unbinds", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		id := mustUpsertFile(t, d, "BrowserCache::a/f.txt")

		require.NoError(t, d.DeleteFile(id))
		assert.Nil(t, d.GetFileByID(id))
		assert.Nil(t, d.GetFileByPath("BrowserCache::a/f.txt"))
		assert.Empty(t, d.GetFolderByPath("BrowserCache::a/").FileIDs)
		assert.Empty(t, d.FetchChildren("BrowserCache::a/", 10, 0).Files)
		for _, f := range d.ExportSnapshot().Folders {
			assert.NotContains(t, f.FileIDs, id)
		}
		require.NoError(t, d.Check())
	})

	t.Run("splices middle of chain", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		v1 := mustUpsertFile(t, d, "BrowserCache::f.txt")
		v2 := mustUpsertFile(t, d, "BrowserCache::f.txt")
		v3 := mustUpsertFile(t, d, "BrowserCache::f.txt")

		require.NoError(t, d.DeleteFile(v2))

		assert.Equal(t, v3, d.GetFileByID(v1).NextVersion)
		assert.Equal(t, v1, d.GetFileByID(v3).PriorVersion)
		assert.Equal(t, v3, d.GetFileByPath("BrowserCache::f.txt").ID)

		lineage := d.Lineage(v3)
		require.Len(t, lineage, 2)
		assert.Equal(t, v1, lineage[0].ID)
		assert.Equal(t, v3, lineage[1].ID)
		require.NoError(t, d.Check())
	})

	t.Run("deleting head leaves path unbound", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		v1 := mustUpsertFile(t, d, "BrowserCache::f.txt")
		v2 := mustUpsertFile(t, d, "BrowserCache::f.txt")

		require.NoError(t, d.DeleteFile(v2))
		assert.Nil(t, d.GetFileByPath("BrowserCache::f.txt"))
		assert.Empty(t, d.GetFileByID(v1).NextVersion)

		v3 := mustUpsertFile(t, d, "BrowserCache::f.txt")
		assert.Equal(t, uint32(1), d.GetFileByID(v3).Version)
	})

	t.Run("deleting superseded version keeps head bound", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		v1 := mustUpsertFile(t, d, "BrowserCache::f.txt")
		v2 := mustUpsertFile(t, d, "BrowserCache::f.txt")

		require.NoError(t, d.DeleteFile(v1))
		assert.Equal(t, v2, d.GetFileByPath("BrowserCache::f.txt").ID)
		assert.Empty(t, d.GetFileByID(v2).PriorVersion)
		require.NoError(t, d.Check())
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		d, _ := testDrive(t)
		mustUpsertFile(t, d, "BrowserCache::f.txt")

		requireUnchanged(t, d, func() {
			assert.ErrorIs(t, d.DeleteFile("missing"), common.ErrNotFound)
		})
	})
}
