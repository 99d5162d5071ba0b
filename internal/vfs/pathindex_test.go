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

func TestPathIndex(t *testing.T) {
	t.Parallel()

	t.Run("force and lookup", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		pi.Force("ns::a/", "id1")

		id, ok := pi.Lookup("ns::a/")
		assert.True(t, ok)
		assert.Equal(t, "id1", id)

		_, ok = pi.Lookup("ns::b/")
		assert.False(t, ok)
	})

	t.Run("rebind onto own path is a no-op", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		pi.Force("ns::a/", "id1")
		require.NoError(t, pi.Rebind("ns::a/", "ns::a/", "id1"))

		id, ok := pi.Lookup("ns::a/")
		assert.True(t, ok)
		assert.Equal(t, "id1", id)
		assert.Equal(t, 1, pi.Len())
	})

	t.Run("insert collides with a different id", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		require.NoError(t, pi.Insert("ns::a/", "id1"))
		require.NoError(t, pi.Insert("ns::a/", "id1"))
		assert.ErrorIs(t, pi.Insert("ns::a/", "id2"), common.ErrPathCollision)

		id, _ := pi.Lookup("ns::a/")
		assert.Equal(t, "id1", id)
		assert.Equal(t, 1, pi.Len())
	})

	t.Run("remove if only removes matching binding", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		pi.Force("ns::a", "id1")

		assert.False(t, pi.RemoveIf("ns::a", "other"))
		assert.Equal(t, 1, pi.Len())
		assert.True(t, pi.RemoveIf("ns::a", "id1"))
		assert.Equal(t, 0, pi.Len())
	})

	t.Run("rebind moves binding", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		pi.Force("ns::a/", "id1")
		require.NoError(t, pi.Rebind("ns::a/", "ns::b/", "id1"))

		_, ok := pi.Lookup("ns::a/")
		assert.False(t, ok)
		id, ok := pi.Lookup("ns::b/")
		assert.True(t, ok)
		assert.Equal(t, "id1", id)
	})

	t.Run("rebind collision keeps old binding", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		pi.Force("ns::a/", "id1")
		pi.Force("ns::b/", "id2")

		assert.ErrorIs(t, pi.Rebind("ns::a/", "ns::b/", "id1"), common.ErrPathCollision)
		id, _ := pi.Lookup("ns::a/")
		assert.Equal(t, "id1", id)
		id, _ = pi.Lookup("ns::b/")
		assert.Equal(t, "id2", id)
	})

	t.Run("paths sorted and entries copied", func(t *testing.T) {
		t.Parallel()
		pi := NewPathIndex()
		pi.Force("ns::c", "3")
		pi.Force("ns::a", "1")
		pi.Force("ns::b", "2")
		assert.Equal(t, []string{"ns::a", "ns::b", "ns::c"}, pi.Paths())

		entries := pi.Entries()
		entries["ns::z"] = "9"
		pi.Remove("ns::a")
		assert.Equal(t, 2, pi.Len())
		assert.Len(t, entries, 4)
	})
}
