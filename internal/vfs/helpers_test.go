package vfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testOwner Identity = "owner-1"

// frozenClock returns the same instant until advanced.
type frozenClock struct {
	now time.Time
}

func (c *frozenClock) Now() time.Time { return c.now }

func (c *frozenClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFrozenClock() *frozenClock {
	return &frozenClock{now: time.Unix(1_700_000_000, 0)}
}

// testDrive creates an empty drive with a frozen clock.
func testDrive(t *testing.T) (*Drive, *frozenClock) {
	t.Helper()
	clock := newFrozenClock()
	d, err := New(testOwner, "alice", WithClock(clock), WithInstanceID("test-instance"))
	require.NoError(t, err, "failed to create drive")
	return d, clock
}

func mustCreateFolder(t *testing.T, d *Drive, path string) *FolderRecord {
	t.Helper()
	rec, err := d.CreateFolder(path, NamespaceBrowserCache, testOwner)
	require.NoError(t, err, "create folder %s", path)
	return rec
}

func mustUpsertFile(t *testing.T, d *Drive, path string) string {
	t.Helper()
	id, err := d.UpsertFile(path, NamespaceBrowserCache, testOwner)
	require.NoError(t, err, "upsert file %s", path)
	return id
}

// requireUnchanged runs fn and asserts the drive state is identical before
// and after.
func requireUnchanged(t *testing.T, d *Drive, fn func()) {
	t.Helper()
	before := d.ExportSnapshot()
	fn()
	require.Equal(t, before, d.ExportSnapshot(), "drive state changed")
}
