package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/common"
	"drivefs/internal/storage"
	"drivefs/internal/vfs"
)

// testProvisioner creates a provisioner rooted in a temp directory.
func testProvisioner(t *testing.T, backend string) *Provisioner {
	t.Helper()
	dir := t.TempDir()
	p, err := NewProvisioner(ProvisionerConfig{
		MetaPath:  filepath.Join(dir, "meta.drivefs"),
		DrivesDir: filepath.Join(dir, "drives"),
		Backend:   backend,
		DBContext: storage.DBContextDaemon,
	})
	require.NoError(t, err, "failed to create provisioner")
	t.Cleanup(func() { p.Close() })
	return p
}

func TestCreateDrive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("allocates sequential indexes", func(t *testing.T) {
		t.Parallel()
		p := testProvisioner(t, storage.BackendSQLite)

		first, err := p.CreateDrive(ctx, "owner-1", "alice")
		require.NoError(t, err)
		second, err := p.CreateDrive(ctx, "owner-2", "bob")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.Index)
		assert.Equal(t, int64(2), second.Index)
		assert.Equal(t, "alice", first.Username)
		assert.FileExists(t, first.DataFile)
		assert.Equal(t, "1.drivefs", filepath.Base(first.DataFile))

		total, err := p.TotalDrives(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		byIndex, err := p.DriveByIndex(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, vfs.Identity("owner-2"), byIndex.Owner)

		_, err = p.DriveByIndex(ctx, 9)
		assert.ErrorIs(t, err, common.ErrNotFound)

		drives, err := p.ListDrives(ctx)
		require.NoError(t, err)
		assert.Len(t, drives, 2)
	})

	tests := []struct {
		name     string
		owner    vfs.Identity
		username string
		wantErr  error
	}{
		{"anonymous owner", vfs.AnonymousIdentity, "alice", common.ErrUnauthorized},
		{"empty owner", "", "alice", common.ErrUnauthorized},
		{"invalid username", "owner-9", "!!!", common.ErrInvalidUsername},
		{"existing owner", "owner-1", "again", common.ErrDriveExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := testProvisioner(t, storage.BackendSQLite)
			_, err := p.CreateDrive(ctx, "owner-1", "alice")
			require.NoError(t, err)

			_, err = p.CreateDrive(ctx, tt.owner, tt.username)
			assert.ErrorIs(t, err, tt.wantErr)

			total, err := p.TotalDrives(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, total)
		})
	}
}

func TestGetUserDrive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := testProvisioner(t, storage.BackendSQLite)

	_, err := p.GetUserDrive(ctx, "owner-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	created, err := p.CreateDrive(ctx, "owner-1", "alice")
	require.NoError(t, err)

	got, err := p.GetUserDrive(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, created.Index, got.Index)
	assert.Equal(t, created.DataFile, got.DataFile)
	assert.Equal(t, created.InstanceID, got.InstanceID)
}

func TestOpenPersists(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{storage.BackendSQLite, storage.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()
			ctx := WithIdentity(context.Background(), "owner-1")
			p := testProvisioner(t, backend)

			entry, err := p.CreateDrive(ctx, "owner-1", "alice")
			require.NoError(t, err)
			assert.Equal(t, backend, entry.Backend)

			inst, err := p.Open(ctx, "owner-1")
			require.NoError(t, err)
			folder, err := inst.CreateFolder(ctx, "HardDrive::docs", vfs.NamespaceHardDrive)
			require.NoError(t, err)
			fileID, err := inst.UpsertFile(ctx, "HardDrive::docs/a.txt", vfs.NamespaceHardDrive)
			require.NoError(t, err)
			require.NoError(t, inst.UpdateUsername(ctx, "carol"))
			require.NoError(t, inst.Close())

			reopened, err := p.Open(ctx, "owner-1")
			require.NoError(t, err)
			defer reopened.Close()

			got, err := reopened.GetFolderByPath(ctx, "HardDrive::docs/")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, folder.ID, got.ID)

			file, err := reopened.GetFileByPath(ctx, "HardDrive::docs/a.txt")
			require.NoError(t, err)
			require.NotNil(t, file)
			assert.Equal(t, fileID, file.ID)

			name, err := reopened.Username(ctx)
			require.NoError(t, err)
			assert.Equal(t, "carol@owner-1", name)

			// New ids never collide with restored ones.
			nextID, err := reopened.UpsertFile(ctx, "HardDrive::docs/a.txt", vfs.NamespaceHardDrive)
			require.NoError(t, err)
			assert.NotEqual(t, fileID, nextID)
		})
	}
}

func TestOpenLocked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := testProvisioner(t, storage.BackendSQLite)

	entry, err := p.CreateDrive(ctx, "owner-1", "alice")
	require.NoError(t, err)

	inst, err := p.Open(ctx, "owner-1")
	require.NoError(t, err)

	_, err = p.Open(ctx, "owner-1")
	assert.ErrorIs(t, err, common.ErrDriveLocked)

	require.NoError(t, inst.Close())

	// Another holder of the lock file blocks Open the same way.
	held := flock.New(entry.DataFile + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	_, err = p.Open(ctx, "owner-1")
	assert.ErrorIs(t, err, common.ErrDriveLocked)
	require.NoError(t, held.Unlock())

	inst, err = p.Open(ctx, "owner-1")
	require.NoError(t, err)
	assert.NoError(t, inst.Close())
}

func TestOpenUnknownOwner(t *testing.T) {
	t.Parallel()
	p := testProvisioner(t, storage.BackendSQLite)

	_, err := p.Open(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOpenMissingData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := testProvisioner(t, storage.BackendSQLite)

	entry, err := p.CreateDrive(ctx, "owner-1", "alice")
	require.NoError(t, err)
	require.NoError(t, os.Remove(entry.DataFile))

	// A recreated empty store has no snapshot to restore.
	_, err = p.Open(ctx, "owner-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// The lock was released on failure.
	held := flock.New(entry.DataFile + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	held.Unlock()
}

func TestDefaultProvisionerConfig(t *testing.T) {
	isolateConfig(t)

	settings, err := LoadGlobalSettings()
	require.NoError(t, err)
	cfg := DefaultProvisionerConfig(settings)

	assert.Equal(t, MetaFilePath(), cfg.MetaPath)
	assert.Equal(t, DrivesDir(), cfg.DrivesDir)
	assert.Equal(t, storage.BackendSQLite, cfg.Backend)
	assert.Equal(t, int64(5), int64(cfg.LockWait.Seconds()))

	p, err := NewProvisioner(cfg)
	require.NoError(t, err)
	defer p.Close()
	assert.DirExists(t, DrivesDir())
}
