package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"drivefs/internal/common"
	"drivefs/internal/vfs"
)

var idLine = regexp.MustCompile(`id:\s+([0-9a-f]{64})`)

// run executes the CLI with args and returns its stdout. Flag variables are
// package globals, so they are reset before every run.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	asIdentity, driveOwner, logLevel = "", "", ""
	treeNamespace, statByID = "", false
	lsLimit, lsAfter = 50, 0
	exportFmt, statsFormat = "yaml", "yaml"
	initBackend, initIdentity, initUsername, initMetrics = "", "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "drivefs %v: %s", args, out)
	return out
}

func firstID(t *testing.T, out string) string {
	t.Helper()
	m := idLine.FindStringSubmatch(out)
	require.NotNil(t, m, "no id in output:\n%s", out)
	return m[1]
}

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DRIVEFS_CONFIG_DIR", dir)
	return dir
}

func TestInitCommand(t *testing.T) {
	dir := setupCLI(t)

	out := mustRun(t, "init", "--backend", "badger", "--identity", "owner-1")
	assert.Contains(t, out, dir)
	assert.Contains(t, out, "backend:  badger")
	assert.DirExists(t, filepath.Join(dir, "drives"))

	data, err := os.ReadFile(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "identity: owner-1")
}

func TestDriveLifecycle(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "--as", "owner-1", "drive", "create", "alice")
	assert.Contains(t, out, "Created drive 1 for owner-1")

	_, err := run(t, "--as", "owner-1", "drive", "create", "again")
	assert.ErrorIs(t, err, common.ErrDriveExists)

	_, err = run(t, "drive", "create", "anon")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	mustRun(t, "--as", "owner-2", "drive", "create", "bob")
	out = mustRun(t, "drive", "list")
	assert.Contains(t, out, "owner-1")
	assert.Contains(t, out, "owner-2")

	out = mustRun(t, "--as", "owner-1", "drive", "info")
	assert.Contains(t, out, "Display name: alice@owner-1")
	assert.Contains(t, out, "Folders:      0")
}

func TestTreeCommands(t *testing.T) {
	setupCLI(t)
	mustRun(t, "--as", "owner-1", "drive", "create", "alice")

	out := mustRun(t, "--as", "owner-1", "mkdir", "BrowserCache::docs")
	folderID := firstID(t, out)

	out = mustRun(t, "--as", "owner-1", "put", "BrowserCache::docs/a.txt")
	fileID := firstID(t, out)
	assert.Contains(t, out, "version:   1")

	out = mustRun(t, "--as", "owner-1", "put", "BrowserCache::docs/a.txt")
	v2 := firstID(t, out)
	assert.Contains(t, out, "version:   2")

	out = mustRun(t, "history", "--drive", "owner-1", v2)
	assert.Contains(t, out, fileID)
	assert.Contains(t, out, v2)

	out = mustRun(t, "ls", "--drive", "owner-1", "BrowserCache::docs")
	assert.Contains(t, out, "a.txt")
	assert.NotContains(t, out, fileID, "superseded versions are not listed")

	out = mustRun(t, "--as", "owner-1", "mv-folder", folderID, "papers")
	assert.Contains(t, out, "BrowserCache::papers/")

	out = mustRun(t, "--as", "owner-1", "stat", "BrowserCache::papers/a.txt")
	assert.Contains(t, out, v2)

	// Readers may look but not touch.
	_, err := run(t, "--as", "intruder", "--drive", "owner-1", "rm-file", v2)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	mustRun(t, "--as", "owner-1", "rm-file", v2)
	_, err = run(t, "--as", "owner-1", "stat", "--id", v2)
	assert.ErrorIs(t, err, common.ErrNotFound)

	mustRun(t, "--as", "owner-1", "rm-folder", folderID)
	out = mustRun(t, "--as", "owner-1", "stat", "--id", folderID)
	assert.Contains(t, out, "deleted:   yes")
}

func TestExportAndSync(t *testing.T) {
	dir := setupCLI(t)
	mustRun(t, "--as", "owner-1", "drive", "create", "alice")
	out := mustRun(t, "--as", "owner-1", "put", "HardDrive::a.txt")
	fileID := firstID(t, out)

	meta := filepath.Join(dir, "a.yaml")
	content := "full_path: HardDrive::b.txt\nnamespace: HardDrive\nsize: 2048\ncontent_url: blob://1\n"
	require.NoError(t, os.WriteFile(meta, []byte(content), 0600))

	out = mustRun(t, "--as", "owner-1", "sync-file", fileID, meta)
	assert.Contains(t, out, "HardDrive::b.txt")
	assert.Contains(t, out, "version:   2")
	assert.Contains(t, out, "size:      2048")

	_, err := run(t, "--as", "owner-1", "sync-file", fileID, meta)
	assert.ErrorIs(t, err, common.ErrStaleVersion)

	out = mustRun(t, "--as", "owner-1", "export")
	var snap vfs.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &snap))
	assert.Equal(t, vfs.Identity("owner-1"), snap.Owner)
	assert.Equal(t, "alice", snap.Username)
	assert.Len(t, snap.Files, 2)

	out = mustRun(t, "--as", "owner-1", "export", "--format", "json")
	assert.Contains(t, out, `"owner": "owner-1"`)

	_, err = run(t, "--as", "owner-1", "export", "--format", "xml")
	assert.Error(t, err)
}

func TestUsernameCommand(t *testing.T) {
	setupCLI(t)
	mustRun(t, "--as", "owner-1", "drive", "create", "alice")

	out := mustRun(t, "--as", "owner-1", "username")
	assert.Equal(t, "alice@owner-1\n", out)

	out = mustRun(t, "--as", "owner-1", "username", "carol")
	assert.Equal(t, "carol@owner-1\n", out)

	_, err := run(t, "--as", "owner-1", "username", "!!!")
	assert.ErrorIs(t, err, common.ErrInvalidUsername)
}

func TestMissingDrive(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "--as", "owner-1", "ls", "BrowserCache::")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "drivefs drive create")
}

func TestNamespaceFor(t *testing.T) {
	tests := []struct {
		flag, path string
		want       vfs.Namespace
		wantErr    bool
	}{
		{"", "HardDrive::x", vfs.NamespaceHardDrive, false},
		{"Web3Storj", "HardDrive::x", vfs.NamespaceWeb3Storj, false},
		{"", "nonamespace", vfs.NamespaceBrowserCache, false},
		{"Dropbox", "", "", true},
	}

	for _, tt := range tests {
		got, err := namespaceFor(tt.flag, tt.path)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
