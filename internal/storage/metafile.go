package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"drivefs/internal/common"
	"drivefs/internal/util"
	"drivefs/internal/vfs"
)

// DriveEntry is a registered drive in the meta file
type DriveEntry struct {
	Index      int64
	Owner      vfs.Identity
	Username   string
	DataFile   string // Path of the drive's data file or directory
	Backend    string // Storage backend: "sqlite" or "badger"
	InstanceID string
	CreatedAt  time.Time
}

// MetaFile is the SQLite-backed drive registry
type MetaFile struct {
	path  string
	db    *sql.DB
	bunDB *BunDB
}

// CreateMeta creates a new meta file with default context
func CreateMeta(path string) (*MetaFile, error) {
	return CreateMetaWithContext(path, DBContextDefault)
}

// CreateMetaWithContext creates a new meta file with the specified context.
func CreateMetaWithContext(path string, ctx DBContext) (*MetaFile, error) {
	db, err := createDB(path, ctx, metaFileSchema, initMetaFile)
	if err != nil {
		return nil, err
	}
	return &MetaFile{
		path:  path,
		db:    db,
		bunDB: NewBunDB(db),
	}, nil
}

// OpenMeta opens an existing meta file with default context
func OpenMeta(path string) (*MetaFile, error) {
	return OpenMetaWithContext(path, DBContextDefault)
}

// OpenMetaWithContext opens an existing meta file with the specified context.
func OpenMetaWithContext(path string, ctx DBContext) (*MetaFile, error) {
	db, bunDB, err := openTypedDB(path, ctx, FileTypeMeta)
	if err != nil {
		return nil, err
	}
	return &MetaFile{
		path:  path,
		db:    db,
		bunDB: bunDB,
	}, nil
}

// OpenOrCreateMeta opens an existing meta file or creates a new one with default context
func OpenOrCreateMeta(path string) (*MetaFile, error) {
	return OpenOrCreateMetaWithContext(path, DBContextDefault)
}

// OpenOrCreateMetaWithContext opens an existing meta file or creates a new one with the specified context
func OpenOrCreateMetaWithContext(path string, ctx DBContext) (*MetaFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CreateMetaWithContext(path, ctx)
	}
	return OpenMetaWithContext(path, ctx)
}

// Close closes the database connection
func (mf *MetaFile) Close() error {
	if mf.db != nil {
		return mf.db.Close()
	}
	return nil
}

// Path returns the file path
func (mf *MetaFile) Path() string {
	return mf.path
}

// BunDB returns the Bun database wrapper.
func (mf *MetaFile) BunDB() *BunDB {
	return mf.bunDB
}

// AddDrive registers a drive and returns the stored entry with its index.
// Registering a second drive for the same owner fails with common.ErrDriveExists.
func (mf *MetaFile) AddDrive(ctx context.Context, entry DriveEntry) (*DriveEntry, error) {
	existing, err := mf.bunDB.GetDriveByOwner(ctx, string(entry.Owner))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("owner %s: %w", entry.Owner, common.ErrDriveExists)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	model := &DriveEntryModel{
		Owner:      string(entry.Owner),
		Username:   entry.Username,
		DataFile:   entry.DataFile,
		Backend:    entry.Backend,
		InstanceID: entry.InstanceID,
		CreatedAt:  entry.CreatedAt.Unix(),
	}
	err = util.Retry(ctx, func() error {
		return mf.bunDB.InsertDriveEntry(ctx, model)
	}, util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return nil, err
	}
	return model.ToDriveEntry(), nil
}

// UpdateDriveFile points an existing registration at a new data file.
func (mf *MetaFile) UpdateDriveFile(ctx context.Context, owner vfs.Identity, dataFile string) error {
	res, err := mf.bunDB.NewUpdate().
		Model((*DriveEntryModel)(nil)).
		Set("data_file = ?", dataFile).
		Where("owner = ?", string(owner)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("owner %s: %w", owner, common.ErrNotFound)
	}
	return nil
}

// RemoveDrive unregisters the drive owned by owner.
func (mf *MetaFile) RemoveDrive(ctx context.Context, owner vfs.Identity) error {
	rows, err := mf.bunDB.DeleteDriveEntry(ctx, string(owner))
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("owner %s: %w", owner, common.ErrNotFound)
	}
	return nil
}

// DriveByOwner returns the drive registered to owner, or nil when there is none.
func (mf *MetaFile) DriveByOwner(ctx context.Context, owner vfs.Identity) (*DriveEntry, error) {
	model, err := mf.bunDB.GetDriveByOwner(ctx, string(owner))
	if err != nil || model == nil {
		return nil, err
	}
	return model.ToDriveEntry(), nil
}

// DriveByIndex returns the drive with registry index idx, or nil.
func (mf *MetaFile) DriveByIndex(ctx context.Context, idx int64) (*DriveEntry, error) {
	model, err := mf.bunDB.GetDriveByIndex(ctx, idx)
	if err != nil || model == nil {
		return nil, err
	}
	return model.ToDriveEntry(), nil
}

// CountDrives returns the number of registered drives.
func (mf *MetaFile) CountDrives(ctx context.Context) (int, error) {
	return mf.bunDB.CountDriveEntries(ctx)
}

// ListDrives returns all registered drives ordered by index.
func (mf *MetaFile) ListDrives(ctx context.Context) ([]DriveEntry, error) {
	models, err := mf.bunDB.ListDriveEntries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]DriveEntry, len(models))
	for i := range models {
		entries[i] = *models[i].ToDriveEntry()
	}
	return entries, nil
}

// GetConfig returns a config value, or "" when unset.
func (mf *MetaFile) GetConfig(key string) (string, error) {
	return mf.bunDB.GetConfigValue(context.Background(), key)
}

// SetConfig stores a config value.
func (mf *MetaFile) SetConfig(key, value string) error {
	return mf.bunDB.SetConfigValue(context.Background(), key, value)
}
