package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"drivefs/internal/common"
	"drivefs/internal/vfs"
)

// insertChunkSize bounds rows per INSERT so the widest model stays well
// under SQLite's bound-variable limit.
const insertChunkSize = 64

// BunDB wraps a Bun database instance for type-safe queries.
type BunDB struct {
	*bun.DB
}

// NewBunDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewBunDB(sqlDB *sql.DB) *BunDB {
	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	return &BunDB{DB: bunDB}
}

// GetConfigValue retrieves a config value by key.
func (db *BunDB) GetConfigValue(ctx context.Context, key string) (string, error) {
	var config ConfigModel
	err := db.NewSelect().
		Model(&config).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return config.Value, nil
}

// SetConfigValue sets a config value (upserts).
func (db *BunDB) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := db.NewInsert().
		Model(&ConfigModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

// --- Schema Info Operations ---

// GetSchemaInfo retrieves a schema info value by key.
func (db *BunDB) GetSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// SetSchemaInfo sets a schema info value (upserts).
func (db *BunDB) SetSchemaInfo(ctx context.Context, key, value string) error {
	_, err := db.NewInsert().
		Model(&SchemaInfoModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

// --- Snapshot Operations ---

// SaveSnapshot replaces the stored drive state with s in one transaction.
func (db *BunDB) SaveSnapshot(ctx context.Context, s *vfs.Snapshot) error {
	folders := make([]FolderModel, 0, len(s.Folders))
	for _, id := range slices.Sorted(maps.Keys(s.Folders)) {
		m, err := FolderModelFromRecord(s.Folders[id])
		if err != nil {
			return fmt.Errorf("encode folder %s: %w", id, err)
		}
		folders = append(folders, *m)
	}
	files := make([]FileModel, 0, len(s.Files))
	for _, id := range slices.Sorted(maps.Keys(s.Files)) {
		m, err := FileModelFromRecord(s.Files[id])
		if err != nil {
			return fmt.Errorf("encode file %s: %w", id, err)
		}
		files = append(files, *m)
	}
	folderPaths := make([]FolderPathModel, 0, len(s.FolderPaths))
	for _, path := range slices.Sorted(maps.Keys(s.FolderPaths)) {
		folderPaths = append(folderPaths, FolderPathModel{Path: path, ID: s.FolderPaths[path]})
	}
	filePaths := make([]FilePathModel, 0, len(s.FilePaths))
	for _, path := range slices.Sorted(maps.Keys(s.FilePaths)) {
		filePaths = append(filePaths, FilePathModel{Path: path, ID: s.FilePaths[path]})
	}

	info := &DriveInfoModel{
		ID:         1,
		Owner:      string(s.Owner),
		Username:   s.Username,
		InstanceID: s.InstanceID,
		IDCounter:  int64(s.IDCounter),
		SavedAt:    time.Now().Unix(),
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []any{
			(*DriveInfoModel)(nil),
			(*FolderModel)(nil),
			(*FileModel)(nil),
			(*FolderPathModel)(nil),
			(*FilePathModel)(nil),
		} {
			if _, err := tx.NewDelete().Model(model).Where("1 = 1").Exec(ctx); err != nil {
				return fmt.Errorf("clear table: %w", err)
			}
		}
		if _, err := tx.NewInsert().Model(info).Exec(ctx); err != nil {
			return fmt.Errorf("insert drive info: %w", err)
		}
		if err := insertChunked(ctx, tx, folders); err != nil {
			return fmt.Errorf("insert folders: %w", err)
		}
		if err := insertChunked(ctx, tx, files); err != nil {
			return fmt.Errorf("insert files: %w", err)
		}
		if err := insertChunked(ctx, tx, folderPaths); err != nil {
			return fmt.Errorf("insert folder paths: %w", err)
		}
		if err := insertChunked(ctx, tx, filePaths); err != nil {
			return fmt.Errorf("insert file paths: %w", err)
		}
		log.WithFields(log.Fields{
			"owner":   s.Owner,
			"folders": len(folders),
			"files":   len(files),
		}).Debug("storage: snapshot saved")
		return nil
	})
}

func insertChunked[T any](ctx context.Context, idb bun.IDB, rows []T) error {
	for start := 0; start < len(rows); start += insertChunkSize {
		chunk := rows[start:min(start+insertChunkSize, len(rows))]
		if _, err := idb.NewInsert().Model(&chunk).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reads the stored drive state. It returns common.ErrNotFound
// when nothing has been saved yet.
func (db *BunDB) LoadSnapshot(ctx context.Context) (*vfs.Snapshot, error) {
	var info DriveInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("id = 1").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("drive info: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	s := &vfs.Snapshot{
		Owner:       vfs.Identity(info.Owner),
		Username:    info.Username,
		InstanceID:  info.InstanceID,
		IDCounter:   uint64(info.IDCounter),
		Folders:     make(map[string]*vfs.FolderRecord),
		Files:       make(map[string]*vfs.FileRecord),
		FolderPaths: make(map[string]string),
		FilePaths:   make(map[string]string),
	}

	var folders []FolderModel
	if err := db.NewSelect().Model(&folders).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select folders: %w", err)
	}
	for i := range folders {
		rec, err := folders[i].ToRecord()
		if err != nil {
			return nil, err
		}
		s.Folders[rec.ID] = rec
	}

	var files []FileModel
	if err := db.NewSelect().Model(&files).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	for i := range files {
		rec, err := files[i].ToRecord()
		if err != nil {
			return nil, err
		}
		s.Files[rec.ID] = rec
	}

	var folderPaths []FolderPathModel
	if err := db.NewSelect().Model(&folderPaths).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select folder paths: %w", err)
	}
	for _, p := range folderPaths {
		s.FolderPaths[p.Path] = p.ID
	}

	var filePaths []FilePathModel
	if err := db.NewSelect().Model(&filePaths).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select file paths: %w", err)
	}
	for _, p := range filePaths {
		s.FilePaths[p.Path] = p.ID
	}
	return s, nil
}

// --- Drive Registry Operations ---

// InsertDriveEntry registers a drive and fills in its index.
func (db *BunDB) InsertDriveEntry(ctx context.Context, entry *DriveEntryModel) error {
	// Use RETURNING clause to get the index (libsql doesn't support LastInsertId)
	_, err := db.NewInsert().
		Model(entry).
		Returning("idx").
		Exec(ctx)
	return err
}

// GetDriveByOwner finds the drive registered to owner, or nil.
func (db *BunDB) GetDriveByOwner(ctx context.Context, owner string) (*DriveEntryModel, error) {
	var entry DriveEntryModel
	err := db.NewSelect().
		Model(&entry).
		Where("owner = ?", owner).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetDriveByIndex finds the drive with the given registry index, or nil.
func (db *BunDB) GetDriveByIndex(ctx context.Context, idx int64) (*DriveEntryModel, error) {
	var entry DriveEntryModel
	err := db.NewSelect().
		Model(&entry).
		Where("idx = ?", idx).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListDriveEntries returns every registered drive ordered by index.
func (db *BunDB) ListDriveEntries(ctx context.Context) ([]DriveEntryModel, error) {
	var entries []DriveEntryModel
	err := db.NewSelect().
		Model(&entries).
		Order("idx").
		Scan(ctx)
	return entries, err
}

// CountDriveEntries returns the number of registered drives.
func (db *BunDB) CountDriveEntries(ctx context.Context) (int, error) {
	return db.NewSelect().Model((*DriveEntryModel)(nil)).Count(ctx)
}

// DeleteDriveEntry removes the drive registered to owner.
func (db *BunDB) DeleteDriveEntry(ctx context.Context, owner string) (int64, error) {
	result, err := db.NewDelete().
		Model((*DriveEntryModel)(nil)).
		Where("owner = ?", owner).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
