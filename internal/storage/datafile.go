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

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"

	"drivefs/internal/util"
	"drivefs/internal/vfs"
)

// DataFile is a SQLite-backed drivefs data file holding one drive.
type DataFile struct {
	path  string
	db    *sql.DB
	bunDB *BunDB
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB, ctx DBContext) error {
	// Busy timeout first so journal_mode=WAL waits for locks.
	busyTimeout := GetBusyTimeout(ctx)
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout)); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	if err := execPragma(db, "PRAGMA cache_size = -8000"); err != nil {
		return fmt.Errorf("failed to set cache_size: %w", err)
	}
	return nil
}

// openDB opens path with pragmas applied.
func openDB(path string, ctx DBContext) (*sql.DB, error) {
	db, err := sql.Open("libsql", BuildDSN(path, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyPragmas(db, ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// createDB creates a new database at path and runs the schema scripts.
// The file is removed again if any step fails.
func createDB(path string, ctx DBContext, schema, init string) (*sql.DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}

	db, err := openDB(path, ctx)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	// Execute statements individually for libsql compatibility
	if err := execStatements(db, schema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := execStatements(db, init, SchemaVersion); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize file: %w", err)
	}
	return db, nil
}

// openTypedDB opens an existing database and checks its schema_info type.
func openTypedDB(path string, ctx DBContext, wantType string) (*sql.DB, *BunDB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("file not found: %s", path)
	}

	db, err := openDB(path, ctx)
	if err != nil {
		return nil, nil, err
	}

	bunDB := NewBunDB(db)
	fileType, err := bunDB.GetSchemaInfo(context.Background(), "type")
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to read schema info: %w", err)
	}
	if fileType != wantType {
		db.Close()
		return nil, nil, fmt.Errorf("not a %s file (type=%s)", wantType, fileType)
	}
	return db, bunDB, nil
}

// Create creates a new data file with default context
func Create(path string) (*DataFile, error) {
	return CreateWithContext(path, DBContextDefault)
}

// CreateWithContext creates a new data file with the specified context.
func CreateWithContext(path string, ctx DBContext) (*DataFile, error) {
	db, err := createDB(path, ctx, dataFileSchema, initDataFile)
	if err != nil {
		return nil, err
	}
	return &DataFile{
		path:  path,
		db:    db,
		bunDB: NewBunDB(db),
	}, nil
}

// Open opens an existing data file with default context
func Open(path string) (*DataFile, error) {
	return OpenWithContext(path, DBContextDefault)
}

// OpenWithContext opens an existing data file with the specified context.
func OpenWithContext(path string, ctx DBContext) (*DataFile, error) {
	db, bunDB, err := openTypedDB(path, ctx, FileTypeData)
	if err != nil {
		return nil, err
	}
	return &DataFile{
		path:  path,
		db:    db,
		bunDB: bunDB,
	}, nil
}

// OpenOrCreate opens path if it exists and creates it otherwise.
func OpenOrCreate(path string, ctx DBContext) (*DataFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CreateWithContext(path, ctx)
	}
	return OpenWithContext(path, ctx)
}

// Close closes the database connection and cleans up WAL files.
// It performs a TRUNCATE checkpoint to merge WAL data into the main database,
// then removes the -wal and -shm files.
func (df *DataFile) Close() error {
	if df.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns rows, so Query() not Exec()
	rows, err := df.db.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		log.WithError(err).Warn("storage: WAL checkpoint failed")
	} else {
		rows.Close()
	}

	if err := df.db.Close(); err != nil {
		return err
	}
	df.db = nil

	os.Remove(df.path + "-wal")
	os.Remove(df.path + "-shm")
	return nil
}

// Path returns the file path
func (df *DataFile) Path() string {
	return df.path
}

// DB returns the underlying *sql.DB for use with Bun or other wrappers.
func (df *DataFile) DB() *sql.DB {
	return df.db
}

// BunDB returns the Bun database wrapper.
func (df *DataFile) BunDB() *BunDB {
	return df.bunDB
}

// Save writes the snapshot, retrying on transient lock errors.
func (df *DataFile) Save(ctx context.Context, s *vfs.Snapshot) error {
	return util.Retry(ctx, func() error {
		return df.bunDB.SaveSnapshot(ctx, s)
	}, util.DatabaseRetryOptions(ctx)...)
}

// Load reads the last saved snapshot.
func (df *DataFile) Load(ctx context.Context) (*vfs.Snapshot, error) {
	return util.RetryWithResult(ctx, func() (*vfs.Snapshot, error) {
		return df.bunDB.LoadSnapshot(ctx)
	}, util.DatabaseRetryOptions(ctx)...)
}
