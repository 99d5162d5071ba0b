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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
	"drivefs/internal/util"
	"drivefs/internal/vfs"
)

// Key layout
//
// Each save writes a complete generation under its own prefix, then flips
// the head key to it. Readers only ever see a fully written generation.
//
//	head                   current generation (decimal)
//	g<gen>:info            driveInfo (JSON)
//	g<gen>:d:<id>          vfs.FolderRecord (JSON)
//	g<gen>:f:<id>          vfs.FileRecord (JSON)
//	g<gen>:pd:<path>       folder id bound to path
//	g<gen>:pf:<path>       file id bound to path
const (
	keyHead          = "head"
	prefixFolder     = "d:"
	prefixFile       = "f:"
	prefixFolderPath = "pd:"
	prefixFilePath   = "pf:"
	suffixInfo       = "info"
)

func genPrefix(gen uint64) string {
	return "g" + strconv.FormatUint(gen, 10) + ":"
}

func keyGen(gen uint64, parts ...string) []byte {
	return []byte(genPrefix(gen) + strings.Join(parts, ""))
}

// driveInfo is the per-generation header record.
type driveInfo struct {
	Owner      vfs.Identity `json:"owner"`
	Username   string       `json:"username"`
	InstanceID string       `json:"instance_id"`
	IDCounter  uint64       `json:"id_counter"`
	SavedAt    int64        `json:"saved_at"`
}

// BadgerFile stores a drive snapshot in a BadgerDB directory.
type BadgerFile struct {
	path string
	db   *badger.DB
}

// OpenBadger opens (or creates) the BadgerDB directory at path.
func OpenBadger(path string) (*BadgerFile, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{log.StandardLogger()}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", path, err)
	}
	return &BadgerFile{path: path, db: db}, nil
}

// OpenBadgerInMemory opens a BadgerDB that lives only in memory.
func OpenBadgerInMemory() (*BadgerFile, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{log.StandardLogger()}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory BadgerDB: %w", err)
	}
	return &BadgerFile{db: db}, nil
}

// Path returns the database directory, empty for in-memory stores.
func (bf *BadgerFile) Path() string {
	return bf.path
}

// Close closes the database.
func (bf *BadgerFile) Close() error {
	if bf.db == nil {
		return nil
	}
	err := bf.db.Close()
	bf.db = nil
	return err
}

func (bf *BadgerFile) head() (uint64, error) {
	var gen uint64
	err := bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyHead))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			gen, err = strconv.ParseUint(string(val), 10, 64)
			return err
		})
	})
	return gen, err
}

// Save writes s as a new generation and makes it current.
func (bf *BadgerFile) Save(ctx context.Context, s *vfs.Snapshot) error {
	old, err := bf.head()
	if err != nil {
		return fmt.Errorf("read head: %w", err)
	}
	gen := old + 1

	wb := bf.db.NewWriteBatch()
	defer wb.Cancel()

	info, err := json.Marshal(driveInfo{
		Owner:      s.Owner,
		Username:   s.Username,
		InstanceID: s.InstanceID,
		IDCounter:  s.IDCounter,
		SavedAt:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode drive info: %w", err)
	}
	if err := wb.Set(keyGen(gen, suffixInfo), info); err != nil {
		return err
	}
	for id, rec := range s.Folders {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode folder %s: %w", id, err)
		}
		if err := wb.Set(keyGen(gen, prefixFolder, id), b); err != nil {
			return err
		}
	}
	for id, rec := range s.Files {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode file %s: %w", id, err)
		}
		if err := wb.Set(keyGen(gen, prefixFile, id), b); err != nil {
			return err
		}
	}
	for path, id := range s.FolderPaths {
		if err := wb.Set(keyGen(gen, prefixFolderPath, path), []byte(id)); err != nil {
			return err
		}
	}
	for path, id := range s.FilePaths {
		if err := wb.Set(keyGen(gen, prefixFilePath, path), []byte(id)); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("write generation %d: %w", gen, err)
	}

	err = util.Retry(ctx, func() error {
		return bf.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(keyHead), []byte(strconv.FormatUint(gen, 10)))
		})
	}, util.KVRetryOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("flip head to %d: %w", gen, err)
	}

	if old > 0 {
		if err := bf.db.DropPrefix([]byte(genPrefix(old))); err != nil {
			log.WithError(err).WithField("generation", old).Warn("storage: failed to drop old generation")
		}
	}
	log.WithFields(log.Fields{
		"owner":      s.Owner,
		"generation": gen,
	}).Debug("storage: snapshot saved")
	return nil
}

// Load reads the current generation. It returns common.ErrNotFound when
// nothing has been saved yet.
func (bf *BadgerFile) Load(ctx context.Context) (*vfs.Snapshot, error) {
	gen, err := bf.head()
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	if gen == 0 {
		return nil, fmt.Errorf("drive info: %w", common.ErrNotFound)
	}

	s := &vfs.Snapshot{
		Folders:     make(map[string]*vfs.FolderRecord),
		Files:       make(map[string]*vfs.FileRecord),
		FolderPaths: make(map[string]string),
		FilePaths:   make(map[string]string),
	}
	prefix := genPrefix(gen)

	err = bf.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefix)
			err := item.Value(func(val []byte) error {
				return decodeEntry(s, key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.InstanceID == "" && s.Owner == "" {
		return nil, fmt.Errorf("generation %d has no drive info: %w", gen, common.ErrStructure)
	}
	return s, nil
}

// decodeEntry stores one generation entry into s.
func decodeEntry(s *vfs.Snapshot, key string, val []byte) error {
	switch {
	case key == suffixInfo:
		var info driveInfo
		if err := json.Unmarshal(val, &info); err != nil {
			return fmt.Errorf("failed to decode drive info: %w", err)
		}
		s.Owner = info.Owner
		s.Username = info.Username
		s.InstanceID = info.InstanceID
		s.IDCounter = info.IDCounter
	case strings.HasPrefix(key, prefixFolderPath):
		s.FolderPaths[strings.TrimPrefix(key, prefixFolderPath)] = string(val)
	case strings.HasPrefix(key, prefixFilePath):
		s.FilePaths[strings.TrimPrefix(key, prefixFilePath)] = string(val)
	case strings.HasPrefix(key, prefixFolder):
		var rec vfs.FolderRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("failed to decode folder %s: %w", key, err)
		}
		s.Folders[rec.ID] = &rec
	case strings.HasPrefix(key, prefixFile):
		var rec vfs.FileRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("failed to decode file %s: %w", key, err)
		}
		s.Files[rec.ID] = &rec
	}
	return nil
}

// badgerLogger routes badger's log output through logrus.
type badgerLogger struct {
	*log.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.Logger.Errorf("badger: "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Logger.Warnf("badger: "+format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.Logger.Debugf("badger: "+format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.Logger.Debugf("badger: "+format, args...)
}
