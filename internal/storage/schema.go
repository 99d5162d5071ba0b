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
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const SchemaVersion = "1"

// Default busy_timeout in milliseconds (30 seconds)
const DefaultBusyTimeout = 30000

// Environment variable names for busy_timeout configuration
const (
	// EnvBusyTimeout is the general busy_timeout override for all contexts
	EnvBusyTimeout = "DRIVEFS_BUSY_TIMEOUT"
	// EnvDaemonBusyTimeout is the busy_timeout for drive instances
	EnvDaemonBusyTimeout = "DRIVEFS_DAEMON_BUSY_TIMEOUT"
	// EnvCLIBusyTimeout is the busy_timeout for one-shot CLI access
	EnvCLIBusyTimeout = "DRIVEFS_CLI_BUSY_TIMEOUT"
)

// File type markers stored in schema_info.type
const (
	FileTypeData = "data"
	FileTypeMeta = "meta"
)

// DBContext indicates the context in which the database is being accessed
type DBContext int

const (
	// DBContextDefault uses the general busy_timeout
	DBContextDefault DBContext = iota
	// DBContextDaemon uses the instance-specific busy_timeout
	DBContextDaemon
	// DBContextCLI uses the CLI-specific busy_timeout
	DBContextCLI
)

// Package-level config values (set via SetConfigBusyTimeouts)
var (
	configDaemonBusyTimeout int
	configCLIBusyTimeout    int
)

// SetConfigBusyTimeouts sets the settings-file busy_timeout values.
// Values of 0 are ignored (use env var or default).
func SetConfigBusyTimeouts(daemonTimeout, cliTimeout int) {
	configDaemonBusyTimeout = daemonTimeout
	configCLIBusyTimeout = cliTimeout
}

// GetBusyTimeout returns the busy_timeout value for the given context.
// Priority: specific env (daemon/cli) > general env > settings file > default
func GetBusyTimeout(ctx DBContext) int {
	var specificEnv string
	var configTimeout int
	switch ctx {
	case DBContextDaemon:
		specificEnv = EnvDaemonBusyTimeout
		configTimeout = configDaemonBusyTimeout
	case DBContextCLI:
		specificEnv = EnvCLIBusyTimeout
		configTimeout = configCLIBusyTimeout
	}

	if specificEnv != "" {
		if timeout, ok := envTimeout(specificEnv); ok {
			return timeout
		}
	}
	if timeout, ok := envTimeout(EnvBusyTimeout); ok {
		return timeout
	}
	if configTimeout > 0 {
		return configTimeout
	}
	return DefaultBusyTimeout
}

func envTimeout(name string) (int, bool) {
	val := os.Getenv(name)
	if val == "" {
		return 0, false
	}
	timeout, err := strconv.Atoi(val)
	if err != nil || timeout <= 0 {
		return 0, false
	}
	return timeout, true
}

// BuildDSN builds the SQLite DSN with the appropriate busy_timeout for the context
func BuildDSN(path string, ctx DBContext) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, GetBusyTimeout(ctx))
}

// Schema SQL for a drive data file. One file holds one drive.
const dataFileSchema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Single row describing the drive itself
CREATE TABLE IF NOT EXISTS drive_info (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    owner TEXT NOT NULL,
    username TEXT NOT NULL,
    instance_id TEXT NOT NULL,
    id_counter INTEGER NOT NULL DEFAULT 0,
    saved_at INTEGER NOT NULL
);

-- Folder records, tombstoned ones included. Id lists and tags are JSON arrays.
CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    parent_id TEXT NOT NULL DEFAULT '',
    subfolder_ids TEXT NOT NULL DEFAULT '[]',
    file_ids TEXT NOT NULL DEFAULT '[]',
    full_path TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    owner TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    namespace TEXT NOT NULL,
    last_modified_ms INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0
);

-- File versions, superseded ones included
CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    folder_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    prior_version TEXT NOT NULL DEFAULT '',
    next_version TEXT NOT NULL DEFAULT '',
    extension TEXT NOT NULL DEFAULT '',
    full_path TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    owner TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    namespace TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    content_url TEXT NOT NULL DEFAULT '',
    last_modified_ms INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id);

-- Path indices: live path -> id
CREATE TABLE IF NOT EXISTS folder_paths (
    path TEXT PRIMARY KEY,
    id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_paths (
    path TEXT PRIMARY KEY,
    id TEXT NOT NULL
);
`

const initDataFile = `
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('version', ?);
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('type', 'data');
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('created_at', datetime('now'));
`

// Schema SQL for the meta file (drive registry)
const metaFileSchema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drives (
    idx INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    data_file TEXT NOT NULL,
    backend TEXT NOT NULL,
    instance_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drives_owner ON drives(owner);

CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const initMetaFile = `
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('version', ?);
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('type', 'meta');
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('created_at', datetime('now'));
`

// execStatements executes multiple SQL statements separated by semicolons.
// libsql driver doesn't support multi-statement Exec, so we split and execute individually.
func execStatements(db *sql.DB, sqlScript string, args ...any) error {
	argIdx := 0
	for _, stmt := range splitStatements(sqlScript) {
		n := strings.Count(stmt, "?")
		if argIdx+n > len(args) {
			return fmt.Errorf("statement needs %d args, %d left: %s", n, len(args)-argIdx, stmt)
		}
		if _, err := db.Exec(stmt, args[argIdx:argIdx+n]...); err != nil {
			return err
		}
		argIdx += n
	}
	return nil
}

// splitStatements splits a SQL script into individual statements, dropping
// comment lines.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
