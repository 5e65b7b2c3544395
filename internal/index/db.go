// Package index owns the SQLite store: schema, the synchronized
// full-text index, read accessors, and the incremental indexer that is
// the store's only writer.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// schemaVersion is bumped whenever the schema or parsing semantics
// change. A mismatch drops and recreates every table; the emptied
// indexed_files table then forces a full reindex.
const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    project_id     TEXT PRIMARY KEY,
    provider       TEXT NOT NULL DEFAULT 'claude',
    project_path   TEXT NOT NULL DEFAULT '',
    project_name   TEXT NOT NULL DEFAULT '',
    session_count  INTEGER NOT NULL DEFAULT 0,
    first_activity TEXT NOT NULL DEFAULT '',
    last_activity  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
    session_id                  TEXT PRIMARY KEY,
    project_id                  TEXT REFERENCES projects(project_id),
    provider                    TEXT NOT NULL DEFAULT 'claude',
    file_path                   TEXT NOT NULL,
    first_prompt                TEXT NOT NULL DEFAULT '',
    summary                     TEXT NOT NULL DEFAULT '',
    message_count               INTEGER NOT NULL DEFAULT 0,
    user_message_count          INTEGER NOT NULL DEFAULT 0,
    assistant_message_count     INTEGER NOT NULL DEFAULT 0,
    tool_call_count             INTEGER NOT NULL DEFAULT 0,
    total_input_tokens          INTEGER NOT NULL DEFAULT 0,
    total_output_tokens         INTEGER NOT NULL DEFAULT 0,
    total_cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
    total_cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
    model                       TEXT NOT NULL DEFAULT '',
    models_used                 TEXT NOT NULL DEFAULT '',
    git_branch                  TEXT NOT NULL DEFAULT '',
    cwd                         TEXT NOT NULL DEFAULT '',
    created_at                  TEXT NOT NULL DEFAULT '',
    modified_at                 TEXT NOT NULL DEFAULT '',
    duration_ms                 INTEGER NOT NULL DEFAULT 0,
    is_sidechain                INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    session_id            TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    uuid                  TEXT NOT NULL,
    parent_uuid           TEXT,
    type                  TEXT NOT NULL,
    role                  TEXT NOT NULL DEFAULT '',
    model                 TEXT NOT NULL DEFAULT '',
    content_text          TEXT NOT NULL DEFAULT '',
    content_json          TEXT NOT NULL DEFAULT '[]',
    input_tokens          INTEGER NOT NULL DEFAULT 0,
    output_tokens         INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
    cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
    timestamp             TEXT NOT NULL DEFAULT '',
    is_sidechain          INTEGER NOT NULL DEFAULT 0,
    sequence_num          INTEGER NOT NULL,
    category_mask         INTEGER NOT NULL DEFAULT 0,
    UNIQUE (session_id, uuid)
);

CREATE TABLE IF NOT EXISTS tool_calls (
    session_id   TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    tool_use_id  TEXT NOT NULL,
    message_uuid TEXT NOT NULL,
    tool_name    TEXT NOT NULL,
    input_json   TEXT NOT NULL DEFAULT '{}',
    timestamp    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (session_id, tool_use_id)
);

CREATE TABLE IF NOT EXISTS indexed_files (
    file_path     TEXT PRIMARY KEY,
    file_mtime_ms INTEGER NOT NULL,
    file_size     INTEGER NOT NULL,
    indexed_at    TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content_text,
    content='messages',
    content_rowid='rowid',
    tokenize='porter unicode61'
);

-- triggers keep the FTS index synchronized with the canonical rows
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content_text) VALUES (new.rowid, new.content_text);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content_text)
        VALUES ('delete', old.rowid, old.content_text);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content_text)
        VALUES ('delete', old.rowid, old.content_text);
    INSERT INTO messages_fts(rowid, content_text) VALUES (new.rowid, new.content_text);
END;

CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);
CREATE INDEX IF NOT EXISTS idx_sessions_file_path ON sessions(file_path);
CREATE INDEX IF NOT EXISTS idx_sessions_modified ON sessions(modified_at);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(type);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id);
CREATE INDEX IF NOT EXISTS idx_tool_calls_name ON tool_calls(tool_name);
`

type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the index database. The store is a
// rebuildable local cache, so durability favors write throughput: WAL
// journaling with relaxed synchronous commits.
func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// recursive_triggers makes REPLACE fire the FTS delete trigger, so
	// re-inserting a duplicate uuid cannot leave a dangling FTS row.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=recursive_triggers(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

func (d *DB) initSchema() error {
	if _, err := d.db.Exec(
		"CREATE TABLE IF NOT EXISTS app_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)",
	); err != nil {
		return err
	}

	var stored string
	err := d.db.QueryRow("SELECT value FROM app_meta WHERE key = 'schema_version'").Scan(&stored)
	if err != nil || stored != strconv.Itoa(schemaVersion) {
		// No migration path: destroy and rebuild, then reindex from source.
		if err := d.dropAll(); err != nil {
			return err
		}
	}

	if _, err := d.db.Exec(schema); err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT OR REPLACE INTO app_meta (key, value) VALUES ('schema_version', ?)",
		strconv.Itoa(schemaVersion),
	)
	return err
}

func (d *DB) dropAll() error {
	drops := []string{
		"DROP TABLE IF EXISTS messages_fts",
		"DROP TABLE IF EXISTS tool_calls",
		"DROP TABLE IF EXISTS messages",
		"DROP TABLE IF EXISTS sessions",
		"DROP TABLE IF EXISTS projects",
		"DROP TABLE IF EXISTS indexed_files",
	}
	for _, stmt := range drops {
		if _, err := d.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Raw exposes the underlying connection for the search engine and
// read-only collaborators.
func (d *DB) Raw() *sql.DB {
	return d.db
}

type fingerprint struct {
	mtimeMS int64
	size    int64
}

// loadFingerprints reads the whole indexed_files table so an index run
// checks files against memory instead of per-file queries.
func (d *DB) loadFingerprints() (map[string]fingerprint, error) {
	rows, err := d.db.Query("SELECT file_path, file_mtime_ms, file_size FROM indexed_files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]fingerprint)
	for rows.Next() {
		var path string
		var fp fingerprint
		if err := rows.Scan(&path, &fp.mtimeMS, &fp.size); err != nil {
			return nil, err
		}
		out[path] = fp
	}
	return out, rows.Err()
}

// loadSessionPaths maps each indexed file path to its session id. A
// file whose session row is missing or renamed must be reindexed even
// when its fingerprint is unchanged.
func (d *DB) loadSessionPaths() (map[string]string, error) {
	rows, err := d.db.Query("SELECT file_path, session_id FROM sessions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, id string
		if err := rows.Scan(&path, &id); err != nil {
			return nil, err
		}
		out[path] = id
	}
	return out, rows.Err()
}

// NeedsReindex reports whether a session file's fingerprint differs
// from the recorded one. Absent entries force reindexing.
func (d *DB) NeedsReindex(filePath string, mtimeMS, size int64) bool {
	var storedMtime, storedSize int64
	err := d.db.QueryRow(
		"SELECT file_mtime_ms, file_size FROM indexed_files WHERE file_path = ?",
		filePath,
	).Scan(&storedMtime, &storedSize)
	if err != nil {
		return true
	}
	return storedMtime != mtimeMS || storedSize != size
}
