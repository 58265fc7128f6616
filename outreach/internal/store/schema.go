package store

import (
	"database/sql"
	"fmt"
)

// Schema is idempotent. Timestamps are Unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS targets (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	skills          TEXT NOT NULL DEFAULT '[]',
	category        TEXT NOT NULL DEFAULT '',
	source_url      TEXT NOT NULL UNIQUE,
	source_platform TEXT NOT NULL,
	endpoint_url    TEXT,
	website_url     TEXT,
	source_data     TEXT NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'UNCLAIMED',
	imported_at     INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_targets_status ON targets(status, imported_at DESC);

CREATE TABLE IF NOT EXISTS attempts (
	id               TEXT PRIMARY KEY,
	target_id        TEXT NOT NULL,
	target_name      TEXT NOT NULL,
	target_url       TEXT NOT NULL,
	contact_url      TEXT NOT NULL,
	channel          TEXT NOT NULL,
	request_payload  TEXT,
	response_payload TEXT,
	response_status  INTEGER,
	status           TEXT NOT NULL,
	error_message    TEXT,
	invite_token     TEXT,
	campaign         TEXT NOT NULL DEFAULT 'auto',
	attempt_number   INTEGER NOT NULL DEFAULT 1,
	next_retry_at    INTEGER,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	UNIQUE(target_url, channel)
);
CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_target ON attempts(target_id);

CREATE TABLE IF NOT EXISTS opt_outs (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	reason     TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invites (
	token      TEXT PRIMARY KEY,
	campaign   TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	agent_name TEXT NOT NULL,
	agent_data TEXT NOT NULL DEFAULT '{}',
	max_uses   INTEGER NOT NULL DEFAULT 1,
	created_by TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

// ApplySchema creates all tables and runs column migrations.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	applyColumnMigration(db, "targets", "category", "ALTER TABLE targets ADD COLUMN category TEXT NOT NULL DEFAULT ''")
	return nil
}

// applyColumnMigration adds a column to databases created before it existed.
func applyColumnMigration(db *sql.DB, table, column, ddl string) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk) == nil && name == column {
			return
		}
	}
	rows.Close()
	db.Exec(ddl)
}
