package index

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// migrateSchema creates the symbols table on a fresh database. Older or newer
// versions are rejected; the index is a cache and can be rebuilt.
func migrateSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	switch version {
	case schemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("symbol index schema v%d is not supported, delete the index and rebuild", version)
	}

	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS symbols (
  project_key    TEXT    NOT NULL,
  canonical_name TEXT    NOT NULL,
  name           TEXT    NOT NULL,
  kind           TEXT    NOT NULL,
  is_function    INTEGER NOT NULL DEFAULT 0,
  parent         TEXT    NOT NULL DEFAULT '',
  interfaces     TEXT    NOT NULL DEFAULT '[]',
  traits         TEXT    NOT NULL DEFAULT '[]',
  methods        TEXT    NOT NULL DEFAULT '[]',
  file_path      TEXT    NOT NULL DEFAULT '',
  line_number    INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, is_function, canonical_name)
);
CREATE INDEX IF NOT EXISTS idx_symbols_project_canonical ON symbols(project_key, canonical_name);
CREATE INDEX IF NOT EXISTS idx_symbols_project_file ON symbols(project_key, file_path);

PRAGMA user_version = 1;
`)
	if err != nil {
		return fmt.Errorf("create v%d schema: %w", schemaVersion, err)
	}
	return nil
}
