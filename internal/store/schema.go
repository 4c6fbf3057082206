package store

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS sessions (
	       seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	       id            TEXT NOT NULL UNIQUE,
	       game_name     TEXT NOT NULL,
	       duration_ms   INTEGER NOT NULL CHECK (duration_ms >= 0),
	       avg_fps       REAL NOT NULL,
	       min_fps       INTEGER NOT NULL,
	       max_fps       INTEGER NOT NULL,
	       avg_cpu_temp  REAL NOT NULL,
	       max_cpu_temp  REAL NOT NULL,
	       avg_gpu_temp  REAL NOT NULL,
	       max_gpu_temp  REAL NOT NULL,
	       samples       INTEGER NOT NULL CHECK (samples > 0),
	       started_at    INTEGER NOT NULL,
	       saved_at      INTEGER NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS settings (
	       key         TEXT PRIMARY KEY,
	       value       TEXT NOT NULL,
	       updated_at  INTEGER NOT NULL
	   );`

	insertSessionSQL = `
    INSERT INTO sessions (
        id, game_name, duration_ms,
        avg_fps, min_fps, max_fps,
        avg_cpu_temp, max_cpu_temp,
        avg_gpu_temp, max_gpu_temp,
        samples, started_at, saved_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Keeps the newest ? sessions.
	evictSessionsSQL = `
    DELETE FROM sessions
    WHERE seq NOT IN (
        SELECT seq FROM sessions ORDER BY seq DESC LIMIT ?
    )`

	selectSessionColumns = `
    SELECT id, game_name, duration_ms,
        avg_fps, min_fps, max_fps,
        avg_cpu_temp, max_cpu_temp,
        avg_gpu_temp, max_gpu_temp,
        samples, started_at, saved_at
    FROM sessions`

	recordVersionSQL = `INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`

	upsertSettingSQL = `
    INSERT INTO settings (key, value, updated_at)
    VALUES (?, ?, ?)
    ON CONFLICT(key) DO UPDATE SET
        value = excluded.value,
        updated_at = excluded.updated_at`
)

// InitSchema creates the tables and records SchemaVersion.
func InitSchema(db *sql.DB, log logger.Logger) error {
	log.Debug().Msg("Creating database...")

	err := withTx(context.Background(), db, log, ErrSchemaInitFailed, func(tx *sql.Tx) error {
		if _, err := tx.Exec(createTablesSQL); err != nil {
			return stageError(ErrSchemaInitFailed, stage{Phase: "create_tables"}, err)
		}
		if _, err := tx.Exec(recordVersionSQL, SchemaVersion); err != nil {
			return stageError(ErrSchemaInitFailed, stage{Phase: "record_version"}, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized")

	return nil
}

// GetSchemaVersion returns the newest recorded schema version, or 0 for an
// empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, stageError(ErrSchemaValidationFailed, stage{Phase: "get_version"}, err)
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`,
		tableName,
	).Scan(&exists)
	if err != nil {
		return false, stageError(ErrSchemaValidationFailed, stage{Phase: "check_table_exists", Table: tableName}, err)
	}
	return exists, nil
}
