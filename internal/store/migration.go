package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
)

// backupTables lists the tables dropped when the schema is recreated, in
// dependency order.
var backupTables = []string{"sessions", "settings", "schema_versions"}

// backupDatabase copies the live database into dir with VACUUM INTO and
// returns the backup path.
func backupDatabase(db *sql.DB, dir string, version int, log logger.Logger) (string, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", stageError(ErrSchemaInitFailed, stage{Phase: "create_backup_dir", Path: dir}, err)
	}

	name := fmt.Sprintf("ffdash_v%d_%s.db", version, time.Now().UTC().Format("20060102T150405Z"))
	backupPath := filepath.Join(dir, name)

	// VACUUM INTO cannot run inside a transaction.
	quoted := strings.ReplaceAll(backupPath, "'", "''")
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return "", stageError(ErrSchemaInitFailed, stage{Phase: "create_backup", Path: backupPath}, err)
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Database backup created")

	return backupPath, nil
}

// ValidateAndUpdateSchema makes sure the database carries SchemaVersion. An
// empty database is initialized; a database at any other version is backed
// up into backupDir and recreated. Stored sessions do not survive a version
// change.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("Schema version is current")
		return nil
	}

	if version != 0 {
		log.Warn().
			Int("found", version).
			Int("want", SchemaVersion).
			Msg("Schema version mismatch, recreating database")

		if _, err := backupDatabase(db, backupDir, version, log); err != nil {
			return errors.New().Wrap(ErrSchemaMigrationFailed, err)
		}
	}

	if err := dropTables(db, log); err != nil {
		return err
	}
	return InitSchema(db, log)
}

func dropTables(db *sql.DB, log logger.Logger) error {
	return withTx(context.Background(), db, log, ErrSchemaMigrationFailed, func(tx *sql.Tx) error {
		for _, table := range backupTables {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return stageError(ErrSchemaMigrationFailed, stage{Phase: "drop_table", Table: table}, err)
			}
		}
		return nil
	})
}
