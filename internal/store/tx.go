package store

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
)

// stage is the data attached to storage errors: which step failed and on
// what.
type stage struct {
	Phase string
	Path  string `json:",omitempty"`
	Table string `json:",omitempty"`
	Error string
}

func stageError(code errors.ErrorCode, s stage, err error) errors.Error {
	if err != nil {
		s.Error = err.Error()
	}
	return errors.New().WithData(code, s)
}

// withTx runs fn inside a transaction. Begin and commit failures are
// reported with code; errors from fn are returned unchanged after rollback.
func withTx(ctx context.Context, db *sql.DB, log logger.Logger, code errors.ErrorCode, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New().Wrap(code, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Debug().Err(err).Msg("Failed to roll back transaction")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return stageError(code, stage{Phase: "commit"}, err)
	}
	committed = true

	return nil
}
