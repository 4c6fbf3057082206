package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/alerts"
	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/session"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	keyAlertSettings = "alert_settings"
	keyServerAddress = "server_address"
)

// Mirror receives every saved session. Implementations must not block.
type Mirror interface {
	Enqueue(summary session.Summary)
}

// Repository is the local session history and settings store.
type Repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	now    func() time.Time
	mirror Mirror
	mu     sync.Mutex
}

type Option func(*Repository)

// WithMirror hands every saved session to m.
func WithMirror(m Mirror) Option {
	return func(r *Repository) {
		r.mirror = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func Open(cfg Config, log logger.Logger, opts ...Option) (*Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, stageError(ErrStorageInit, stage{Phase: "create_directory", Path: cfg.DBPath}, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, stageError(ErrStorageInit, stage{Phase: "open_database", Path: cfg.DBPath}, err)
	}
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, stageError(ErrStorageInit, stage{Phase: "schema_version", Path: cfg.DBPath}, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("max_sessions", cfg.MaxSessions).
		Msg("Store initialized")

	repo := &Repository{
		db:     db,
		logger: log,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

// Save inserts summary as the newest session and evicts the oldest sessions
// beyond the configured maximum.
func (r *Repository) Save(ctx context.Context, summary session.Summary) (session.Summary, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return session.Summary{}, errFactory.Wrap(ErrOperationTimeout, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	summary.ID = uuid.NewString()
	summary.SavedAt = r.now().UTC()

	var evicted int64
	err := withTx(ctx, r.db, r.logger, ErrTransactionFailed, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSessionSQL,
			summary.ID,
			summary.GameName,
			summary.DurationMS,
			summary.AvgFPS,
			summary.MinFPS,
			summary.MaxFPS,
			summary.AvgCPUTemp,
			summary.MaxCPUTemp,
			summary.AvgGPUTemp,
			summary.MaxGPUTemp,
			summary.Samples,
			summary.StartedAt.UnixMilli(),
			summary.SavedAt.UnixMilli(),
		); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}

		res, err := tx.ExecContext(ctx, evictSessionsSQL, r.cfg.MaxSessions)
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		evicted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return session.Summary{}, err
	}

	r.logger.Debug().
		Str("id", summary.ID).
		Str("game", summary.GameName).
		Int64("evicted", evicted).
		Msg("Session saved")

	if r.mirror != nil {
		r.mirror.Enqueue(summary)
	}

	return summary, nil
}

// List returns the stored sessions, newest first.
func (r *Repository) List(ctx context.Context) ([]session.Summary, error) {
	errFactory := errors.New()

	rows, err := r.db.QueryContext(ctx, selectSessionColumns+` ORDER BY seq DESC`)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	out := make([]session.Summary, 0, r.cfg.MaxSessions)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

// Get returns the session with the given id.
func (r *Repository) Get(ctx context.Context, id string) (session.Summary, error) {
	errFactory := errors.New()

	row := r.db.QueryRowContext(ctx, selectSessionColumns+` WHERE id = ?`, id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Summary{}, errFactory.WithData(ErrNotFound, id)
	}
	if err != nil {
		return session.Summary{}, errFactory.Wrap(ErrStorageAccess, err)
	}

	return s, nil
}

// Delete removes one session. Deleting an unknown id is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

// Clear removes all sessions.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

// LoadAlertSettings returns the stored alert settings merged over the
// defaults. A missing or unreadable document yields the defaults.
func (r *Repository) LoadAlertSettings(ctx context.Context) (alerts.Settings, error) {
	raw, ok, err := r.get(ctx, keyAlertSettings)
	if err != nil {
		return alerts.DefaultSettings(), err
	}
	if !ok {
		return alerts.DefaultSettings(), nil
	}

	settings, err := alerts.DecodeSettings([]byte(raw))
	if err != nil {
		r.logger.Warn().Err(err).Msg("Stored alert settings are invalid, using defaults")
	}
	return settings, nil
}

func (r *Repository) SaveAlertSettings(ctx context.Context, settings alerts.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return errors.New().Wrap(ErrEncodeValue, err)
	}
	return r.set(ctx, keyAlertSettings, string(data))
}

// ResetAlertSettings stores and returns the default settings.
func (r *Repository) ResetAlertSettings(ctx context.Context) (alerts.Settings, error) {
	defaults := alerts.DefaultSettings()
	return defaults, r.SaveAlertSettings(ctx, defaults)
}

// ServerAddress returns the last address the user connected to, if any.
func (r *Repository) ServerAddress(ctx context.Context) (string, bool, error) {
	return r.get(ctx, keyServerAddress)
}

func (r *Repository) SetServerAddress(ctx context.Context, addr string) error {
	return r.set(ctx, keyServerAddress, addr)
}

func (r *Repository) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return value, true, nil
}

func (r *Repository) set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, upsertSettingSQL, key, value, r.now().UnixMilli()); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (r *Repository) Close() error {
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return stageError(ErrStorageClose, stage{Phase: "checkpoint_wal"}, err)
	}

	if err := r.db.Close(); err != nil {
		return stageError(ErrStorageClose, stage{Phase: "close_database"}, err)
	}

	r.logger.Info().Msg("Store closed gracefully")

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (session.Summary, error) {
	var (
		s                  session.Summary
		startedAt, savedAt int64
	)
	err := row.Scan(
		&s.ID,
		&s.GameName,
		&s.DurationMS,
		&s.AvgFPS,
		&s.MinFPS,
		&s.MaxFPS,
		&s.AvgCPUTemp,
		&s.MaxCPUTemp,
		&s.AvgGPUTemp,
		&s.MaxGPUTemp,
		&s.Samples,
		&startedAt,
		&savedAt,
	)
	if err != nil {
		return session.Summary{}, err
	}
	s.StartedAt = time.UnixMilli(startedAt).UTC()
	s.SavedAt = time.UnixMilli(savedAt).UTC()
	return s, nil
}
