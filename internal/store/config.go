package store

import (
	"path/filepath"

	"codeberg.org/mutker/ffdash/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm     = 0o755
	defaultDBPath      = "/var/lib/ffdash/ffdash.db"
	defaultMaxSessions = 20
)

type Config struct {
	DBPath string
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Defaults to a "backups" directory next to DBPath.
	BackupDir   string
	MaxSessions int
}

func DefaultConfig() Config {
	return Config{
		DBPath:      defaultDBPath,
		MaxSessions: defaultMaxSessions,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.MaxSessions <= 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{"max_sessions", c.MaxSessions})
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
