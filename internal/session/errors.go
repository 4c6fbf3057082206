package session

import "codeberg.org/mutker/ffdash/internal/errors"

const (
	ErrPersistSession = errors.ErrorCode("session_persist_failed")
)
