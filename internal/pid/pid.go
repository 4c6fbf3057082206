package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/ffdash/internal/errors"
)

const defaultName = "ffdash.pid"

// DefaultPath is used when no PID file is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), defaultName)
}

// Write records the current process ID at path. It fails with
// ErrAlreadyRunning when the file names a live process. A stale or
// unreadable file is overwritten.
func Write(path string) error {
	errFactory := errors.New()
	if path == "" {
		path = DefaultPath()
	}

	if running, err := alive(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	} else if running {
		return errFactory.WithData(errors.ErrAlreadyRunning, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the PID file. A missing file is not an error.
func Remove(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}

	return process.Signal(syscall.Signal(0)) == nil, nil
}
