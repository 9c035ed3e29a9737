package updater

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/shelfsync/shelfsync/pkg/errors"
)

// acquireLock takes the exclusive session lock beside the dist dir.
// Overlapping invocations are rejected, not queued; a lock left behind by
// a dead process is broken and retaken.
func (s *Session) acquireLock() error {
	if err := os.MkdirAll(s.parentDir(), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "creating %s", s.parentDir())
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(s.lockPath)
				// a failed write may still close cleanly and vice versa;
				// wrap whichever actually happened
				cause := werr
				if cause == nil {
					cause = cerr
				}
				lockErr := errors.Wrap(cause, errors.ErrInternal, "writing lock file")
				if werr != nil && cerr != nil {
					lockErr = lockErr.WithDetail("closeError", cerr.Error())
				}
				return lockErr
			}
			return nil
		}
		if !os.IsExist(err) {
			return errors.Wrapf(err, errors.ErrInternal, "creating lock file %s", s.lockPath)
		}

		if s.lockIsStale() {
			s.logger.Warn().Str("lock", s.lockPath).Msg("Breaking stale lock from dead process")
			_ = os.Remove(s.lockPath)
			continue
		}
		return errors.Newf(errors.ErrUpdateInProgress, "another update session holds %s", s.lockPath).
			WithDetail("lock", s.lockPath)
	}
	return errors.Newf(errors.ErrUpdateInProgress, "could not acquire %s", s.lockPath)
}

func (s *Session) releaseLock() {
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("lock", s.lockPath).Msg("Failed to remove lock file")
	}
}

// lockIsStale reports whether the lock holder is gone. An unreadable or
// garbled lock counts as stale.
func (s *Session) lockIsStale() bool {
	data, err := os.ReadFile(s.lockPath)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	if pid == os.Getpid() {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	// signal 0 probes liveness without delivering anything
	return proc.Signal(syscall.Signal(0)) != nil
}
