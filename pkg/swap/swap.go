// Package swap commits a staged content tree over the live one with a
// crash-safe two-step rename. At every externally observable instant the
// dist dir refers to exactly one complete, previously-valid tree; readers
// never see a half-written directory. This depends on rename(2) being
// atomic within one volume, which is why the staging siblings live next
// to the dist dir. A cross-volume placement fails loudly, it is never
// papered over with copy semantics.
package swap

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/logging"
)

// MarkerFile holds the RFC-3339 commit timestamp inside the dist dir.
// Hosts poll it to detect completion.
const MarkerFile = ".updated_at"

// BackupSuffix names the displaced previous tree during the swap window
const BackupSuffix = ".bak"

// State tracks the swap lifecycle
type State int

// Swap states in order
const (
	StateBuilding State = iota
	StateStaged
	StateSwapping
	StateCommitted
	StateRolledBack
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateStaged:
		return "staged"
	case StateSwapping:
		return "swapping"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Swapper builds the merged next tree and commits it atomically
type Swapper struct {
	distDir string
	distTmp string
	state   State
	logger  zerolog.Logger
}

// NewSwapper creates a Swapper for one dist dir and its staging sibling
func NewSwapper(distDir, distTmp string) *Swapper {
	return &Swapper{
		distDir: distDir,
		distTmp: distTmp,
		state:   StateBuilding,
		logger:  logging.GetLogger("swap"),
	}
}

// State returns the current lifecycle state
func (s *Swapper) State() State {
	return s.state
}

// Build constructs the next tree: a deep copy of the current dist dir
// overlaid with everything in tempRoot. Copy, not move: corruption in the
// staging area must never reach the working copy before commit.
func (s *Swapper) Build(tempRoot string) error {
	s.state = StateBuilding

	if err := os.RemoveAll(s.distTmp); err != nil {
		return errors.Wrapf(err, errors.ErrSwap, "clearing stale next tree %s", s.distTmp)
	}

	if _, err := os.Stat(s.distDir); err == nil {
		if err := CopyTree(s.distDir, s.distTmp); err != nil {
			return err
		}
	} else if err := os.MkdirAll(s.distTmp, 0755); err != nil {
		// fresh install: there is no current tree to carry over
		return errors.Wrapf(err, errors.ErrSwap, "creating next tree %s", s.distTmp)
	}

	if err := CopyTree(tempRoot, s.distTmp); err != nil {
		return err
	}

	s.state = StateStaged
	s.logger.Debug().Str("distTmp", s.distTmp).Msg("Next tree staged")
	return nil
}

// Commit replaces the dist dir with the staged next tree via displace and
// promote renames, then finalizes: the backup and tempRoot are removed and
// the commit marker is written. On a rename failure the previous tree is
// restored if it was already displaced, and the error is re-raised.
func (s *Swapper) Commit(tempRoot string) error {
	if s.state != StateStaged {
		return errors.Newf(errors.ErrSwap, "commit called in state %s", s.state)
	}
	s.state = StateSwapping

	bak := s.distDir + BackupSuffix
	if err := os.RemoveAll(bak); err != nil {
		return errors.Wrapf(err, errors.ErrSwap, "clearing stale backup %s", bak)
	}

	hadOld := false
	if _, err := os.Stat(s.distDir); err == nil {
		hadOld = true
		// Displace
		if err := os.Rename(s.distDir, bak); err != nil {
			return s.fail(err, bak, "displacing current tree")
		}
	}

	// Promote
	if err := os.Rename(s.distTmp, s.distDir); err != nil {
		return s.fail(err, bak, "promoting next tree")
	}

	// Finalize: failures past this point cannot unseat the new tree
	if hadOld {
		if err := os.RemoveAll(bak); err != nil {
			s.logger.Warn().Err(err).Str("bak", bak).Msg("Failed to remove displaced tree")
		}
	}
	if err := os.RemoveAll(tempRoot); err != nil {
		s.logger.Warn().Err(err).Str("tempRoot", tempRoot).Msg("Failed to remove staging tree")
	}
	if err := WriteCommitMarker(s.distDir, time.Now()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write commit marker")
	}

	s.state = StateCommitted
	s.logger.Info().Str("distDir", s.distDir).Msg("Content tree committed")
	return nil
}

// fail attempts rollback and wraps the original error. Rollback applies
// only when the old tree was displaced and the dist dir is missing; if
// restoring fails too, both errors surface together and the state is
// flagged as needing operator intervention.
func (s *Swapper) fail(cause error, bak, action string) error {
	swapErr := errors.Wrapf(cause, errors.ErrSwap, "%s", action)

	_, bakErr := os.Stat(bak)
	_, distErr := os.Stat(s.distDir)
	if bakErr == nil && os.IsNotExist(distErr) {
		if rbErr := os.Rename(bak, s.distDir); rbErr != nil {
			return errors.Wrapf(rbErr, errors.ErrSwapRollback,
				"rollback failed after swap error (%v)", swapErr).
				WithDetail("swapError", swapErr.Error()).
				WithDetail("manualIntervention", true)
		}
		s.state = StateRolledBack
		s.logger.Warn().Err(cause).Str("distDir", s.distDir).Msg("Swap failed, previous tree restored")
		return swapErr
	}

	s.state = StateRolledBack
	return swapErr
}

// WriteCommitMarker stamps the dist dir with a commit timestamp
func WriteCommitMarker(distDir string, at time.Time) error {
	data := []byte(at.UTC().Format(time.RFC3339) + "\n")
	return os.WriteFile(filepath.Join(distDir, MarkerFile), data, 0644)
}

// ReadCommitMarker returns the last commit timestamp, zero if absent
func ReadCommitMarker(distDir string) (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(distDir, MarkerFile))
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
}
