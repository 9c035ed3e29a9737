package swap

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/logging"
)

// CopyTree deep-copies the tree rooted at src into dst, creating dst if
// needed and overwriting existing files. Symlinks are recreated as
// symlinks with their target string copied verbatim, never followed.
// Sockets, devices and fifos are skipped: content trees hold plain web
// assets, so anything non-regular is noise rather than data.
func CopyTree(src, dst string) error {
	logger := logging.GetLogger("swap.copytree")

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.Wrapf(walkErr, errors.ErrTreeCopy, "walking %s", p)
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTreeCopy, "relativizing %s", p)
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return errors.Wrapf(err, errors.ErrTreeCopy, "stating %s", p)
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return errors.Wrapf(err, errors.ErrTreeCopy, "creating directory %s", target)
			}
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return errors.Wrapf(err, errors.ErrTreeCopy, "reading symlink %s", p)
			}
			_ = os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return errors.Wrapf(err, errors.ErrTreeCopy, "recreating symlink %s", target)
			}
		case info.Mode().IsRegular():
			if err := copyFile(p, target, info.Mode().Perm()); err != nil {
				return err
			}
		default:
			logger.Debug().Str("path", p).Str("mode", info.Mode().String()).Msg("Skipping special file")
		}
		return nil
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTreeCopy, "opening %s", src)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTreeCopy, "creating %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, errors.ErrTreeCopy, "copying %s", src)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrTreeCopy, "closing %s", dst)
	}
	return nil
}
