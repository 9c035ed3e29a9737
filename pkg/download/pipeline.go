// Package download streams resolved assets into a temporary staging tree.
// Files are fetched sequentially, deliberately: the abort contract (stop at
// first failure, delete all staged state) and exact progress accounting
// both depend on it.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/assets"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/progress"
)

// Timeouts holds the per-class fetch deadlines
type Timeouts struct {
	Manifest time.Duration
	Asset    time.Duration
	Media    time.Duration
}

// DefaultTimeouts mirrors the shipped configuration defaults
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Manifest: 8 * time.Second,
		Asset:    20 * time.Second,
		Media:    120 * time.Second,
	}
}

// For returns the deadline for one asset class
func (t Timeouts) For(c assets.Class) time.Duration {
	switch c {
	case assets.ClassManifest:
		return t.Manifest
	case assets.ClassMedia:
		return t.Media
	default:
		return t.Asset
	}
}

// Pipeline downloads asset sets into a staging root
type Pipeline struct {
	client   *http.Client
	timeouts Timeouts
	reporter *progress.Reporter
	logger   zerolog.Logger
}

// NewPipeline creates a Pipeline reporting through the given reporter
func NewPipeline(client *http.Client, timeouts Timeouts, reporter *progress.Reporter) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	return &Pipeline{
		client:   client,
		timeouts: timeouts,
		reporter: reporter,
		logger:   logging.GetLogger("download"),
	}
}

// Fetch populates tempRoot with every file in the set. It owns the
// prepare and download bands. On any failure, including cancellation,
// tempRoot is removed entirely before the error is returned; a partial
// staging tree never survives.
func (p *Pipeline) Fetch(ctx context.Context, tempRoot string, files []assets.Asset) error {
	if err := p.prepare(tempRoot, files); err != nil {
		p.cleanup(tempRoot)
		return err
	}

	total := len(files)
	for i, a := range files {
		if err := ctx.Err(); err != nil {
			p.cleanup(tempRoot)
			return errors.Wrap(err, errors.ErrCancelled, "update cancelled").WithDetail("url", a.URL)
		}

		if err := p.fetchOne(ctx, tempRoot, a, i, total); err != nil {
			p.cleanup(tempRoot)
			return err
		}
	}
	return nil
}

// Enrich fetches optional companion assets into tempRoot. Individual
// failures are logged and skipped; only cancellation aborts.
func (p *Pipeline) Enrich(ctx context.Context, tempRoot string, files []assets.Asset) error {
	total := len(files)
	for i, a := range files {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCancelled, "update cancelled")
		}

		dest := filepath.Join(tempRoot, filepath.FromSlash(a.RelPath))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			p.logger.Warn().Err(err).Str("url", a.URL).Msg("Skipping enrichment asset, mkdir failed")
			continue
		}
		if err := p.download(ctx, dest, a, nil); err != nil {
			p.logger.Warn().Err(err).Str("url", a.URL).Msg("Skipping enrichment asset, fetch failed")
			_ = os.Remove(dest)
		}
		p.reporter.Step(progress.PhaseEnrich, float64(i+1)/float64(total),
			fmt.Sprintf("Fetched narration %d of %d", i+1, total))
	}
	return nil
}

// prepare creates every destination directory, one progress tick per file
func (p *Pipeline) prepare(tempRoot string, files []assets.Asset) error {
	total := len(files)
	for i, a := range files {
		dest := filepath.Join(tempRoot, filepath.FromSlash(a.RelPath))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "creating folder for %s", a.RelPath).
				WithDetail("url", a.URL)
		}
		p.reporter.Step(progress.PhasePrepare, float64(i+1)/float64(total),
			fmt.Sprintf("Prepared folder %d of %d", i+1, total))
	}
	return nil
}

func (p *Pipeline) fetchOne(ctx context.Context, tempRoot string, a assets.Asset, index, total int) error {
	dest := filepath.Join(tempRoot, filepath.FromSlash(a.RelPath))
	name := filepath.Base(dest)

	onBytes := func(received, totalBytes int64) {
		fileFrac := 0.0
		if totalBytes > 0 {
			fileFrac = float64(received) / float64(totalBytes)
		}
		frac := (float64(index) + fileFrac) / float64(total)
		msg := fmt.Sprintf("Downloading %s (%s)", name, humanize.IBytes(uint64(received)))
		if totalBytes > 0 {
			msg = fmt.Sprintf("Downloading %s (%s of %s)", name,
				humanize.IBytes(uint64(received)), humanize.IBytes(uint64(totalBytes)))
		}
		p.reporter.Step(progress.PhaseDownload, frac, msg)
	}

	if err := p.download(ctx, dest, a, onBytes); err != nil {
		return err
	}

	p.reporter.Step(progress.PhaseDownload, float64(index+1)/float64(total),
		fmt.Sprintf("Downloaded %d of %d files", index+1, total))
	return nil
}

// download streams one asset to dest under its class deadline. A completed
// zero-byte file counts as a failure: publishers serve empty bodies for
// half-deployed content and those must never reach the committed tree.
func (p *Pipeline) download(ctx context.Context, dest string, a assets.Asset, onBytes func(received, total int64)) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.For(a.Class))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return errors.Wrapf(err, errors.ErrAssetDownload, "building request for %s", a.URL).
			WithDetail("url", a.URL)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.ErrAssetDownload, "fetching %s", a.URL).
			WithDetail("url", a.URL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return errors.Newf(errors.ErrAssetDownload, "fetching %s: HTTP %d", a.URL, resp.StatusCode).
			WithDetail("url", a.URL).
			WithDetail("status", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrAssetDownload, "creating %s", dest).
			WithDetail("url", a.URL)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = a.Size
	}

	var received int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				_ = out.Close()
				return errors.Wrapf(werr, errors.ErrAssetDownload, "writing %s", dest).
					WithDetail("url", a.URL)
			}
			received += int64(n)
			if onBytes != nil {
				onBytes(received, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = out.Close()
			return errors.Wrapf(rerr, errors.ErrAssetDownload, "streaming %s", a.URL).
				WithDetail("url", a.URL)
		}
	}

	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrAssetDownload, "closing %s", dest).
			WithDetail("url", a.URL)
	}

	if received == 0 {
		return errors.Newf(errors.ErrAssetDownload, "zero-byte result for %s", a.URL).
			WithDetail("url", a.URL)
	}

	p.logger.Debug().Str("url", a.URL).Int64("bytes", received).Msg("Asset downloaded")
	return nil
}

func (p *Pipeline) cleanup(tempRoot string) {
	if err := os.RemoveAll(tempRoot); err != nil {
		p.logger.Error().Err(err).Str("tempRoot", tempRoot).Msg("Failed to delete staging tree")
	}
}
