package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/assets"
	"github.com/shelfsync/shelfsync/pkg/download"
	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/manifest"
	"github.com/shelfsync/shelfsync/pkg/progress"
	"github.com/shelfsync/shelfsync/pkg/swap"
)

// Session owns the state of one update run: the dist dir and its staging
// siblings. The siblings live next to the dist dir so every rename in the
// commit stays on one volume. A session is created per Run call and all
// temporary paths are gone when Run returns, success or failure.
type Session struct {
	distDir  string
	baseURL  string
	tempRoot string
	distTmp  string
	lockPath string
	opts     Options
	logger   zerolog.Logger
}

// NewSession creates a session for one dist dir and remote base URL
func NewSession(distDir, baseURL string, opts Options) *Session {
	distDir = filepath.Clean(distDir)
	return &Session{
		distDir:  distDir,
		baseURL:  baseURL,
		tempRoot: distDir + ".staging",
		distTmp:  distDir + ".next",
		lockPath: distDir + ".lock",
		opts:     opts,
		logger:   logging.GetLogger("updater"),
	}
}

func (s *Session) parentDir() string {
	return filepath.Dir(s.distDir)
}

// Run executes the full pipeline: version gate, asset resolution,
// download, enrichment and atomic swap.
func (s *Session) Run(ctx context.Context, sink progress.Sink) (Result, error) {
	if err := s.acquireLock(); err != nil {
		return Result{}, err
	}
	defer s.releaseLock()

	reporter := progress.NewReporter(sink, false)

	result, err := s.run(ctx, reporter)
	if err != nil {
		reporter.Message(fmt.Sprintf("Update failed: %v", err))
		s.cleanupTemp()
		return result, err
	}
	return result, nil
}

func (s *Session) run(ctx context.Context, reporter *progress.Reporter) (Result, error) {
	done := logging.LogOperationStart(s.logger, "update-session")
	defer done()

	reporter.Message("Checking for updates")

	fetcher := manifest.NewFetcher(s.opts.Client, s.opts.Timeouts.Manifest)
	remote, err := fetcher.FetchRemote(ctx, s.baseURL)
	if err != nil {
		return Result{}, err
	}

	result := Result{RemoteVersion: remote.Version}
	if local := manifest.ReadLocal(s.distDir); local != nil {
		result.LocalVersion = local.Version
	}

	if remote.Version == "" {
		result.Reason = ReasonNoRemoteVersion
		reporter.Message("Content is up to date")
		s.logger.Warn().Msg("Remote manifest carries no version, nothing to compare")
		return result, nil
	}
	if result.LocalVersion == remote.Version {
		result.Reason = ReasonSameVersion
		reporter.Message("Content is up to date")
		s.logger.Info().Str("version", result.LocalVersion).Msg("No update needed")
		return result, nil
	}

	// Stale siblings from a crashed run would poison the overlay
	s.cleanupTemp()

	reporter.Step(progress.PhaseAnalyze, 0.3, "Analyzing remote content")

	resolver := assets.NewResolver(s.baseURL, s.opts.Client, s.opts.Timeouts.Manifest)
	files := resolver.Resolve(ctx, remote)

	var enrichment []assets.Asset
	if s.opts.Enrichment {
		enrichment = resolver.Enrichment(remote)
	}
	reporter.SetEnrichment(len(enrichment) > 0)

	reporter.Step(progress.PhaseAnalyze, 1,
		fmt.Sprintf("Update %s -> %s: %d files to fetch", orNone(result.LocalVersion), remote.Version, len(files)))

	pipeline := download.NewPipeline(s.opts.Client, s.opts.Timeouts, reporter)
	if err := pipeline.Fetch(ctx, s.tempRoot, files); err != nil {
		return result, err
	}
	if len(enrichment) > 0 {
		if err := pipeline.Enrich(ctx, s.tempRoot, enrichment); err != nil {
			return result, err
		}
	}

	reporter.Message("Committing new content tree")

	swapper := swap.NewSwapper(s.distDir, s.distTmp)
	if err := swapper.Build(s.tempRoot); err != nil {
		return result, err
	}
	if err := swapper.Commit(s.tempRoot); err != nil {
		return result, err
	}

	result.Updated = true
	reporter.Complete(fmt.Sprintf("Updated to version %s", remote.Version))
	s.logger.Info().
		Str("from", result.LocalVersion).
		Str("to", remote.Version).
		Msg("Update committed")
	return result, nil
}

// cleanupTemp removes both staging siblings. The dist dir is never
// touched here; only the swapper mutates it.
func (s *Session) cleanupTemp() {
	for _, dir := range []string{s.tempRoot, s.distTmp} {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove staging directory")
		}
	}
}

func orNone(version string) string {
	if version == "" {
		return "(none)"
	}
	return version
}
