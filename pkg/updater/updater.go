// Package updater exposes the two public entry points of the content
// update engine: a read-only version check and the full update run. The
// host process must not overlap Run calls for one dist dir; overlap is
// rejected via a session lock rather than queued.
package updater

import (
	"context"
	"net/http"

	"github.com/shelfsync/shelfsync/pkg/download"
	"github.com/shelfsync/shelfsync/pkg/manifest"
	"github.com/shelfsync/shelfsync/pkg/progress"
)

// Short-circuit reasons reported on Result when no update runs
const (
	// ReasonSameVersion means the remote version matches the local one
	ReasonSameVersion = "same-version"
	// ReasonNoRemoteVersion means the remote manifest carries no version
	// to compare against
	ReasonNoRemoteVersion = "no-remote-version"
)

// Result is the outcome of one update run
type Result struct {
	Updated       bool   `json:"updated"`
	Reason        string `json:"reason,omitempty"`
	LocalVersion  string `json:"localVersion"`
	RemoteVersion string `json:"remoteVersion"`
}

// Options tunes one session
type Options struct {
	// Client is the HTTP client for every fetch. Nil means
	// http.DefaultClient.
	Client *http.Client
	// Timeouts are the per-class fetch deadlines
	Timeouts download.Timeouts
	// Enrichment enables the companion audio phase
	Enrichment bool
}

// DefaultOptions mirrors the shipped configuration defaults
func DefaultOptions() Options {
	return Options{
		Timeouts:   download.DefaultTimeouts(),
		Enrichment: true,
	}
}

// Check compares local and remote manifest versions. No writes, no asset
// downloads.
func Check(ctx context.Context, distDir, baseURL string) (manifest.CheckResult, error) {
	return CheckWithOptions(ctx, distDir, baseURL, DefaultOptions())
}

// CheckWithOptions is Check with explicit options
func CheckWithOptions(ctx context.Context, distDir, baseURL string, opts Options) (manifest.CheckResult, error) {
	f := manifest.NewFetcher(opts.Client, opts.Timeouts.Manifest)
	return f.Check(ctx, distDir, baseURL)
}

// Run performs a full update session with default options. On success the
// dist dir contains the new tree; on any failure it is unchanged from its
// pre-call state and no staging directories remain.
func Run(ctx context.Context, distDir, baseURL string, sink progress.Sink) (Result, error) {
	return NewSession(distDir, baseURL, DefaultOptions()).Run(ctx, sink)
}
