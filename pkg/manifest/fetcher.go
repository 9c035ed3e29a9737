package manifest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/logging"
)

// DefaultTimeout bounds the remote manifest fetch
const DefaultTimeout = 8 * time.Second

// CheckResult is the outcome of a version comparison
type CheckResult struct {
	Available     bool   `json:"available"`
	LocalVersion  string `json:"localVersion"`
	RemoteVersion string `json:"remoteVersion"`
}

// Fetcher retrieves and compares local and remote manifests
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher creates a Fetcher. A nil client falls back to
// http.DefaultClient; a zero timeout falls back to DefaultTimeout.
func NewFetcher(client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{client: client, timeout: timeout}
}

// FetchRemote retrieves {baseURL}/content.json. Network failures, timeouts
// and HTTP status >= 400 yield ErrManifestFetch; malformed JSON yields
// ErrManifestParse.
func (f *Fetcher) FetchRemote(ctx context.Context, baseURL string) (*Manifest, error) {
	url := strings.TrimRight(baseURL, "/") + "/" + FileName

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestFetch, "building request for %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestFetch, "fetching %s", url).
			WithDetail("url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, errors.Newf(errors.ErrManifestFetch, "fetching %s: HTTP %d", url, resp.StatusCode).
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestFetch, "reading %s", url)
	}

	m, err := Parse(body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "parsing %s", url).
			WithDetail("url", url)
	}
	return m, nil
}

// ReadLocal reads {distDir}/content.json. A missing or unreadable file and
// a parse failure all mean "no local version" and return nil; a fresh
// install looks exactly like a corrupt one from the caller's perspective.
func ReadLocal(distDir string) *Manifest {
	logger := logging.GetLogger("manifest")

	data, err := os.ReadFile(filepath.Join(distDir, FileName))
	if err != nil {
		logger.Debug().Err(err).Str("distDir", distDir).Msg("No readable local manifest")
		return nil
	}

	m, err := Parse(data)
	if err != nil {
		logger.Warn().Err(err).Str("distDir", distDir).Msg("Local manifest is corrupt, treating as fresh install")
		return nil
	}
	return m
}

// Check compares the local and remote manifest versions. It performs no
// writes and no asset downloads. Available is true iff the remote has a
// version and the local either has none or differs.
func (f *Fetcher) Check(ctx context.Context, distDir, baseURL string) (CheckResult, error) {
	remote, err := f.FetchRemote(ctx, baseURL)
	if err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{RemoteVersion: remote.Version}
	if local := ReadLocal(distDir); local != nil {
		result.LocalVersion = local.Version
	}
	result.Available = remote.Version != "" && result.LocalVersion != remote.Version
	return result, nil
}
