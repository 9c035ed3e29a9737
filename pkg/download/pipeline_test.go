// pkg/download/pipeline_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: httptest, filesystem (temp dirs)
// PURPOSE: Test streaming, failure cleanup and progress accounting

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync/pkg/assets"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/progress"
)

func testTimeouts() Timeouts {
	return Timeouts{Manifest: time.Second, Asset: time.Second, Media: time.Second}
}

func contentServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func asset(srvURL, rel string) assets.Asset {
	return assets.Asset{URL: srvURL + "/" + rel, RelPath: rel, Class: assets.Classify(rel)}
}

func TestFetchPopulatesStagingTree(t *testing.T) {
	srv := contentServer(t, map[string]string{
		"/content.json":      `{"version":"1"}`,
		"/books/1/cover.png": "png-bytes",
	})

	tempRoot := filepath.Join(t.TempDir(), "staging")
	var updates []progress.Update
	reporter := progress.NewReporter(func(u progress.Update) { updates = append(updates, u) }, false)

	p := NewPipeline(srv.Client(), testTimeouts(), reporter)
	err := p.Fetch(context.Background(), tempRoot, []assets.Asset{
		asset(srv.URL, "content.json"),
		asset(srv.URL, "books/1/cover.png"),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tempRoot, "books", "1", "cover.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	data, err = os.ReadFile(filepath.Join(tempRoot, "content.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1"}`, string(data))

	// progress stayed monotonic and inside the prepare+download bands
	var last float64
	for _, u := range updates {
		require.True(t, u.Determinate)
		assert.GreaterOrEqual(t, u.Percent, last)
		assert.LessOrEqual(t, u.Percent, 100.0)
		last = u.Percent
	}
	assert.Equal(t, 100.0, last, "download band stretches to 100 without enrichment")
}

func TestFetchFailureDeletesStagingTree(t *testing.T) {
	srv := contentServer(t, map[string]string{
		"/ok.png": "bytes",
		// missing.png 404s
	})

	tempRoot := filepath.Join(t.TempDir(), "staging")
	p := NewPipeline(srv.Client(), testTimeouts(), progress.NewReporter(nil, false))

	err := p.Fetch(context.Background(), tempRoot, []assets.Asset{
		asset(srv.URL, "ok.png"),
		asset(srv.URL, "missing.png"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAssetDownload))
	assert.Equal(t, srv.URL+"/missing.png", errors.GetErrorDetails(err)["url"])

	_, statErr := os.Stat(tempRoot)
	assert.True(t, os.IsNotExist(statErr), "staging tree must be gone after failure")
}

func TestFetchZeroByteResultIsFailure(t *testing.T) {
	srv := contentServer(t, map[string]string{"/empty.png": ""})

	tempRoot := filepath.Join(t.TempDir(), "staging")
	p := NewPipeline(srv.Client(), testTimeouts(), progress.NewReporter(nil, false))

	err := p.Fetch(context.Background(), tempRoot, []assets.Asset{asset(srv.URL, "empty.png")})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAssetDownload))

	_, statErr := os.Stat(tempRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchTimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(srv.Close)

	tempRoot := filepath.Join(t.TempDir(), "staging")
	timeouts := Timeouts{Manifest: 50 * time.Millisecond, Asset: 50 * time.Millisecond, Media: 50 * time.Millisecond}
	p := NewPipeline(srv.Client(), timeouts, progress.NewReporter(nil, false))

	err := p.Fetch(context.Background(), tempRoot, []assets.Asset{asset(srv.URL, "slow.png")})
	require.Error(t, err)

	_, statErr := os.Stat(tempRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchCancellationCleansUp(t *testing.T) {
	srv := contentServer(t, map[string]string{"/a.png": "bytes", "/b.png": "bytes"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tempRoot := filepath.Join(t.TempDir(), "staging")
	p := NewPipeline(srv.Client(), testTimeouts(), progress.NewReporter(nil, false))

	err := p.Fetch(ctx, tempRoot, []assets.Asset{asset(srv.URL, "a.png"), asset(srv.URL, "b.png")})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled))

	_, statErr := os.Stat(tempRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnrichFailuresAreSkipped(t *testing.T) {
	srv := contentServer(t, map[string]string{"/books/a/p1.mp3": "audio-bytes"})

	tempRoot := t.TempDir()
	p := NewPipeline(srv.Client(), testTimeouts(), progress.NewReporter(nil, true))

	err := p.Enrich(context.Background(), tempRoot, []assets.Asset{
		asset(srv.URL, "books/a/p1.mp3"),
		asset(srv.URL, "books/a/missing.mp3"),
	})
	require.NoError(t, err, "enrichment failures must never abort the session")

	data, err := os.ReadFile(filepath.Join(tempRoot, "books", "a", "p1.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))

	_, statErr := os.Stat(filepath.Join(tempRoot, "books", "a", "missing.mp3"))
	assert.True(t, os.IsNotExist(statErr), "failed enrichment must not leave a partial file")
}

func TestTimeoutsFor(t *testing.T) {
	tt := DefaultTimeouts()
	assert.Equal(t, 8*time.Second, tt.For(assets.ClassManifest))
	assert.Equal(t, 20*time.Second, tt.For(assets.ClassDefault))
	assert.Equal(t, 120*time.Second, tt.For(assets.ClassMedia))
}
