// pkg/assets/scrape_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: httptest
// PURPOSE: Test HTML/CSS discovery and its degrade-to-empty contract

package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapeSiteCollectsPageAssets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>
<head>
  <link rel="stylesheet" href="styles/site.css">
  <style>body { background: url("bg.png"); }</style>
</head>
<body>
  <img src="hero.jpg">
  <a href="reader.html">read</a>
  <div style="background-image: url('inline.png')"></div>
  <img src="data:image/png;base64,AAAA">
  <a href="javascript:void(0)">nope</a>
  <a href="#top">anchor</a>
</body></html>`))
	})
	mux.HandleFunc("/styles/site.css", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`.cover { background: url(../images/cover-frame.png); }
@font-face { src: url("fonts/serif.woff2"); }`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r := NewResolver(srv.URL, srv.Client(), 0)
	got := r.scrapeSite(context.Background())

	assert.Contains(t, got, srv.URL+"/index.html")
	assert.Contains(t, got, srv.URL+"/styles/site.css")
	assert.Contains(t, got, srv.URL+"/bg.png")
	assert.Contains(t, got, srv.URL+"/hero.jpg")
	assert.Contains(t, got, srv.URL+"/reader.html")
	assert.Contains(t, got, srv.URL+"/inline.png")
	// css refs resolve against the stylesheet location
	assert.Contains(t, got, srv.URL+"/images/cover-frame.png")
	assert.Contains(t, got, srv.URL+"/styles/fonts/serif.woff2")

	for _, u := range got {
		assert.NotContains(t, u, "data:")
		assert.NotContains(t, u, "javascript:")
		assert.NotContains(t, u, "#")
	}
}

func TestScrapeSiteMissingIndexDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	r := NewResolver(srv.URL, srv.Client(), 0)
	assert.Empty(t, r.scrapeSite(context.Background()))
}

func TestScrapeSiteUnreachableStylesheetIsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<link rel="stylesheet" href="gone.css"><img src="kept.png">`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r := NewResolver(srv.URL, srv.Client(), 0)
	got := r.scrapeSite(context.Background())

	assert.Contains(t, got, srv.URL+"/kept.png")
	assert.Contains(t, got, srv.URL+"/gone.css")
}

func TestCSSRefs(t *testing.T) {
	css := `
body { background: url( "a.png" ); }
.x { background-image: url('b.png'), url(c.png); }
.broken { color: red
`
	refs := cssRefs(css)
	assert.Contains(t, refs, "a.png")
	assert.Contains(t, refs, "b.png")
	assert.Contains(t, refs, "c.png")
}

func TestScrapeHTMLGarbageDegradesQuietly(t *testing.T) {
	// goquery parses almost anything; the contract is only "never panic,
	// never error out of the session"
	assert.NotPanics(t, func() {
		scrapeHTML([]byte("\x00\x01<<<not html"))
	})
}
