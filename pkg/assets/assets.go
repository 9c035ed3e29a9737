// Package assets computes the full set of files an update must fetch:
// either verbatim from an explicit manifest file list, or by heuristic
// discovery over the manifest structure plus a best-effort page scrape.
package assets

import (
	"net/url"
	"path"
	"strings"

	"github.com/shelfsync/shelfsync/pkg/manifest"
)

// Class buckets an asset by the fetch timeout it deserves
type Class int

// Timeout classes
const (
	// ClassManifest covers manifest-class small files: json, html, css
	ClassManifest Class = iota
	// ClassDefault covers ordinary assets such as images
	ClassDefault
	// ClassMedia covers large audio/video containers
	ClassMedia
)

// Asset is the canonical unit of work for the download pipeline
type Asset struct {
	URL     string
	RelPath string
	Size    int64
	Class   Class
}

// Classify buckets a destination path by extension
func Classify(relPath string) Class {
	switch strings.ToLower(path.Ext(relPath)) {
	case ".json", ".html", ".htm", ".css", ".js":
		return ClassManifest
	case ".mp4", ".webm", ".mov", ".mkv", ".avi", ".mp3", ".m4a", ".wav", ".ogg":
		return ClassMedia
	default:
		return ClassDefault
	}
}

// ResolveBookRef resolves a raw reference from book data to an absolute
// URL. Absolute URLs pass through; a leading slash resolves against the
// base; a bare filename is book-scoped under books/{id}/; anything else
// resolves relative to the base.
func ResolveBookRef(baseURL string, bookID manifest.BookID, ref string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case isAbsoluteURL(ref):
		return ref
	case strings.HasPrefix(ref, "/"):
		return base + ref
	case !strings.Contains(ref, "/"):
		return base + "/books/" + bookID.String() + "/" + ref
	default:
		return base + "/" + ref
	}
}

// RelPathFor derives the destination path for an absolute URL: the URL
// path relative to the base for same-host URLs, basename otherwise.
// The result is always a clean relative path with no escapes.
func RelPathFor(baseURL, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return sanitizeRel(path.Base(rawURL))
	}
	b, err := url.Parse(baseURL)
	if err == nil && u.Host == b.Host && strings.HasPrefix(u.Path, strings.TrimRight(b.Path, "/")+"/") {
		rel := strings.TrimPrefix(u.Path, strings.TrimRight(b.Path, "/")+"/")
		return sanitizeRel(rel)
	}
	return sanitizeRel(path.Base(u.Path))
}

// sanitizeRel confines a relative path below the staging root
func sanitizeRel(rel string) string {
	rel = path.Clean("/" + rel)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "asset"
	}
	return rel
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// set keeps assets deduplicated by URL string in insertion order
type set struct {
	seen  map[string]bool
	items []Asset
}

func newSet() *set {
	return &set{seen: make(map[string]bool)}
}

func (s *set) add(a Asset) {
	if a.URL == "" || s.seen[a.URL] {
		return
	}
	s.seen[a.URL] = true
	s.items = append(s.items, a)
}
