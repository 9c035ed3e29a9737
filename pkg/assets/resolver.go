package assets

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/manifest"
)

// Resolver computes the asset set for one remote base URL
type Resolver struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewResolver creates a Resolver. The timeout bounds the discovery
// fetches (index.html and css), which are manifest-class small files.
func NewResolver(baseURL string, client *http.Client, timeout time.Duration) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = manifest.DefaultTimeout
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
		logger:  logging.GetLogger("assets"),
	}
}

// Resolve produces the full ordered set of files to fetch. An explicit
// file list wins; otherwise the set is inferred from the manifest
// structure merged with a page scrape. The manifest itself is always in
// the set.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest) []Asset {
	if len(m.Files) > 0 {
		return r.fromFileList(m.Files)
	}

	out := newSet()
	r.addStructural(out, m)

	// Generic crawl as a safety net: publishers that omit the file list
	// may also reference assets only from the rendered page.
	for _, u := range r.scrapeSite(ctx) {
		out.add(r.assetFor(u))
	}

	out.add(Asset{
		URL:     r.baseURL + "/" + manifest.FileName,
		RelPath: manifest.FileName,
		Class:   ClassManifest,
	})
	return out.items
}

// Enrichment returns the optional companion audio assets for paragraph
// items. These are fetched best-effort after the main download band.
func (r *Resolver) Enrichment(m *manifest.Manifest) []Asset {
	out := newSet()
	for _, book := range m.AllBooks() {
		for _, item := range book.Content {
			if item.Type != manifest.ItemParagraph || item.Audio == "" {
				continue
			}
			u := ResolveBookRef(r.baseURL, book.ID, item.Audio)
			out.add(Asset{URL: u, RelPath: RelPathFor(r.baseURL, u), Class: ClassMedia})
		}
	}
	return out.items
}

// fromFileList maps explicit descriptors verbatim
func (r *Resolver) fromFileList(files []manifest.FileDescriptor) []Asset {
	out := newSet()
	for _, fd := range files {
		u := fd.URL
		if u == "" {
			if fd.Path == "" {
				r.logger.Warn().Msg("Skipping file descriptor with neither url nor path")
				continue
			}
			u = r.baseURL + "/" + strings.TrimLeft(fd.Path, "/")
		}
		rel := fd.RelativePath
		if rel == "" {
			rel = RelPathFor(r.baseURL, u)
		}
		rel = sanitizeRel(rel)
		out.add(Asset{URL: u, RelPath: rel, Size: fd.Size, Class: Classify(rel)})
	}
	out.add(Asset{
		URL:     r.baseURL + "/" + manifest.FileName,
		RelPath: manifest.FileName,
		Class:   ClassManifest,
	})
	return out.items
}

// addStructural walks every book, flat or nested, and collects covers and
// image/video sources.
func (r *Resolver) addStructural(out *set, m *manifest.Manifest) {
	for _, book := range m.AllBooks() {
		if book.Cover != "" {
			out.add(r.assetFor(ResolveBookRef(r.baseURL, book.ID, book.Cover)))
		}
		for _, item := range book.Content {
			if item.Type != manifest.ItemImage && item.Type != manifest.ItemVideo {
				continue
			}
			if item.Src == "" {
				continue
			}
			out.add(r.assetFor(ResolveBookRef(r.baseURL, book.ID, item.Src)))
		}
	}
}

func (r *Resolver) assetFor(u string) Asset {
	rel := RelPathFor(r.baseURL, u)
	return Asset{URL: u, RelPath: rel, Class: Classify(rel)}
}
