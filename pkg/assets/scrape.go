package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/css/scanner"
)

// scrapeSite fetches the publisher's index.html and collects every asset
// reference the rendered page needs: src/href attributes, inline style
// url() refs, and url() refs from every linked stylesheet. The whole walk
// is best-effort; any failure degrades to a smaller (or empty) set and
// never aborts the session.
func (r *Resolver) scrapeSite(ctx context.Context) []string {
	pageURL := r.baseURL + "/index.html"
	body, err := r.fetchSmall(ctx, pageURL)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", pageURL).Msg("No scrapeable index page")
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	urls := []string{pageURL}
	var stylesheets []string
	for _, ref := range scrapeHTML(body) {
		abs, ok := resolveScrapedRef(base, ref)
		if !ok {
			continue
		}
		urls = append(urls, abs)
		if isStylesheetURL(abs) {
			stylesheets = append(stylesheets, abs)
		}
	}

	for _, cssURL := range stylesheets {
		cssBody, err := r.fetchSmall(ctx, cssURL)
		if err != nil {
			r.logger.Debug().Err(err).Str("url", cssURL).Msg("Skipping unreachable stylesheet")
			continue
		}
		cssBase, err := url.Parse(cssURL)
		if err != nil {
			continue
		}
		for _, ref := range cssRefs(string(cssBody)) {
			if abs, ok := resolveScrapedRef(cssBase, ref); ok {
				urls = append(urls, abs)
			}
		}
	}

	r.logger.Debug().Int("count", len(urls)).Msg("Page scrape finished")
	return urls
}

// scrapeHTML extracts raw references from a document: every src and href
// attribute plus url() tokens from style blocks and style attributes.
func scrapeHTML(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var refs []string
	doc.Find("[src]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("src"); ok {
			refs = append(refs, v)
		}
	})
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("href"); ok {
			refs = append(refs, v)
		}
	})
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		refs = append(refs, cssRefs(s.Text())...)
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("style"); ok {
			refs = append(refs, cssRefs(v)...)
		}
	})
	return refs
}

// cssRefs tokenizes css text and returns the target of every url() token
func cssRefs(css string) []string {
	var refs []string
	s := scanner.New(css)
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		if tok.Type != scanner.TokenURI {
			continue
		}
		v := strings.TrimPrefix(tok.Value, "url(")
		v = strings.TrimSuffix(v, ")")
		v = strings.Trim(v, "'\" \t")
		if v != "" {
			refs = append(refs, v)
		}
	}
	return refs
}

// resolveScrapedRef turns a raw page reference into an absolute http(s)
// URL, rejecting data:, javascript: and other non-fetchable schemes.
func resolveScrapedRef(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
	default:
		return "", false
	}
	abs := base.ResolveReference(u)
	abs.Fragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func isStylesheetURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".css")
}

// fetchSmall retrieves a manifest-class resource with the short timeout
func (r *Resolver) fetchSmall(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: HTTP %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
