package scraper

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrNoDocumentID is returned for result links without a document id segment.
var ErrNoDocumentID = errors.New("link has no document id")

// PageURL returns the search URL for a result page. Page 0 is the base URL.
func PageURL(base string, page int) string {
	if page == 0 {
		return base
	}
	return base + "&pagenum=" + strconv.Itoa(page)
}

// NormalizeLink resolves a search result href against the page it came from
// and rewrites it to the canonical judgment URL https://<host>/doc/<id>/.
// The id is the second path segment, so /docfragment/123/?q=x and /doc/123/
// both map to /doc/123/.
func NormalizeLink(page *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	abs := page.ResolveReference(ref)

	var segments []string
	for _, s := range strings.Split(abs.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %s", ErrNoDocumentID, href)
	}
	return (&url.URL{Scheme: "https", Host: abs.Host, Path: "/doc/" + segments[1] + "/"}).String(), nil
}

// dedupe drops repeated links, keeping first occurrences.
func dedupe(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := links[:0]
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// AppendLinks appends links to path, one per line.
func AppendLinks(path string, links []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range links {
		fmt.Fprintln(w, l)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadLinks reads one link per line, skipping blank lines.
func ReadLinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var links []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			links = append(links, l)
		}
	}
	return links, sc.Err()
}
