// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mirror resolves DOIs against alternate document mirrors when
// the primary index has no direct artifact. Mirrors commonly present
// self-signed or expired certificates, so this package's HTTP client,
// and only this one, relaxes certificate validation.
package mirror

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/meshintel/techscout/internal/httputil"
	"github.com/meshintel/techscout/pkg/types"
)

// DefaultHosts is the ordered mirror list used when none is configured.
var DefaultHosts = []string{
	"https://sci-hub.ru",
	"https://sci-hub.st",
	"https://sci-hub.se",
	"https://sci-hub.ren",
}

const (
	defaultTimeout = 5 * time.Second

	// maxScanBody bounds how much mirror HTML is scanned for links.
	maxScanBody = 2 << 20
)

// pdfLinkPatterns are scanned in order against raw mirror HTML; the
// first capture wins. Kept permissive: mirror markup is messy and
// changes without notice.
var pdfLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)src="(.*?\.pdf.*?)"`),
	regexp.MustCompile(`(?i)href="(.*?\.pdf.*?)"`),
	regexp.MustCompile(`(?i)location\.href\s*=\s*['"]([^'"]*\.pdf[^'"]*)['"]`),
	regexp.MustCompile(`(?i)"(https?://[^"]*\.pdf[^"]*)"`),
}

// Resolution is a successful mirror lookup.
type Resolution struct {
	// PDFURL is the absolute URL of the document binary.
	PDFURL string

	// MirrorHost is the mirror base URL that served the page.
	MirrorHost string
}

// Resolver looks up DOIs across an ordered mirror list.
type Resolver struct {
	client *http.Client
	hosts  []string
	ua     string
	log    *zap.Logger
}

// New builds a resolver from cfg. The client skips certificate
// verification: a deliberate, scoped trust relaxation for mirror hosts
// only, never a general policy.
func New(cfg types.MirrorConfig, log *zap.Logger) *Resolver {
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		hosts: hosts,
		ua:    cfg.UserAgent,
		log:   log,
	}
}

// Client returns the relaxed-TLS client, for downloading the resolved
// URL from the same trust domain.
func (r *Resolver) Client() *http.Client { return r.client }

// ResolveByDOI finds a PDF URL for doi. The first host is probed with a
// DOM scan (the mirrors embed the document in an iframe or embed tag);
// on failure every host is retried in order with raw pattern matching.
// Each attempt is independent: a timeout, non-200, or scan miss moves
// on to the next host. Exhaustion returns httputil.ErrNotFound, never
// an error that should stop a batch.
func (r *Resolver) ResolveByDOI(ctx context.Context, doi string) (*Resolution, error) {
	doi = normalizeDOI(doi)
	if doi == "" {
		return nil, fmt.Errorf("empty DOI")
	}

	if res := r.tryHost(ctx, r.hosts[0], doi, extractFromDOM); res != nil {
		return res, nil
	}

	for _, host := range r.hosts {
		if res := r.tryHost(ctx, host, doi, extractFromPatterns); res != nil {
			return res, nil
		}
	}
	return nil, httputil.ErrNotFound
}

// tryHost fetches {host}/{doi} and runs extract over the page body.
func (r *Resolver) tryHost(ctx context.Context, host, doi string, extract func(string) string) *Resolution {
	pageURL := strings.TrimSuffix(host, "/") + "/" + doi

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil
	}
	if r.ua != "" {
		req.Header.Set("User-Agent", r.ua)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debug("mirror unreachable", zap.String("mirror", host), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Debug("mirror refused", zap.String("mirror", host), zap.Int("status", resp.StatusCode))
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScanBody))
	if err != nil {
		r.log.Debug("mirror body read failed", zap.String("mirror", host), zap.Error(err))
		return nil
	}

	link := extract(string(body))
	if link == "" {
		return nil
	}
	return &Resolution{PDFURL: absolutize(link, host), MirrorHost: host}
}

// extractFromDOM walks the parsed page looking for the embedded viewer:
// an <embed> or <iframe> whose src carries the document.
func extractFromDOM(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "embed" || n.Data == "iframe") {
			var src, typ, id string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "src":
					src = a.Val
				case "type":
					typ = a.Val
				case "id":
					id = a.Val
				}
			}
			if src != "" && (strings.Contains(strings.ToLower(typ), "pdf") ||
				strings.Contains(strings.ToLower(id), "pdf") ||
				strings.Contains(strings.ToLower(src), ".pdf")) {
				found = src
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// extractFromPatterns scans raw HTML with the pattern list, returning
// the first plausible capture.
func extractFromPatterns(page string) string {
	for _, pat := range pdfLinkPatterns {
		for _, m := range pat.FindAllStringSubmatch(page, -1) {
			link := strings.TrimSpace(m[1])
			if link != "" {
				return link
			}
		}
	}
	return ""
}

// absolutize resolves scheme-relative and host-relative links against
// the mirror base URL.
func absolutize(link, base string) string {
	switch {
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case strings.HasPrefix(link, "/"):
		return strings.TrimSuffix(base, "/") + link
	default:
		return strings.TrimSuffix(base, "/") + "/" + link
	}
}

// normalizeDOI strips resolver prefixes down to the bare identifier.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}
