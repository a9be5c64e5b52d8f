// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdflink decides whether a candidate URL points at a document
// binary or at a landing/identifier page. The decision is a heuristic
// filter: false negatives cost a missed paper, false positives cost one
// wasted fetch that the fetcher's content-type flag then catches.
package pdflink

import (
	"net/url"
	"strings"
)

// Class is the outcome of classifying a URL.
type Class int

const (
	// Unknown means no heuristic matched. Callers treat it as
	// non-downloadable whenever a better candidate exists.
	Unknown Class = iota

	// Direct means the URL very likely serves the document binary.
	Direct

	// LandingPage means the URL resolves to a page about the document,
	// not the document itself (DOI resolvers, abstract pages).
	LandingPage
)

func (c Class) String() string {
	switch c {
	case Direct:
		return "direct"
	case LandingPage:
		return "landing"
	default:
		return "unknown"
	}
}

// directHints are substrings that, combined with "pdf" anywhere in the
// URL, indicate an endpoint that renders or streams the binary.
var directHints = []string{"render", "download", "view"}

// allowPatterns lists publisher and repository URL shapes known to
// serve PDFs directly. Host is matched as suffix so subdomains count;
// pathPart is matched as substring of the path. Intentionally
// incomplete: publisher schemes evolve, add patterns here as they turn
// up instead of touching the control flow.
var allowPatterns = []struct {
	host     string
	pathPart string
}{
	{"arxiv.org", "/pdf/"},
	{"biorxiv.org", ".full.pdf"},
	{"medrxiv.org", ".full.pdf"},
	{"researchgate.net", "/publication/"},
	{"mdpi.com", "/pdf"},
	{"frontiersin.org", "/pdf"},
	{"nature.com", ".pdf"},
	{"journals.plos.org", "file?id="},
	{"ncbi.nlm.nih.gov", "/pmc/articles/"},
	{"europepmc.org", "pdf=render"},
	{"hindawi.com", "/downloads/"},
	{"scielo.br", "format=pdf"},
}

// denyHosts lists identifier-resolution and metadata-only hosts that
// never serve the binary at the resolved URL.
var denyHosts = []string{
	"doi.org",
	"dx.doi.org",
	"hdl.handle.net",
	"openalex.org",
	"api.openalex.org",
	"semanticscholar.org",
	"www.semanticscholar.org",
	"pubmed.ncbi.nlm.nih.gov",
	"elibrary.ru",
	"link.springer.com",
	"www.scopus.com",
}

// Classify reports whether rawURL is a direct binary link, a landing
// page, or unknown. Pure function of its input; rules are ordered and
// the first match wins.
func Classify(rawURL string) Class {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Unknown
	}

	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	full := strings.ToLower(rawURL)

	// 1. Path ends with .pdf.
	if strings.HasSuffix(path, ".pdf") {
		return Direct
	}

	// 2. "pdf" plus a render/download/view hint anywhere in the URL.
	if strings.Contains(full, "pdf") {
		for _, hint := range directHints {
			if strings.Contains(full, hint) {
				return Direct
			}
		}
	}

	// 3. Curated allow-list of publisher PDF-serving patterns.
	pathAndQuery := path
	if u.RawQuery != "" {
		pathAndQuery += "?" + strings.ToLower(u.RawQuery)
	}
	for _, p := range allowPatterns {
		if hostMatches(host, p.host) && strings.Contains(pathAndQuery, p.pathPart) {
			return Direct
		}
	}

	// 4. Curated deny-list of resolver/metadata hosts.
	for _, d := range denyHosts {
		if hostMatches(host, d) {
			return LandingPage
		}
	}

	return Unknown
}

// hostMatches reports whether host equals pattern or is a subdomain of it.
func hostMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
