// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads a URL to a validated local file. It is the
// single download primitive used by every provider adapter: streaming
// write, temp-file rename on success, and no partial files left behind
// on any failure path.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/meshintel/techscout/internal/httputil"
)

// DefaultUserAgent is a browser-like identification. Document servers
// commonly reject the default Go client string outright.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// ArtifactMeta describes a completed download.
type ArtifactMeta struct {
	// Path is the destination file; it exists and is complete.
	Path string

	// Size is the number of bytes written, equal to the file size.
	Size int64

	// ContentType is the response Content-Type header as received.
	ContentType string

	// UnverifiedContentType is set when neither the Content-Type header
	// nor the URL suffix indicated a PDF. Soft flag, not a failure:
	// many valid document servers mislabel content.
	UnverifiedContentType bool
}

// Fetcher downloads URLs with a shared HTTP client.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// New returns a Fetcher with the given client. A nil client falls back
// to http.DefaultClient; callers normally pass a client with a timeout.
func New(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{Client: client, UserAgent: userAgent}
}

// ToFile issues a streaming GET for rawURL and writes the body to
// destPath. The body is copied in bounded chunks through a temp file in
// the destination directory, renamed into place only on success; every
// failure path removes the partial file. Non-2xx responses fail with a
// *httputil.StatusError.
func (f *Fetcher) ToFile(ctx context.Context, rawURL, destPath string) (*ArtifactMeta, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("not an HTTP(S) URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf,*/*")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewStatusErrorDrained(resp)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	written, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("renaming temp file: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	return &ArtifactMeta{
		Path:                  destPath,
		Size:                  written,
		ContentType:           contentType,
		UnverifiedContentType: !looksLikePDF(rawURL, contentType),
	}, nil
}

// NewStatusErrorDrained builds a status error and consumes the body so
// the connection can be reused.
func NewStatusErrorDrained(resp *http.Response) error {
	err := httputil.NewStatusError(resp)
	io.Copy(io.Discard, resp.Body)
	return err
}

// looksLikePDF checks the Content-Type header and the URL suffix for a
// binary-document indication.
func looksLikePDF(rawURL, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "pdf") || strings.Contains(ct, "octet-stream") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
