// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch queries the web search API for text snippets. The
// provider answers either with a pre-parsed JSON item list or with a
// base64-encoded XML payload; both shapes are detected and decoded.
package websearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/techscout/internal/httputil"
	"github.com/meshintel/techscout/pkg/types"
)

// DefaultEndpoint is the web search API URL. Declared as a var so tests
// can substitute an httptest server.
var DefaultEndpoint = "https://searchapi.api.cloud.yandex.net/v2/web/search"

const (
	// defaultMaxQueryLen is the provider's query-length limit in runes.
	defaultMaxQueryLen = 400

	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// Client queries the web search API.
type Client struct {
	http     *http.Client
	cfg      types.WebSearchConfig
	endpoint string
	policy   httputil.Policy
	log      *zap.Logger
}

// New returns a web-search client. A nil httpClient gets a client with
// the configured timeout.
func New(httpClient *http.Client, cfg types.WebSearchConfig, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Client{
		http:     httpClient,
		cfg:      cfg,
		endpoint: DefaultEndpoint,
		policy: httputil.Policy{
			MaxAttempts: maxRetries,
			BaseDelay:   baseDelay,
			// Only network-level trouble is worth a retry here; any
			// HTTP status, 4xx included, fails the call immediately
			// with the body attached.
			Retryable: isConnectionFailure,
		},
		log: log,
	}
}

// SearchSnippets runs one query and returns up to max snippets. Queries
// longer than the provider limit are truncated before transmission.
func (c *Client) SearchSnippets(ctx context.Context, query string, max int) ([]types.SearchSnippet, error) {
	query = TruncateQuery(query, c.cfg.MaxQueryLen)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if max <= 0 {
		max = 10
	}

	reqBody, err := json.Marshal(searchRequest{
		Query: searchQuery{
			SearchType: "SEARCH_TYPE_RU",
			QueryText:  query,
			Page:       0,
		},
		Region:   "225",
		L10n:     "ru",
		FolderID: c.cfg.FolderID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	var body []byte
	err = c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return httputil.NewStatusError(resp)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading search response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snippets, err := decodeResponse(body, max)
	if err != nil {
		return nil, err
	}
	return c.filterByDomain(snippets), nil
}

// isConnectionFailure retries only timeouts and transport errors, never
// an HTTP status response.
func isConnectionFailure(err error) bool {
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return false
	}
	return httputil.IsTransient(err)
}

// TruncateQuery bounds query to maxLen runes (provider limit). Zero or
// negative maxLen applies the default. Truncation is by runes: queries
// are frequently Cyrillic and a byte cut could split a code point.
func TruncateQuery(query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = defaultMaxQueryLen
	}
	runes := []rune(query)
	if len(runes) <= maxLen {
		return query
	}
	return string(runes[:maxLen])
}

// filterByDomain applies the configured allow-list. Filtering must
// never silently zero out results: when nothing matches, the unfiltered
// list stands.
func (c *Client) filterByDomain(snippets []types.SearchSnippet) []types.SearchSnippet {
	if len(c.cfg.AllowedDomains) == 0 || len(snippets) == 0 {
		return snippets
	}

	allowed := make(map[string]bool, len(c.cfg.AllowedDomains))
	for _, d := range c.cfg.AllowedDomains {
		allowed[strings.TrimPrefix(strings.ToLower(d), "www.")] = true
	}

	var filtered []types.SearchSnippet
	for _, s := range snippets {
		u, err := url.Parse(s.SourceURL)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if allowed[host] {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return snippets
	}
	return filtered
}

// decodeResponse detects which payload shape arrived: a base64 XML
// rawData field or a JSON result envelope. Anything else is a decode
// error.
func decodeResponse(body []byte, max int) ([]types.SearchSnippet, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	raw := resp.RawData
	if raw == "" {
		raw = resp.Response.RawData
	}
	if raw != "" {
		xmlData, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding rawData: %w", err)
		}
		return parseXMLSnippets(xmlData, max)
	}

	if resp.Result == nil {
		return nil, fmt.Errorf("unexpected response structure: no rawData and no result")
	}

	var snippets []types.SearchSnippet
	for _, item := range resp.Result.Items {
		text := strings.TrimSpace(item.Snippet)
		if text == "" {
			continue
		}
		snippets = append(snippets, types.SearchSnippet{
			Text:      html.UnescapeString(text),
			SourceURL: item.URL,
		})
		if len(snippets) >= max {
			break
		}
	}
	return snippets, nil
}

// parseXMLSnippets walks the decoded XML and emits one snippet per
// passage node, concatenating every text fragment under it (highlight
// sub-spans included) and entity-decoding the result.
func parseXMLSnippets(data []byte, max int) ([]types.SearchSnippet, error) {
	data = normalizeRawXML(data)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		snippets  []types.SearchSnippet
		buf       strings.Builder
		docURL    string
		inURL     bool
		inPassage bool
		sawRoot   bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML results: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			switch t.Name.Local {
			case "doc":
				docURL = ""
			case "url":
				inURL = true
			case "passage":
				inPassage = true
				buf.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "url":
				inURL = false
			case "passage":
				inPassage = false
				text := html.UnescapeString(strings.TrimSpace(buf.String()))
				if text != "" {
					snippets = append(snippets, types.SearchSnippet{
						Text:      text,
						SourceURL: docURL,
					})
				}
			}
		case xml.CharData:
			switch {
			case inURL:
				docURL += strings.TrimSpace(string(t))
			case inPassage:
				buf.Write(t)
			}
		}

		if len(snippets) >= max {
			break
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("parsing XML results: no elements found")
	}
	return snippets, nil
}

// normalizeRawXML undoes the transport quirks seen in rawData payloads:
// an outer quote pair and backslash-escaped newlines.
func normalizeRawXML(data []byte) []byte {
	if len(data) >= 2 && (data[0] == '\'' || data[0] == '"') && data[len(data)-1] == data[0] {
		data = data[1 : len(data)-1]
	}
	data = bytes.ReplaceAll(data, []byte(`\n`), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte(`\r`), []byte("\r"))
	data = bytes.ReplaceAll(data, []byte(`\t`), []byte("\t"))
	return data
}

// Wire structures.
type searchRequest struct {
	Query    searchQuery `json:"query"`
	Region   string      `json:"region"`
	L10n     string      `json:"l10n"`
	FolderID string      `json:"folderId"`
}

type searchQuery struct {
	SearchType string `json:"searchType"`
	QueryText  string `json:"queryText"`
	Page       int    `json:"page"`
}

type apiResponse struct {
	RawData  string `json:"rawData"`
	Response struct {
		RawData string `json:"rawData"`
	} `json:"response"`
	Result *struct {
		Items []resultItem `json:"items"`
	} `json:"result"`
}

type resultItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
