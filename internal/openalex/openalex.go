// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex queries the OpenAlex works index and normalizes its
// hits into canonical work records.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/techscout/internal/httputil"
	"github.com/meshintel/techscout/internal/pdflink"
	"github.com/meshintel/techscout/pkg/types"
)

// SearchBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var SearchBase = "https://api.openalex.org/works"

// unknownAuthor fills an author slot when the index omits the display
// name, so author counts survive normalization.
const unknownAuthor = "unknown author"

const doiPrefix = "https://doi.org/"

// Client queries the OpenAlex API.
type Client struct {
	http *http.Client
	cfg  types.IndexConfig
	log  *zap.Logger
}

// New returns an index client. A nil logger disables logging.
func New(httpClient *http.Client, cfg types.IndexConfig, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: httpClient, cfg: cfg, log: log}
}

// SearchByTitle looks up a single work by exact title. Structured title
// filters are precise but brittle against punctuation differences, so
// three query strategies run in order (title-field filter, quoted
// free-text, unquoted free-text) and the first non-empty result set's
// top hit wins. Returns httputil.ErrNotFound when every strategy comes
// back empty.
func (c *Client) SearchByTitle(ctx context.Context, title string) (*types.WorkRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("empty title")
	}

	strategies := []struct {
		name   string
		params url.Values
	}{
		{"title filter", url.Values{"filter": {"title.search:" + title}}},
		{"quoted search", url.Values{"search": {`"` + title + `"`}}},
		{"free search", url.Values{"search": {title}}},
	}

	var lastErr error
	for _, s := range strategies {
		works, err := c.query(ctx, s.params, 1)
		if err != nil {
			c.log.Warn("title lookup strategy failed",
				zap.String("strategy", s.name), zap.Error(err))
			lastErr = err
			continue
		}
		for _, w := range works {
			if rec := normalize(w); rec != nil {
				return rec, nil
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, httputil.ErrNotFound
}

// SearchByKeyword searches works matching one keyword phrase, returning
// at most max normalized records. Hits without a title are dropped.
func (c *Client) SearchByKeyword(ctx context.Context, keyword string, max int) ([]types.WorkRecord, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	if max <= 0 {
		max = 10
	}
	if max > 200 {
		max = 200
	}

	works, err := c.query(ctx, url.Values{"search": {keyword}}, max)
	if err != nil {
		return nil, err
	}

	records := make([]types.WorkRecord, 0, len(works))
	for _, w := range works {
		if rec := normalize(w); rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// query issues one works request and decodes the result page.
func (c *Client) query(ctx context.Context, params url.Values, perPage int) ([]work, error) {
	params.Set("per_page", fmt.Sprintf("%d", perPage))
	params.Set("page", "1")
	if c.cfg.Email != "" {
		params.Set("mailto", c.cfg.Email)
	}

	reqURL := SearchBase + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httputil.NewStatusError(resp)
	}

	var page response
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("parsing index response: %w", err)
	}
	return page.Results, nil
}

// normalize converts one raw hit into a canonical record. Returns nil
// for hits without a title: nothing downstream can use them.
func normalize(w work) *types.WorkRecord {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		return nil
	}

	rec := &types.WorkRecord{
		Title:        title,
		IsOpenAccess: w.OpenAccess.IsOA,
		CitedByCount: w.CitedByCount,
		Provenance:   types.ProviderOpenAlex,
	}

	for _, a := range w.Authorships {
		name := strings.TrimSpace(a.Author.DisplayName)
		if name == "" {
			name = unknownAuthor
		}
		rec.Authors = append(rec.Authors, name)
	}

	// A malformed date string degrades to year-only, never an error.
	if w.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", w.PublicationDate); err == nil {
			rec.PublicationDate = t
			rec.PublicationYear = t.Year()
		}
	}
	if rec.PublicationYear == 0 && w.PublicationYear > 0 {
		rec.PublicationYear = w.PublicationYear
	}

	if w.DOI != "" {
		rec.DOI = strings.TrimPrefix(w.DOI, doiPrefix)
	}
	if rec.DOI != "" {
		rec.SourceIdentifier = rec.DOI
	} else {
		rec.SourceIdentifier = w.ID
	}

	if src := w.PrimaryLocation.Source; src != nil {
		rec.JournalName = src.DisplayName
		rec.JournalISSN = src.ISSNL
		rec.JournalPublisher = src.HostOrganizationName
	}

	rec.CandidatePDFURLs = harvestPDFCandidates(w)
	for _, cand := range rec.CandidatePDFURLs {
		if pdflink.Classify(cand) == pdflink.Direct {
			rec.ResolvedPDFURL = cand
			break
		}
	}

	return rec
}

// harvestPDFCandidates collects candidate URLs in fixed precedence:
// the open-access URL and location first, then the primary venue
// location, then the secondary location list. Duplicates keep their
// first position.
func harvestPDFCandidates(w work) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	add(w.OpenAccess.OAURL)
	if w.BestOALocation != nil {
		add(w.BestOALocation.PDFURL)
	}
	add(w.PrimaryLocation.PDFURL)
	for _, loc := range w.Locations {
		add(loc.PDFURL)
	}
	return urls
}

// OpenAlex API JSON structures.
type response struct {
	Meta    meta   `json:"meta"`
	Results []work `json:"results"`
}

type meta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type work struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	DOI             string       `json:"doi"`
	PublicationDate string       `json:"publication_date"`
	PublicationYear int          `json:"publication_year"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []authorship `json:"authorships"`
	OpenAccess      openAccess   `json:"open_access"`
	BestOALocation  *location    `json:"best_oa_location"`
	PrimaryLocation location     `json:"primary_location"`
	Locations       []location   `json:"locations"`
}

type authorship struct {
	Author author `json:"author"`
}

type author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type location struct {
	PDFURL         string  `json:"pdf_url"`
	LandingPageURL string  `json:"landing_page_url"`
	Source         *source `json:"source"`
}

type source struct {
	DisplayName          string `json:"display_name"`
	ISSNL                string `json:"issn_l"`
	HostOrganizationName string `json:"host_organization_name"`
}
