// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve drives the multi-provider discovery and download
// pipeline: web snippets for every query, keyword searches against the
// academic index, mirror fallback per unresolved DOI, and artifact
// downloads into a per-topic output tree. The orchestrator owns the
// only global state of a run: the dedup and snippet sets and the
// budget counters.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meshintel/techscout/internal/fetch"
	"github.com/meshintel/techscout/internal/httputil"
	"github.com/meshintel/techscout/internal/mirror"
	"github.com/meshintel/techscout/pkg/types"
)

// Phase tracks where a query is in its lifecycle.
type Phase string

const (
	PhasePending        Phase = "pending"
	PhaseKeywords       Phase = "keywords_extracted"
	PhaseWebSearched    Phase = "web_searched"
	PhaseIndexSearched  Phase = "index_searched"
	PhaseMirrorFallback Phase = "mirror_fallback"
	PhaseDownloaded     Phase = "downloaded"
	PhaseExhausted      Phase = "exhausted"
)

// IndexSearcher is the academic-index adapter contract.
type IndexSearcher interface {
	SearchByKeyword(ctx context.Context, keyword string, max int) ([]types.WorkRecord, error)
}

// SnippetSearcher is the web-search adapter contract.
type SnippetSearcher interface {
	SearchSnippets(ctx context.Context, query string, max int) ([]types.SearchSnippet, error)
}

// DOIResolver is the mirror-retrieval adapter contract.
type DOIResolver interface {
	ResolveByDOI(ctx context.Context, doi string) (*mirror.Resolution, error)
}

// ArtifactFetcher downloads one URL to a local file.
type ArtifactFetcher interface {
	ToFile(ctx context.Context, url, dest string) (*fetch.ArtifactMeta, error)
}

// QueryReport records the outcome of one input query.
type QueryReport struct {
	Query    string   `yaml:"query"`
	Phase    Phase    `yaml:"phase"`
	Keywords int      `yaml:"keywords"`
	Snippets int      `yaml:"snippets"`
	Skipped  int      `yaml:"skipped"`
	Errors   []string `yaml:"errors,omitempty"`
}

// Result is the output of one run. Both sets are empty but valid on
// total failure, never nil.
type Result struct {
	Snippets  []types.SearchSnippet
	Artifacts []types.DownloadedArtifact
	Reports   []QueryReport

	// ByProvider counts downloaded artifacts per serving backend.
	ByProvider map[types.Provider]int
}

// Orchestrator wires the adapters together under one budget. All
// fields but Budget accept nil: a nil adapter disables that path.
type Orchestrator struct {
	Index   IndexSearcher
	Web     SnippetSearcher
	Mirror  DOIResolver
	Fetcher ArtifactFetcher

	// MirrorFetcher downloads mirror-resolved URLs; mirrors need the
	// relaxed-TLS client. Falls back to Fetcher when nil.
	MirrorFetcher ArtifactFetcher

	// Expand derives the keyword set for one query. Produced by an
	// upstream collaborator; nil means no index searches.
	Expand func(query string) []string

	Budget types.RetrievalBudget
	Log    *zap.Logger
}

// runState is the mutable state shared across a run's workers. One
// mutex covers both sets so two concurrent hits on the same identifier
// can never both download.
type runState struct {
	mu          sync.Mutex
	seen        map[string]bool
	snippetSeen map[string]bool
	ordinal     int

	snippets  []types.SearchSnippet
	artifacts []types.DownloadedArtifact
	byProv    map[types.Provider]int
}

// Run processes a batch of queries for one topic. Failures at any
// query, keyword, or candidate are logged and counted, never
// propagated: the only way a run "fails" is by returning fewer results
// than hoped.
func (o *Orchestrator) Run(ctx context.Context, topicID string, queries []string) Result {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	budget := o.Budget.WithDefaults()

	if budget.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget.RunDeadline)
		defer cancel()
	}

	state := &runState{
		seen:        make(map[string]bool),
		snippetSeen: make(map[string]bool),
		snippets:    []types.SearchSnippet{},
		artifacts:   []types.DownloadedArtifact{},
		byProv:      make(map[types.Provider]int),
	}

	reports := make([]QueryReport, 0, len(queries))
	for _, q := range queries {
		if ctx.Err() != nil {
			reports = append(reports, QueryReport{Query: q, Phase: PhaseExhausted,
				Errors: []string{"run budget exhausted"}})
			continue
		}
		reports = append(reports, o.runQuery(ctx, log, budget, topicID, q, state))
	}

	return Result{
		Snippets:   state.snippets,
		Artifacts:  state.artifacts,
		Reports:    reports,
		ByProvider: state.byProv,
	}
}

// runQuery walks one query through its phases.
func (o *Orchestrator) runQuery(ctx context.Context, log *zap.Logger, budget types.RetrievalBudget, topicID, query string, state *runState) QueryReport {
	rep := QueryReport{Query: query, Phase: PhasePending}
	fail := func(stage string, err error) {
		rep.Skipped++
		rep.Errors = append(rep.Errors, stage+": "+err.Error())
		log.Warn("retrieval step failed",
			zap.String("query", query), zap.String("stage", stage), zap.Error(err))
	}

	var kws []string
	if o.Expand != nil {
		kws = o.Expand(query)
	}
	rep.Keywords = len(kws)
	rep.Phase = PhaseKeywords

	// Web snippets are always attempted, independent of the index path.
	if o.Web != nil {
		snips, err := o.Web.SearchSnippets(ctx, query, budget.MaxResultsPerQuery)
		if err != nil {
			fail("websearch", err)
		} else {
			rep.Snippets = state.addSnippets(snips)
		}
	}
	rep.Phase = PhaseWebSearched

	downloaded := 0
	usedMirror := false
	if o.Index != nil && len(kws) > 0 {
		var mu sync.Mutex // guards rep counters from worker goroutines

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(budget.MaxConcurrentFetches)

		for _, kw := range kws {
			kw := kw
			g.Go(func() error {
				records, err := o.Index.SearchByKeyword(gctx, kw, budget.MaxResultsPerQuery)
				if err != nil {
					mu.Lock()
					fail("index "+kw, err)
					mu.Unlock()
					return nil
				}
				for i := range records {
					art, viaMirror, err := o.processRecord(gctx, log, budget, topicID, &records[i], state)
					mu.Lock()
					switch {
					case err != nil:
						fail("download "+records[i].Title, err)
					case art != nil:
						downloaded++
						usedMirror = usedMirror || viaMirror
					default:
						rep.Skipped++ // duplicate or no viable candidate
					}
					mu.Unlock()
				}
				return nil
			})
		}
		g.Wait()
	}
	rep.Phase = PhaseIndexSearched
	if usedMirror {
		rep.Phase = PhaseMirrorFallback
	}

	if downloaded > 0 {
		rep.Phase = PhaseDownloaded
	} else if rep.Snippets == 0 {
		rep.Phase = PhaseExhausted
	}
	return rep
}

// processRecord deduplicates one work record and tries to land its
// artifact: direct candidate first, then the mirror fallback when a
// DOI exists. A nil artifact with nil error means the record was a
// duplicate or had nothing to fetch.
func (o *Orchestrator) processRecord(ctx context.Context, log *zap.Logger, budget types.RetrievalBudget, topicID string, rec *types.WorkRecord, state *runState) (art *types.DownloadedArtifact, viaMirror bool, err error) {
	if rec.SourceIdentifier == "" {
		return nil, false, fmt.Errorf("record %q has no source identifier", rec.Title)
	}
	if !state.claim(rec.SourceIdentifier) {
		return nil, false, nil
	}

	var firstErr error

	if rec.ResolvedPDFURL != "" && o.Fetcher != nil {
		art, err := o.download(ctx, budget, o.Fetcher, state, topicID, rec, rec.ResolvedPDFURL, rec.Provenance)
		if err == nil {
			state.addArtifact(art)
			return art, false, nil
		}
		firstErr = err
		log.Debug("direct download failed, considering mirror",
			zap.String("title", rec.Title), zap.Error(err))
	}

	if rec.DOI != "" && o.Mirror != nil {
		res, err := o.Mirror.ResolveByDOI(ctx, rec.DOI)
		if err != nil {
			if errors.Is(err, httputil.ErrNotFound) {
				if firstErr != nil {
					return nil, true, firstErr
				}
				return nil, true, nil
			}
			return nil, true, err
		}

		fetcher := o.MirrorFetcher
		if fetcher == nil {
			fetcher = o.Fetcher
		}
		if fetcher == nil {
			return nil, true, fmt.Errorf("no fetcher configured")
		}
		art, err := o.download(ctx, budget, fetcher, state, topicID, rec, res.PDFURL, types.ProviderMirror)
		if err != nil {
			return nil, true, err
		}
		state.addArtifact(art)
		return art, true, nil
	}

	return nil, false, firstErr
}

// download fetches one candidate URL into the topic tree, retrying
// transient failures within the per-candidate attempt budget. An
// existing non-empty file at the destination is reused, not refetched.
func (o *Orchestrator) download(ctx context.Context, budget types.RetrievalBudget, fetcher ArtifactFetcher, state *runState, topicID string, rec *types.WorkRecord, url string, provider types.Provider) (*types.DownloadedArtifact, error) {
	dest := filepath.Join(budget.OutputDir, topicID, string(provider),
		artifactName(state.nextOrdinal(), rec.Title))

	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		return &types.DownloadedArtifact{
			Title:           rec.Title,
			SourceURL:       url,
			LocalPath:       dest,
			ByteSize:        fi.Size(),
			DOI:             rec.DOI,
			PublicationYear: rec.PublicationYear,
			Provider:        provider,
		}, nil
	}

	policy := httputil.Policy{MaxAttempts: budget.MaxDownloadAttempts}
	var meta *fetch.ArtifactMeta
	err := policy.Do(ctx, func() error {
		m, err := fetcher.ToFile(ctx, url, dest)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if budget.DownloadDelay > 0 {
		select {
		case <-time.After(budget.DownloadDelay):
		case <-ctx.Done():
		}
	}

	return &types.DownloadedArtifact{
		Title:                 rec.Title,
		SourceURL:             url,
		LocalPath:             meta.Path,
		ByteSize:              meta.Size,
		DOI:                   rec.DOI,
		PublicationYear:       rec.PublicationYear,
		Provider:              provider,
		UnverifiedContentType: meta.UnverifiedContentType,
	}, nil
}

// claim marks an identifier as seen; the first caller wins.
func (s *runState) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[id] {
		return false
	}
	s.seen[id] = true
	return true
}

// nextOrdinal hands out the run-wide artifact ordinal.
func (s *runState) nextOrdinal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ordinal++
	return s.ordinal
}

// addSnippets merges new snippets into the run set by exact text,
// returning how many were new.
func (s *runState) addSnippets(snips []types.SearchSnippet) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, sn := range snips {
		if sn.Text == "" || s.snippetSeen[sn.Text] {
			continue
		}
		s.snippetSeen[sn.Text] = true
		s.snippets = append(s.snippets, sn)
		added++
	}
	return added
}

func (s *runState) addArtifact(a *types.DownloadedArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, *a)
	s.byProv[a.Provider]++
}
