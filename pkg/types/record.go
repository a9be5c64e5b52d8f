// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the techscout
// retrieval pipeline: the canonical work record produced by provider
// adapters, the artifact record produced by the fetcher, and the
// per-run budget owned by the orchestrator.
package types

import "time"

// Provider identifies which retrieval backend produced a record or
// artifact. The string value doubles as the output subdirectory name
// under <output>/<topic>/.
type Provider string

const (
	// ProviderOpenAlex is the academic metadata index.
	ProviderOpenAlex Provider = "openalex"

	// ProviderWebSearch is the web search API.
	ProviderWebSearch Provider = "websearch"

	// ProviderMirror is the DOI-keyed mirror fallback.
	ProviderMirror Provider = "mirror"
)

// WorkRecord is the canonical representation of one discovered document.
// Each provider adapter converts its native hit shape into this record;
// optional fields keep their zero value when the provider omits them.
type WorkRecord struct {
	// Title is the work title. Required: adapters drop hits without one.
	Title string `json:"title" yaml:"title"`

	// Authors lists author display names in source order. A provider
	// that omits a display name contributes a placeholder entry so the
	// author count is preserved.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// PublicationYear is the publication year, 0 when unknown.
	PublicationYear int `json:"publication_year,omitempty" yaml:"publication_year,omitempty"`

	// PublicationDate is the full publication date when the provider
	// supplied one that parsed; zero otherwise (year-only precision
	// degrades to PublicationYear alone).
	PublicationDate time.Time `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	// IsOpenAccess reports whether the index flags the work as OA.
	IsOpenAccess bool `json:"is_open_access" yaml:"is_open_access"`

	// DOI is the normalized bare DOI ("10.xxxx/..."), empty when absent.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// SourceIdentifier is the stable dedup key: the DOI when present,
	// otherwise the provider-native URL or ID. Non-empty whenever the
	// record enters the run's dedup set.
	SourceIdentifier string `json:"source_identifier" yaml:"source_identifier"`

	// Journal metadata, all optional.
	JournalName      string `json:"journal_name,omitempty" yaml:"journal_name,omitempty"`
	JournalISSN      string `json:"journal_issn,omitempty" yaml:"journal_issn,omitempty"`
	JournalPublisher string `json:"journal_publisher,omitempty" yaml:"journal_publisher,omitempty"`

	// CandidatePDFURLs lists PDF-candidate URLs harvested across all
	// locations, in precedence order, not yet validated as binary.
	CandidatePDFURLs []string `json:"candidate_pdf_urls,omitempty" yaml:"candidate_pdf_urls,omitempty"`

	// ResolvedPDFURL is the first candidate the link classifier judged
	// to be a direct binary link; empty when none classified.
	ResolvedPDFURL string `json:"resolved_pdf_url,omitempty" yaml:"resolved_pdf_url,omitempty"`

	// CitedByCount is the citation count reported by the index.
	CitedByCount int `json:"cited_by_count,omitempty" yaml:"cited_by_count,omitempty"`

	// Provenance names the adapter that produced this record.
	Provenance Provider `json:"provenance" yaml:"provenance"`
}

// DownloadedArtifact records a successful binary fetch. It is created
// once the fetcher completes a stream-to-disk write and never mutated.
type DownloadedArtifact struct {
	// Title is the work title the artifact was derived from.
	Title string `json:"title" yaml:"title"`

	// SourceURL is the URL the file was downloaded from.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// LocalPath is the path of the downloaded file. The file exists and
	// is non-empty at record-creation time.
	LocalPath string `json:"local_path" yaml:"local_path"`

	// ByteSize equals the file's actual size on disk.
	ByteSize int64 `json:"byte_size" yaml:"byte_size"`

	DOI             string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PublicationYear int    `json:"publication_year,omitempty" yaml:"publication_year,omitempty"`

	// Provider names the backend that served the binary. This can
	// differ from the record's provenance when the mirror fallback
	// supplied the file.
	Provider Provider `json:"provider" yaml:"provider"`

	// UnverifiedContentType is set when neither the response
	// Content-Type header nor the URL suffix indicated a PDF. Soft
	// flag: many document servers mislabel content.
	UnverifiedContentType bool `json:"unverified_content_type,omitempty" yaml:"unverified_content_type,omitempty"`
}

// SearchSnippet is a short text excerpt with source attribution,
// produced by the web-search adapter. Snippets live only in memory for
// the duration of one query batch and deduplicate by exact text.
type SearchSnippet struct {
	Text      string `json:"text" yaml:"text"`
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}
