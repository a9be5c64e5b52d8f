// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with requests. Document
	// servers commonly reject default Go client identification, so the
	// fetcher defaults to a browser-like value.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// IndexConfig holds settings for the academic-index adapter.
type IndexConfig struct {
	HTTPConfig `yaml:",inline"`

	// Email is sent as the mailto parameter for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// WebSearchConfig holds settings for the web-search adapter.
type WebSearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates requests via the Api-Key authorization scheme.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// FolderID is the provider-side project identifier sent with each query.
	FolderID string `json:"folder_id,omitempty" yaml:"folder_id,omitempty"`

	// MaxQueryLen bounds the query length in runes before transmission
	// (provider limit, default 400).
	MaxQueryLen int `json:"max_query_len" yaml:"max_query_len"`

	// AllowedDomains optionally restricts results to these domains. The
	// filter is skipped when it would leave a non-empty result set empty.
	AllowedDomains []string `json:"allowed_domains,omitempty" yaml:"allowed_domains,omitempty"`

	// MaxRetries is the attempt count for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
}

// MirrorConfig holds settings for the mirror-retrieval adapter.
type MirrorConfig struct {
	// Hosts is the ordered list of mirror base URLs tried after the
	// primary resolution method fails. Read-only during a run.
	Hosts []string `json:"hosts" yaml:"hosts"`

	// Timeout is the per-mirror request timeout; mirrors are slow or
	// dead often enough that this stays short (a few seconds).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is sent with mirror requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetrievalBudget is the per-run configuration owned by the
// orchestrator. Immutable for the run.
type RetrievalBudget struct {
	// MaxResultsPerQuery bounds each keyword search (default 10).
	MaxResultsPerQuery int `json:"max_results_per_query" yaml:"max_results_per_query"`

	// MaxDownloadAttempts bounds fetch attempts per candidate (default 2).
	MaxDownloadAttempts int `json:"max_download_attempts" yaml:"max_download_attempts"`

	// RequestTimeout is the per-request network timeout.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// RunDeadline bounds the whole run; zero means no deadline.
	// Exceeding it ends the run gracefully with partial results.
	RunDeadline time.Duration `json:"run_deadline,omitempty" yaml:"run_deadline,omitempty"`

	// OutputDir is the root of the artifact tree
	// (<OutputDir>/<topic>/<provider>/NN_slug.pdf).
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxConcurrentFetches caps simultaneous in-flight downloads
	// (default 3). Mirror hosts in particular are rate-sensitive.
	MaxConcurrentFetches int `json:"max_concurrent_fetches" yaml:"max_concurrent_fetches"`

	// DownloadDelay is the politeness delay between consecutive
	// downloads issued by the same worker.
	DownloadDelay time.Duration `json:"download_delay,omitempty" yaml:"download_delay,omitempty"`
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (b RetrievalBudget) WithDefaults() RetrievalBudget {
	if b.MaxResultsPerQuery <= 0 {
		b.MaxResultsPerQuery = 10
	}
	if b.MaxDownloadAttempts <= 0 {
		b.MaxDownloadAttempts = 2
	}
	if b.MaxConcurrentFetches <= 0 {
		b.MaxConcurrentFetches = 3
	}
	if b.OutputDir == "" {
		b.OutputDir = "data"
	}
	return b
}

// PipelineConfig groups all component configurations for one run.
type PipelineConfig struct {
	Index     IndexConfig     `json:"index" yaml:"index"`
	WebSearch WebSearchConfig `json:"web_search" yaml:"web_search"`
	Mirror    MirrorConfig    `json:"mirror" yaml:"mirror"`
	Budget    RetrievalBudget `json:"budget" yaml:"budget"`
}
