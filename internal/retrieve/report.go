// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/techscout/pkg/types"
)

// RunReport is the on-disk record of one retrieval run: what was asked,
// what came back, and where the files went. The report is advisory; it
// is written after the run and never read back by the pipeline itself.
type RunReport struct {
	Topic     string                     `yaml:"topic"`
	Queries   []QueryReport              `yaml:"queries"`
	Snippets  []types.SearchSnippet      `yaml:"snippets,omitempty"`
	Artifacts []types.DownloadedArtifact `yaml:"artifacts,omitempty"`
	Summary   RunSummary                 `yaml:"summary"`
}

// RunSummary holds aggregate statistics for a run.
type RunSummary struct {
	TotalArtifacts int                    `yaml:"total_artifacts"`
	TotalSnippets  int                    `yaml:"total_snippets"`
	ByProvider     map[types.Provider]int `yaml:"by_provider,omitempty"`
	Timestamp      time.Time              `yaml:"timestamp"`
}

// WriteReport saves a run's outcome to a YAML file.
func WriteReport(path, topic string, res Result) error {
	rr := RunReport{
		Topic:     topic,
		Queries:   res.Reports,
		Snippets:  res.Snippets,
		Artifacts: res.Artifacts,
		Summary: RunSummary{
			TotalArtifacts: len(res.Artifacts),
			TotalSnippets:  len(res.Snippets),
			ByProvider:     res.ByProvider,
			Timestamp:      time.Now(),
		},
	}

	data, err := yaml.Marshal(&rr)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a previously written run report.
func ReadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run report: %w", err)
	}
	var rr RunReport
	if err := yaml.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("parsing run report: %w", err)
	}
	return &rr, nil
}
