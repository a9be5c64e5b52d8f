// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshintel/techscout/internal/fetch"
	"github.com/meshintel/techscout/internal/keywords"
	"github.com/meshintel/techscout/internal/mirror"
	"github.com/meshintel/techscout/internal/openalex"
	"github.com/meshintel/techscout/internal/retrieve"
	"github.com/meshintel/techscout/internal/websearch"
	"github.com/meshintel/techscout/pkg/types"
)

const defaultRequestTimeout = 60 * time.Second

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [queries...]",
	Short: "Retrieve snippets and PDFs for a technology topic",
	Long: `Retrieve runs each query through the full pipeline: web search for text
snippets, keyword searches against the academic index, and PDF downloads with a
DOI-mirror fallback for works the index could not resolve to an open file.

Files are written to <output-dir>/<topic>/<provider>/NN_title.pdf. Provider and
download failures are reported, never fatal: the run always produces whatever
subset it could retrieve.`,
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().String("topic", "", "topic identifier, used as the output subdirectory (required)")
	retrieveCmd.Flags().String("output-dir", "data", "root directory for downloaded files")
	retrieveCmd.Flags().String("keywords", "", "comma-separated search keywords (default: the query itself)")
	retrieveCmd.Flags().String("technology", "", "technology name prepended to web queries for context")
	retrieveCmd.Flags().Int("max-results", 10, "maximum results per keyword search")
	retrieveCmd.Flags().Int("max-attempts", 2, "download attempts per candidate")
	retrieveCmd.Flags().Int("concurrency", 3, "maximum concurrent fetches")
	retrieveCmd.Flags().Duration("timeout", defaultRequestTimeout, "per-request HTTP timeout")
	retrieveCmd.Flags().Duration("deadline", 0, "overall run deadline (0 = none)")
	retrieveCmd.Flags().Duration("delay", time.Second, "politeness delay between downloads")
	retrieveCmd.Flags().StringSlice("domains", nil, "restrict web snippets to these domains")
	retrieveCmd.Flags().String("report", "", "write a YAML run report to this path")
	retrieveCmd.Flags().String("websearch-key", "", "web search API key (default: secret websearch-api-key)")
	retrieveCmd.Flags().String("websearch-folder", "", "web search folder ID (default: secret websearch-folder-id)")
	retrieveCmd.Flags().String("email", "", "contact email for polite index access (default: secret openalex-email)")

	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more queries")
	}
	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" {
		return fmt.Errorf("--topic is required")
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	outputDir, _ := cmd.Flags().GetString("output-dir")
	kwFlag, _ := cmd.Flags().GetString("keywords")
	technology, _ := cmd.Flags().GetString("technology")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	delay, _ := cmd.Flags().GetDuration("delay")
	domains, _ := cmd.Flags().GetStringSlice("domains")
	reportPath, _ := cmd.Flags().GetString("report")

	client := &http.Client{Timeout: timeout}
	resolver := mirror.New(types.MirrorConfig{}, log)

	o := &retrieve.Orchestrator{
		Index: openalex.New(client, types.IndexConfig{
			HTTPConfig: types.HTTPConfig{Timeout: timeout},
			Email:      secretValue("openalex-email", flagString(cmd, "email")),
		}, log),
		Mirror:  resolver,
		Fetcher: fetch.New(client, ""),
		Budget: types.RetrievalBudget{
			MaxResultsPerQuery:   maxResults,
			MaxDownloadAttempts:  maxAttempts,
			RequestTimeout:       timeout,
			RunDeadline:          deadline,
			OutputDir:            outputDir,
			MaxConcurrentFetches: concurrency,
			DownloadDelay:        delay,
		},
		Log: log,
	}

	// Mirror downloads must go through the resolver's client: the PDF
	// lives in the same relaxed-TLS trust domain as the mirror page.
	o.MirrorFetcher = fetch.New(resolver.Client(), "")

	apiKey := secretValue("websearch-api-key", flagString(cmd, "websearch-key"))
	folderID := secretValue("websearch-folder-id", flagString(cmd, "websearch-folder"))
	if apiKey != "" {
		o.Web = websearch.New(client, types.WebSearchConfig{
			HTTPConfig:     types.HTTPConfig{Timeout: timeout},
			APIKey:         apiKey,
			FolderID:       folderID,
			AllowedDomains: domains,
		}, log)
	} else {
		log.Warn("no web search API key configured, skipping snippet retrieval")
	}

	extraKeywords := keywords.ParseList(kwFlag)
	o.Expand = func(query string) []string {
		if len(extraKeywords) > 0 {
			return extraKeywords
		}
		return []string{query}
	}

	// Prepend the technology name so short follow-up questions stay on topic.
	kc := keywords.Context{Technology: technology}
	queries := make([]string, len(args))
	for i, q := range args {
		queries[i] = keywords.BuildQuery(q, kc)
	}

	res := o.Run(context.Background(), topic, queries)

	fmt.Printf("Retrieved %d snippet(s) and %d file(s) for topic %s\n",
		len(res.Snippets), len(res.Artifacts), topic)
	for prov, n := range res.ByProvider {
		fmt.Printf("  %s: %d\n", prov, n)
	}
	for _, a := range res.Artifacts {
		fmt.Printf("  %s (%d bytes)\n", a.LocalPath, a.ByteSize)
	}
	failures := 0
	for _, rep := range res.Reports {
		failures += len(rep.Errors)
	}
	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d step(s) failed; see log for details\n", failures)
	}

	if reportPath != "" {
		if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
		if err := retrieve.WriteReport(reportPath, topic, res); err != nil {
			return err
		}
		fmt.Printf("Run report written to %s\n", reportPath)
	}
	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(v)
}
