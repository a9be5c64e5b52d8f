// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keywords turns upstream context strings into search terms.
// The upstream summarization stage produces raw keyword lists and
// topic/technology descriptions; this package only cleans, merges, and
// templates them; it does not generate language.
package keywords

import (
	"regexp"
	"strings"
)

// Context carries the contextual strings supplied by the upstream
// stage. The pipeline treats them as opaque text.
type Context struct {
	// Technology is a short description of the technology under study.
	Technology string

	// Theme is the thematic label of the seed article.
	Theme string
}

var (
	// labelPrefix strips leading "Keywords:", "Ответ:" and similar
	// labels the upstream stage sometimes leaves in front of the list.
	labelPrefix = regexp.MustCompile(`^[^:,]{0,40}:\s*`)

	whitespace = regexp.MustCompile(`\s+`)
)

// ParseList extracts individual keywords from one raw upstream string:
// a comma-separated list, possibly prefixed with a label and littered
// with stray newlines. Empty entries are dropped; order is preserved.
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = labelPrefix.ReplaceAllString(raw, "")
	raw = whitespace.ReplaceAllString(raw, " ")

	var out []string
	for _, part := range strings.Split(raw, ",") {
		kw := strings.TrimSpace(part)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Merge combines keyword sets into one de-duplicated, order-preserving
// list. Comparison is case-insensitive; the first-seen spelling wins.
func Merge(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, kw := range set {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(kw))
		}
	}
	return out
}

// BuildQuery templates a web-search query from a question and its
// context, the same shape the upstream drivers use.
func BuildQuery(question string, kc Context) string {
	question = strings.TrimSpace(question)
	tech := strings.TrimSpace(kc.Technology)
	if tech == "" {
		return question
	}
	return "Технология: " + tech + ". " + question
}
