// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"fmt"
	"regexp"
	"strings"
)

// maxSlugLen bounds the title-derived filename stem.
const maxSlugLen = 100

var (
	slugStripPattern   = regexp.MustCompile(`[^\pL\pN_\s-]`)
	slugCollapsePattern = regexp.MustCompile(`[-\s]+`)
)

// Slug derives a filesystem-safe, length-bounded stem from a title.
// Punctuation is dropped, whitespace and dashes collapse to single
// underscores, and the result is capped at maxSlugLen runes.
func Slug(title string) string {
	s := slugStripPattern.ReplaceAllString(title, "")
	s = strings.TrimSpace(s)
	s = slugCollapsePattern.ReplaceAllString(s, "_")

	if runes := []rune(s); len(runes) > maxSlugLen {
		s = string(runes[:maxSlugLen])
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "document"
	}
	return s
}

// artifactName builds the collision-free artifact filename: a stable
// run-wide ordinal prefix plus the title slug.
func artifactName(ordinal int, title string) string {
	return fmt.Sprintf("%02d_%s.pdf", ordinal, Slug(title))
}
