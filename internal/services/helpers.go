package services

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// generateSlug builds a URL-safe slug from a display name. Empty input
// yields an empty slug; callers that need a guaranteed slug fall back to
// hashSlug.
func generateSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 100 {
		s = strings.Trim(s[:100], "-")
	}
	return s
}

// hashSlug is the fallback slug for names that slugify to nothing
// (non-Latin scripts, punctuation-only values).
func hashSlug(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])[:12]
}

// slugOrHash returns the generated slug, or the hash fallback when the
// name produces an empty one.
func slugOrHash(name string) string {
	if slug := generateSlug(name); slug != "" {
		return slug
	}
	return hashSlug(name)
}

func intPtr(i int) *int {
	return &i
}

func f64Ptr(f float64) *float64 {
	return &f
}
