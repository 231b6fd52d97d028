// Package langtext extracts scalar values from the multilingual and
// XML-derived field shapes produced by PrestaShop webservice payloads.
//
// The same logical field can arrive as a plain scalar, a map keyed by
// language ID, a map wrapped in a "language" key, a list of objects with
// one of several content keys, or a single such object. FirstLocalized
// collapses all of them to the first usable string.
package langtext

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentKeys are checked in priority order when a field is an object.
var contentKeys = []string{"value", "#", "__value", "content", "$"}

var whitespaceRe = regexp.MustCompile(`\s+`)

// FirstLocalized resolves a multilingual field value to a plain string.
// It never fails; unresolvable shapes yield "".
func FirstLocalized(field interface{}) string {
	if s, ok := scalarString(field); ok {
		return s
	}

	switch v := field.(type) {
	case map[string]interface{}:
		// PrestaShop JSON wraps localized maps in a "language" key.
		if inner, ok := v["language"]; ok {
			return FirstLocalized(inner)
		}
		for _, key := range contentKeys {
			if raw, ok := v[key]; ok {
				if s, ok := scalarString(raw); ok {
					return s
				}
			}
		}
		for _, key := range sortedKeys(v) {
			if strings.HasPrefix(key, "@") {
				continue
			}
			if s := FirstLocalized(v[key]); s != "" {
				return s
			}
		}
	case []interface{}:
		for _, item := range v {
			if s := FirstLocalized(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// Sanitize strips markup from a value, collapses internal whitespace and
// trims the result. Used for brand names and short descriptions where the
// source stores HTML fragments.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func scalarString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// sortedKeys orders map keys numerically when possible so that language
// maps keyed by ID ("1", "2", "10") resolve to the lowest language ID
// deterministically.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
