package langtext

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fromJSON(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	assert.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestFirstLocalized(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain string", `"Shirt"`, "Shirt"},
		{"number", `42`, "42"},
		{"decimal", `19.99`, "19.99"},
		{"null", `null`, ""},
		{"empty object", `{}`, ""},
		{"empty array", `[]`, ""},
		{"language wrapper with value key", `{"language":{"0":{"value":"Shirt"}}}`, "Shirt"},
		{"language wrapper scalar", `{"language":"Majica"}`, "Majica"},
		{"array of hash objects", `[{"#":"Cap"}]`, "Cap"},
		{"array of value objects", `[{"value":"Hat"},{"value":"Second"}]`, "Hat"},
		{"direct value key", `{"value":"Direct"}`, "Direct"},
		{"content key", `{"content":"Inline"}`, "Inline"},
		{"dollar key", `{"$":"Sigil"}`, "Sigil"},
		{"double underscore value", `{"__value":"Nested"}`, "Nested"},
		{"attributes skipped", `{"@attributes":{"id":"1"},"language":{"value":"Kept"}}`, "Kept"},
		{"attribute-only object", `{"@attributes":{"id":"1"}}`, ""},
		{"lowest language id wins", `{"10":{"value":"Tenth"},"2":{"value":"Second"}}`, "Second"},
		{"nested recursion", `[{"@attributes":{"id":"1"}},{"language":[{"#":"Deep"}]}]`, "Deep"},
		{"empty strings skipped in list", `[{"value":""},{"value":"Fallback"}]`, "Fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FirstLocalized(fromJSON(t, tt.input)))
		})
	}
}

func TestFirstLocalizedNonJSONScalars(t *testing.T) {
	assert.Equal(t, "7", FirstLocalized(7))
	assert.Equal(t, "9", FirstLocalized(int64(9)))
	assert.Equal(t, "true", FirstLocalized(true))
	assert.Equal(t, "", FirstLocalized(struct{}{}))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Nike", Sanitize("  Nike  "))
	assert.Equal(t, "Adidas Originals", Sanitize("<b>Adidas</b>\n\tOriginals"))
	assert.Equal(t, "", Sanitize("   "))
	assert.Equal(t, "", Sanitize("<p></p>"))
	assert.Equal(t, "Plain name", Sanitize("Plain name"))
}
