package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Red Shirt", "red-shirt"},
		{"punctuation", "Men's T-Shirt (XL)", "men-s-t-shirt-xl"},
		{"trimmed", "  Shoes  ", "shoes"},
		{"empty", "", ""},
		{"symbols only", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSlug(tt.input))
		})
	}
}

func TestSlugOrHashFallsBack(t *testing.T) {
	slug := slugOrHash("???")
	assert.NotEmpty(t, slug)
	assert.Len(t, slug, 12)

	// Deterministic across calls.
	assert.Equal(t, slug, slugOrHash("???"))

	assert.Equal(t, "plain", slugOrHash("Plain"))
}
