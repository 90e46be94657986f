package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		max    int
		expect string
	}{
		{"short text unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"tiny limit cuts hard", "hello world", 3, "hel"},
		{"long text gets suffix", strings.Repeat("a", 30), 20, "aaaaa" + TruncateSuffix},
		{"counts runes", "ああああ", 4, "ああああ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateText(tt.text, tt.max)
			assert.Equal(t, tt.expect, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", FirstLine("first\nsecond"))
	assert.Equal(t, "first", FirstLine("first\r\nsecond"))
	assert.Equal(t, "only", FirstLine("only"))
	assert.Equal(t, "", FirstLine(""))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"marker", "bug", "ui"}, Dedupe([]string{"marker", "bug", "marker", "", "ui", "bug"}))
	assert.Empty(t, Dedupe(nil))
}
