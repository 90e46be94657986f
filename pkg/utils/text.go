package utils

import (
	"unicode/utf8"
)

const (
	// GitHub text limits
	// https://docs.github.com/en/rest/issues/issues?apiVersion=2022-11-28
	MaxTitleLength   = 256
	MaxBodyLength    = 65536
	MaxCommentLength = 65536

	TruncateSuffix = "... [truncated]"
)

// TruncateText cuts text to at most maxLength runes, marking the cut with TruncateSuffix
func TruncateText(text string, maxLength int) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	runes := []rune(text)
	availableLength := maxLength - utf8.RuneCountInString(TruncateSuffix)
	if availableLength <= 0 {
		return string(runes[:maxLength])
	}
	return string(runes[:availableLength]) + TruncateSuffix
}

// FirstLine returns text up to the first newline
func FirstLine(text string) string {
	for i, r := range text {
		if r == '\n' || r == '\r' {
			return text[:i]
		}
	}
	return text
}

// Dedupe returns values without repeats, keeping first occurrences
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	ret := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return ret
}
