// Package normalize turns staged manifests into warehouse rows. This file
// holds the text helpers the pipeline shares: tax-id stripping, name
// normalization and the similarity measure behind driver matching.
package normalize

import "strings"

// Clean trims surrounding whitespace, mapping nil-ish input to "".
func Clean(s string) string {
	return strings.TrimSpace(s)
}

// CleanOrNull trims and returns nil for blank input, for nullable columns.
func CleanOrNull(s string) *string {
	cleaned := Clean(s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// OnlyDigits strips everything but 0-9.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasDangerousMark reports whether a waste description carries the "(*)"
// hazardous marker.
func HasDangerousMark(s string) bool {
	return strings.Contains(s, "(*)")
}

// DeriveWasteCode extracts the waste-type code from a "code - description"
// cell: the digits of the text before the first dash, or that raw prefix
// when it has no digits at all.
func DeriveWasteCode(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	left, _, _ := strings.Cut(raw, "-")
	if digits := OnlyDigits(left); digits != "" {
		return digits
	}
	return left
}

// NormalizeName uppercases, trims and collapses internal whitespace.
func NormalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Similarity scores two names in [0,1] as 1 - distance/maxLen over the
// normalized forms. Two blanks are identical; a single blank matches
// nothing.
func Similarity(a, b string) float64 {
	a = NormalizeName(a)
	b = NormalizeName(b)
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(s, t []rune) int {
	prev := make([]int, len(t)+1)
	cur := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s); i++ {
		cur[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(t)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
