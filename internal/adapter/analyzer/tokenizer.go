package analyzer

import (
	"strings"
	"unicode"
)

// Canonicalize normalizes a question for matching: lowercase, trimmed,
// collapsed whitespace, trailing punctuation stripped.
func Canonicalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimRight(text, "?!.,;: ")
}

// Tokenize splits text into lowercased word tokens.
func Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

// OverlapRatio returns the share of set b covered by tokens in a.
func OverlapRatio(a []string, b []string) float64 {
	if len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	var hits int
	for _, t := range b {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(b))
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
