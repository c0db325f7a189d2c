package moderation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Filter is an immutable snapshot of the banned term set.
type Filter struct {
	terms []string
}

// NewFilter normalizes terms, dropping empty ones and duplicates while keeping
// the first occurrence in place.
func NewFilter(terms []string) *Filter {
	seen := make(map[string]struct{}, len(terms))
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		term = NormalizeTerm(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		normalized = append(normalized, term)
	}
	return &Filter{terms: normalized}
}

func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func (f *Filter) Terms() []string {
	return append([]string(nil), f.terms...)
}

func (f *Filter) Len() int {
	return len(f.terms)
}

// Check returns the first term, in set order, found in text as a whole word.
func (f *Filter) Check(text string) (string, bool) {
	if len(f.terms) == 0 || text == "" {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, term := range f.terms {
		if containsWord(lowered, term) {
			return term, true
		}
	}
	return "", false
}

func containsWord(text, term string) bool {
	offset := 0
	for offset <= len(text)-len(term) {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if isBoundary(text, start) && isBoundary(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

// isBoundary mirrors \b: word-ness of the runes around pos differs.
func isBoundary(s string, pos int) bool {
	before := false
	if pos > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:pos])
		before = isWordRune(r)
	}
	after := false
	if pos < len(s) {
		r, _ := utf8.DecodeRuneInString(s[pos:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
