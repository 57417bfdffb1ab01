// Package text provides rune-aware helpers for the heuristic fallbacks:
// counting, truncation, sentence splitting and keyword extraction.
package text

import (
	"sort"
	"strings"
	"unicode"
)

// CountRunes counts Unicode characters rather than bytes.
func CountRunes(text string) int {
	return len([]rune(text))
}

// Truncate cuts text to at most limit runes, appending "..." when it cuts.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return strings.TrimSpace(string(r[:limit-3])) + "..."
}

// Sentences splits text on sentence-ending punctuation and line breaks.
// Empty fragments are dropped and whitespace is collapsed.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.Join(strings.Fields(b.String()), " ")
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?', '。', '！', '？':
			b.WriteRune(r)
			flush()
		case '\n':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// Tokenize lowercases text and splits it into words of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Normalize lowercases text and collapses whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "also": {}, "an": {}, "and": {}, "any": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "been": {}, "but": {}, "by": {}, "can": {}, "do": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "how": {}, "i": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "more": {}, "most": {}, "my": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "over": {}, "so": {}, "such": {},
	"than": {}, "that": {}, "the": {}, "their": {}, "them": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "us": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "which": {}, "who": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

// IsStopword reports whether word carries no topical meaning.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// Keywords returns up to n of the most frequent non-stopword tokens of at least
// three runes. Ties are broken by first appearance, so the output is deterministic.
func Keywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, tok := range Tokenize(text) {
		if CountRunes(tok) < 3 || IsStopword(tok) {
			continue
		}
		if _, seen := first[tok]; !seen {
			first[tok] = i
		}
		counts[tok]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// Overlap returns the fraction of distinct meaningful terms in query that also occur in doc.
func Overlap(query, doc string) float64 {
	terms := make(map[string]struct{})
	for _, t := range Tokenize(query) {
		if CountRunes(t) >= 3 && !IsStopword(t) {
			terms[t] = struct{}{}
		}
	}
	if len(terms) == 0 {
		return 0
	}
	docTerms := make(map[string]struct{})
	for _, t := range Tokenize(doc) {
		docTerms[t] = struct{}{}
	}
	hit := 0
	for t := range terms {
		if _, ok := docTerms[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}
