package ingest

import (
	"regexp"
	"sort"
	"strings"
)

// MaxKeywords caps keywords derived from text.
const MaxKeywords = 10

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "you", "your", "we", "our", "they", "their", "he",
		"she", "his", "her", "not", "no", "have", "has", "had", "do", "does", "did", "what", "which", "who",
		"how", "when", "where", "why", "all", "any", "more", "most", "other", "some", "also", "there", "here",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Keywords returns up to max of the most frequent non-stopword terms in text,
// most frequent first. Ties keep first-seen order.
func Keywords(text string, max int) []string {
	if max <= 0 {
		max = MaxKeywords
	}

	freq := map[string]int{}
	var order []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if freq[tok] == 0 {
			order = append(order, tok)
		}
		freq[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > max {
		order = order[:max]
	}
	if order == nil {
		return []string{}
	}
	return order
}
