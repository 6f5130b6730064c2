package search

import (
	"strings"

	"github.com/jonesrussell/north-search/internal/cleaner"
)

// BuildPreview extracts the span of a chunk most relevant to the query:
// sentences are scored by query-term hits and the best consecutive run
// that fits the budget wins. With no term hits anywhere, the chunk's
// leading characters stand in.
func BuildPreview(chunkText, query string, maxLen int) string {
	chunkText = strings.TrimSpace(chunkText)
	if chunkText == "" {
		return ""
	}
	if len(chunkText) <= maxLen {
		return chunkText
	}

	terms := queryTerms(query)
	sentences := cleaner.SplitSentences(chunkText)
	if len(sentences) == 0 {
		return truncateAtWord(chunkText, maxLen)
	}

	best, bestScore := 0, 0
	for i, sentence := range sentences {
		score := termHits(sentence, terms)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore == 0 {
		return truncateAtWord(chunkText, maxLen)
	}

	// Grow a window from the best sentence, preferring following context.
	var parts []string
	length := 0
	for i := best; i < len(sentences); i++ {
		if length+len(sentences[i]) > maxLen && length > 0 {
			break
		}
		parts = append(parts, sentences[i])
		length += len(sentences[i]) + 1
	}

	preview := strings.Join(parts, " ")
	if len(preview) > maxLen {
		preview = truncateAtWord(preview, maxLen) + "..."
	}
	if best > 0 {
		preview = "..." + preview
	}
	return preview
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func termHits(sentence string, terms []string) int {
	lower := strings.ToLower(sentence)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return hits
}

func truncateAtWord(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
