package cleaner

import (
	"encoding/json"
	"strings"

	"github.com/jonesrussell/north-search/internal/domain"
)

const (
	minPreviewParagraphLen = 80
	// Sentence-boundary truncation is used only when it keeps at least
	// this fraction of the budget; otherwise cut on a word boundary.
	sentenceCutMinFraction = 0.7
)

// BuildPreview picks the most description-like paragraph and fits it into
// budget characters, preferring a sentence boundary over a word boundary.
func BuildPreview(text string, budget int) string {
	paragraph := bestParagraph(text)
	if paragraph == "" {
		return ""
	}
	if len(paragraph) <= budget {
		return paragraph
	}

	cut := paragraph[:budget]
	if idx := lastSentenceEnd(cut); idx >= int(float64(budget)*sentenceCutMinFraction) {
		return strings.TrimSpace(cut[:idx+1])
	}
	return truncateAtWord(paragraph, budget) + "..."
}

// bestParagraph scores paragraphs by length and prose quality, skipping
// ones that read like lists or leftovers.
func bestParagraph(text string) string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return ""
	}

	best := ""
	bestScore := 0.0
	for i, p := range paragraphs {
		if len(p) < minPreviewParagraphLen {
			continue
		}
		score := float64(len(p))
		if score > 400 {
			score = 400
		}
		// Earlier paragraphs win ties; intros summarize.
		score *= 1.0 - float64(i)*0.05
		if strings.Count(p, ".") >= 1 {
			score *= 1.2
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	if best == "" {
		best = paragraphs[0]
	}
	return best
}

func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

const (
	maxStoredHeadings    = 10
	maxStoredHeadingText = 200
)

// FormatHeadings serializes headings for chunk storage: at most ten
// entries, texts clipped to two hundred characters. Returns "" when there
// is nothing to store.
func FormatHeadings(headings []domain.Heading) string {
	if len(headings) == 0 {
		return ""
	}
	if len(headings) > maxStoredHeadings {
		headings = headings[:maxStoredHeadings]
	}

	clipped := make([]domain.Heading, len(headings))
	for i, h := range headings {
		if len(h.Text) > maxStoredHeadingText {
			h.Text = truncateAtWord(h.Text, maxStoredHeadingText)
		}
		clipped[i] = h
	}

	raw, err := json.Marshal(clipped)
	if err != nil {
		return ""
	}
	return string(raw)
}
