package cleaner

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/north-search/internal/domain"
)

// Chunker splits cleaned text into search-sized chunks. Strategy depends
// on what the document offers: heading structure first, paragraphs for
// long unstructured text, sentences as the last resort.
type Chunker struct {
	// MaxSize is the target upper bound per chunk in characters.
	MaxSize int
	// MinSize is the merge threshold; smaller chunks are merged into a
	// neighbor.
	MinSize int
	// HardLimit truncates any chunk that still exceeds it.
	HardLimit int
	// OverlapSentences carries trailing sentences into the next chunk for
	// query continuity across boundaries.
	OverlapSentences int
}

// NewChunker creates a chunker with the given sizing.
func NewChunker(maxSize, minSize, hardLimit int) *Chunker {
	return &Chunker{
		MaxSize:          maxSize,
		MinSize:          minSize,
		HardLimit:        hardLimit,
		OverlapSentences: 2,
	}
}

// Heading importance by level; splits happen at or above the threshold.
var headingImportance = map[int]float64{
	1: 1.0,
	2: 0.8,
	3: 0.6,
	4: 0.4,
	5: 0.2,
	6: 0.1,
}

const (
	splitImportanceThreshold = 0.3
	paragraphStrategyMinLen  = 5000
	// A sentence may push a chunk this far past MaxSize rather than be
	// split mid-sentence.
	overflowFraction = 0.1
)

// Chunk splits text using the best available strategy.
func (c *Chunker) Chunk(text string, headings []domain.Heading) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sections []string
	switch {
	case len(headings) >= 2:
		sections = splitByHeadings(text, headings)
	case len(text) >= paragraphStrategyMinLen:
		sections = splitParagraphs(text)
	}
	if len(sections) < 2 {
		sections = []string{text}
	}

	var chunks []string
	for _, section := range sections {
		chunks = append(chunks, c.sizeSection(section)...)
	}
	chunks = c.mergeSmall(chunks)
	return c.resplitOversize(chunks)
}

// resplitOversize re-splits any chunk over HardLimit on sentence
// boundaries; no text is dropped.
func (c *Chunker) resplitOversize(chunks []string) []string {
	if c.HardLimit <= 0 {
		return chunks
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) <= c.HardLimit {
			out = append(out, chunk)
			continue
		}
		out = append(out, c.splitToLimit(chunk)...)
	}
	return out
}

// splitToLimit packs sentences into HardLimit-bounded pieces, falling
// back to word-boundary splits for a single sentence over the limit.
func (c *Chunker) splitToLimit(chunk string) []string {
	sentences := SplitSentences(chunk)
	if len(sentences) <= 1 {
		return hardSplit(chunk, c.HardLimit)
	}

	var out []string
	var current []string
	currentLen := 0
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
			currentLen = 0
		}
	}
	for _, sentence := range sentences {
		if len(sentence) > c.HardLimit {
			flush()
			out = append(out, hardSplit(sentence, c.HardLimit)...)
			continue
		}
		if currentLen > 0 && currentLen+len(sentence)+1 > c.HardLimit {
			flush()
		}
		current = append(current, sentence)
		currentLen += len(sentence) + 1
	}
	flush()
	return out
}

// splitByHeadings cuts the text at occurrences of important headings.
// Headings that cannot be located in the text are skipped.
func splitByHeadings(text string, headings []domain.Heading) []string {
	var cuts []int
	searchFrom := 0
	for _, h := range headings {
		if headingImportance[h.Level] < splitImportanceThreshold || h.Text == "" {
			continue
		}
		idx := strings.Index(text[searchFrom:], h.Text)
		if idx < 0 {
			continue
		}
		pos := searchFrom + idx
		cuts = append(cuts, pos)
		searchFrom = pos + len(h.Text)
	}
	if len(cuts) == 0 {
		return nil
	}

	var sections []string
	prev := 0
	for _, cut := range cuts {
		if cut > prev {
			sections = append(sections, strings.TrimSpace(text[prev:cut]))
		}
		prev = cut
	}
	sections = append(sections, strings.TrimSpace(text[prev:]))

	out := sections[:0]
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sizeSection fits one section into MaxSize-bounded chunks, splitting on
// sentence boundaries and carrying overlap sentences forward.
func (c *Chunker) sizeSection(section string) []string {
	if len(section) <= c.MaxSize {
		return []string{section}
	}

	sentences := SplitSentences(section)
	if len(sentences) <= 1 {
		return hardSplit(section, c.MaxSize)
	}

	overflow := c.MaxSize + int(float64(c.MaxSize)*overflowFraction)
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		// Seed the next chunk with the trailing sentences.
		carry := c.OverlapSentences
		if carry > len(current) {
			carry = len(current)
		}
		current = append([]string(nil), current[len(current)-carry:]...)
		currentLen = 0
		for _, s := range current {
			currentLen += len(s) + 1
		}
	}

	for _, sentence := range sentences {
		if currentLen > 0 && currentLen+len(sentence) > c.MaxSize {
			if currentLen+len(sentence) > overflow {
				flush()
			}
		}
		current = append(current, sentence)
		currentLen += len(sentence) + 1
		if currentLen >= c.MaxSize {
			flush()
		}
	}
	if currentLen > 0 && len(current) > c.OverlapSentences {
		chunks = append(chunks, strings.Join(current, " "))
	} else if len(chunks) == 0 && len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// mergeSmall folds chunks under MinSize into their predecessor.
func (c *Chunker) mergeSmall(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) < c.MinSize && len(out) > 0 {
			out[len(out)-1] = out[len(out)-1] + " " + chunk
			continue
		}
		out = append(out, chunk)
	}
	// A small leading chunk merges forward instead.
	if len(out) >= 2 && len(out[0]) < c.MinSize {
		out[1] = out[0] + " " + out[1]
		out = out[1:]
	}
	return out
}

var sentenceEndPattern = regexp.MustCompile(`([.!?]["')\]]?)\s+`)

// Abbreviations that a period does not end a sentence after.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"vs.": true, "etc.": true, "e.g.": true, "i.e.": true, "fig.": true,
	"no.": true, "st.": true, "inc.": true, "ltd.": true, "jr.": true,
}

// SplitSentences splits text on sentence boundaries, keeping terminal
// punctuation with each sentence.
func SplitSentences(text string) []string {
	marked := sentenceEndPattern.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")

	var sentences []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Re-join splits after common abbreviations.
		if n := len(sentences); n > 0 {
			prev := sentences[n-1]
			words := strings.Fields(prev)
			if len(words) > 0 && abbreviations[strings.ToLower(words[len(words)-1])] {
				sentences[n-1] = prev + " " + part
				continue
			}
		}
		sentences = append(sentences, part)
	}
	return sentences
}

func hardSplit(text string, size int) []string {
	var out []string
	for len(text) > size {
		cut := truncateAtWord(text, size)
		out = append(out, cut)
		text = strings.TrimSpace(text[len(cut):])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// truncateAtWord cuts text to at most limit chars on a word boundary.
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
