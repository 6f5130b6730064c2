// Package cleaner normalizes extracted text and splits it into indexable
// chunks: entity decoding, boilerplate removal, heading-aware chunking,
// keyword extraction, and preview building.
package cleaner

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// Tokens that mark a line as site navigation rather than content.
var navTokens = map[string]bool{
	"home": true, "menu": true, "login": true, "register": true,
	"sign": true, "subscribe": true, "search": true, "next": true,
	"previous": true, "prev": true, "share": true, "tweet": true,
	"facebook": true, "twitter": true, "linkedin": true, "instagram": true,
	"cookie": true, "cookies": true, "accept": true, "privacy": true,
	"terms": true, "copyright": true, "skip": true, "toggle": true,
}

var (
	multiSpacePattern = regexp.MustCompile(`[ \t]+`)
	multiBreakPattern = regexp.MustCompile(`\n{3,}`)
)

// maxSymbolRun caps runs of the same punctuation or symbol character.
const maxSymbolRun = 3

// minWordRun is the repeat count at which a run of the same word
// collapses to one occurrence.
const minWordRun = 3

const (
	shortLineLength       = 50
	shortLineMinAlphaFrac = 0.5
	maxNumericFrac        = 0.6
	maxRepeatFrac         = 0.4
	maxNavTokenFrac       = 0.5
)

// Clean decodes HTML entities, collapses repetitive patterns, and drops
// boilerplate lines. The result keeps paragraph breaks where the input had
// them.
func Clean(text string) string {
	text = html.UnescapeString(text)
	text = collapseRepeatedSymbols(text)
	text = collapseRepeatedWords(text)

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multiSpacePattern.ReplaceAllString(line, " "))
		if line == "" {
			kept = append(kept, "")
			continue
		}
		if isBoilerplateLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	out = multiBreakPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// collapseRepeatedSymbols caps runs of the same punctuation or symbol
// character, as left by horizontal rules and ASCII decoration.
func collapseRepeatedSymbols(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev rune = -1
	run := 0
	for _, r := range text {
		if r == prev && !isWordRune(r) && !unicode.IsSpace(r) {
			run++
			if run > maxSymbolRun {
				continue
			}
		} else {
			prev = r
			run = 1
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseRepeatedWords folds a whitespace-separated run of the same word
// (case-insensitive, three or more repeats) into one occurrence.
func collapseRepeatedWords(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(text) {
		start := i
		for i < len(text) && isWordByte(text[i]) {
			i++
		}
		if i == start {
			b.WriteByte(text[i])
			i++
			continue
		}
		word := text[start:i]

		count := 1
		end := i
		for {
			k := end
			for k < len(text) && isSpaceByte(text[k]) {
				k++
			}
			if k == end || k >= len(text) {
				break
			}
			wordStart := k
			for k < len(text) && isWordByte(text[k]) {
				k++
			}
			if k == wordStart || !strings.EqualFold(text[wordStart:k], word) {
				break
			}
			count++
			end = k
		}

		b.WriteString(word)
		if count >= minWordRun {
			i = end
		}
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// isBoilerplateLine flags lines that read as chrome: navigation menus,
// number walls, heavily repeated tokens, or short low-alpha fragments.
func isBoilerplateLine(line string) bool {
	words := strings.Fields(strings.ToLower(line))
	if len(words) == 0 {
		return true
	}

	navHits := 0
	freq := make(map[string]int, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if navTokens[w] {
			navHits++
		}
		freq[w]++
	}
	if len(words) >= 2 && float64(navHits)/float64(len(words)) > maxNavTokenFrac {
		return true
	}

	maxFreq := 0
	for _, n := range freq {
		if n > maxFreq {
			maxFreq = n
		}
	}
	if len(words) >= 5 && float64(maxFreq)/float64(len(words)) > maxRepeatFrac {
		return true
	}

	var alpha, digit, total int
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.IsLetter(r):
			alpha++
		case unicode.IsDigit(r):
			digit++
		}
	}
	if total == 0 {
		return true
	}
	if float64(digit)/float64(total) > maxNumericFrac {
		return true
	}
	if len(line) < shortLineLength && float64(alpha)/float64(total) < shortLineMinAlphaFrac {
		return true
	}
	return false
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
