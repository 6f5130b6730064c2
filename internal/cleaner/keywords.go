package cleaner

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball"
)

const (
	minKeywordLength = 4
	// Sample cap keeps keyword extraction cheap on very large documents.
	keywordSampleLength = 20000
)

var stopWordList = []string{
	"about", "above", "after", "again", "against", "because", "been",
	"before", "being", "below", "between", "both", "cannot", "could",
	"does", "doing", "down", "during", "each", "from", "further", "have",
	"having", "here", "hers", "herself", "himself", "into", "itself",
	"just", "more", "most", "myself", "once", "only", "other", "ought",
	"ours", "ourselves", "over", "same", "should", "some", "such", "than",
	"that", "their", "theirs", "them", "themselves", "then", "there",
	"these", "they", "this", "those", "through", "under", "until", "very",
	"were", "what", "when", "where", "which", "while", "whom", "with",
	"would", "your", "yours", "yourself", "yourselves", "also", "will",
	"like", "page", "click", "read", "view", "make", "made", "many",
	"much", "even", "still", "well", "first", "last", "using", "used",
	"need", "want", "time", "year", "people", "thing", "things",
}

var (
	stopWordsOnce sync.Once
	stopWords     map[string]bool
)

func stopWordSet() map[string]bool {
	stopWordsOnce.Do(func() {
		stopWords = make(map[string]bool, len(stopWordList))
		for _, w := range stopWordList {
			stopWords[w] = true
		}
	})
	return stopWords
}

// Terms whose presence earns a scoring bonus; technical vocabulary ranks
// above equally frequent filler.
var technicalKeywordBonus = map[string]float64{
	"api": 2.0, "database": 1.5, "kubernetes": 2.0, "docker": 1.8,
	"deployment": 1.5, "configuration": 1.3, "authentication": 1.5,
	"encryption": 1.5, "algorithm": 1.5, "compiler": 1.8, "runtime": 1.5,
	"framework": 1.3, "protocol": 1.5, "latency": 1.5, "throughput": 1.5,
	"microservice": 1.8, "container": 1.3, "pipeline": 1.3,
}

// ExtractKeywords returns up to maxKeywords terms for a document.
// Author-declared keywords lead with their original casing; the remainder
// is filled from the text by frequency weighted with term length and a
// technical-vocabulary bonus. Stem-level duplicates are collapsed.
func ExtractKeywords(text, title string, declared []string, maxKeywords int) []string {
	keywords := make([]string, 0, maxKeywords)
	seenStems := make(map[string]bool)

	for _, kw := range declared {
		kw = strings.TrimSpace(kw)
		if kw == "" || len(keywords) == maxKeywords {
			continue
		}
		stem := stemOf(strings.ToLower(kw))
		if seenStems[stem] {
			continue
		}
		seenStems[stem] = true
		keywords = append(keywords, kw)
	}
	if len(keywords) == maxKeywords {
		return keywords
	}

	sample := text
	if len(sample) > keywordSampleLength {
		sample = sample[:keywordSampleLength]
	}

	type candidate struct {
		word  string
		score float64
	}
	freq := make(map[string]int)
	for _, token := range tokenizeAlpha(strings.ToLower(title + " " + sample)) {
		if len(token) < minKeywordLength || stopWordSet()[token] {
			continue
		}
		freq[token]++
	}

	candidates := make([]candidate, 0, len(freq))
	for word, n := range freq {
		score := float64(n) * (1.0 + float64(len(word))/10.0)
		if bonus, ok := technicalKeywordBonus[word]; ok {
			score *= bonus
		}
		candidates = append(candidates, candidate{word: word, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].word < candidates[j].word
	})

	for _, cand := range candidates {
		if len(keywords) == maxKeywords {
			break
		}
		stem := stemOf(cand.word)
		if seenStems[stem] {
			continue
		}
		seenStems[stem] = true
		keywords = append(keywords, cand.word)
	}
	return keywords
}

// stemOf reduces a word to its stem for duplicate detection; the original
// word stands in when stemming fails.
func stemOf(word string) string {
	stem, err := snowball.Stem(word, "english", true)
	if err != nil || stem == "" {
		return word
	}
	return stem
}

// tokenizeAlpha splits text into purely alphabetic tokens.
func tokenizeAlpha(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
