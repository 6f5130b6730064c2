package processor

import (
	"github.com/RadhiFadlillah/whatlanggo"
)

// languageSampleLength bounds detection cost on large documents.
const languageSampleLength = 2000

// detectLanguage runs language detection on a text sample. english is only
// false when detection is confident about another language; unreliable
// detections pass through so short or mixed pages are not dropped.
func detectLanguage(text string) (lang string, reliable, english bool) {
	sample := text
	if len(sample) > languageSampleLength {
		sample = sample[:languageSampleLength]
	}
	if sample == "" {
		return "", false, true
	}

	info := whatlanggo.Detect(sample)
	lang = info.Lang.Iso6391()
	reliable = info.IsReliable()
	english = !reliable || info.Lang == whatlanggo.Eng
	return lang, reliable, english
}
