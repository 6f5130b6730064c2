package scorer

import (
	"github.com/jonesrussell/north-search/internal/domain"
)

// QualityInput carries the signals the quality score is computed from.
type QualityInput struct {
	TextLength   int
	WordCount    int
	HeadingCount int
	ContentType  string
	// LanguageReliable is true when language detection was confident.
	LanguageReliable  bool
	HasDescription    bool
	HasAuthor         bool
	HasPublishedDate  bool
	HasCanonicalURL   bool
	IsTechnical       bool
	TechnicalTermHits int
	DomainScore       float64
	ImageCount        int
	TOCEntries        int
	CategoryCount     int
}

// Factor weights. They sum to 1.0; individual factor values may exceed
// 1.0 up to their caps, so strong pages can score above average on a
// weak-factor day.
const (
	weightLength       = 0.20
	weightStructure    = 0.20
	weightContentType  = 0.15
	weightLanguage     = 0.10
	weightMetadata     = 0.10
	weightTechnical    = 0.10
	weightAuthority    = 0.10
	weightCompleteness = 0.05

	technicalFactorCap    = 2.5
	authorityFactorCap    = 2.0
	completenessFactorCap = 1.8
)

// Relative value of each content type for ranking.
var contentTypeValue = map[string]float64{
	domain.ContentTypeDocumentation: 1.0,
	domain.ContentTypeTutorial:      0.95,
	domain.ContentTypeAcademic:      0.95,
	domain.ContentTypeArticle:       0.85,
	domain.ContentTypeNews:          0.75,
	domain.ContentTypeBlog:          0.70,
	domain.ContentTypeForum:         0.50,
	domain.ContentTypeGeneral:       0.40,
}

// QualityScore combines eight weighted factors into a single score,
// clamped to [0, 1].
func QualityScore(in QualityInput) float64 {
	score := weightLength*lengthFactor(in.WordCount) +
		weightStructure*structureFactor(in.HeadingCount, in.WordCount) +
		weightContentType*contentTypeValue[in.ContentType] +
		weightLanguage*languageFactor(in.LanguageReliable) +
		weightMetadata*metadataFactor(in) +
		weightTechnical*technicalFactor(in) +
		weightAuthority*authorityFactor(in.DomainScore) +
		weightCompleteness*completenessFactor(in)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// lengthFactor peaks for substantial articles and penalizes stubs. Very
// long pages keep full credit; length alone never hurts past the peak.
func lengthFactor(words int) float64 {
	switch {
	case words < 100:
		return 0.1
	case words < 300:
		return 0.4
	case words < 800:
		return 0.7
	case words < 2000:
		return 1.0
	default:
		return 0.9
	}
}

// structureFactor rewards heading density proportional to length: one
// heading per ~200 words is well structured.
func structureFactor(headings, words int) float64 {
	if words == 0 {
		return 0
	}
	if headings == 0 {
		return 0.2
	}
	ideal := float64(words) / 200.0
	if ideal < 1 {
		ideal = 1
	}
	ratio := float64(headings) / ideal
	if ratio > 1 {
		ratio = 1 / ratio
	}
	return 0.4 + 0.6*ratio
}

func languageFactor(reliable bool) float64 {
	if reliable {
		return 1.0
	}
	return 0.4
}

func metadataFactor(in QualityInput) float64 {
	score := 0.0
	if in.HasDescription {
		score += 0.4
	}
	if in.HasAuthor {
		score += 0.3
	}
	if in.HasPublishedDate {
		score += 0.3
	}
	return score
}

// technicalFactor grants up to technicalFactorCap for pages dense in
// technical vocabulary.
func technicalFactor(in QualityInput) float64 {
	if !in.IsTechnical {
		return 0.5
	}
	factor := 1.0 + float64(in.TechnicalTermHits)*0.15
	if factor > technicalFactorCap {
		factor = technicalFactorCap
	}
	return factor
}

// authorityFactor scales domain authority into a factor capped at
// authorityFactorCap.
func authorityFactor(domainScore float64) float64 {
	factor := domainScore * 2.0
	if factor > authorityFactorCap {
		factor = authorityFactorCap
	}
	return factor
}

// completenessFactor rewards documents carrying the full extraction
// surface, capped at completenessFactorCap.
func completenessFactor(in QualityInput) float64 {
	factor := 0.4
	if in.HasCanonicalURL {
		factor += 0.3
	}
	if in.ImageCount > 0 {
		factor += 0.3
	}
	if in.TOCEntries > 0 {
		factor += 0.4
	}
	if in.CategoryCount > 1 {
		factor += 0.4
	}
	if factor > completenessFactorCap {
		factor = completenessFactorCap
	}
	return factor
}
