package scorer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/scorer"
)

func TestDomainScoreExactMatch(t *testing.T) {
	assert.Equal(t, 0.95, scorer.DomainScore("github.com"))
	assert.Equal(t, 0.95, scorer.DomainScore("www.github.com"))
}

func TestDomainScoreSubdomainInheritsParent(t *testing.T) {
	assert.Equal(t, 0.95, scorer.DomainScore("gist.github.com"))
	assert.Equal(t, 0.95, scorer.DomainScore("en.wikipedia.org"))
}

func TestDomainScoreTLDFallback(t *testing.T) {
	assert.Equal(t, 0.80, scorer.DomainScore("cs.stanford.edu"))
	assert.Equal(t, 0.85, scorer.DomainScore("nasa.gov"))
	assert.Equal(t, 0.40, scorer.DomainScore("random-site.com"))
}

func TestDomainScoreUnknown(t *testing.T) {
	assert.Equal(t, 0.3, scorer.DomainScore("weird.example"))
	assert.Equal(t, 0.3, scorer.DomainScore(""))
}

func TestQualityScoreOrdering(t *testing.T) {
	rich := scorer.QualityInput{
		TextLength:        9000,
		WordCount:         1500,
		HeadingCount:      8,
		ContentType:       domain.ContentTypeDocumentation,
		LanguageReliable:  true,
		HasDescription:    true,
		HasAuthor:         true,
		HasPublishedDate:  true,
		HasCanonicalURL:   true,
		IsTechnical:       true,
		TechnicalTermHits: 6,
		DomainScore:       0.95,
		ImageCount:        3,
		TOCEntries:        5,
		CategoryCount:     3,
	}
	poor := scorer.QualityInput{
		TextLength:   400,
		WordCount:    80,
		ContentType:  domain.ContentTypeGeneral,
		DomainScore:  0.3,
	}

	richScore := scorer.QualityScore(rich)
	poorScore := scorer.QualityScore(poor)

	assert.Greater(t, richScore, poorScore)
	assert.GreaterOrEqual(t, richScore, 0.7)
	assert.LessOrEqual(t, richScore, 1.0)
	assert.LessOrEqual(t, poorScore, 0.3)
	assert.GreaterOrEqual(t, poorScore, 0.0)
}

func TestQualityScoreClamped(t *testing.T) {
	in := scorer.QualityInput{
		WordCount:         1000,
		HeadingCount:      5,
		ContentType:       domain.ContentTypeDocumentation,
		LanguageReliable:  true,
		HasDescription:    true,
		HasAuthor:         true,
		HasPublishedDate:  true,
		HasCanonicalURL:   true,
		IsTechnical:       true,
		TechnicalTermHits: 100,
		DomainScore:       1.0,
		ImageCount:        10,
		TOCEntries:        20,
		CategoryCount:     5,
	}
	score := scorer.QualityScore(in)
	assert.LessOrEqual(t, score, 1.0)
}

func TestClassifyContentTypeByPath(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/docs/setup", domain.ContentTypeDocumentation},
		{"https://example.com/blog/my-post", domain.ContentTypeBlog},
		{"https://example.com/tutorials/intro", domain.ContentTypeTutorial},
		{"https://example.com/news/today", domain.ContentTypeNews},
		{"https://forum.example.com/t/12345", domain.ContentTypeForum},
		{"https://arxiv.org/abs/2401.00001", domain.ContentTypeAcademic},
	}
	for _, tc := range cases {
		got := scorer.ClassifyContentType(scorer.ClassifySignals{URL: tc.url})
		assert.Equal(t, tc.want, got, tc.url)
	}
}

func TestClassifyContentTypeByMetadata(t *testing.T) {
	got := scorer.ClassifyContentType(scorer.ClassifySignals{
		URL:              "https://example.com/page",
		OGType:           "article",
		HasPublishedDate: true,
	})
	assert.Equal(t, domain.ContentTypeArticle, got)

	got = scorer.ClassifyContentType(scorer.ClassifySignals{
		URL:   "https://example.com/page",
		Title: "How to configure a reverse proxy",
	})
	assert.Equal(t, domain.ContentTypeTutorial, got)

	got = scorer.ClassifyContentType(scorer.ClassifySignals{
		URL: "https://example.com/page",
	})
	assert.Equal(t, domain.ContentTypeGeneral, got)
}

func TestClassifyCategories(t *testing.T) {
	text := "This guide covers kubernetes deployment pipelines, docker containers, " +
		"and the monitoring of production infrastructure using code and algorithms " +
		"written by every developer on the team."

	categories := scorer.ClassifyCategories("DevOps programming guide", text)
	assert.Contains(t, categories, "devops")
	assert.Contains(t, categories, "programming")
}

func TestClassifyCategoriesGeneralFallback(t *testing.T) {
	categories := scorer.ClassifyCategories("A walk in the park", "The weather was lovely and the ducks were loud.")
	assert.Equal(t, []string{"general"}, categories)
}
