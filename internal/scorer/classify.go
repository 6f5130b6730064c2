package scorer

import (
	"sort"
	"strings"

	"github.com/jonesrussell/north-search/internal/domain"
)

// URL path fragments that decide content type outright.
var pathTypeHints = []struct {
	fragment    string
	contentType string
}{
	{"/docs/", domain.ContentTypeDocumentation},
	{"/documentation/", domain.ContentTypeDocumentation},
	{"/reference/", domain.ContentTypeDocumentation},
	{"/api/", domain.ContentTypeDocumentation},
	{"/tutorial", domain.ContentTypeTutorial},
	{"/guide", domain.ContentTypeTutorial},
	{"/how-to", domain.ContentTypeTutorial},
	{"/howto", domain.ContentTypeTutorial},
	{"/blog/", domain.ContentTypeBlog},
	{"/posts/", domain.ContentTypeBlog},
	{"/news/", domain.ContentTypeNews},
	{"/article", domain.ContentTypeNews},
	{"/forum", domain.ContentTypeForum},
	{"/thread", domain.ContentTypeForum},
	{"/questions/", domain.ContentTypeForum},
	{"/t/", domain.ContentTypeForum},
	{"/abs/", domain.ContentTypeAcademic},
	{"/paper", domain.ContentTypeAcademic},
	{"/doi/", domain.ContentTypeAcademic},
}

// Title keywords checked when the URL path is inconclusive.
var titleTypeHints = []struct {
	keyword     string
	contentType string
}{
	{"tutorial", domain.ContentTypeTutorial},
	{"how to", domain.ContentTypeTutorial},
	{"getting started", domain.ContentTypeTutorial},
	{"step by step", domain.ContentTypeTutorial},
	{"documentation", domain.ContentTypeDocumentation},
	{"reference", domain.ContentTypeDocumentation},
	{"breaking", domain.ContentTypeNews},
	{"announced", domain.ContentTypeNews},
	{"released", domain.ContentTypeNews},
}

// ClassifySignals carries the inputs for content-type classification.
type ClassifySignals struct {
	URL              string
	Title            string
	OGType           string
	HasAuthor        bool
	HasPublishedDate bool
	IsTechnical      bool
}

// ClassifyContentType resolves a document's content type from its URL
// path, open-graph type, title keywords, and metadata shape.
func ClassifyContentType(sig ClassifySignals) string {
	lowerURL := strings.ToLower(sig.URL)
	for _, hint := range pathTypeHints {
		if strings.Contains(lowerURL, hint.fragment) {
			return hint.contentType
		}
	}

	switch strings.ToLower(sig.OGType) {
	case "article":
		if sig.HasPublishedDate {
			return domain.ContentTypeArticle
		}
	case "blog", "website.blog":
		return domain.ContentTypeBlog
	}

	lowerTitle := strings.ToLower(sig.Title)
	for _, hint := range titleTypeHints {
		if strings.Contains(lowerTitle, hint.keyword) {
			return hint.contentType
		}
	}

	if sig.IsTechnical {
		return domain.ContentTypeDocumentation
	}
	if sig.HasAuthor && sig.HasPublishedDate {
		return domain.ContentTypeArticle
	}
	return domain.ContentTypeGeneral
}

// Category vocabularies. A category needs at least two distinct term hits
// to be assigned.
var categoryVocabulary = map[string][]string{
	"technology":  {"software", "hardware", "computer", "internet", "digital", "technology", "startup", "gadget", "innovation"},
	"programming": {"programming", "code", "developer", "function", "compiler", "debugging", "algorithm", "library", "framework", "golang", "python", "javascript"},
	"devops":      {"kubernetes", "docker", "deployment", "container", "pipeline", "monitoring", "infrastructure", "terraform", "observability"},
	"science":     {"research", "study", "experiment", "hypothesis", "physics", "chemistry", "biology", "scientist", "laboratory"},
	"business":    {"business", "market", "revenue", "startup", "investment", "strategy", "customer", "enterprise", "growth"},
	"finance":     {"finance", "stock", "trading", "currency", "banking", "interest", "inflation", "portfolio", "dividend"},
	"health":      {"health", "medical", "disease", "treatment", "patient", "doctor", "symptom", "therapy", "nutrition"},
	"education":   {"education", "learning", "student", "teacher", "course", "curriculum", "university", "lesson", "school"},
	"security":    {"security", "vulnerability", "encryption", "malware", "phishing", "firewall", "exploit", "authentication", "breach"},
}

const minCategoryHits = 2

// ClassifyCategories scans title and text for category vocabulary. A
// document matching no category at least twice gets ["general"].
func ClassifyCategories(title, text string) []string {
	sample := strings.ToLower(title + " " + text)
	if len(sample) > 20000 {
		sample = sample[:20000]
	}

	var categories []string
	for category, terms := range categoryVocabulary {
		hits := 0
		for _, term := range terms {
			if strings.Contains(sample, term) {
				hits++
				if hits >= minCategoryHits {
					categories = append(categories, category)
					break
				}
			}
		}
	}
	if len(categories) == 0 {
		return []string{domain.ContentTypeGeneral}
	}
	sort.Strings(categories)
	return categories
}
