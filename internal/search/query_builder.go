package search

import "fmt"

// Query builders for the chunks index. The primary query leans on the
// chunk analyzer and field boosts; the fallback casts a wider net for
// queries the primary matched nothing on.

// oversampleFactor requests more hits than the caller's limit so domain
// diversification has spares to choose from.
const oversampleFactor = 3

// Field boosts for the primary multi_match. Headings outrank body text:
// a query matching a section title is almost always on topic.
const (
	boostTextChunk = 1.5
	boostHeadings  = 3.0
	boostKeywords  = 2.0
	boostTitle     = 2.5
	boostPhrase    = 2.0
)

// chunkSourceFields trims the response to the fields result shaping
// reads; full chunk text still comes back for preview building.
func chunkSourceFields() []string {
	return []string{
		"chunk_id", "document_id", "title", "url", "domain", "text_chunk",
		"domain_score", "quality_score", "content_categories", "keywords",
	}
}

// BuildPrimaryQuery builds the main chunk query: a fuzzy multi_match over
// the boosted fields plus an exact-phrase clause, ranked by score then
// quality then domain authority.
func BuildPrimaryQuery(query string, limit int) map[string]any {
	return map[string]any{
		"size":    limit * oversampleFactor,
		"_source": chunkSourceFields(),
		"query": map[string]any{
			"bool": map[string]any{
				"should": []map[string]any{
					{
						"multi_match": map[string]any{
							"query": query,
							"fields": []string{
								field("text_chunk", boostTextChunk),
								field("headings", boostHeadings),
								field("keywords", boostKeywords),
								field("title", boostTitle),
							},
							"fuzziness": "AUTO",
						},
					},
					{
						"match_phrase": map[string]any{
							"text_chunk": map[string]any{
								"query": query,
								"boost": boostPhrase,
							},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"quality_score": map[string]any{"order": "desc"}},
			{"domain_score": map[string]any{"order": "desc"}},
		},
	}
}

// BuildFallbackQuery builds the looser second-chance query: plain matches
// on text and title plus a URL wildcard, any one clause sufficing.
func BuildFallbackQuery(query string, limit int) map[string]any {
	return map[string]any{
		"size":    limit * oversampleFactor,
		"_source": chunkSourceFields(),
		"query": map[string]any{
			"bool": map[string]any{
				"should": []map[string]any{
					{"match": map[string]any{"text_chunk": query}},
					{"match": map[string]any{"title": query}},
					{"wildcard": map[string]any{"url": map[string]any{"value": "*" + query + "*"}}},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
		},
	}
}

func field(name string, boost float64) string {
	return fmt.Sprintf("%s^%.1f", name, boost)
}
