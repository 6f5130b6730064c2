package opensearch

import "fmt"

// Index mappings for the documents and chunks daily indices. Shapes follow
// the index templates applied at indexer startup; both are exposed so tests
// and the admin path share one source of truth.

// chunkAnalysisSettings defines the search-time analyzer for chunk text:
// lowercase, stop-word removal, stemming, word-delimiter splitting, and
// duplicate-token removal.
func chunkAnalysisSettings() map[string]any {
	return map[string]any{
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"chunk_search_analyzer": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter": []string{
						"lowercase",
						"stop",
						"porter_stem",
						"chunk_word_delimiter",
						"unique",
					},
				},
			},
			"filter": map[string]any{
				"chunk_word_delimiter": map[string]any{
					"type":              "word_delimiter_graph",
					"preserve_original": true,
				},
			},
		},
	}
}

// ChunkMappings returns the field mappings for chunks-* indices.
func ChunkMappings() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"chunk_id":    map[string]any{"type": "keyword"},
			"document_id": map[string]any{"type": "keyword"},
			"title":       map[string]any{"type": "text"},
			"url":         map[string]any{"type": "keyword"},
			"domain":      map[string]any{"type": "keyword"},
			"text_chunk": map[string]any{
				"type":            "text",
				"analyzer":        "standard",
				"search_analyzer": "chunk_search_analyzer",
			},
			"headings":           map[string]any{"type": "text"},
			"domain_score":       map[string]any{"type": "half_float"},
			"quality_score":      map[string]any{"type": "half_float"},
			"word_count":         map[string]any{"type": "integer"},
			"content_categories": map[string]any{"type": "keyword"},
			"keywords":           map[string]any{"type": "keyword"},
			"indexed_at":         map[string]any{"type": "date"},
			"@timestamp":         map[string]any{"type": "date"},
		},
	}
}

// DocumentMappings returns the field mappings for documents-* indices.
func DocumentMappings() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"document_id": map[string]any{"type": "keyword"},
			"url":         map[string]any{"type": "keyword"},
			"title": map[string]any{
				"type": "text",
				"fields": map[string]any{
					"raw":      map[string]any{"type": "keyword"},
					"complete": map[string]any{"type": "completion"},
				},
			},
			"domain":         map[string]any{"type": "keyword"},
			"description":    map[string]any{"type": "text"},
			"content_type":   map[string]any{"type": "keyword"},
			"categories":     map[string]any{"type": "keyword"},
			"keywords":       map[string]any{"type": "keyword"},
			"canonical_url":  map[string]any{"type": "keyword", "index": false},
			"published_date": map[string]any{"type": "date", "format": "strict_date_optional_time"},
			"modified_date":  map[string]any{"type": "date", "format": "strict_date_optional_time"},
			// Stored but not analyzed; opaque to search.
			"author_info":       map[string]any{"type": "object", "enabled": false},
			"structured_data":   map[string]any{"type": "object", "enabled": false},
			"images":            map[string]any{"type": "object", "enabled": false},
			"table_of_contents": map[string]any{"type": "object", "enabled": false},
			"semantic_info":     map[string]any{"type": "object", "enabled": false},
			"icons":             map[string]any{"type": "object", "enabled": false},
			"indexed_at":        map[string]any{"type": "date"},
			"@timestamp":        map[string]any{"type": "date"},
		},
	}
}

// documentTemplate builds the composable index template for documents-*.
func documentTemplate(base string) map[string]any {
	return map[string]any{
		"index_patterns": []string{base + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 1,
			},
			"mappings": DocumentMappings(),
		},
	}
}

// chunkTemplate builds the composable index template for chunks-*.
func chunkTemplate(base string) map[string]any {
	settings := map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	}
	for k, v := range chunkAnalysisSettings() {
		settings[k] = v
	}
	return map[string]any{
		"index_patterns": []string{base + "-*"},
		"template": map[string]any{
			"settings": settings,
			"mappings": ChunkMappings(),
		},
	}
}

func formatDays(days int) string {
	return fmt.Sprintf("%dd", days)
}

// retentionPolicy builds the ISM policy that deletes daily indices after
// retentionDays.
func retentionPolicy(retentionDays int, patterns []string) map[string]any {
	return map[string]any{
		"policy": map[string]any{
			"description":   "delete daily search indices after retention",
			"default_state": "hot",
			"states": []map[string]any{
				{
					"name":    "hot",
					"actions": []map[string]any{},
					"transitions": []map[string]any{
						{
							"state_name": "delete",
							"conditions": map[string]any{
								"min_index_age": formatDays(retentionDays),
							},
						},
					},
				},
				{
					"name": "delete",
					"actions": []map[string]any{
						{"delete": map[string]any{}},
					},
					"transitions": []map[string]any{},
				},
			},
			"ism_template": []map[string]any{
				{"index_patterns": patterns, "priority": 10},
			},
		},
	}
}
