// Package domain defines the core types shared by the pipeline, indexer,
// and query service.
package domain

import (
	"crypto/md5" //nolint:gosec // identity hash, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"
)

// Content types assigned by the processor.
const (
	ContentTypeArticle       = "article"
	ContentTypeBlog          = "blog"
	ContentTypeDocumentation = "documentation"
	ContentTypeTutorial      = "tutorial"
	ContentTypeNews          = "news"
	ContentTypeForum         = "forum"
	ContentTypeAcademic      = "academic"
	ContentTypeGeneral       = "general"
)

// RawRecord is one crawled page as delivered by the crawler.
type RawRecord struct {
	URL       string `json:"url"`
	Content   string `json:"content"`
	Title     string `json:"title,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// minRawURLLength is the shortest URL accepted for processing.
const minRawURLLength = 11

// Valid reports whether the record is processable at all: an absolute
// HTTP(S) URL longer than 10 chars and non-empty content.
func (r *RawRecord) Valid() bool {
	if len(r.URL) < minRawURLLength || r.Content == "" {
		return false
	}
	return strings.HasPrefix(r.URL, "http://") || strings.HasPrefix(r.URL, "https://")
}

// Heading is one document heading retained for chunk context.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// Image is an extracted content image.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Title  string `json:"title,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// Icon is a site icon discovered in <link> tags.
type Icon struct {
	Href  string `json:"href"`
	Rel   string `json:"rel"`
	Sizes string `json:"sizes,omitempty"`
	Type  string `json:"type,omitempty"`
}

// TOCEntry is one table-of-contents entry.
type TOCEntry struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor,omitempty"`
}

// Document is the per-URL record stored in the documents index.
type Document struct {
	DocumentID      string           `json:"document_id"`
	URL             string           `json:"url"`
	CanonicalURL    string           `json:"canonical_url,omitempty"`
	Domain          string           `json:"domain"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	ContentType     string           `json:"content_type"`
	Categories      []string         `json:"categories,omitempty"`
	Keywords        []string         `json:"keywords,omitempty"`
	PublishedDate   string           `json:"published_date,omitempty"`
	ModifiedDate    string           `json:"modified_date,omitempty"`
	AuthorInfo      map[string]any   `json:"author_info,omitempty"`
	Images          []Image          `json:"images,omitempty"`
	TableOfContents []TOCEntry       `json:"table_of_contents,omitempty"`
	SemanticInfo    map[string]any   `json:"semantic_info,omitempty"`
	StructuredData  []map[string]any `json:"structured_data,omitempty"`
	Icons           []Icon           `json:"icons,omitempty"`
}

// DocumentChunk is one indexed span of a document's cleaned text.
type DocumentChunk struct {
	ChunkID           string   `json:"chunk_id"`
	DocumentID        string   `json:"document_id"`
	Title             string   `json:"title,omitempty"`
	URL               string   `json:"url,omitempty"`
	Domain            string   `json:"domain,omitempty"`
	TextChunk         string   `json:"text_chunk"`
	Headings          string   `json:"headings,omitempty"`
	DomainScore       float64  `json:"domain_score"`
	QualityScore      float64  `json:"quality_score"`
	WordCount         int      `json:"word_count"`
	ContentCategories []string `json:"content_categories,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
}

// NewDocumentID derives the stable document identity from the raw URL.
// The raw URL is hashed, not the canonical URL, so identity survives
// canonicalization rule changes across processor versions.
func NewDocumentID(rawURL string) string {
	sum := md5.Sum([]byte(rawURL)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// NewChunkID derives a chunk identity from its parent document and index.
func NewChunkID(documentID string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_chunk_%d", documentID, index))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// ProcessResult is the processor's output for one accepted record.
type ProcessResult struct {
	Document *Document
	Chunks   []DocumentChunk
}
