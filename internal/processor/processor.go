// Package processor turns raw crawled records into index-ready documents
// and chunks. Each record passes through validation, language filtering,
// a single HTML parse, metadata extraction, cleaning, scoring, and
// chunking; a failure at any step rejects the record without affecting
// the rest of the batch.
package processor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jonesrussell/north-search/internal/cleaner"
	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/extractor"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/metrics"
	"github.com/jonesrussell/north-search/internal/scorer"
)

// Rejection reasons. All are expected conditions, not faults; callers
// count them and move on.
var (
	ErrInvalidRecord   = errors.New("record is not processable")
	ErrRawTooSmall     = errors.New("raw content below minimum size")
	ErrUnparseable     = errors.New("html did not parse")
	ErrNotEnglish      = errors.New("content is not english")
	ErrContentTooShort = errors.New("cleaned content below minimum length")
)

// minRawContentBytes is the smallest raw payload worth parsing.
const minRawContentBytes = 500

const untitledDocument = "Untitled Document"

// Titles too generic to identify a page.
var genericTitles = map[string]bool{
	"home":      true,
	"homepage":  true,
	"index":     true,
	"untitled":  true,
	"welcome":   true,
	"blog":      true,
	"news":      true,
	"article":   true,
	"page":      true,
	"document":  true,
	"error":     true,
	"not found": true,
}

const minDescriptionLength = 10

// Content types that keep the full chunk word floor; everything else is
// indexed down to shorter sections.
var fullFloorContentTypes = map[string]bool{
	domain.ContentTypeArticle:       true,
	domain.ContentTypeBlog:          true,
	domain.ContentTypeDocumentation: true,
}

const shortMinChunkWords = 30

// Processor converts one raw record into a document and its chunks.
type Processor struct {
	cfg       *config.PipelineConfig
	logger    logger.Logger
	extractor *extractor.Extractor
	chunker   *cleaner.Chunker
}

// New creates a processor.
func New(cfg *config.PipelineConfig, log logger.Logger) *Processor {
	return &Processor{
		cfg:       cfg,
		logger:    log,
		extractor: extractor.New(log),
		chunker:   cleaner.NewChunker(cfg.MaxChunkSize, cfg.MinChunkSize, cfg.MaxChunkChars),
	}
}

// Process runs the full pipeline for one record.
func (p *Processor) Process(rec *domain.RawRecord) (*domain.ProcessResult, error) {
	if !rec.Valid() {
		metrics.DocumentsRejected.WithLabelValues("invalid_record").Inc()
		return nil, ErrInvalidRecord
	}
	if len(rec.Content) < minRawContentBytes {
		metrics.DocumentsRejected.WithLabelValues("raw_too_small").Inc()
		return nil, fmt.Errorf("%w: %d bytes", ErrRawTooSmall, len(rec.Content))
	}

	root, err := html.Parse(strings.NewReader(rec.Content))
	if err != nil {
		metrics.DocumentsRejected.WithLabelValues("unparseable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	doc := goquery.NewDocumentFromNode(root)
	facts := extractor.CollectFacts(root)

	lang, reliable, english := detectLanguage(facts.Text)
	if !english {
		metrics.DocumentsRejected.WithLabelValues("not_english").Inc()
		return nil, fmt.Errorf("%w: detected %q", ErrNotEnglish, lang)
	}

	pageURL, _ := url.Parse(rec.URL)
	host := rec.Domain
	if host == "" && pageURL != nil {
		host = pageURL.Host
	}

	text := cleaner.Clean(extractor.MainContent(root, doc, pageURL, p.logger))
	if len(text) < p.cfg.MinContentLength {
		metrics.DocumentsRejected.WithLabelValues("content_too_short").Inc()
		return nil, fmt.Errorf("%w: %d chars", ErrContentTooShort, len(text))
	}

	title := p.resolveTitle(facts, rec)
	description := p.resolveDescription(facts, text)
	keywords := cleaner.ExtractKeywords(text, title, declaredKeywords(facts), p.cfg.MaxKeywords)

	published, modified := p.extractor.Dates(facts, root, rec.URL)
	author := p.extractor.AuthorInfo(facts)
	canonical := p.extractor.CanonicalURL(facts, pageURL)
	toc := p.extractor.TableOfContents(facts, doc)
	images := p.extractor.ContentImages(facts, pageURL)
	icons := p.extractor.Icons(facts, pageURL)
	technicalHits := p.extractor.TechnicalTermCount(facts)
	isTechnical := p.extractor.IsTechnical(facts)

	contentType := scorer.ClassifyContentType(scorer.ClassifySignals{
		URL:              rec.URL,
		Title:            title,
		OGType:           facts.Meta["property:og:type"],
		HasAuthor:        author != nil,
		HasPublishedDate: published != "",
		IsTechnical:      isTechnical,
	})
	categories := scorer.ClassifyCategories(title, text)

	domainScore := scorer.DomainScore(host)
	qualityScore := scorer.QualityScore(scorer.QualityInput{
		TextLength:        len(text),
		WordCount:         cleaner.CountWords(text),
		HeadingCount:      len(facts.Headings),
		ContentType:       contentType,
		LanguageReliable:  reliable,
		HasDescription:    description != "",
		HasAuthor:         author != nil,
		HasPublishedDate:  published != "",
		HasCanonicalURL:   canonical != "",
		IsTechnical:       isTechnical,
		TechnicalTermHits: technicalHits,
		DomainScore:       domainScore,
		ImageCount:        len(images),
		TOCEntries:        len(toc),
		CategoryCount:     len(categories),
	})

	docID := domain.NewDocumentID(rec.URL)
	document := &domain.Document{
		DocumentID:      docID,
		URL:             rec.URL,
		CanonicalURL:    canonical,
		Domain:          host,
		Title:           title,
		Description:     description,
		ContentType:     contentType,
		Categories:      categories,
		Keywords:        keywords,
		PublishedDate:   published,
		ModifiedDate:    modified,
		AuthorInfo:      author,
		Images:          images,
		TableOfContents: toc,
		SemanticInfo:    p.extractor.SemanticInfo(facts),
		StructuredData:  facts.JSONLD,
		Icons:           icons,
	}

	chunks := p.buildChunks(docID, document, text, facts.Headings, domainScore, qualityScore)

	metrics.DocumentsProcessed.Inc()
	metrics.ChunksProduced.Add(float64(len(chunks)))
	return &domain.ProcessResult{Document: document, Chunks: chunks}, nil
}

// buildChunks splits cleaned text and drops fragments below the word
// floor. Chunks inherit the document's quality score so chunk ranking
// reflects page quality without rescoring each span.
func (p *Processor) buildChunks(
	docID string,
	doc *domain.Document,
	text string,
	headings []domain.Heading,
	domainScore, qualityScore float64,
) []domain.DocumentChunk {
	minWords := shortMinChunkWords
	if fullFloorContentTypes[doc.ContentType] {
		minWords = p.cfg.MinChunkWords
	}

	headingsJSON := cleaner.FormatHeadings(headings)
	texts := p.chunker.Chunk(text, headings)

	chunks := make([]domain.DocumentChunk, 0, len(texts))
	for _, chunkText := range texts {
		words := cleaner.CountWords(chunkText)
		if words < minWords {
			continue
		}
		chunks = append(chunks, domain.DocumentChunk{
			ChunkID:           domain.NewChunkID(docID, len(chunks)),
			DocumentID:        docID,
			Title:             doc.Title,
			URL:               doc.URL,
			Domain:            doc.Domain,
			TextChunk:         chunkText,
			Headings:          headingsJSON,
			DomainScore:       domainScore,
			QualityScore:      qualityScore,
			WordCount:         words,
			ContentCategories: doc.Categories,
			Keywords:          doc.Keywords,
		})
	}
	return chunks
}

// resolveTitle picks the best title: og:title, JSON-LD headline, the page
// <title>, then the crawler-supplied title. Generic titles are skipped;
// everything failing falls back to a placeholder.
func (p *Processor) resolveTitle(facts *extractor.RawFacts, rec *domain.RawRecord) string {
	candidates := []string{
		facts.Meta["property:og:title"],
		headlineFromJSONLD(facts.JSONLD),
		facts.PageTitle,
		rec.Title,
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || genericTitles[strings.ToLower(candidate)] {
			continue
		}
		return candidate
	}
	return untitledDocument
}

func headlineFromJSONLD(blocks []map[string]any) string {
	for _, block := range blocks {
		if headline, ok := block["headline"].(string); ok {
			return headline
		}
	}
	return ""
}

// resolveDescription picks the first usable description: og:description,
// meta description, JSON-LD, then a preview built from the cleaned text.
func (p *Processor) resolveDescription(facts *extractor.RawFacts, text string) string {
	candidates := []string{
		facts.Meta["property:og:description"],
		facts.Meta["name:description"],
		descriptionFromJSONLD(facts.JSONLD),
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if len(candidate) >= minDescriptionLength {
			return candidate
		}
	}
	return cleaner.BuildPreview(text, p.cfg.PreviewLength)
}

func descriptionFromJSONLD(blocks []map[string]any) string {
	for _, block := range blocks {
		if desc, ok := block["description"].(string); ok {
			return desc
		}
	}
	return ""
}

func declaredKeywords(facts *extractor.RawFacts) []string {
	raw := facts.Meta["name:keywords"]
	if raw == "" {
		raw = facts.Meta["property:article:tag"]
	}
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
