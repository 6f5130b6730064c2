package extractor

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	htmldate "github.com/markusmobius/go-htmldate"
	"golang.org/x/net/html"

	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
)

// Extractor derives document metadata from collected facts. Derivations
// never fail; missing or malformed inputs yield empty results.
type Extractor struct {
	logger logger.Logger
}

// New creates an extractor.
func New(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// CanonicalURL resolves the page's canonical URL from rel=canonical or
// og:url, made absolute against the page URL. Returns "" when neither is
// present or the value does not parse.
func (e *Extractor) CanonicalURL(facts *RawFacts, pageURL *url.URL) string {
	candidate := ""
	for _, link := range facts.Links {
		if link.Rel == "canonical" && link.Href != "" {
			candidate = link.Href
			break
		}
	}
	if candidate == "" {
		candidate = facts.Meta["property:og:url"]
	}
	if candidate == "" {
		return ""
	}
	return resolveURL(pageURL, candidate)
}

// Meta keys checked for the published date, in priority order.
var publishedMetaKeys = []string{
	"property:article:published_time",
	"name:article:published_time",
	"name:date",
	"name:pubdate",
	"name:publishdate",
	"name:dc.date",
	"name:dc.date.issued",
	"name:sailthru.date",
	"property:og:published_time",
}

// Meta keys checked for the modified date, in priority order.
var modifiedMetaKeys = []string{
	"property:article:modified_time",
	"name:article:modified_time",
	"property:og:updated_time",
	"name:last-modified",
	"http-equiv:last-modified",
	"name:dc.date.modified",
}

// Dates resolves published and modified dates. Resolution order: meta tags,
// JSON-LD, <time> elements and date-classed nodes (including relative
// phrases like "3 days ago"), then the htmldate heuristic over the full
// tree as a last resort. Results are RFC 3339 strings or "".
func (e *Extractor) Dates(facts *RawFacts, root *html.Node, pageURL string) (published, modified string) {
	published = firstParsedDate(facts.Meta, publishedMetaKeys)
	modified = firstParsedDate(facts.Meta, modifiedMetaKeys)

	if published == "" || modified == "" {
		jsonPub, jsonMod := datesFromJSONLD(facts.JSONLD)
		if published == "" {
			published = jsonPub
		}
		if modified == "" {
			modified = jsonMod
		}
	}

	if published == "" {
		published = dateFromTimeTags(facts)
	}
	if published == "" {
		published = dateFromHints(facts.DateHints)
	}

	if published == "" && root != nil {
		res, err := htmldate.FromDocument(root, htmldate.Options{
			URL:             pageURL,
			UseOriginalDate: true,
		})
		if err == nil && !res.DateTime.IsZero() {
			published = res.DateTime.UTC().Format(time.RFC3339)
		}
	}

	return published, modified
}

func firstParsedDate(meta map[string]string, keys []string) string {
	for _, key := range keys {
		if v, ok := meta[key]; ok {
			if parsed := parseDate(v); parsed != "" {
				return parsed
			}
		}
	}
	return ""
}

func datesFromJSONLD(blocks []map[string]any) (published, modified string) {
	for _, block := range blocks {
		if published == "" {
			if v, ok := block["datePublished"].(string); ok {
				published = parseDate(v)
			}
		}
		if modified == "" {
			if v, ok := block["dateModified"].(string); ok {
				modified = parseDate(v)
			}
		}
		// @graph nesting is common in CMS output.
		if graph, ok := block["@graph"].([]any); ok && (published == "" || modified == "") {
			for _, entry := range graph {
				node, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				if published == "" {
					if v, ok := node["datePublished"].(string); ok {
						published = parseDate(v)
					}
				}
				if modified == "" {
					if v, ok := node["dateModified"].(string); ok {
						modified = parseDate(v)
					}
				}
			}
		}
		if published != "" && modified != "" {
			break
		}
	}
	return published, modified
}

func dateFromTimeTags(facts *RawFacts) string {
	for _, t := range facts.Times {
		if parsed := parseDate(t.Datetime); parsed != "" {
			return parsed
		}
	}
	for _, t := range facts.Times {
		if parsed := parseDate(t.Text); parsed != "" {
			return parsed
		}
		if parsed := parseRelativeDate(t.Text); parsed != "" {
			return parsed
		}
	}
	return ""
}

func dateFromHints(hints []string) string {
	for _, hint := range hints {
		if parsed := parseDate(hint); parsed != "" {
			return parsed
		}
		if parsed := parseRelativeDate(hint); parsed != "" {
			return parsed
		}
	}
	return ""
}

// Absolute date layouts accepted, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
	time.RFC1123,
	time.RFC1123Z,
}

func parseDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Reject implausible years rather than indexing garbage.
			if t.Year() < 1990 || t.Year() > time.Now().Year()+1 {
				return ""
			}
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

var relativeDatePattern = regexp.MustCompile(`(?i)\b(\d+)\s+(minute|hour|day|week|month|year)s?\s+ago\b`)

// parseRelativeDate resolves phrases like "3 days ago" against the current
// time. Approximate by construction; months are 30 days, years 365.
func parseRelativeDate(s string) string {
	m := relativeDatePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}

	now := time.Now().UTC()
	var t time.Time
	switch strings.ToLower(m[2]) {
	case "minute":
		t = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		t = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, 0, -30*n)
	case "year":
		t = now.AddDate(0, 0, -365*n)
	default:
		return ""
	}
	return t.Format(time.RFC3339)
}

// AuthorInfo resolves authorship from meta tags, JSON-LD, and semantic
// hints. Returns nil when nothing credible is found.
func (e *Extractor) AuthorInfo(facts *RawFacts) map[string]any {
	info := make(map[string]any)

	for _, key := range []string{"name:author", "property:article:author", "property:og:article:author", "name:twitter:creator"} {
		if v := strings.TrimSpace(facts.Meta[key]); v != "" && !strings.HasPrefix(v, "http") {
			info["name"] = v
			info["source"] = "meta"
			break
		}
	}

	if _, ok := info["name"]; !ok {
		if name := authorFromJSONLD(facts.JSONLD); name != "" {
			info["name"] = name
			info["source"] = "structured_data"
		}
	}

	if _, ok := info["name"]; !ok {
		for _, hint := range facts.AuthorHints {
			name := cleanAuthorHint(hint)
			if name != "" {
				info["name"] = name
				info["source"] = "markup"
				break
			}
		}
	}

	if len(info) == 0 {
		return nil
	}
	return info
}

func authorFromJSONLD(blocks []map[string]any) string {
	for _, block := range blocks {
		switch author := block["author"].(type) {
		case string:
			if s := strings.TrimSpace(author); s != "" {
				return s
			}
		case map[string]any:
			if name, ok := author["name"].(string); ok && strings.TrimSpace(name) != "" {
				return strings.TrimSpace(name)
			}
		case []any:
			for _, entry := range author {
				if node, ok := entry.(map[string]any); ok {
					if name, ok := node["name"].(string); ok && strings.TrimSpace(name) != "" {
						return strings.TrimSpace(name)
					}
				}
			}
		}
	}
	return ""
}

var authorPrefixPattern = regexp.MustCompile(`(?i)^(by|written by|posted by|author:?)\s+`)

const maxAuthorNameLength = 80

func cleanAuthorHint(hint string) string {
	name := authorPrefixPattern.ReplaceAllString(strings.TrimSpace(hint), "")
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxAuthorNameLength {
		return ""
	}
	return name
}

// Selectors that mark an explicit table-of-contents container.
var tocSelectors = []string{
	"nav.toc", "nav#toc", "#toc", ".toc",
	".table-of-contents", "#table-of-contents",
	"nav[aria-label='Table of contents']",
	".md-nav--secondary",
}

const (
	maxTOCEntries = 50
	minTOCEntries = 2
)

// TableOfContents builds the TOC, preferring an explicit container over a
// hierarchy synthesized from headings, over in-page anchor links.
func (e *Extractor) TableOfContents(facts *RawFacts, doc *goquery.Document) []domain.TOCEntry {
	if doc != nil {
		if toc := tocFromContainer(doc); len(toc) >= minTOCEntries {
			return toc
		}
	}
	if toc := tocFromHeadings(facts.Headings); len(toc) >= minTOCEntries {
		return toc
	}
	if doc != nil {
		if toc := tocFromAnchors(doc); len(toc) >= minTOCEntries {
			return toc
		}
	}
	return nil
}

func tocFromContainer(doc *goquery.Document) []domain.TOCEntry {
	for _, selector := range tocSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		var entries []domain.TOCEntry
		container.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			text := normalizeSpace(a.Text())
			if text == "" {
				return true
			}
			href, _ := a.Attr("href")
			level := 1 + a.ParentsFiltered("ul,ol").Length()
			entries = append(entries, domain.TOCEntry{
				Level:  level,
				Text:   text,
				Anchor: anchorFromHref(href),
			})
			return len(entries) < maxTOCEntries
		})
		if len(entries) >= minTOCEntries {
			return entries
		}
	}
	return nil
}

func tocFromHeadings(headings []domain.Heading) []domain.TOCEntry {
	entries := make([]domain.TOCEntry, 0, len(headings))
	for _, h := range headings {
		if h.Text == "" || h.Level == 1 {
			continue
		}
		entries = append(entries, domain.TOCEntry{
			Level:  h.Level - 1,
			Text:   h.Text,
			Anchor: h.ID,
		})
		if len(entries) == maxTOCEntries {
			break
		}
	}
	return entries
}

func tocFromAnchors(doc *goquery.Document) []domain.TOCEntry {
	var entries []domain.TOCEntry
	seen := make(map[string]bool)
	doc.Find("a[href^='#']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := normalizeSpace(a.Text())
		if text == "" || href == "#" || seen[href] {
			return true
		}
		seen[href] = true
		entries = append(entries, domain.TOCEntry{
			Level:  1,
			Text:   text,
			Anchor: strings.TrimPrefix(href, "#"),
		})
		return len(entries) < maxTOCEntries
	})
	return entries
}

func anchorFromHref(href string) string {
	if i := strings.Index(href, "#"); i >= 0 {
		return href[i+1:]
	}
	return ""
}

const (
	maxContentImages = 10
	minImageSide     = 50
)

// Names of tracking and decoration images worth dropping.
var junkImagePattern = regexp.MustCompile(`(?i)(spacer|pixel|tracking|1x1|blank|icon-|sprite|logo-)`)

// ContentImages resolves up to ten content images; og:image leads when
// present. Tiny images, data URIs, and tracking pixels are dropped.
func (e *Extractor) ContentImages(facts *RawFacts, pageURL *url.URL) []domain.Image {
	var images []domain.Image
	seen := make(map[string]bool)

	if og := facts.Meta["property:og:image"]; og != "" {
		if src := resolveURL(pageURL, og); src != "" {
			images = append(images, domain.Image{Src: src})
			seen[src] = true
		}
	}

	for _, img := range facts.Images {
		if len(images) == maxContentImages {
			break
		}
		if strings.HasPrefix(img.Src, "data:") || junkImagePattern.MatchString(img.Src) {
			continue
		}
		if tooSmall(img.Width) || tooSmall(img.Height) {
			continue
		}
		src := resolveURL(pageURL, img.Src)
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		img.Src = src
		images = append(images, img)
	}
	return images
}

func tooSmall(dim string) bool {
	if dim == "" {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(dim, "px"))
	return err == nil && n < minImageSide
}

// Icons resolves site icons from <link rel=icon...> tags.
func (e *Extractor) Icons(facts *RawFacts, pageURL *url.URL) []domain.Icon {
	var icons []domain.Icon
	for _, link := range facts.Links {
		if !strings.Contains(link.Rel, "icon") || link.Href == "" {
			continue
		}
		href := resolveURL(pageURL, link.Href)
		if href == "" {
			continue
		}
		icons = append(icons, domain.Icon{
			Href:  href,
			Rel:   link.Rel,
			Sizes: link.Sizes,
			Type:  link.Type,
		})
	}
	return icons
}

// Signals that mark a page as technical content.
var technicalTerms = []string{
	"api", "sdk", "function", "installation", "configuration",
	"tutorial", "documentation", "repository", "deployment",
	"kubernetes", "docker", "database", "compiler", "debugging",
	"framework", "library", "endpoint", "cli", "runtime",
}

const minTechnicalHits = 3

// TechnicalTermCount counts distinct technical terms in the title,
// headings, and a body sample.
func (e *Extractor) TechnicalTermCount(facts *RawFacts) int {
	var sample strings.Builder
	sample.WriteString(strings.ToLower(facts.PageTitle))
	sample.WriteByte(' ')
	for _, h := range facts.Headings {
		sample.WriteString(strings.ToLower(h.Text))
		sample.WriteByte(' ')
	}
	// The body sample keeps the check cheap on huge pages.
	body := strings.ToLower(facts.Text)
	if len(body) > 5000 {
		body = body[:5000]
	}
	sample.WriteString(body)

	text := sample.String()
	hits := 0
	for _, term := range technicalTerms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return hits
}

// IsTechnical reports whether the page reads as technical content.
func (e *Extractor) IsTechnical(facts *RawFacts) bool {
	return e.TechnicalTermCount(facts) >= minTechnicalHits
}

// SemanticInfo summarizes the page's structural signals for storage.
func (e *Extractor) SemanticInfo(facts *RawFacts) map[string]any {
	counts := make(map[string]int)
	for _, h := range facts.Headings {
		counts["h"+strconv.Itoa(h.Level)]++
	}
	return map[string]any{
		"heading_counts": counts,
		"heading_total":  len(facts.Headings),
		"image_total":    len(facts.Images),
		"has_jsonld":     len(facts.JSONLD) > 0,
		"lang":           facts.Lang,
		"is_technical":   e.IsTechnical(facts),
	}
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}
