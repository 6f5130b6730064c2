// Package extractor parses raw HTML exactly once and derives the
// structured facts the processor needs: metadata, dates, authorship,
// table of contents, images, and the main textual content.
package extractor

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/jonesrussell/north-search/internal/domain"
)

// LinkFact is one <link> tag relevant to extraction.
type LinkFact struct {
	Rel   string
	Href  string
	Type  string
	Sizes string
}

// TimeFact is one <time> element or date-classed node.
type TimeFact struct {
	Datetime string
	Text     string
}

// RawFacts holds everything a single DOM traversal can observe. All
// downstream derivations are pure functions over this record; nothing
// touches the tree twice.
type RawFacts struct {
	// Meta is keyed "name:x", "property:x", or "http-equiv:x" (lowercased).
	Meta map[string]string
	// JSONLD holds parsed ld+json script bodies; malformed bodies are skipped.
	JSONLD []map[string]any
	Links  []LinkFact
	// Headings are h1-h6 in document order.
	Headings []domain.Heading
	Images   []domain.Image
	Times    []TimeFact
	// AuthorHints holds text of nodes with author semantics (class, rel, itemprop).
	AuthorHints []string
	// DateHints holds text of nodes with date/published semantics.
	DateHints []string
	Lang      string
	PageTitle string
	// Text is the whitespace-joined textual content of the body.
	Text string
}

// Tags whose text never contributes to content.
var skipTextTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
}

const (
	maxHeadingFacts = 200
	maxImageFacts   = 100
	maxHintLength   = 300
)

// CollectFacts walks the parsed tree once and fills a RawFacts record.
func CollectFacts(root *html.Node) *RawFacts {
	facts := &RawFacts{Meta: make(map[string]string)}
	var text strings.Builder
	collect(root, facts, &text)
	facts.Text = normalizeSpace(text.String())
	return facts
}

func collect(n *html.Node, facts *RawFacts, text *strings.Builder) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			text.WriteString(t)
			text.WriteByte(' ')
		}
		return
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "html":
			if lang := attr(n, "lang"); lang != "" {
				facts.Lang = lang
			}
		case "title":
			if facts.PageTitle == "" {
				facts.PageTitle = strings.TrimSpace(nodeText(n))
			}
		case "meta":
			collectMeta(n, facts)
		case "script":
			if strings.EqualFold(attr(n, "type"), "application/ld+json") {
				collectJSONLD(n, facts)
			}
		case "link":
			if rel := attr(n, "rel"); rel != "" {
				facts.Links = append(facts.Links, LinkFact{
					Rel:   strings.ToLower(rel),
					Href:  attr(n, "href"),
					Type:  attr(n, "type"),
					Sizes: attr(n, "sizes"),
				})
			}
		case "h1", "h2", "h3", "h4", "h5", "h6":
			if len(facts.Headings) < maxHeadingFacts {
				facts.Headings = append(facts.Headings, domain.Heading{
					Level: int(n.Data[1] - '0'),
					Text:  normalizeSpace(nodeText(n)),
					ID:    attr(n, "id"),
				})
			}
		case "img":
			if src := attr(n, "src"); src != "" && len(facts.Images) < maxImageFacts {
				facts.Images = append(facts.Images, domain.Image{
					Src:    src,
					Alt:    attr(n, "alt"),
					Title:  attr(n, "title"),
					Width:  attr(n, "width"),
					Height: attr(n, "height"),
				})
			}
		case "time":
			facts.Times = append(facts.Times, TimeFact{
				Datetime: attr(n, "datetime"),
				Text:     normalizeSpace(nodeText(n)),
			})
		}

		collectSemanticHints(n, facts)

		if skipTextTags[n.Data] {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, facts, text)
	}
}

func collectMeta(n *html.Node, facts *RawFacts) {
	content := attr(n, "content")
	if content == "" {
		return
	}
	if name := attr(n, "name"); name != "" {
		facts.Meta["name:"+strings.ToLower(name)] = content
	}
	if prop := attr(n, "property"); prop != "" {
		facts.Meta["property:"+strings.ToLower(prop)] = content
	}
	if equiv := attr(n, "http-equiv"); equiv != "" {
		facts.Meta["http-equiv:"+strings.ToLower(equiv)] = content
	}
}

func collectJSONLD(n *html.Node, facts *RawFacts) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	raw := strings.TrimSpace(b.String())
	if raw == "" {
		return
	}
	// Bodies may be a single object or an array; tolerate both and skip
	// anything malformed.
	if strings.HasPrefix(raw, "[") {
		var list []map[string]any
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			facts.JSONLD = append(facts.JSONLD, list...)
		}
		return
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		facts.JSONLD = append(facts.JSONLD, obj)
	}
}

// Class/rel/itemprop fragments that carry author semantics.
var authorMarkers = []string{"author", "byline", "writer", "contributor"}

// Class/itemprop fragments that carry date semantics.
var dateMarkers = []string{"published", "post-date", "date-posted", "entry-date", "timestamp", "datepublished"}

func collectSemanticHints(n *html.Node, facts *RawFacts) {
	semantic := strings.ToLower(attr(n, "class") + " " + attr(n, "rel") + " " + attr(n, "itemprop"))
	if semantic == " " {
		return
	}

	for _, marker := range authorMarkers {
		if strings.Contains(semantic, marker) {
			if t := clipHint(nodeText(n)); t != "" {
				facts.AuthorHints = append(facts.AuthorHints, t)
			}
			break
		}
	}
	for _, marker := range dateMarkers {
		if strings.Contains(semantic, marker) {
			if t := clipHint(nodeText(n)); t != "" {
				facts.DateHints = append(facts.DateHints, t)
			}
			break
		}
	}
}

func clipHint(s string) string {
	s = normalizeSpace(s)
	if len(s) > maxHintLength {
		return ""
	}
	return s
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText returns the concatenated text of a subtree.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && skipTextTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
