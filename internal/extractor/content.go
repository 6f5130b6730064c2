package extractor

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/jonesrussell/north-search/internal/logger"
)

// Selectors tried for the main content region, most specific first.
var contentSelectors = []string{
	"main article",
	"article",
	"main",
	"[role='main']",
	".post-content",
	".entry-content",
	".article-content",
	".article-body",
	"#content",
	".content",
	".markdown-body",
	".documentation",
	".docs-content",
}

// Elements stripped from a content region before reading its text.
var chromeSelectors = "nav, header, footer, aside, script, style, noscript, form, .sidebar, .comments, .related, .share, .advertisement, .ad"

const (
	// Below this, the selector result is considered chrome, not content,
	// and the readability fallback takes over.
	minSelectorContentLength = 200
	// Below this, extraction reports no usable content at all.
	minContentLength = 50
)

// MainContent extracts the page's primary text. Content-region selectors
// are tried first; when they yield too little, readability rebuilds the
// article from the full tree. Returns "" when no region reaches fifty
// characters. Never panics on malformed markup.
func MainContent(root *html.Node, doc *goquery.Document, pageURL *url.URL, log logger.Logger) string {
	text := contentBySelectors(doc)
	if len(text) >= minSelectorContentLength {
		return text
	}

	if article := contentByReadability(root, pageURL, log); len(article) >= minContentLength {
		return article
	}

	if len(text) >= minContentLength {
		return text
	}
	return ""
}

func contentBySelectors(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	for _, selector := range contentSelectors {
		region := doc.Find(selector).First()
		if region.Length() == 0 {
			continue
		}
		clone := region.Clone()
		clone.Find(chromeSelectors).Remove()
		text := normalizeSpace(clone.Text())
		if len(text) >= minSelectorContentLength {
			return text
		}
	}

	// No region matched; fall back to the stripped body.
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	clone := body.Clone()
	clone.Find(chromeSelectors).Remove()
	return normalizeSpace(clone.Text())
}

func contentByReadability(root *html.Node, pageURL *url.URL, log logger.Logger) (text string) {
	if root == nil {
		return ""
	}
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "https", Host: "localhost"}
	}
	// Readability can panic on pathological markup; contain it here so one
	// bad page never takes down a worker.
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Warn("Readability extraction panicked", logger.Any("panic", r))
			}
			text = ""
		}
	}()

	article, err := readability.FromDocument(root, pageURL)
	if err != nil {
		return ""
	}
	return normalizeSpace(article.TextContent)
}
