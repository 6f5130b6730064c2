package extractor_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jonesrussell/north-search/internal/extractor"
	"github.com/jonesrussell/north-search/internal/logger"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Deploying Go Services</title>
<meta name="author" content="Jane Smith">
<meta property="article:published_time" content="2024-03-15T10:30:00Z">
<meta property="article:modified_time" content="2024-04-01T08:00:00Z">
<meta property="og:url" content="https://example.com/posts/deploying-go">
<meta property="og:image" content="/images/hero.png">
<link rel="canonical" href="/posts/deploying-go">
<link rel="icon" href="/favicon.ico" type="image/x-icon">
<script type="application/ld+json">
{"@type":"Article","datePublished":"2024-03-15","author":{"name":"Jane Smith"}}
</script>
</head>
<body>
<nav>Home About Contact</nav>
<main>
<article>
<h1>Deploying Go Services</h1>
<h2 id="setup">Setup</h2>
<p>Install the CLI and configure the deployment pipeline for your API.
This tutorial covers installation, configuration, and debugging of the
runtime in a production Kubernetes cluster with Docker images.</p>
<h2 id="rollout">Rollout</h2>
<p>Use a gradual rollout strategy so a bad release never takes the whole
service down at once. Monitor error rates during each phase.</p>
<img src="/images/diagram.png" alt="Deployment diagram" width="640" height="480">
<img src="/tracking/pixel.gif" width="1" height="1">
</article>
</main>
<footer>Copyright 2024</footer>
</body>
</html>`

func parsePage(t *testing.T, raw string) (*html.Node, *goquery.Document) {
	t.Helper()
	root, err := html.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	doc := goquery.NewDocumentFromNode(root)
	return root, doc
}

func TestCollectFacts(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)

	assert.Equal(t, "en", facts.Lang)
	assert.Equal(t, "Deploying Go Services", facts.PageTitle)
	assert.Equal(t, "Jane Smith", facts.Meta["name:author"])
	assert.Equal(t, "https://example.com/posts/deploying-go", facts.Meta["property:og:url"])

	require.Len(t, facts.JSONLD, 1)
	assert.Equal(t, "Article", facts.JSONLD[0]["@type"])

	require.Len(t, facts.Headings, 3)
	assert.Equal(t, 1, facts.Headings[0].Level)
	assert.Equal(t, "setup", facts.Headings[1].ID)

	assert.Len(t, facts.Images, 2)
	assert.Contains(t, facts.Text, "gradual rollout strategy")
	assert.NotContains(t, facts.Text, "datePublished")
}

func TestCanonicalURL(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	pageURL, err := url.Parse("https://example.com/posts/deploying-go?utm_source=feed")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/posts/deploying-go", ex.CanonicalURL(facts, pageURL))
}

func TestDates(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	published, modified := ex.Dates(facts, root, "https://example.com/posts/deploying-go")
	assert.Equal(t, "2024-03-15T10:30:00Z", published)
	assert.Equal(t, "2024-04-01T08:00:00Z", modified)
}

func TestDatesRelativePhrase(t *testing.T) {
	page := `<html><body><h1>Post</h1>
	<span class="post-date">3 days ago</span>
	<p>Body text long enough to matter for nothing in particular here.</p>
	</body></html>`
	root, _ := parsePage(t, page)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	published, _ := ex.Dates(facts, nil, "")
	require.NotEmpty(t, published)

	parsed, err := time.Parse(time.RFC3339, published)
	require.NoError(t, err)
	age := time.Since(parsed)
	assert.InDelta(t, float64(72*time.Hour), float64(age), float64(time.Hour))
}

func TestAuthorInfoPriority(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	info := ex.AuthorInfo(facts)
	require.NotNil(t, info)
	assert.Equal(t, "Jane Smith", info["name"])
	assert.Equal(t, "meta", info["source"])
}

func TestAuthorInfoFromMarkup(t *testing.T) {
	page := `<html><body><div class="byline">By Alex Doe</div><p>text</p></body></html>`
	root, _ := parsePage(t, page)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	info := ex.AuthorInfo(facts)
	require.NotNil(t, info)
	assert.Equal(t, "Alex Doe", info["name"])
	assert.Equal(t, "markup", info["source"])
}

func TestTableOfContentsFromHeadings(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	toc := ex.TableOfContents(facts, nil)
	require.Len(t, toc, 2)
	assert.Equal(t, "Setup", toc[0].Text)
	assert.Equal(t, "setup", toc[0].Anchor)
	assert.Equal(t, 1, toc[0].Level)
}

func TestTableOfContentsExplicitContainer(t *testing.T) {
	page := `<html><body>
	<nav class="toc"><ul>
	<li><a href="#intro">Introduction</a></li>
	<li><a href="#usage">Usage</a></li>
	<li><a href="#faq">FAQ</a></li>
	</ul></nav>
	<h2 id="intro">Introduction</h2>
	</body></html>`
	root, doc := parsePage(t, page)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	toc := ex.TableOfContents(facts, doc)
	require.Len(t, toc, 3)
	assert.Equal(t, "Introduction", toc[0].Text)
	assert.Equal(t, "intro", toc[0].Anchor)
}

func TestContentImages(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	pageURL, _ := url.Parse("https://example.com/posts/deploying-go")
	images := ex.ContentImages(facts, pageURL)

	require.Len(t, images, 2)
	assert.Equal(t, "https://example.com/images/hero.png", images[0].Src)
	assert.Equal(t, "https://example.com/images/diagram.png", images[1].Src)
}

func TestIcons(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	pageURL, _ := url.Parse("https://example.com/posts/deploying-go")
	icons := ex.Icons(facts, pageURL)

	require.Len(t, icons, 1)
	assert.Equal(t, "https://example.com/favicon.ico", icons[0].Href)
	assert.Equal(t, "icon", icons[0].Rel)
}

func TestIsTechnical(t *testing.T) {
	root, _ := parsePage(t, samplePage)
	facts := extractor.CollectFacts(root)
	ex := extractor.New(logger.NewNop())

	assert.True(t, ex.IsTechnical(facts))

	plain, _ := parsePage(t, `<html><body><h1>Brownie Recipe</h1>
	<p>Mix butter and sugar, add cocoa, bake for thirty minutes.</p></body></html>`)
	plainFacts := extractor.CollectFacts(plain)
	assert.False(t, ex.IsTechnical(plainFacts))
}

func TestMainContentPrefersArticle(t *testing.T) {
	root, doc := parsePage(t, samplePage)
	pageURL, _ := url.Parse("https://example.com/posts/deploying-go")

	text := extractor.MainContent(root, doc, pageURL, logger.NewNop())
	assert.Contains(t, text, "gradual rollout strategy")
	assert.NotContains(t, text, "Copyright 2024")
	assert.NotContains(t, text, "Home About Contact")
}

func TestMainContentTooShort(t *testing.T) {
	root, doc := parsePage(t, `<html><body><p>Hi.</p></body></html>`)
	text := extractor.MainContent(root, doc, nil, logger.NewNop())
	assert.Empty(t, text)
}
