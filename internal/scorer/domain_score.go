// Package scorer assigns the ranking signals stored with every document
// and chunk: domain authority, content quality, categories, and content
// type.
package scorer

import "strings"

// Authority scores for well-known domains. Checked before TLD defaults.
var domainAuthority = map[string]float64{
	"wikipedia.org":         0.95,
	"github.com":            0.95,
	"stackoverflow.com":     0.95,
	"mozilla.org":           0.90,
	"developer.mozilla.org": 0.95,
	"docs.python.org":       0.95,
	"go.dev":                0.95,
	"pkg.go.dev":            0.95,
	"kubernetes.io":         0.90,
	"docker.com":            0.85,
	"arxiv.org":             0.90,
	"nature.com":            0.90,
	"acm.org":               0.90,
	"ieee.org":              0.90,
	"nytimes.com":           0.85,
	"bbc.com":               0.85,
	"bbc.co.uk":             0.85,
	"reuters.com":           0.85,
	"theguardian.com":       0.80,
	"medium.com":            0.60,
	"dev.to":                0.60,
	"reddit.com":            0.55,
	"quora.com":             0.45,
	"pinterest.com":         0.25,
}

// Fallback scores by top-level domain.
var tldAuthority = map[string]float64{
	".edu": 0.80,
	".gov": 0.85,
	".mil": 0.80,
	".org": 0.60,
	".io":  0.55,
	".dev": 0.60,
	".net": 0.45,
	".com": 0.40,
}

const defaultDomainScore = 0.3

// DomainScore returns the authority score for a host. Exact and
// parent-domain matches win over TLD defaults; unknown hosts score 0.3.
func DomainScore(host string) float64 {
	host = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(host), "www."))
	if host == "" {
		return defaultDomainScore
	}

	if score, ok := domainAuthority[host]; ok {
		return score
	}
	// A subdomain inherits its parent's authority.
	parts := strings.Split(host, ".")
	for i := 1; i < len(parts)-1; i++ {
		if score, ok := domainAuthority[strings.Join(parts[i:], ".")]; ok {
			return score
		}
	}

	for tld, score := range tldAuthority {
		if strings.HasSuffix(host, tld) {
			return score
		}
	}
	return defaultDomainScore
}
