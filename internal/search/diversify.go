package search

import "github.com/jonesrussell/north-search/internal/domain"

// Diversify enforces per-domain variety in the top results. The first
// pass caps each domain at max(1, limit/3) hits; a second pass fills any
// remaining slots from the spill, ignoring the cap, so a strong
// single-domain result set still fills the page.
func Diversify(hits []domain.ChunkHit, limit int) []domain.ChunkHit {
	if len(hits) <= 1 || limit <= 0 {
		if len(hits) > limit {
			return hits[:limit]
		}
		return hits
	}

	perDomain := limit / 3
	if perDomain < 1 {
		perDomain = 1
	}

	selected := make([]domain.ChunkHit, 0, limit)
	var spill []domain.ChunkHit
	counts := make(map[string]int)

	for _, hit := range hits {
		if len(selected) == limit {
			break
		}
		if counts[hit.Domain] >= perDomain {
			spill = append(spill, hit)
			continue
		}
		counts[hit.Domain]++
		selected = append(selected, hit)
	}

	for _, hit := range spill {
		if len(selected) == limit {
			break
		}
		selected = append(selected, hit)
	}
	return selected
}
