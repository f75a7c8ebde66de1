// Package focus builds each user's daily focus list: a short, ordered,
// company-diverse selection of their best leads that they have not just
// acted on or just been shown.
package focus

import (
	"sort"
	"strings"

	"github.com/hyperengineering/prospector/internal/types"
)

// Select picks up to limit lead IDs from candidates, skipping excluded IDs.
//
// High-priority leads form the pool; medium leads only backfill it up to
// limit. When the pool is larger than limit, the kept leads are chosen by
// three greedy passes: new company, then new industry, then best score.
// The returned order is the selection order.
func Select(candidates []types.FocusCandidate, excluded map[string]bool, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	var high, medium []types.FocusCandidate
	for _, c := range candidates {
		if excluded[c.LeadID] {
			continue
		}
		switch c.PriorityLevel {
		case types.PriorityHigh:
			high = append(high, c)
		case types.PriorityMedium:
			medium = append(medium, c)
		}
	}
	byScore(high)
	byScore(medium)

	pool := high
	if len(pool) < limit {
		need := min(limit-len(pool), len(medium))
		pool = append(pool, medium[:need]...)
	}

	if len(pool) > limit {
		pool = diversify(pool, limit)
	}

	ids := make([]string, len(pool))
	for i, c := range pool {
		ids[i] = c.LeadID
	}
	return ids
}

// byScore orders candidates by priority score, highest first, keeping the
// incoming order for ties.
func byScore(cs []types.FocusCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].PriorityScore > cs[j].PriorityScore
	})
}

func diversify(pool []types.FocusCandidate, limit int) []types.FocusCandidate {
	picked := make([]bool, len(pool))
	out := make([]types.FocusCandidate, 0, limit)
	companies := make(map[string]bool)
	industries := make(map[string]bool)

	take := func(i int) {
		picked[i] = true
		out = append(out, pool[i])
		companies[key(pool[i].Company)] = true
		industries[key(pool[i].Industry)] = true
	}

	for i, c := range pool {
		if len(out) == limit {
			return out
		}
		if !companies[key(c.Company)] {
			take(i)
		}
	}

	for i, c := range pool {
		if len(out) == limit {
			return out
		}
		if !picked[i] && !industries[key(c.Industry)] {
			take(i)
		}
	}

	for i := range pool {
		if len(out) == limit {
			return out
		}
		if !picked[i] {
			take(i)
		}
	}
	return out
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
