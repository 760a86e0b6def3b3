// Package menu provides catalog types and the weighted item selector used
// to build realistic line-item mixes per meal period.
package menu

import (
	"math/rand"
)

// largePartySize is the party size at or above which every preferred
// category is represented at least once.
const largePartySize = 4

// Item is one sellable catalog entry. Price is in minor currency units.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
}

// Select produces an ordered selection of count items for one order.
//
// The pool triples the representation of items whose category is preferred
// for the meal period, then mixes in the full catalog once for variety.
// Parties of 4 or more get at least one item from each preferred category
// before the remainder is filled randomly, so larger orders stay visibly
// varied.
//
// The result always has exactly count entries: item IDs do not repeat
// while unique picks remain, after which selection falls back to sampling
// with replacement. Pure function of its inputs and rng.
func Select(rng *rand.Rand, preferred []string, catalog []Item, count, partySize int) []Item {
	if count <= 0 || len(catalog) == 0 {
		return nil
	}

	prefSet := make(map[string]bool, len(preferred))
	for _, c := range preferred {
		prefSet[c] = true
	}

	pool := make([]Item, 0, len(catalog)*2)
	for _, it := range catalog {
		if prefSet[it.Category] {
			pool = append(pool, it, it, it)
		}
	}
	pool = append(pool, catalog...)

	picked := make([]Item, 0, count)
	seen := make(map[string]bool, count)

	// Guarantee category coverage for large parties.
	if partySize >= largePartySize {
		for _, cat := range preferred {
			if len(picked) == count {
				break
			}
			if it, ok := randomInCategory(rng, catalog, cat, seen); ok {
				picked = append(picked, it)
				seen[it.ID] = true
			}
		}
	}

	// Fill the remainder from the weighted pool, skipping duplicates while
	// unique items remain.
	attempts := 0
	maxAttempts := len(pool) * 4
	for len(picked) < count && attempts < maxAttempts {
		it := pool[rng.Intn(len(pool))]
		attempts++
		if seen[it.ID] {
			continue
		}
		picked = append(picked, it)
		seen[it.ID] = true
	}

	// Pool of unique IDs exhausted: sample with replacement so the output
	// length still equals count.
	for len(picked) < count {
		picked = append(picked, pool[rng.Intn(len(pool))])
	}

	return picked
}

func randomInCategory(rng *rand.Rand, catalog []Item, category string, seen map[string]bool) (Item, bool) {
	var candidates []Item
	for _, it := range catalog {
		if it.Category == category && !seen[it.ID] {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return Item{}, false
	}
	return candidates[rng.Intn(len(candidates))], true
}
