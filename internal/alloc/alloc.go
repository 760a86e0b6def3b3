// Package alloc implements split-payment allocation: deciding whether an
// order splits across multiple tenders, generating split percentages, and
// apportioning amount/tip/tax across shares without cent drift.
package alloc

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/mealforge/posgen/internal/model"
)

var (
	// ErrNoSplit signals that no split applies — fewer than two tenders
	// are available or the split draw did not fire. The caller falls back
	// to a single-tender payment.
	ErrNoSplit = errors.New("alloc: no split possible")
)

const (
	// minSharePct is the floor for any single split share.
	minSharePct = 5

	// maxSplits caps the number of tenders one order settles across.
	maxSplits = 4

	splitProbDineIn = 0.25
	splitProbOther  = 0.05
	evenSplitProb   = 0.70
)

// Input carries everything the allocator needs for one order.
// Total is the charge excluding tip (subtotal + tax − discount); Tip and
// Tax are carried separately so shares can attribute them per the
// provider's settlement rules.
type Input struct {
	Total     int64
	Tip       int64
	Tax       int64
	Option    model.DiningOption
	PartySize int
	Tenders   []model.Tender
}

// Share is one tender submission ready to send to the provider.
type Share struct {
	Tender model.Tender
	Pct    int
	Amount int64
	Tip    int64
	Tax    int64
}

// Plan decides whether the order splits and, if so, returns the ordered
// share list. Returns ErrNoSplit when the order should settle on a single
// tender instead.
func Plan(rng *rand.Rand, in Input) ([]Share, error) {
	if len(in.Tenders) < 2 {
		return nil, ErrNoSplit
	}
	if !shouldSplit(rng, in.Option, in.PartySize) {
		return nil, ErrNoSplit
	}

	n := SplitCount(rng, in.PartySize, len(in.Tenders))
	tenders := pickTenders(rng, in.Tenders, n)
	pcts := Percentages(rng, n)
	return Allocate(in.Total, in.Tip, in.Tax, tenders, pcts)
}

// shouldSplit draws the split decision: 0.25 when dining in with a party
// of two or more, else 0.05.
func shouldSplit(rng *rand.Rand, option model.DiningOption, partySize int) bool {
	p := splitProbOther
	if option == model.DineIn && partySize >= 2 {
		p = splitProbDineIn
	}
	return rng.Float64() < p
}

// SplitCount draws the number of splits in [2, min(partySize, 4, tenders)].
func SplitCount(rng *rand.Rand, partySize, tenderCount int) int {
	hi := partySize
	if maxSplits < hi {
		hi = maxSplits
	}
	if tenderCount < hi {
		hi = tenderCount
	}
	if hi < 2 {
		hi = 2
	}
	return 2 + rng.Intn(hi-1)
}

// Percentages generates n split percentages summing to exactly 100.
// 70% of the time the split is even with the percentage remainder on the
// first share; otherwise shares come from sorted interior cut points in
// [10,90], clamped so no share falls below 5%.
func Percentages(rng *rand.Rand, n int) []int {
	pcts := make([]int, n)

	if rng.Float64() < evenSplitProb {
		base := 100 / n
		for i := range pcts {
			pcts[i] = base
		}
		pcts[0] += 100 - base*n
		return pcts
	}

	cuts := make([]int, n-1)
	for i := range cuts {
		cuts[i] = 10 + rng.Intn(81) // [10,90]
	}
	sort.Ints(cuts)

	prev := 0
	for i, c := range cuts {
		pcts[i] = c - prev
		prev = c
	}
	pcts[n-1] = 100 - prev

	clampShares(pcts)
	return pcts
}

// clampShares raises any share below minSharePct to the floor, taking the
// deficit from the largest share. Sum stays exactly 100.
func clampShares(pcts []int) {
	for i := range pcts {
		if pcts[i] >= minSharePct {
			continue
		}
		deficit := minSharePct - pcts[i]
		pcts[i] = minSharePct

		biggest := -1
		for j := range pcts {
			if j == i {
				continue
			}
			if biggest == -1 || pcts[j] > pcts[biggest] {
				biggest = j
			}
		}
		pcts[biggest] -= deficit
	}
}

// Allocate apportions amount and tip across shares by percentage. Every
// share except the last is rounded half-up from its percentage; the last
// receives the exact remainder, so the share sums match the inputs with no
// cent drift. Tax is attributed entirely to the first share, matching the
// provider settlement behavior being modeled.
func Allocate(total, tip, tax int64, tenders []model.Tender, pcts []int) ([]Share, error) {
	if len(tenders) != len(pcts) {
		return nil, errors.New("alloc: tender and percentage counts differ")
	}
	if len(pcts) < 2 {
		return nil, ErrNoSplit
	}

	shares := make([]Share, len(pcts))
	var amtLeft, tipLeft = total, tip

	for i, pct := range pcts {
		s := Share{Tender: tenders[i], Pct: pct}
		if i < len(pcts)-1 {
			s.Amount = minInt64(roundPct(total, pct), amtLeft)
			s.Tip = minInt64(roundPct(tip, pct), tipLeft)
		} else {
			s.Amount = amtLeft
			s.Tip = tipLeft
		}
		amtLeft -= s.Amount
		tipLeft -= s.Tip
		shares[i] = s
	}
	shares[0].Tax = tax
	return shares, nil
}

// roundPct computes v×pct/100 rounded half-up.
func roundPct(v int64, pct int) int64 {
	return (v*int64(pct) + 50) / 100
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// pickTenders selects n distinct tenders in random order.
func pickTenders(rng *rand.Rand, tenders []model.Tender, n int) []model.Tender {
	idx := rng.Perm(len(tenders))[:n]
	out := make([]model.Tender, n)
	for i, j := range idx {
		out[i] = tenders[j]
	}
	return out
}
