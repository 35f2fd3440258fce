package domain

import (
	"fmt"

	"github.com/kyosuke-takei/slack-price-watch/pkg/optional"
	"github.com/kyosuke-takei/slack-price-watch/pkg/safe"
)

// Default thresholds. A delta exactly at the threshold is significant.
const (
	DefaultPriceDelta   = 200
	DefaultRankDelta    = 5000
	DefaultSellersDelta = 1
	DefaultSold30Delta  = 5
)

// Thresholds holds the per-metric deltas that make a change significant.
type Thresholds struct {
	PriceDelta   int64
	RankDelta    int64
	SellersDelta int64
	Sold30Delta  int64
}

// DefaultThresholds returns the standard threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceDelta:   DefaultPriceDelta,
		RankDelta:    DefaultRankDelta,
		SellersDelta: DefaultSellersDelta,
		Sold30Delta:  DefaultSold30Delta,
	}
}

// ChangeDescriptor is the diff result: whether the change warrants a
// notification and the accumulated human-readable reasons. Reasons carry
// the signed delta; rendering direction is the formatter's job.
type ChangeDescriptor struct {
	Significant bool
	Reasons     []string
}

// Evaluate compares prev and curr against th. Each metric triggers
// independently and reasons accumulate in a fixed order (price, rank,
// sellers, sold30). A nil prev is always significant with the single
// reason "new". Triggering is direction-agnostic: |delta| >= threshold.
func Evaluate(prev *ItemSnapshot, curr ItemSnapshot, th Thresholds) ChangeDescriptor {
	if prev == nil {
		return ChangeDescriptor{Significant: true, Reasons: []string{"new"}}
	}

	var reasons []string

	// Price also triggers on presence change: a listing appearing or
	// disappearing matters regardless of magnitude.
	prevPrice, prevOK := prev.Price.Get()
	currPrice, currOK := curr.Price.Get()
	switch {
	case prevOK && currOK:
		delta := safe.Sub(currPrice, prevPrice)
		if safe.Abs(delta) >= th.PriceDelta {
			reasons = append(reasons, fmt.Sprintf("price %+d", delta))
		}
	case !prevOK && currOK:
		reasons = append(reasons, fmt.Sprintf("price listed %d", currPrice))
	case prevOK && !currOK:
		reasons = append(reasons, "price gone")
	}

	if r, ok := metricReason("rank", prev.Rank, curr.Rank, th.RankDelta); ok {
		reasons = append(reasons, r)
	}
	if r, ok := metricReason("sellers", prev.Sellers, curr.Sellers, th.SellersDelta); ok {
		reasons = append(reasons, r)
	}
	if r, ok := metricReason("sold30", prev.Sold30, curr.Sold30, th.Sold30Delta); ok {
		reasons = append(reasons, r)
	}

	return ChangeDescriptor{Significant: len(reasons) > 0, Reasons: reasons}
}

// metricReason applies the magnitude rule for metrics that only trigger
// when both observations are present.
func metricReason(name string, prev, curr optional.Int, threshold int64) (string, bool) {
	prevV, prevOK := prev.Get()
	currV, currOK := curr.Get()
	if !prevOK || !currOK {
		return "", false
	}
	delta := safe.Sub(currV, prevV)
	if safe.Abs(delta) < threshold {
		return "", false
	}
	return fmt.Sprintf("%s %+d", name, delta), true
}
