package scan

import (
	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
	"github.com/kyosuke-takei/slack-price-watch/internal/infra/keepa"
	"github.com/kyosuke-takei/slack-price-watch/pkg/optional"
)

// Admission skip reasons, surfaced in debug logs.
const (
	skipNoASIN        = "no-asin"
	skipAmazonStocked = "amazon-stocked"
	skipDigital       = "digital"
	skipFewSellers    = "few-sellers"
	skipCheap         = "below-price-floor"
)

// ExtractConfig holds the admission thresholds.
type ExtractConfig struct {
	MinPrice   int64
	MinSellers int64
}

// Extract normalizes one raw upstream record into a snapshot, applying
// the admission filters. A non-empty skip reason means the item is out of
// consideration entirely for this run: not stored, not diffed, not
// notified. That single policy covers every filter, including the price
// floor and the seller-count minimum.
//
// All maybe-missing upstream numerics are normalized into optional values
// here and nowhere else.
func Extract(p keepa.Product, profile domain.Profile, cfg ExtractConfig) (domain.ItemSnapshot, string) {
	if p.ASIN == "" {
		return domain.ItemSnapshot{}, skipNoASIN
	}

	// Amazon-stocked items are out of scope for resale tracking.
	if raw, ok := p.CurrentStat(keepa.StatAmazonPrice); ok && raw > 0 {
		return domain.ItemSnapshot{}, skipAmazonStocked
	}

	if profile.ExcludeDigital && domain.MatchesDigital(p.Title) {
		return domain.ItemSnapshot{}, skipDigital
	}

	sellers := optional.None()
	if p.Stats != nil {
		sellers = optional.FromNonNegative(p.Stats.TotalOfferCount)
	}
	if sellers.Or(-1) < cfg.MinSellers {
		return domain.ItemSnapshot{}, skipFewSellers
	}

	price := extractPrice(p)
	if price.Or(0) < cfg.MinPrice {
		return domain.ItemSnapshot{}, skipCheap
	}

	rank := optional.None()
	if raw, ok := p.CurrentStat(keepa.StatSalesRank); ok {
		rank = optional.FromPositive(raw)
	}

	return domain.ItemSnapshot{
		ASIN:     p.ASIN,
		Title:    p.Title,
		Price:    price,
		Rank:     rank,
		Sellers:  sellers,
		Sold30:   extractSold(p),
		ImageURL: p.MainImageURL(),
	}, ""
}

// extractPrice prefers the new-condition price and falls back to the
// marketplace-owner price; non-positive raw values mean unknown, never 0.
func extractPrice(p keepa.Product) optional.Int {
	if raw, ok := p.CurrentStat(keepa.StatNewPrice); ok {
		if price := optional.FromPositive(raw); price.IsSome() {
			return price
		}
	}
	if raw, ok := p.CurrentStat(keepa.StatAmazonPrice); ok {
		return optional.FromPositive(raw)
	}
	return optional.None()
}

// extractSold takes the first available sales-rank-drop window.
func extractSold(p keepa.Product) optional.Int {
	for _, v := range []*int64{p.SalesRankDrops30, p.SalesRankDrops90, p.SalesRankDrops180} {
		if v != nil {
			return optional.FromNonNegative(*v)
		}
	}
	return optional.None()
}
