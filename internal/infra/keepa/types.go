package keepa

import (
	"strings"
)

// Indexes into the stats "current" array. The upstream packs the latest
// value of every tracked metric into one positional array; -1 marks an
// unknown value.
const (
	StatAmazonPrice = 0 // marketplace-owner price
	StatNewPrice    = 1 // lowest new-condition price
	StatSalesRank   = 3 // current sales rank
)

// Stats is the per-product statistics block requested via the stats
// parameter on the detail call.
type Stats struct {
	Current         []int64 `json:"current"`
	TotalOfferCount int64   `json:"totalOfferCount"`
}

// Product is one item record from the detail endpoint. Only the fields
// the extractor consumes are mapped.
type Product struct {
	ASIN      string `json:"asin"`
	Title     string `json:"title"`
	ImagesCSV string `json:"imagesCSV"`
	// Sales-rank-drop counters are pointers: the upstream omits the field
	// entirely when the window was not computed, and 0 is a real value.
	SalesRankDrops30  *int64 `json:"salesRankDrops30,omitempty"`
	SalesRankDrops90  *int64 `json:"salesRankDrops90,omitempty"`
	SalesRankDrops180 *int64 `json:"salesRankDrops180,omitempty"`
	Stats             *Stats `json:"stats"`
}

// CurrentStat returns the raw value at idx in the stats current array and
// whether the slot exists. Callers normalize the -1/0 "unknown" encoding.
func (p Product) CurrentStat(idx int) (int64, bool) {
	if p.Stats == nil || idx < 0 || idx >= len(p.Stats.Current) {
		return 0, false
	}
	return p.Stats.Current[idx], true
}

// MainImageURL derives the primary image URL from the comma-separated
// image-id list, or "" when no image is listed.
func (p Product) MainImageURL() string {
	first, _, _ := strings.Cut(p.ImagesCSV, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return ""
	}
	return imageBaseURL + first
}

const imageBaseURL = "https://images-na.ssl-images-amazon.com/images/I/"

// SearchResult is one page of the search endpoint.
type SearchResult struct {
	ASINs []string `json:"asinList"`
	Total int      `json:"totalResults"`
}

type productResponse struct {
	Products []Product `json:"products"`
}

// errorResponse is the machine-readable error body on non-2xx responses.
// RefillIn is the server-suggested wait in milliseconds before tokens are
// available again.
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RefillIn   int64 `json:"refillIn"`
	TokensLeft int64 `json:"tokensLeft"`
}
