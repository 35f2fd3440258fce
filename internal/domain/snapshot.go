package domain

import (
	"time"

	"github.com/kyosuke-takei/slack-price-watch/pkg/optional"
)

// ItemSnapshot is the last-known observed state of one tracked item.
// Timestamps are Unix seconds. Metric fields are optional: an absent value
// means the upstream did not report it, never zero.
type ItemSnapshot struct {
	ASIN           string       `json:"asin"`
	Title          string       `json:"title"`
	Price          optional.Int `json:"price"`   // integer yen, new-condition preferred
	Rank           optional.Int `json:"rank"`    // sales rank, lower is better
	Sellers        optional.Int `json:"sellers"` // total historical offer count
	Sold30         optional.Int `json:"sold30"`  // recent sales-rank-drop count
	ImageURL       string       `json:"image_url,omitempty"`
	FirstSeenAt    int64        `json:"first_seen_at"`
	LastSeenAt     int64        `json:"last_seen_at"`
	LastNotifiedAt int64        `json:"last_notified_at,omitempty"` // 0 = never notified
}

// Touch copies curr's observed metrics into s and advances LastSeenAt.
// FirstSeenAt and LastNotifiedAt are preserved; the stored snapshot always
// reflects the latest true values so future diffs never compare against
// stale data, even while notification is suppressed.
func (s *ItemSnapshot) Touch(curr ItemSnapshot, now time.Time) {
	s.Title = curr.Title
	s.Price = curr.Price
	s.Rank = curr.Rank
	s.Sellers = curr.Sellers
	s.Sold30 = curr.Sold30
	if curr.ImageURL != "" {
		s.ImageURL = curr.ImageURL
	}
	s.LastSeenAt = now.Unix()
}

// MarkNotified stamps the time of an actual notification. The cooldown
// window is measured from this timestamp.
func (s *ItemSnapshot) MarkNotified(now time.Time) {
	s.LastNotifiedAt = now.Unix()
}

// NewItemSnapshot creates the stored record for a first observation.
func NewItemSnapshot(curr ItemSnapshot, now time.Time) *ItemSnapshot {
	s := curr
	s.FirstSeenAt = now.Unix()
	s.LastSeenAt = now.Unix()
	s.LastNotifiedAt = 0
	return &s
}
