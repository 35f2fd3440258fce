package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
	"github.com/kyosuke-takei/slack-price-watch/internal/infra"
	"github.com/kyosuke-takei/slack-price-watch/internal/infra/keepa"
	"github.com/kyosuke-takei/slack-price-watch/internal/infra/slack"
	"github.com/kyosuke-takei/slack-price-watch/internal/storage"
)

// ProductSource is the upstream API surface the driver needs.
type ProductSource interface {
	Search(ctx context.Context, category string, page, perPage int) (keepa.SearchResult, error)
	Details(ctx context.Context, asins []string, statsDays int) ([]keepa.Product, error)
}

// Notifier delivers accepted items and reports how many went out.
type Notifier interface {
	Send(ctx context.Context, profileLabel string, items []slack.Item) int
}

// Auditor records sent notifications; nil disables auditing.
type Auditor interface {
	RecordNotification(ctx context.Context, profileKey string, item domain.ItemSnapshot, reasons []string, sentAt int64) error
}

// RunStats summarizes one scan cycle.
type RunStats struct {
	Profiles int `json:"profiles"`
	Scanned  int `json:"scanned"`
	Admitted int `json:"admitted"`
	Accepted int `json:"accepted"`
	Notified int `json:"notified"`
}

// Driver runs the scan-compare-notify cycle over the configured category
// profiles, sequentially and in declared order. State mutation happens
// in memory; the caller owns prune and save.
type Driver struct {
	cfg      *infra.Config
	source   ProductSource
	notifier Notifier
	audit    Auditor
	gate     domain.CooldownGate
	th       domain.Thresholds

	// now is swappable for tests.
	now func() time.Time
}

// NewDriver wires a driver from the configuration and collaborators.
func NewDriver(cfg *infra.Config, source ProductSource, notifier Notifier, audit Auditor) *Driver {
	return &Driver{
		cfg:      cfg,
		source:   source,
		notifier: notifier,
		audit:    audit,
		gate:     domain.CooldownGate{Window: time.Duration(cfg.CooldownHours) * time.Hour},
		th:       cfg.Thresholds(),
		now:      time.Now,
	}
}

// Run performs one full cycle against state. Profile failures are
// skippable: one dead profile never aborts the others. Every admitted
// item updates state regardless of the notify decision.
func (d *Driver) Run(ctx context.Context, state *storage.State) RunStats {
	stats := RunStats{}
	globalRemaining := d.cfg.Scan.GlobalNotifyLimit
	seen := make(map[string]bool)

	for _, profile := range d.cfg.Profiles {
		if d.cfg.Scan.OnlyProfile != "" && profile.Key != d.cfg.Scan.OnlyProfile {
			continue
		}
		if ctx.Err() != nil {
			slog.Warn("Run interrupted", slog.String("profile", profile.Key))
			break
		}

		stats.Profiles++
		sent := d.scanProfile(ctx, profile, state, seen, globalRemaining, &stats)
		globalRemaining -= sent
		stats.Notified += sent

		if globalRemaining <= 0 {
			slog.Info("Global notify budget exhausted", slog.String("profile", profile.Key))
			break
		}
	}

	return stats
}

// scanProfile pages through search, batches detail lookups, and feeds
// each item through extract → diff → cooldown → accept. Returns the
// number of notifications actually sent for this profile.
func (d *Driver) scanProfile(ctx context.Context, profile domain.Profile, state *storage.State, seen map[string]bool, globalRemaining int, stats *RunStats) int {
	asins := d.collectASINs(ctx, profile, seen)
	if len(asins) == 0 {
		slog.Info("No candidates", slog.String("profile", profile.Key))
		return 0
	}

	budget := profile.NotifyLimit
	if globalRemaining < budget {
		budget = globalRemaining
	}

	var accepted []slack.Item
	now := d.now()

	for start := 0; start < len(asins); start += keepa.DetailBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + keepa.DetailBatchSize
		if end > len(asins) {
			end = len(asins)
		}

		products, err := d.source.Details(ctx, asins[start:end], d.cfg.Keepa.StatsDays)
		if err != nil {
			slog.Warn("Detail batch failed, skipping",
				slog.String("profile", profile.Key),
				slog.String("phase", "details"),
				slog.Int("batch_start", start),
				slog.Any("error", err))
			continue
		}

		for _, p := range products {
			stats.Scanned++

			curr, skip := Extract(p, profile, ExtractConfig{
				MinPrice:   d.cfg.Scan.MinPrice,
				MinSellers: d.cfg.Scan.MinSellers,
			})
			if skip != "" {
				slog.Debug("Item filtered",
					slog.String("profile", profile.Key),
					slog.String("asin", p.ASIN),
					slog.String("reason", skip))
				continue
			}
			stats.Admitted++

			prev := state.Items[curr.ASIN]
			desc := domain.Evaluate(prev, curr, d.th)

			// Accept before mutating state: the cooldown check reads
			// prev's LastNotifiedAt and the diff already ran.
			accept := desc.Significant &&
				len(accepted) < budget &&
				!d.gate.InCooldown(prev, now)

			if desc.Significant && !accept && d.gate.InCooldown(prev, now) {
				slog.Debug("Significant change suppressed by cooldown",
					slog.String("profile", profile.Key),
					slog.String("asin", curr.ASIN))
			}

			var prevPrice int64
			if prev != nil {
				prevPrice = prev.Price.Or(0)
			}

			if prev == nil {
				prev = domain.NewItemSnapshot(curr, now)
				state.Items[curr.ASIN] = prev
			} else {
				prev.Touch(curr, now)
			}

			if accept {
				prev.MarkNotified(now)
				accepted = append(accepted, slack.Item{
					Snapshot:  *prev,
					Reasons:   desc.Reasons,
					PrevPrice: prevPrice,
				})
				stats.Accepted++
			}
		}

		// Budget exhausted: state updates for this batch are done,
		// no point fetching further batches.
		if len(accepted) >= budget {
			break
		}
	}

	if len(accepted) == 0 {
		return 0
	}

	sent := d.notifier.Send(ctx, profile.Label, accepted)
	slog.Info("Profile notified",
		slog.String("profile", profile.Key),
		slog.Int("accepted", len(accepted)),
		slog.Int("sent", sent))

	if d.audit != nil {
		for _, item := range accepted {
			if err := d.audit.RecordNotification(ctx, profile.Key, item.Snapshot, item.Reasons, now.Unix()); err != nil {
				slog.Warn("Audit write failed",
					slog.String("asin", item.Snapshot.ASIN),
					slog.Any("error", err))
			}
		}
	}

	return sent
}

// collectASINs pages the search endpoint and dedups identifiers in
// first-seen order, across pages and across profiles within one run.
// A failed page aborts this profile's paging only.
func (d *Driver) collectASINs(ctx context.Context, profile domain.Profile, seen map[string]bool) []string {
	var out []string
	perPage := d.cfg.Keepa.PageSize

	for page := 0; page < d.cfg.Keepa.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		res, err := d.source.Search(ctx, profile.Category, page, perPage)
		if err != nil {
			slog.Warn("Search page failed, aborting profile scan",
				slog.String("profile", profile.Key),
				slog.String("phase", "search"),
				slog.Int("page", page),
				slog.Any("error", err))
			break
		}
		if len(res.ASINs) == 0 {
			break
		}

		for _, asin := range res.ASINs {
			if asin == "" || seen[asin] {
				continue
			}
			seen[asin] = true
			out = append(out, asin)
		}

		// A short page means the results ran out.
		if len(res.ASINs) < perPage {
			break
		}
	}

	return out
}
