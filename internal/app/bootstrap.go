package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kyosuke-takei/slack-price-watch/internal/infra"
	"github.com/kyosuke-takei/slack-price-watch/internal/infra/keepa"
	"github.com/kyosuke-takei/slack-price-watch/internal/infra/slack"
	"github.com/kyosuke-takei/slack-price-watch/internal/scan"
	"github.com/kyosuke-takei/slack-price-watch/internal/storage"
)

// Keepa bills per request token; pace well under the account quota.
const (
	limiterBurst     = 5
	limiterPerSecond = 1.0

	guardFailures   = 5
	guardProbeAfter = 30 * time.Second
)

// Options are the command-line overrides applied on top of the loaded
// configuration.
type Options struct {
	ConfigPath  string // empty resolves via the standard search path
	OnlyProfile string // restrict the run to one profile key
	DryRun      bool   // force dry-run regardless of config
}

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store
	Audit  *storage.AuditLog
	Driver *scan.Driver
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, sets up logging and storage, and wires
// the scan driver. Any error here is fatal; nothing has run yet.
func (b *Bootstrap) Initialize(opts Options) error {
	slog.Info("🚀 Bootstrapping Slack Price Watch...")

	// 1. Load Config (Dynamic Path Resolution)
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	infra.PrintBanner(cfg)
	slog.Info("✅ Config loaded",
		slog.String("path", configPath),
		slog.Int("profiles", len(cfg.Profiles)),
		slog.String("keepa_key", infra.MaskSecret(cfg.Keepa.APIKey)))

	// 3. Resolve data locations. Relative paths are anchored in the
	// workspace directory so the binary can run from anywhere.
	workDir := infra.GetWorkspaceDir()
	statePath := anchorPath(workDir, cfg.State.Path)
	if err := infra.EnsureDir(filepath.Dir(statePath)); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	b.Store = storage.NewStore(statePath)
	slog.Info("✅ State store ready", slog.String("path", statePath))

	// 4. Audit log is optional diagnostics; an empty path disables it.
	if cfg.State.AuditPath != "" {
		auditPath := anchorPath(workDir, cfg.State.AuditPath)
		if err := infra.EnsureDir(filepath.Dir(auditPath)); err != nil {
			return fmt.Errorf("failed to create audit dir: %w", err)
		}
		audit, err := storage.NewAuditLog(auditPath)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		b.Audit = audit
		slog.Info("✅ Audit log initialized (WAL-mode)", slog.String("path", auditPath))
	}

	// 5. Wire the upstream client and notifier into the driver.
	limiter := infra.NewRateLimiter(limiterBurst, limiterPerSecond)
	guard := infra.NewGuard("keepa", guardFailures, guardProbeAfter)
	source := keepa.NewClient(cfg, limiter, guard)
	notifier := slack.NewNotifier(cfg.Slack.WebhookURL, cfg.Slack.BatchSize, cfg.Scan.DryRun)

	var audit scan.Auditor
	if b.Audit != nil {
		audit = b.Audit
	}
	b.Driver = scan.NewDriver(cfg, source, notifier, audit)

	return nil
}

// RunOnce executes one full scan cycle: load state, scan every profile,
// prune stale entries, persist. A save failure is logged but does not fail
// the run; notifications already went out and the next cycle rebuilds.
func (b *Bootstrap) RunOnce(ctx context.Context) scan.RunStats {
	started := time.Now()
	state := b.Store.Load()
	before := len(state.Items)

	stats := b.Driver.Run(ctx, state)

	ttl := time.Duration(b.Config.State.TTLDays) * 24 * time.Hour
	pruned := storage.Prune(state, ttl, time.Now())
	if pruned > 0 {
		slog.Info("Stale items pruned", slog.Int("count", pruned))
	}

	if err := b.Store.Save(state); err != nil {
		slog.Error("State save failed, next run starts from the previous file",
			slog.Any("error", err))
	}

	if b.Audit != nil {
		summary, _ := json.Marshal(stats)
		if err := b.Audit.UpsertMetadata(ctx, "last_run", string(summary), started.Unix()); err != nil {
			slog.Warn("Run summary not recorded", slog.Any("error", err))
		}
	}

	slog.Info("✨ Scan cycle completed",
		slog.Int("profiles", stats.Profiles),
		slog.Int("scanned", stats.Scanned),
		slog.Int("admitted", stats.Admitted),
		slog.Int("notified", stats.Notified),
		slog.Int("items_before", before),
		slog.Int("items_after", len(state.Items)),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)))

	return stats
}

// Close releases held resources.
func (b *Bootstrap) Close() {
	if b.Audit != nil {
		if err := b.Audit.Close(); err != nil {
			slog.Warn("Audit log close failed", slog.Any("error", err))
		}
	}
}

// applyOverrides layers the CLI flags over the loaded config. The flag
// values are narrower than the file's, so only re-validation of the
// profile filter is needed.
func applyOverrides(cfg *infra.Config, opts Options) error {
	if opts.DryRun {
		cfg.Scan.DryRun = true
	}
	if opts.OnlyProfile != "" {
		cfg.Scan.OnlyProfile = opts.OnlyProfile
		found := false
		for _, p := range cfg.Profiles {
			if p.Key == opts.OnlyProfile {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("profile %q matches no configured profile", opts.OnlyProfile)
		}
	}
	return nil
}

func anchorPath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
