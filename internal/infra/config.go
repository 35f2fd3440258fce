package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
)

// Config holds the full configuration surface. It is constructed once at
// process start and passed into each component; nothing reads ambient
// process state after LoadConfig returns.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Keepa struct {
		APIKey    string `yaml:"api_key"`
		Domain    int    `yaml:"domain"`     // marketplace region id, 5 = amazon.co.jp
		PageSize  int    `yaml:"page_size"`  // search page size
		MaxPages  int    `yaml:"max_pages"`  // per-profile page cap
		StatsDays int    `yaml:"stats_days"` // history depth for the stats block
	} `yaml:"keepa"`

	Slack struct {
		WebhookURL string `yaml:"webhook_url"`
		BatchSize  int    `yaml:"batch_size"` // items per message, 1..3
	} `yaml:"slack"`

	Scan struct {
		MinPrice          int64  `yaml:"min_price"`   // price floor in yen
		MinSellers        int64  `yaml:"min_sellers"` // admission threshold
		GlobalNotifyLimit int    `yaml:"global_notify_limit"`
		OnlyProfile       string `yaml:"only_profile"`
		DryRun            bool   `yaml:"dry_run"`
	} `yaml:"scan"`

	Diff struct {
		PriceDelta   int64 `yaml:"price_delta"`
		RankDelta    int64 `yaml:"rank_delta"`
		SellersDelta int64 `yaml:"sellers_delta"`
		Sold30Delta  int64 `yaml:"sold30_delta"`
	} `yaml:"diff"`

	CooldownHours int `yaml:"cooldown_hours"`

	State struct {
		Path      string `yaml:"path"`
		TTLDays   int    `yaml:"ttl_days"`
		AuditPath string `yaml:"audit_path"` // empty disables the audit log
	} `yaml:"state"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Profiles []domain.Profile `yaml:"profiles"`
}

// LoadConfig reads and parses the config file, applies defaults, lets
// environment variables override (secrets always win from env), and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slack-price-watch"
	}
	if c.Keepa.Domain == 0 {
		c.Keepa.Domain = 5 // amazon.co.jp
	}
	if c.Keepa.PageSize == 0 {
		c.Keepa.PageSize = 50
	}
	if c.Keepa.MaxPages == 0 {
		c.Keepa.MaxPages = 3
	}
	if c.Keepa.StatsDays == 0 {
		c.Keepa.StatsDays = 90
	}
	if c.Slack.BatchSize == 0 {
		c.Slack.BatchSize = 3
	}
	if c.Scan.MinPrice == 0 {
		c.Scan.MinPrice = 1000
	}
	if c.Scan.MinSellers == 0 {
		c.Scan.MinSellers = 3
	}
	if c.Scan.GlobalNotifyLimit == 0 {
		c.Scan.GlobalNotifyLimit = 20
	}
	if c.Diff.PriceDelta == 0 {
		c.Diff.PriceDelta = domain.DefaultPriceDelta
	}
	if c.Diff.RankDelta == 0 {
		c.Diff.RankDelta = domain.DefaultRankDelta
	}
	if c.Diff.SellersDelta == 0 {
		c.Diff.SellersDelta = domain.DefaultSellersDelta
	}
	if c.Diff.Sold30Delta == 0 {
		c.Diff.Sold30Delta = domain.DefaultSold30Delta
	}
	if c.CooldownHours == 0 {
		c.CooldownHours = 6
	}
	if c.State.Path == "" {
		c.State.Path = "data/state.json"
	}
	if c.State.TTLDays == 0 {
		c.State.TTLDays = 14
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Profiles {
		if c.Profiles[i].NotifyLimit == 0 {
			c.Profiles[i].NotifyLimit = 5
		}
	}
}

// Thresholds returns the configured diff thresholds.
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		PriceDelta:   c.Diff.PriceDelta,
		RankDelta:    c.Diff.RankDelta,
		SellersDelta: c.Diff.SellersDelta,
		Sold30Delta:  c.Diff.Sold30Delta,
	}
}

// Validate checks configuration validity. Failing here is fatal: the
// process exits before anything is attempted.
func (c *Config) Validate() error {
	if c.Keepa.APIKey == "" {
		return fmt.Errorf("keepa api key is required (set PW_KEEPA_KEY)")
	}
	if c.Slack.WebhookURL == "" && !c.Scan.DryRun {
		return fmt.Errorf("slack webhook url is required outside dry-run (set PW_SLACK_WEBHOOK)")
	}
	if c.Slack.WebhookURL != "" && !strings.HasPrefix(c.Slack.WebhookURL, "https://") {
		return fmt.Errorf("slack webhook url must be https: %s", MaskSecret(c.Slack.WebhookURL))
	}
	if c.Keepa.PageSize <= 0 || c.Keepa.MaxPages <= 0 {
		return fmt.Errorf("page size and max pages must be positive")
	}
	if c.Slack.BatchSize < 1 || c.Slack.BatchSize > 3 {
		return fmt.Errorf("slack batch size must be 1..3, got %d", c.Slack.BatchSize)
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	seen := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if p.Key == "" || p.Category == "" {
			return fmt.Errorf("profile key and category are required (key=%q)", p.Key)
		}
		if seen[p.Key] {
			return fmt.Errorf("duplicate profile key: %s", p.Key)
		}
		seen[p.Key] = true
	}
	if c.Scan.OnlyProfile != "" && !seen[c.Scan.OnlyProfile] {
		return fmt.Errorf("only_profile %q matches no profile", c.Scan.OnlyProfile)
	}
	return nil
}

// overrideWithEnv applies PW_* environment variables over the file values.
// Secrets are expected to come from the environment in production.
func overrideWithEnv(cfg *Config) {
	cfg.Keepa.APIKey = envString("PW_KEEPA_KEY", cfg.Keepa.APIKey)
	cfg.Slack.WebhookURL = envString("PW_SLACK_WEBHOOK", cfg.Slack.WebhookURL)

	cfg.Keepa.Domain = envInt("PW_KEEPA_DOMAIN", cfg.Keepa.Domain)
	cfg.Keepa.PageSize = envInt("PW_PAGE_SIZE", cfg.Keepa.PageSize)
	cfg.Keepa.MaxPages = envInt("PW_MAX_PAGES", cfg.Keepa.MaxPages)
	cfg.Slack.BatchSize = envInt("PW_NOTIFY_BATCH", cfg.Slack.BatchSize)
	cfg.Scan.GlobalNotifyLimit = envInt("PW_GLOBAL_NOTIFY_LIMIT", cfg.Scan.GlobalNotifyLimit)
	cfg.Scan.MinPrice = envInt64("PW_MIN_PRICE", cfg.Scan.MinPrice)
	cfg.Scan.MinSellers = envInt64("PW_MIN_SELLERS", cfg.Scan.MinSellers)
	cfg.Scan.OnlyProfile = envString("PW_ONLY_PROFILE", cfg.Scan.OnlyProfile)
	cfg.Diff.PriceDelta = envInt64("PW_PRICE_DELTA", cfg.Diff.PriceDelta)
	cfg.Diff.RankDelta = envInt64("PW_RANK_DELTA", cfg.Diff.RankDelta)
	cfg.Diff.SellersDelta = envInt64("PW_SELLERS_DELTA", cfg.Diff.SellersDelta)
	cfg.Diff.Sold30Delta = envInt64("PW_SOLD30_DELTA", cfg.Diff.Sold30Delta)
	cfg.CooldownHours = envInt("PW_COOLDOWN_HOURS", cfg.CooldownHours)
	cfg.State.TTLDays = envInt("PW_STATE_TTL_DAYS", cfg.State.TTLDays)
	cfg.State.Path = envString("PW_STATE_PATH", cfg.State.Path)
	cfg.State.AuditPath = envString("PW_AUDIT_PATH", cfg.State.AuditPath)

	if v := strings.TrimSpace(os.Getenv("PW_DRY_RUN")); v != "" {
		cfg.Scan.DryRun = v == "1" || strings.EqualFold(v, "true")
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}
