package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
)

// AuditLog keeps a history of sent notifications and per-run metadata in
// SQLite. It is diagnostics only: failures here are logged by callers and
// never affect notify decisions or the JSON state store.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog opens (or creates) the audit database at dbPath.
func NewAuditLog(dbPath string) (*AuditLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asin TEXT NOT NULL,
			profile TEXT NOT NULL,
			reasons TEXT NOT NULL,
			price INTEGER,
			rank INTEGER,
			sent_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create notifications table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata table: %w", err)
	}

	return &AuditLog{db: db}, nil
}

// RecordNotification appends one sent notification.
func (a *AuditLog) RecordNotification(ctx context.Context, profileKey string, item domain.ItemSnapshot, reasons []string, sentAt int64) error {
	var price, rank any
	if v, ok := item.Price.Get(); ok {
		price = v
	}
	if v, ok := item.Rank.Get(); ok {
		rank = v
	}
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO notifications (asin, profile, reasons, price, rank, sent_at) VALUES (?, ?, ?, ?, ?, ?)",
		item.ASIN, profileKey, strings.Join(reasons, ", "), price, rank, sentAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// RecentCount returns how many notifications were sent since the given
// Unix timestamp.
func (a *AuditLog) RecentCount(ctx context.Context, since int64) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE sent_at >= ?", since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// UpsertMetadata saves a key-value pair, typically the last run summary.
func (a *AuditLog) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value; a missing key returns "".
func (a *AuditLog) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := a.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (a *AuditLog) Close() error {
	return a.db.Close()
}
