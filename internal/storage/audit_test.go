package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
	"github.com/kyosuke-takei/slack-price-watch/pkg/optional"
)

func TestAuditLog_RecordAndCount(t *testing.T) {
	log, err := NewAuditLog(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	item := domain.ItemSnapshot{
		ASIN:  "B000TEST01",
		Title: "test item",
		Price: optional.Some(1480),
		Rank:  optional.None(),
	}

	if err := log.RecordNotification(ctx, "games", item, []string{"price +250"}, 1000); err != nil {
		t.Fatalf("RecordNotification: %v", err)
	}
	if err := log.RecordNotification(ctx, "games", item, []string{"rank -8000"}, 2000); err != nil {
		t.Fatalf("RecordNotification: %v", err)
	}

	n, err := log.RecentCount(ctx, 1500)
	if err != nil {
		t.Fatalf("RecentCount: %v", err)
	}
	if n != 1 {
		t.Errorf("RecentCount(1500) = %d, want 1", n)
	}

	n, err = log.RecentCount(ctx, 0)
	if err != nil {
		t.Fatalf("RecentCount: %v", err)
	}
	if n != 2 {
		t.Errorf("RecentCount(0) = %d, want 2", n)
	}
}

func TestAuditLog_Metadata(t *testing.T) {
	log, err := NewAuditLog(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer log.Close()

	ctx := context.Background()

	// Missing key is empty, not an error.
	v, err := log.GetMetadata(ctx, "last_run")
	if err != nil || v != "" {
		t.Errorf("missing key: got (%q, %v)", v, err)
	}

	if err := log.UpsertMetadata(ctx, "last_run", `{"notified":3}`, 1000); err != nil {
		t.Fatalf("UpsertMetadata: %v", err)
	}
	if err := log.UpsertMetadata(ctx, "last_run", `{"notified":5}`, 2000); err != nil {
		t.Fatalf("UpsertMetadata overwrite: %v", err)
	}

	v, err = log.GetMetadata(ctx, "last_run")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != `{"notified":5}` {
		t.Errorf("metadata = %q, want overwritten value", v)
	}
}
