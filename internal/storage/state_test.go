package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
	"github.com/kyosuke-takei/slack-price-watch/pkg/optional"
)

func testItem(asin string, lastSeen time.Time) *domain.ItemSnapshot {
	return &domain.ItemSnapshot{
		ASIN:        asin,
		Title:       "test item",
		Price:       optional.Some(1480),
		Rank:        optional.Some(12000),
		Sellers:     optional.Some(5),
		Sold30:      optional.None(),
		FirstSeenAt: lastSeen.Add(-48 * time.Hour).Unix(),
		LastSeenAt:  lastSeen.Unix(),
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewStore(path)

	now := time.Now()
	state := NewState()
	state.Items["B000TEST01"] = testItem("B000TEST01", now)
	state.Items["B000TEST02"] = testItem("B000TEST02", now)

	if err := store.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := store.Load()
	if loaded.Version != StateVersion {
		t.Errorf("version = %d, want %d", loaded.Version, StateVersion)
	}
	if loaded.UpdatedAt == 0 {
		t.Error("Save must stamp UpdatedAt")
	}
	if diff := cmp.Diff(state.Items, loaded.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	state := store.Load()
	if state == nil || state.Items == nil {
		t.Fatal("Load of missing file must return a usable empty state")
	}
	if len(state.Items) != 0 || state.UpdatedAt != 0 {
		t.Error("missing file should yield a fresh empty state")
	}
}

func TestStore_LoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version":1,"items":{"B0`},
		{"not an object", `[1,2,3]`},
		{"missing item map", `{"version":1,"updated_at":100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			state := NewStore(path).Load()
			if state == nil || state.Items == nil || len(state.Items) != 0 {
				t.Error("corrupt file must yield a fresh empty state, never an error")
			}
		})
	}
}

func TestStore_SaveIsAtomic(t *testing.T) {
	// A save over an existing file must never leave it truncated: the
	// temp file is renamed over the target, so a reader sees either the
	// old or the new complete document.
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)

	first := NewState()
	first.Items["B000TEST01"] = testItem("B000TEST01", time.Now())
	if err := store.Save(first); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	second := NewState()
	second.Items["B000TEST02"] = testItem("B000TEST02", time.Now())
	if err := store.Save(second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded := store.Load()
	if _, ok := loaded.Items["B000TEST02"]; !ok {
		t.Error("second save not visible")
	}

	// No temp artifacts left behind next to the target.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("stray files after atomic save: %v", names)
	}
}

func TestPrune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ttl := 14 * 24 * time.Hour

	state := NewState()
	state.Items["expired"] = testItem("expired", now.Add(-ttl).Add(-time.Second))
	state.Items["boundary"] = testItem("boundary", now.Add(-ttl))
	state.Items["fresh"] = testItem("fresh", now.Add(-ttl).Add(time.Second))

	removed := Prune(state, ttl, now)

	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := state.Items["expired"]; ok {
		t.Error("entry older than TTL must be pruned")
	}
	if _, ok := state.Items["boundary"]; !ok {
		t.Error("entry exactly at the TTL boundary must survive")
	}
	if _, ok := state.Items["fresh"]; !ok {
		t.Error("entry inside TTL must survive")
	}
}
