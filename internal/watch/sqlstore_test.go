package watch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HerbHall/fleetpulse/internal/store"
)

func tempSQLStore(t *testing.T) *SQLStateStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "watch.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), "watch", Migrations()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewSQLStateStore(s)
}

func TestSQLStateStore_RoundTrip(t *testing.T) {
	ss := tempSQLStore(t)
	ctx := context.Background()

	want := map[string]AlertState{
		"server-a": {Notified: true},
		"server-b": {MissedPolls: 1},
	}
	if err := ss.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := ss.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(got))
	}
	for name, st := range want {
		if got[name] != st {
			t.Errorf("entry %q = %+v, want %+v", name, got[name], st)
		}
	}
}

func TestSQLStateStore_EmptyDatabase(t *testing.T) {
	ss := tempSQLStore(t)

	got, err := ss.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty state, got %d entries", len(got))
	}
}

func TestSQLStateStore_SaveReplacesPrevious(t *testing.T) {
	ss := tempSQLStore(t)
	ctx := context.Background()

	if err := ss.Save(ctx, map[string]AlertState{"a": {Notified: true}, "b": {}}); err != nil {
		t.Fatal(err)
	}
	if err := ss.Save(ctx, map[string]AlertState{"b": {MissedPolls: 3}}); err != nil {
		t.Fatal(err)
	}

	got, err := ss.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got["b"].MissedPolls != 3 {
		t.Errorf("entry b = %+v", got["b"])
	}
}
