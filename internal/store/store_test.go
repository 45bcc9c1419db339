package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_creates_database(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestTx_commit_and_rollback(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	_, err := s.DB().ExecContext(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)")
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	err = s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO test (id, name) VALUES (1, 'alice')")
		return err
	})
	if err != nil {
		t.Fatalf("Tx commit: %v", err)
	}

	err = s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO test (id, name) VALUES (2, 'bob')"); err != nil {
			return err
		}
		return sql.ErrNoRows // trigger rollback
	})
	if err != sql.ErrNoRows {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM test").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("got count %d, want 1 (rollback should have discarded the second insert)", count)
	}
}

func TestMigrate_applies_once(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	applied := 0
	migrations := []plugin.Migration{
		{
			Version:     1,
			Description: "create state table",
			Up: func(tx *sql.Tx) error {
				applied++
				_, err := tx.Exec("CREATE TABLE watch_device_state (device TEXT PRIMARY KEY)")
				return err
			},
		},
	}

	if err := s.Migrate(ctx, "watch", migrations); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Migrate(ctx, "watch", migrations); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if applied != 1 {
		t.Errorf("migration applied %d times, want 1", applied)
	}
}

func TestMigrate_failure_rolls_back(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	migrations := []plugin.Migration{
		{
			Version:     1,
			Description: "failing migration",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec("CREATE TABLE half_done (id INTEGER)"); err != nil {
					return err
				}
				return boom
			},
		},
	}

	if err := s.Migrate(ctx, "watch", migrations); !errors.Is(err, boom) {
		t.Fatalf("Migrate error = %v, want %v", err, boom)
	}

	// The table created inside the failed migration must not exist.
	var count int
	err := s.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='half_done'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Error("failed migration left its table behind")
	}
}

func TestCheckVersion_rejects_newer_database(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "2.0.0"); err != nil {
		t.Fatalf("first CheckVersion: %v", err)
	}
	if err := s.CheckVersion(ctx, "1.0.0"); !errors.Is(err, ErrNewerSchema) {
		t.Errorf("CheckVersion with older binary = %v, want ErrNewerSchema", err)
	}
}

func TestCheckVersion_dev_always_passes(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "2.0.0"); err != nil {
		t.Fatalf("CheckVersion: %v", err)
	}
	if err := s.CheckVersion(ctx, "dev"); err != nil {
		t.Errorf("CheckVersion(dev) = %v, want nil", err)
	}
}
