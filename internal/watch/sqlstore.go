package watch

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
)

// Compile-time interface guard.
var _ StateStore = (*SQLStateStore)(nil)

// SQLStateStore persists the state mapping in the shared SQLite database.
// Save rewrites the whole table in one transaction, giving the same
// last-complete-write-wins semantics as the file backend.
type SQLStateStore struct {
	store plugin.Store
}

// NewSQLStateStore creates a SQLite-backed state store. The caller must
// have applied Migrations() first.
func NewSQLStateStore(store plugin.Store) *SQLStateStore {
	return &SQLStateStore{store: store}
}

// Migrations returns the schema migrations for the watch plugin.
func Migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create device notification state table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS watch_device_state (
					device       TEXT    PRIMARY KEY,
					notified     INTEGER NOT NULL DEFAULT 0,
					missed_polls INTEGER NOT NULL DEFAULT 0,
					updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`)
				return err
			},
		},
	}
}

// Load reads all device state rows.
func (s *SQLStateStore) Load(ctx context.Context) (map[string]AlertState, error) {
	rows, err := s.store.DB().QueryContext(ctx,
		"SELECT device, notified, missed_polls FROM watch_device_state")
	if err != nil {
		return nil, fmt.Errorf("%w: query state: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	states := make(map[string]AlertState)
	for rows.Next() {
		var (
			device   string
			notified int
			missed   int
		)
		if err := rows.Scan(&device, &notified, &missed); err != nil {
			return nil, fmt.Errorf("%w: scan state row: %v", ErrStoreUnavailable, err)
		}
		states[device] = AlertState{Notified: notified != 0, MissedPolls: missed}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate state rows: %v", ErrStoreUnavailable, err)
	}
	return states, nil
}

// Save replaces the full mapping in a single transaction.
func (s *SQLStateStore) Save(ctx context.Context, states map[string]AlertState) error {
	return s.store.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM watch_device_state"); err != nil {
			return fmt.Errorf("clear state: %w", err)
		}
		for device, st := range states {
			notified := 0
			if st.Notified {
				notified = 1
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO watch_device_state (device, notified, missed_polls, updated_at)
				VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
				device, notified, st.MissedPolls,
			)
			if err != nil {
				return fmt.Errorf("insert state for %s: %w", device, err)
			}
		}
		return nil
	})
}
