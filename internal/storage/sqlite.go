// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one profile row per local user.
type SQLiteStore struct {
	db   *sql.DB
	user string
}

func NewSQLiteStore(dbPath, user string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, user: user}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS profiles (
        user_id TEXT PRIMARY KEY,
        data TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS profile_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        action TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_profile_events_user ON profile_events(user_id, created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE user_id = ?`, s.user).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return []byte(data), nil
}

func (s *SQLiteStore) Save(ctx context.Context, doc []byte) error {
	return s.inTx(ctx, "set", func(tx *sql.Tx, now time.Time) error {
		query := `
        INSERT INTO profiles (user_id, data, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
    `
		if _, err := tx.ExecContext(ctx, query, s.user, string(doc), now, now); err != nil {
			return fmt.Errorf("failed to upsert profile: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	return s.inTx(ctx, "clear", func(tx *sql.Tx, _ time.Time) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, s.user); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		return nil
	})
}

// Events returns how many times the profile was set and cleared.
func (s *SQLiteStore) Events(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM profile_events WHERE user_id = ? GROUP BY action`, s.user)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile events: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan profile event: %w", err)
		}
		counts[action] = n
	}
	return counts, rows.Err()
}

// inTx runs fn and records action in the event log in one transaction.
func (s *SQLiteStore) inTx(ctx context.Context, action string, fn func(*sql.Tx, time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := fn(tx, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profile_events (user_id, action, created_at) VALUES (?, ?, ?)`,
		s.user, action, now); err != nil {
		return fmt.Errorf("failed to record profile event: %w", err)
	}

	return tx.Commit()
}
