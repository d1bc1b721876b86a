package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/deadliner/internal/model"
)

// SnapshotKey is the key under which the deadline collection is stored as a
// single JSON array.
const SnapshotKey = "deadliner:deadlines"

// SQLiteStore is a local durable key-value store backed by SQLite. As a
// Backend it keeps the whole deadline collection as one JSON snapshot under
// SnapshotKey; every write replaces that snapshot inside a transaction.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Backend = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection serializes writers and keeps ":memory:" databases from
	// splitting across pooled connections.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// === Key-value access ===

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Get returns the value stored under key. The boolean is false when the key
// is absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	return getValue(ctx, s.db, key)
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return setValue(ctx, s.db, key, value)
}

// Remove deletes key. Removing an absent key succeeds.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("removing key %q: %w", key, err)
	}
	return nil
}

func getValue(ctx context.Context, q queryer, key string) (string, bool, error) {
	var value string
	err := q.GetContext(ctx, &value, "SELECT value FROM kv_store WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, true, nil
}

func setValue(ctx context.Context, q queryer, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// === Backend ===

// LoadAll decodes the stored snapshot. A missing snapshot is an empty
// collection; a snapshot that is not a JSON array is an error.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]model.Deadline, error) {
	return readSnapshot(ctx, s.db)
}

// Insert appends d to the snapshot, generating a UUIDv7 ID when d.ID is empty.
func (s *SQLiteStore) Insert(ctx context.Context, d model.Deadline) (string, error) {
	if d.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generating deadline id: %w", err)
		}
		d.ID = id.String()
	}

	err := s.modifySnapshot(ctx, func(ds []model.Deadline) ([]model.Deadline, error) {
		for _, existing := range ds {
			if existing.ID == d.ID {
				return nil, fmt.Errorf("deadline %s already exists", d.ID)
			}
		}
		return append(ds, d), nil
	})
	if err != nil {
		return "", fmt.Errorf("inserting deadline: %w", err)
	}
	return d.ID, nil
}

// Update merges p onto the stored deadline with the given ID.
func (s *SQLiteStore) Update(ctx context.Context, id string, p model.Patch) error {
	err := s.modifySnapshot(ctx, func(ds []model.Deadline) ([]model.Deadline, error) {
		for i := range ds {
			if ds[i].ID == id {
				ds[i] = p.Apply(ds[i])
				return ds, nil
			}
		}
		return nil, &NotFoundError{ID: id}
	})
	if err != nil {
		return fmt.Errorf("updating deadline %s: %w", id, err)
	}
	return nil
}

// Delete removes the deadline with the given ID if present.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	err := s.modifySnapshot(ctx, func(ds []model.Deadline) ([]model.Deadline, error) {
		kept := ds[:0]
		for _, d := range ds {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("deleting deadline %s: %w", id, err)
	}
	return nil
}

// ReplaceAll overwrites the snapshot with ds.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, ds []model.Deadline) error {
	if err := writeSnapshot(ctx, s.db, ds); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// modifySnapshot applies fn to the stored collection in one transaction.
func (s *SQLiteStore) modifySnapshot(
	ctx context.Context,
	fn func([]model.Deadline) ([]model.Deadline, error),
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ds, err := readSnapshot(ctx, tx)
	if err != nil {
		return err
	}

	next, err := fn(ds)
	if err != nil {
		return err
	}

	if err := writeSnapshot(ctx, tx, next); err != nil {
		return err
	}

	return tx.Commit()
}

func readSnapshot(ctx context.Context, q queryer) ([]model.Deadline, error) {
	raw, ok, err := getValue(ctx, q, SnapshotKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []model.Deadline{}, nil
	}

	var ds []model.Deadline
	if err := json.Unmarshal([]byte(raw), &ds); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if ds == nil {
		ds = []model.Deadline{}
	}
	return ds, nil
}

func writeSnapshot(ctx context.Context, q queryer, ds []model.Deadline) error {
	if ds == nil {
		ds = []model.Deadline{}
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return setValue(ctx, q, SnapshotKey, string(raw))
}
