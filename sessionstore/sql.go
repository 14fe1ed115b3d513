package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	createSlotsTableSQL = `CREATE TABLE IF NOT EXISTS session_slots (
	slot  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	selectSlotSQL  = `SELECT value FROM session_slots WHERE slot = ?`
	selectSlotsSQL = `SELECT slot, value FROM session_slots WHERE slot IN (%s)`
	upsertSlotSQL  = `INSERT INTO session_slots (slot, value) VALUES (?, ?) ON CONFLICT(slot) DO UPDATE SET value = excluded.value`
	deleteSlotSQL  = `DELETE FROM session_slots WHERE slot = ?`
)

var _ BatchSlots = (*SQLSlots)(nil)

// SQLSlots keeps slots in a session_slots table. Multi-slot changes run in a
// single transaction.
type SQLSlots struct {
	db *sql.DB
}

// NewSQLSlots wraps an open database. The table must exist (see Migrate).
func NewSQLSlots(db *sql.DB) (*SQLSlots, error) {
	if db == nil {
		return nil, errors.New("[sessionstore.NewSQLSlots] db is required")
	}
	return &SQLSlots{db: db}, nil
}

// OpenSQLite opens (creating if needed) a SQLite session database.
func OpenSQLite(path string) (*SQLSlots, error) {
	if path == "" {
		return nil, errors.New("[sessionstore.OpenSQLite] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[sessionstore.OpenSQLite] mkdir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[sessionstore.OpenSQLite] open")
	}
	// SQLite allows one writer; a single connection keeps transactions serial.
	db.SetMaxOpenConns(1)

	s := &SQLSlots{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the slots table.
func (s *SQLSlots) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSlotsTableSQL); err != nil {
		return errors.Wrap(err, "[SQLSlots.Migrate] create table")
	}
	return nil
}

func (s *SQLSlots) Close() error {
	return s.db.Close()
}

func (s *SQLSlots) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(selectSlotSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[SQLSlots.Get] query")
	}
	return value, true, nil
}

// GetAll fetches every key with a single statement.
func (s *SQLSlots) GetAll(keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query := fmt.Sprintf(selectSlotsSQL, strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "[SQLSlots.GetAll] query")
	}
	defer rows.Close()

	for rows.Next() {
		var slot, value string
		if err := rows.Scan(&slot, &value); err != nil {
			return nil, errors.Wrap(err, "[SQLSlots.GetAll] scan")
		}
		out[slot] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[SQLSlots.GetAll] rows")
	}
	return out, nil
}

func (s *SQLSlots) Put(key, value string) error {
	if _, err := s.db.Exec(upsertSlotSQL, key, value); err != nil {
		return errors.Wrap(err, "[SQLSlots.Put] exec")
	}
	return nil
}

func (s *SQLSlots) Delete(key string) error {
	if _, err := s.db.Exec(deleteSlotSQL, key); err != nil {
		return errors.Wrap(err, "[SQLSlots.Delete] exec")
	}
	return nil
}

// Apply writes puts (in key order) then deletes inside one transaction.
func (s *SQLSlots) Apply(puts map[string]string, deletes []string) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "[SQLSlots.Apply] begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	keys := make([]string, 0, len(puts))
	for k := range puts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err = tx.Exec(upsertSlotSQL, k, puts[k]); err != nil {
			return errors.Wrapf(err, "[SQLSlots.Apply] upsert %s", k)
		}
	}
	for _, k := range deletes {
		if _, err = tx.Exec(deleteSlotSQL, k); err != nil {
			return errors.Wrapf(err, "[SQLSlots.Apply] delete %s", k)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "[SQLSlots.Apply] commit")
	}
	return nil
}
