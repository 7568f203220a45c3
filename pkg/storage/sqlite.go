package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const (
	sqlCreateKVTable = `CREATE TABLE IF NOT EXISTS kv(
                        key TEXT NOT NULL PRIMARY KEY,
                        value BLOB NOT NULL,
                        updated_at timestamp default current_timestamp
                        )`
	sqlSelectValue = `SELECT value FROM kv WHERE key = ?`
	sqlUpsertValue = `INSERT INTO kv(key, value, updated_at) VALUES (?, ?, ?)
                        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	sqlDeleteValue = `DELETE FROM kv WHERE key = ?`
	sqlDeleteAll   = `DELETE FROM kv`
	sqlUsedBytes   = `SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv`
	sqlEntrySize   = `SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv WHERE key = ?`
)

const sqliteTimeout = 5 * time.Second

// SQLite is a Storage kept in a key/value table of a SQLite database.
type SQLite struct {
	db    *sql.DB
	quota int
}

// OpenSQLite opens or creates the database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(path string, quota int) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite storage needs a path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	if _, err := db.Exec(sqlCreateKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &SQLite{db: db, quota: quota}, nil
}

func (s *SQLite) Get(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()
	var value []byte
	err := s.db.QueryRowContext(ctx, sqlSelectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *SQLite) Set(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return s.wrapTransaction(func(tx *sql.Tx) error {
		if s.quota > 0 {
			var used, oldSize int
			if err := tx.QueryRow(sqlUsedBytes).Scan(&used); err != nil {
				return err
			}
			if err := tx.QueryRow(sqlEntrySize, key).Scan(&oldSize); err != nil {
				return err
			}
			if err := checkQuota(s.quota, used, oldSize, entrySize(key, value)); err != nil {
				return err
			}
		}
		_, err := tx.Exec(sqlUpsertValue, key, value, time.Now().UTC())
		return err
	})
}

func (s *SQLite) Remove(key string) error {
	return s.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteValue, key)
		return err
	})
}

func (s *SQLite) Clear() error {
	return s.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteAll)
		return err
	})
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// wrapTransaction runs f within a transaction, retrying while the database is busy.
func (s *SQLite) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()
	for {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		err = f(tx)
		if err != nil {
			_ = tx.Rollback()
			var serr *sqlite.Error
			if errors.As(err, &serr) && serr.Code() == sqlitelib.SQLITE_BUSY && ctx.Err() == nil {
				continue
			}
			return err
		}
		return tx.Commit()
	}
}
