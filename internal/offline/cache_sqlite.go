package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"whats-cooking/internal/database"
)

// SQLiteCacheStorage persists buckets in cache_buckets / cache_entries so
// they survive restarts.
type SQLiteCacheStorage struct {
	db *sql.DB
}

// NewSQLiteCacheStorage creates a storage on a migrated database.
func NewSQLiteCacheStorage(db *sql.DB) *SQLiteCacheStorage {
	return &SQLiteCacheStorage{db: db}
}

func (s *SQLiteCacheStorage) Open(ctx context.Context, name string) (Bucket, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_buckets (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(database.TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", name, err)
	}
	return &sqliteBucket{db: s.db, name: name}, nil
}

func (s *SQLiteCacheStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cache_buckets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteCacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE bucket = ?`, name); err != nil {
		return false, fmt.Errorf("failed to delete entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_buckets WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete bucket %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

func (s *SQLiteCacheStorage) Match(ctx context.Context, url string) (*Response, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT e.status, e.header, e.body FROM cache_entries e
		 JOIN cache_buckets b ON b.name = e.bucket
		 WHERE e.url = ? ORDER BY b.rowid LIMIT 1`, url)
	return scanResponse(row, url)
}

type sqliteBucket struct {
	db   *sql.DB
	name string
}

func (b *sqliteBucket) Match(ctx context.Context, url string) (*Response, bool, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT status, header, body FROM cache_entries WHERE bucket = ? AND url = ?`, b.name, url)
	return scanResponse(row, url)
}

func (b *sqliteBucket) Put(ctx context.Context, url string, resp *Response) error {
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("failed to encode headers for %s: %w", url, err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO cache_entries (bucket, url, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(bucket, url) DO UPDATE SET status = excluded.status, header = excluded.header,
		 body = excluded.body, stored_at = excluded.stored_at`,
		b.name, url, resp.Status, string(header), resp.Body, time.Now().UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", url, b.name, err)
	}
	return nil
}

func (b *sqliteBucket) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT url FROM cache_entries WHERE bucket = ? ORDER BY stored_at, url`, b.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", b.name, err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func scanResponse(row *sql.Row, url string) (*Response, bool, error) {
	var (
		status int
		header string
		body   []byte
	)
	if err := row.Scan(&status, &header, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached %s: %w", url, err)
	}

	h := http.Header{}
	if err := json.Unmarshal([]byte(header), &h); err != nil {
		return nil, false, fmt.Errorf("corrupt headers for cached %s: %w", url, err)
	}
	return &Response{Status: status, Header: h, Body: body, URL: url}, true, nil
}
