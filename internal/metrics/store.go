package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"whats-cooking/internal/database"
	"whats-cooking/internal/offline"
)

// FetchMetric records how one intercepted request was answered.
type FetchMetric struct {
	Strategy  string
	Outcome   string
	Path      string
	LatencyMS int64
	Timestamp time.Time
}

// Store handles persistence of fetch metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m FetchMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_metrics (strategy, outcome, path, latency_ms, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.Strategy, m.Outcome, m.Path, m.LatencyMS, ts.UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to record fetch metric: %w", err)
	}
	return nil
}

// RecordEvent records an event from the cache worker. It satisfies
// offline.Recorder.
func (s *Store) RecordEvent(ctx context.Context, ev offline.FetchEvent) error {
	return s.Record(ctx, MapEvent(ev))
}

// DailyStats summarizes one day of intercepted requests.
type DailyStats struct {
	Date         string  `json:"date"`
	Requests     int     `json:"requests"`
	CacheHits    int     `json:"cacheHits"`
	NetworkHits  int     `json:"networkHits"`
	Fallbacks    int     `json:"fallbacks"`
	Offline      int     `json:"offline"`
	AvgLatencyMS float64 `json:"avgLatencyMs"`
}

// GetDailyStats retrieves per-day totals for the last N days, newest first.
func (s *Store) GetDailyStats(ctx context.Context, days int) ([]DailyStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(database.TimeLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'cache' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'network' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome IN ('fallback', 'placeholder') THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'offline' THEN 1 ELSE 0 END),
		       AVG(latency_ms)
		FROM fetch_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	results := []DailyStats{}
	for rows.Next() {
		var (
			d   DailyStats
			day sql.NullString
			avg sql.NullFloat64
		)
		if err := rows.Scan(&day, &d.Requests, &d.CacheHits, &d.NetworkHits, &d.Fallbacks, &d.Offline, &avg); err != nil {
			return nil, err
		}
		d.Date = "Unknown"
		if day.Valid {
			d.Date = day.String
		}
		if avg.Valid {
			d.AvgLatencyMS = avg.Float64
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(database.TimeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM fetch_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up fetch metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapEvent converts a cache worker event to a FetchMetric.
func MapEvent(ev offline.FetchEvent) FetchMetric {
	return FetchMetric{
		Strategy:  string(ev.Strategy),
		Outcome:   string(ev.Outcome),
		Path:      ev.Path,
		LatencyMS: ev.Latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}
