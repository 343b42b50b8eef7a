package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore and establishes a connection to the database
// file. It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
// check_history has no foreign key on purpose: history outlives site removal.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS sites (
	url              TEXT PRIMARY KEY,
	interval_minutes INTEGER NOT NULL,
	last_check       TEXT NOT NULL,
	last_hash        TEXT NOT NULL DEFAULT '',
	ip               TEXT NOT NULL DEFAULT '',
	dns              TEXT NOT NULL DEFAULT '',
	screenshot_path  TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS check_history (
	id                   TEXT PRIMARY KEY,
	url                  TEXT NOT NULL,
	checked_at           TEXT NOT NULL,
	status_code          INTEGER NOT NULL,
	response_time        REAL NOT NULL,
	detail               TEXT NOT NULL DEFAULT '',
	attention            INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_check_history_url_checked_at ON check_history (url, checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func randomID(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return prefix + time.Now().UTC().Format("20060102150405")
	}
	return prefix + hex.EncodeToString(b)
}

// UpsertSite inserts a site or overwrites the record for the same URL.
func (s *SQLiteStore) UpsertSite(ctx context.Context, site *models.Site) error {
	query := `
INSERT INTO sites (url, interval_minutes, last_check, last_hash, ip, dns, screenshot_path, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	interval_minutes = excluded.interval_minutes,
	last_check       = excluded.last_check,
	last_hash        = excluded.last_hash,
	ip               = excluded.ip,
	dns              = excluded.dns,
	screenshot_path  = excluded.screenshot_path`
	_, err := s.db.ExecContext(ctx, query,
		site.URL, site.Interval, site.LastCheck.UTC().Format(time.RFC3339Nano),
		site.LastHash, site.IP, site.DNS, site.Screenshot,
		site.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert site: %w", err)
	}
	return nil
}

// GetSite retrieves a single site by its normalized URL.
func (s *SQLiteStore) GetSite(ctx context.Context, url string) (*models.Site, error) {
	query := `SELECT url, interval_minutes, last_check, last_hash, ip, dns, screenshot_path, created_at FROM sites WHERE url = ?`
	site, err := scanSite(s.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// ListSites retrieves all monitored sites.
func (s *SQLiteStore) ListSites(ctx context.Context) ([]models.Site, error) {
	query := `SELECT url, interval_minutes, last_check, last_hash, ip, dns, screenshot_path, created_at FROM sites ORDER BY created_at, url`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()
	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// DeleteSite removes a site record. Its check history is left in place.
func (s *SQLiteStore) DeleteSite(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendCheckHistory saves a new check history row.
func (s *SQLiteStore) AppendCheckHistory(ctx context.Context, entry *models.CheckEntry) error {
	if entry.ID == "" {
		entry.ID = randomID("ch_")
	}
	query := `INSERT INTO check_history (id, url, checked_at, status_code, response_time, detail, attention, consecutive_failures) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.URL, entry.CheckedAt.UTC().Format(time.RFC3339Nano),
		entry.StatusCode, entry.ResponseTime, entry.Detail, boolToInt(entry.Attention), entry.ConsecutiveFailures)
	if err != nil {
		return fmt.Errorf("failed to append check history: %w", err)
	}
	return nil
}

// RecentChecks retrieves history rows for a site newer than since,
// most recent first.
func (s *SQLiteStore) RecentChecks(ctx context.Context, url string, since time.Time) ([]models.CheckEntry, error) {
	query := `SELECT id, url, checked_at, status_code, response_time, detail, attention, consecutive_failures
FROM check_history WHERE url = ? AND checked_at > ? ORDER BY checked_at DESC`
	rows, err := s.db.QueryContext(ctx, query, url, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent checks: %w", err)
	}
	defer rows.Close()
	var entries []models.CheckEntry
	for rows.Next() {
		var e models.CheckEntry
		var checkedAtStr string
		var attention int
		if err := rows.Scan(&e.ID, &e.URL, &checkedAtStr, &e.StatusCode, &e.ResponseTime, &e.Detail, &attention, &e.ConsecutiveFailures); err != nil {
			return nil, fmt.Errorf("failed to scan check history row: %w", err)
		}
		e.CheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAtStr)
		e.Attention = attention != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*models.Site, error) {
	var site models.Site
	var lastCheckStr, createdAtStr string
	if err := row.Scan(&site.URL, &site.Interval, &lastCheckStr, &site.LastHash, &site.IP, &site.DNS, &site.Screenshot, &createdAtStr); err != nil {
		return nil, err
	}
	site.LastCheck, _ = time.Parse(time.RFC3339Nano, lastCheckStr)
	site.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return &site, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
