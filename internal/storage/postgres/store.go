package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// PostgresStore implements the storage.Storer interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// New creates a new PostgresStore and establishes a connection to the
// database. It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &PostgresStore{db: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// migrate ensures the database schema is created.
// check_history has no foreign key on purpose: history outlives site removal.
func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sites (
		url              TEXT PRIMARY KEY,
		interval_minutes INTEGER NOT NULL,
		last_check       TIMESTAMPTZ NOT NULL,
		last_hash        TEXT NOT NULL DEFAULT '',
		ip               TEXT NOT NULL DEFAULT '',
		dns              TEXT NOT NULL DEFAULT '',
		screenshot_path  TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS check_history (
		id                   TEXT PRIMARY KEY,
		url                  TEXT NOT NULL,
		checked_at           TIMESTAMPTZ NOT NULL,
		status_code          INTEGER NOT NULL,
		response_time        DOUBLE PRECISION NOT NULL,
		detail               TEXT NOT NULL DEFAULT '',
		attention            BOOLEAN NOT NULL DEFAULT FALSE,
		consecutive_failures INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_check_history_url_checked_at ON check_history (url, checked_at DESC);
	`
	_, err := s.db.Exec(ctx, schema)
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
func (s *PostgresStore) UpsertSite(ctx context.Context, site *models.Site) error {
	query := `
	INSERT INTO sites (url, interval_minutes, last_check, last_hash, ip, dns, screenshot_path, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (url) DO UPDATE SET
		interval_minutes = EXCLUDED.interval_minutes,
		last_check       = EXCLUDED.last_check,
		last_hash        = EXCLUDED.last_hash,
		ip               = EXCLUDED.ip,
		dns              = EXCLUDED.dns,
		screenshot_path  = EXCLUDED.screenshot_path`
	_, err := s.db.Exec(ctx, query,
		site.URL, site.Interval, site.LastCheck.UTC(), site.LastHash,
		site.IP, site.DNS, site.Screenshot, site.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert site: %w", err)
	}
	return nil
}

// GetSite retrieves a single site by its normalized URL.
func (s *PostgresStore) GetSite(ctx context.Context, url string) (*models.Site, error) {
	query := `SELECT url, interval_minutes, last_check, last_hash, ip, dns, screenshot_path, created_at FROM sites WHERE url = $1`
	var site models.Site
	err := s.db.QueryRow(ctx, query, url).Scan(
		&site.URL, &site.Interval, &site.LastCheck, &site.LastHash,
		&site.IP, &site.DNS, &site.Screenshot, &site.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &site, nil
}

// ListSites retrieves all monitored sites.
func (s *PostgresStore) ListSites(ctx context.Context) ([]models.Site, error) {
	query := `SELECT url, interval_minutes, last_check, last_hash, ip, dns, screenshot_path, created_at FROM sites ORDER BY created_at, url`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()
	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.URL, &site.Interval, &site.LastCheck, &site.LastHash,
			&site.IP, &site.DNS, &site.Screenshot, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// DeleteSite removes a site record. Its check history is left in place.
func (s *PostgresStore) DeleteSite(ctx context.Context, url string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sites WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendCheckHistory saves a new check history row.
func (s *PostgresStore) AppendCheckHistory(ctx context.Context, entry *models.CheckEntry) error {
	if entry.ID == "" {
		entry.ID = randomID("ch_")
	}
	query := `INSERT INTO check_history (id, url, checked_at, status_code, response_time, detail, attention, consecutive_failures)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, query,
		entry.ID, entry.URL, entry.CheckedAt.UTC(), entry.StatusCode,
		entry.ResponseTime, entry.Detail, entry.Attention, entry.ConsecutiveFailures)
	if err != nil {
		return fmt.Errorf("failed to append check history: %w", err)
	}
	return nil
}

// RecentChecks retrieves history rows for a site newer than since,
// most recent first.
func (s *PostgresStore) RecentChecks(ctx context.Context, url string, since time.Time) ([]models.CheckEntry, error) {
	query := `SELECT id, url, checked_at, status_code, response_time, detail, attention, consecutive_failures
	FROM check_history WHERE url = $1 AND checked_at > $2 ORDER BY checked_at DESC`
	rows, err := s.db.Query(ctx, query, url, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list recent checks: %w", err)
	}
	defer rows.Close()
	var entries []models.CheckEntry
	for rows.Next() {
		var e models.CheckEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.CheckedAt, &e.StatusCode, &e.ResponseTime,
			&e.Detail, &e.Attention, &e.ConsecutiveFailures); err != nil {
			return nil, fmt.Errorf("failed to scan check history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
