package output

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for listing rows.
type PostgresConfig struct {
	DSN      string
	Table    string
	MaxConns int32
}

type txPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore upserts records keyed by listing URL, so a re-crawl
// refreshes the previous row.
type PostgresStore struct {
	pool  txPool
	table string
}

var _ crawler.RecordSink = (*PostgresStore)(nil)

// NewPostgresStore connects to cfg.DSN.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPostgresStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool.
func NewPostgresStoreWithPool(pool txPool, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "listing_hosts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	listing_url        TEXT PRIMARY KEY,
	listing_title      TEXT NOT NULL DEFAULT '',
	license_code       TEXT NOT NULL DEFAULT '',
	host_url           TEXT NOT NULL DEFAULT '',
	host_name          TEXT NOT NULL DEFAULT '',
	host_rating        TEXT NOT NULL DEFAULT '',
	host_years         TEXT NOT NULL DEFAULT '',
	host_reviews_count TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	scraped_at         TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write upserts every record in one transaction.
func (s *PostgresStore) Write(ctx context.Context, records []crawler.ListingRecord) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	query := s.upsertQuery()
	for _, rec := range records {
		if _, err := tx.Exec(ctx, query, upsertArgs(rec)...); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("upsert %s: %w", rec.ListingURL, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) upsertQuery() string {
	return fmt.Sprintf(`
INSERT INTO %s (
	listing_url,
	listing_title,
	license_code,
	host_url,
	host_name,
	host_rating,
	host_years,
	host_reviews_count,
	status,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (listing_url) DO UPDATE SET
	listing_title = EXCLUDED.listing_title,
	license_code = EXCLUDED.license_code,
	host_url = EXCLUDED.host_url,
	host_name = EXCLUDED.host_name,
	host_rating = EXCLUDED.host_rating,
	host_years = EXCLUDED.host_years,
	host_reviews_count = EXCLUDED.host_reviews_count,
	status = EXCLUDED.status,
	scraped_at = EXCLUDED.scraped_at`, s.table)
}

func upsertArgs(rec crawler.ListingRecord) []any {
	return []any{
		rec.ListingURL.String(),
		rec.Title,
		rec.LicenseCode,
		rec.HostURL,
		rec.HostName,
		rec.HostRating,
		rec.HostYears,
		rec.HostReviewsCount,
		string(rec.Status),
		rec.ScrapedAt,
	}
}
