// Package db
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scrapemonitor/packages/domain"
	"scrapemonitor/packages/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage reads scrape targets from the product catalog.
type Storage struct {
	DB  *pgxpool.Pool
	cfg Config
}

type Config struct {
	// CatalogQuery must return a single integer column of product ids.
	CatalogQuery string
}

func New(ctx context.Context, databaseURL string, cfg Config) (*Storage, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	slog.Info("Catalog database connected")
	return &Storage{DB: db, cfg: cfg}, nil
}

func (s *Storage) Close() {
	s.DB.Close()
}

// Reset drops every pooled connection so the next query dials fresh.
func (s *Storage) Reset() {
	slog.Info("Resetting catalog connection pool")
	s.DB.Reset()
}

// ListTargets runs the catalog query. Non-positive ids are skipped.
func (s *Storage) ListTargets(ctx context.Context) ([]domain.Target, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("list_targets").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.DB.Query(ctx, s.cfg.CatalogQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog rows: %w", err)
	}
	return toTargets(ids), nil
}

func toTargets(ids []int64) []domain.Target {
	targets := make([]domain.Target, 0, len(ids))
	skipped := 0
	for _, id := range ids {
		if id <= 0 {
			skipped++
			continue
		}
		targets = append(targets, domain.Target(id))
	}
	if skipped > 0 {
		slog.Warn("Catalog returned non-positive ids", "skipped", skipped)
	}
	return targets
}
