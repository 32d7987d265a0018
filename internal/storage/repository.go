package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Visit is one page of the reading history.
type Visit struct {
	URL       string
	Title     string
	VisitedAt time.Time
	Count     int
}

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS visits (
  url TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  visited_at TEXT NOT NULL,
  visit_count INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS visits_visited_at ON visits (visited_at DESC);
`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RecordVisit stores a page view, bumping the count of a page seen before.
func (r *Repository) RecordVisit(ctx context.Context, visit Visit) error {
	url := strings.TrimSpace(visit.URL)
	if url == "" {
		return errors.New("visit URL is required")
	}
	at := visit.VisitedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO visits (url, title, visited_at, visit_count)
VALUES (?, ?, ?, 1)
ON CONFLICT(url) DO UPDATE SET
  title=excluded.title,
  visited_at=excluded.visited_at,
  visit_count=visits.visit_count + 1
`, url, visit.Title, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record visit %s: %w", url, err)
	}
	return nil
}

// ListVisits returns the most recently visited pages first.
func (r *Repository) ListVisits(ctx context.Context, limit int) ([]Visit, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT url, title, visited_at, visit_count
FROM visits
ORDER BY visited_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	visits := make([]Visit, 0, limit)
	for rows.Next() {
		var visit Visit
		var visitedAt string
		if err := rows.Scan(&visit.URL, &visit.Title, &visitedAt, &visit.Count); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visit.VisitedAt, err = time.Parse(time.RFC3339Nano, visitedAt)
		if err != nil {
			return nil, fmt.Errorf("parse visit visited_at %q: %w", visitedAt, err)
		}
		visits = append(visits, visit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return visits, nil
}
