package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// selectEnvironmentsSQL expects:
//
//	CREATE TABLE environments (
//	    name   text PRIMARY KEY,
//	    url    text NOT NULL DEFAULT '',
//	    active boolean NOT NULL DEFAULT true
//	);
const selectEnvironmentsSQL = `SELECT name, url FROM environments WHERE active AND url <> '' AND name = ANY($1)`

// querier is the subset of *pgxpool.Pool used by PostgresSource.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads environment URLs from an environments table
// maintained by the deployment pipeline.
type PostgresSource struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgresSource creates a source backed by pool. The source owns the
// pool and closes it on Close.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool, q: pool}
}

// Name implements Source.
func (p *PostgresSource) Name() string { return SourcePostgres }

// Fetch implements Source.
func (p *PostgresSource) Fetch(ctx context.Context, names []string) (map[string]string, error) {
	rows, err := p.q.Query(ctx, selectEnvironmentsSQL, names)
	if err != nil {
		return nil, fmt.Errorf("query environments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(names))
	for rows.Next() {
		var name, url string
		if err := rows.Scan(&name, &url); err != nil {
			return nil, fmt.Errorf("scan environment row: %w", err)
		}
		out[name] = url
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read environment rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying pool.
func (p *PostgresSource) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
