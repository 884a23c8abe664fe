package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/0dayfall/webfinger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

type PostgresStore struct {
	db    querier
	close func()
}

// NewPostgresStore connects a pool to databaseURL. maxConns of zero keeps the pgx default.
func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: pool, close: pool.Close}, nil
}

func (ps *PostgresStore) Lookup(ctx context.Context, resource webfinger.Resource) (webfinger.Response, error) {
	const q = `
	SELECT document
	FROM jrd_records
	WHERE subject = $1 OR $1 = ANY(aliases)
	ORDER BY subject = $1 DESC
	LIMIT 1
	`

	var document []byte
	if err := ps.db.QueryRow(ctx, q, resource.String()).Scan(&document); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return webfinger.Response{}, notFound(resource)
		}
		return webfinger.Response{}, fmt.Errorf("failed to query record: %w", err)
	}

	resp, err := webfinger.ParseResponse(document)
	if err != nil {
		return webfinger.Response{}, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, resource, err)
	}
	return resp, nil
}

func (ps *PostgresStore) Put(ctx context.Context, resp webfinger.Response) error {
	const q = `
	INSERT INTO jrd_records (subject, aliases, document, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (subject) DO UPDATE
	SET aliases = EXCLUDED.aliases, document = EXCLUDED.document, updated_at = now()
	`

	document, err := resp.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	aliases := make([]string, 0, len(resp.Aliases()))
	for _, alias := range resp.Aliases() {
		aliases = append(aliases, alias.String())
	}
	if _, err := ps.db.Exec(ctx, q, resp.Subject().String(), aliases, document); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.Ping(ctx)
}

func (ps *PostgresStore) Close() error {
	if ps.close != nil {
		ps.close()
	}
	return nil
}
