// Package store provides PostgreSQL-backed repositories for disasters,
// air-quality measurements, and the cities reference table. Repositories
// accept a DBTX interface satisfied by both *pgxpool.Pool and pgx.Tx, so the
// same code runs inside or outside a transaction. Spatial columns use PostGIS
// and are kept in lockstep with the plain latitude/longitude columns on every
// write.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool and verifies connectivity. A failed ping reports
// domain.ErrStoreUnavailable so callers can treat startup and mid-flight
// outages uniformly.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return pool, nil
}

// wrapErr normalizes a query error: connection-class failures collapse into
// domain.ErrStoreUnavailable, everything else keeps its identity under the
// operation name.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	// pgxpool surfaces a closed pool as puddle's sentinel.
	if errors.Is(err, puddle.ErrClosedPool) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
