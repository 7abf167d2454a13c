//go:build integration

package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// postgisImage must ship PostGIS; the plain postgres image cannot create the
// geometry columns the schema needs.
const postgisImage = "postgis/postgis:16-3.4"

// startPostgres launches a disposable PostGIS container, applies the schema,
// and returns a connected pool. The container is torn down with the test.
func startPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	container, err := postgres.Run(ctx, postgisImage,
		postgres.WithDatabase("hazard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "connect pool")
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_schema.sql")
	require.NoError(t, err, "read schema")
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err, "apply schema")

	return pool
}

// seedCity inserts a reference city and returns its generated id.
func seedCity(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string, lat, lon float64) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO cities (name, country, country_code, latitude, longitude, timezone)
		VALUES ($1, 'Testland', 'TL', $2, $3, 'UTC')
		RETURNING id`,
		name, lat, lon,
	).Scan(&id)
	require.NoError(t, err, "seed city %s", name)
	return id
}
