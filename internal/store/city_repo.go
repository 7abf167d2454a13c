package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// CityRepository provides read access to the cities reference table.
type CityRepository struct {
	db DBTX
}

// NewCityRepository creates a repository backed by the given pool or
// transaction.
func NewCityRepository(db DBTX) *CityRepository {
	return &CityRepository{db: db}
}

const cityColumns = `c.id, c.name, c.country, c.country_code,
	c.latitude, c.longitude, c.population, c.timezone`

func scanCity(row pgx.Row) (domain.City, error) {
	var c domain.City
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Country,
		&c.CountryCode,
		&c.Latitude,
		&c.Longitude,
		&c.Population,
		&c.Timezone,
	)
	return c, err
}

// ByName looks a city up case-insensitively. A miss returns (nil, nil):
// providers report many locations the reference table does not carry, and
// measurements without a match are still stored.
func (r *CityRepository) ByName(ctx context.Context, name string) (*domain.City, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+cityColumns+" FROM cities c WHERE LOWER(c.name) = LOWER($1) LIMIT 1", name)

	c, err := scanCity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("city by name", err)
	}
	return &c, nil
}

// List returns the reference cities ordered by name.
func (r *CityRepository) List(ctx context.Context, limit int) ([]domain.City, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(ctx,
		"SELECT "+cityColumns+" FROM cities c ORDER BY c.name LIMIT $1", limit)
	if err != nil {
		return nil, wrapErr("list cities", err)
	}
	defer rows.Close()

	var out []domain.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, wrapErr("list cities", err)
		}
		out = append(out, c)
	}
	return out, wrapErr("list cities", rows.Err())
}
