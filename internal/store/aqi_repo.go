package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// AQIFilter narrows air-quality listings.
type AQIFilter struct {
	CityName string
	Source   string
	Since    *time.Time
	Limit    int
}

// AQIRepository provides data access for the air_quality table.
type AQIRepository struct {
	db DBTX
}

// NewAQIRepository creates a repository backed by the given pool or
// transaction.
func NewAQIRepository(db DBTX) *AQIRepository {
	return &AQIRepository{db: db}
}

const aqiColumns = `a.id, a.city_id, a.city_name, a.latitude, a.longitude,
	a.measured_at, a.aqi_value, a.aqi_category,
	a.pm25, a.pm10, a.o3, a.no2, a.co, a.so2,
	a.source, a.source_id, a.url, a.created_at, a.updated_at, a.data_fetched_at`

func scanAQI(row pgx.Row) (domain.AQIMeasurement, error) {
	var m domain.AQIMeasurement
	err := row.Scan(
		&m.ID,
		&m.CityID,
		&m.CityName,
		&m.Latitude,
		&m.Longitude,
		&m.MeasuredAt,
		&m.AQIValue,
		&m.AQICategory,
		&m.PM25,
		&m.PM10,
		&m.O3,
		&m.NO2,
		&m.CO,
		&m.SO2,
		&m.Source,
		&m.SourceID,
		&m.URL,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DataFetchedAt,
	)
	return m, err
}

// Upsert inserts or fully replaces a measurement on its (source, source_id)
// natural key. cityID is the pre-resolved cities reference, nil when the
// provider's city name matched nothing. Returns true when newly created.
func (r *AQIRepository) Upsert(ctx context.Context, obs domain.AQIObservation, cityID *int64, fetchedAt time.Time) (bool, error) {
	const q = `
		INSERT INTO air_quality (
			city_id, city_name, latitude, longitude, geom,
			measured_at, aqi_value, aqi_category,
			pm25, pm10, o3, no2, co, so2,
			source, source_id, url,
			created_at, updated_at, data_fetched_at
		) VALUES (
			$1, $2, $3, $4, ST_SetSRID(ST_MakePoint($4, $3), 4326),
			$5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $17, $18
		)
		ON CONFLICT (source, source_id) DO UPDATE SET
			city_id = EXCLUDED.city_id,
			city_name = EXCLUDED.city_name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			geom = EXCLUDED.geom,
			measured_at = EXCLUDED.measured_at,
			aqi_value = EXCLUDED.aqi_value,
			aqi_category = EXCLUDED.aqi_category,
			pm25 = EXCLUDED.pm25,
			pm10 = EXCLUDED.pm10,
			o3 = EXCLUDED.o3,
			no2 = EXCLUDED.no2,
			co = EXCLUDED.co,
			so2 = EXCLUDED.so2,
			url = EXCLUDED.url,
			updated_at = EXCLUDED.updated_at,
			data_fetched_at = EXCLUDED.data_fetched_at
		RETURNING (xmax = 0)`

	var created bool
	err := r.db.QueryRow(ctx, q,
		cityID, obs.CityName, obs.Latitude, obs.Longitude,
		obs.MeasuredAt, obs.AQIValue, obs.AQICategory,
		obs.PM25, obs.PM10, obs.O3, obs.NO2, obs.CO, obs.SO2,
		obs.Source, obs.SourceID, obs.URL,
		fetchedAt, fetchedAt,
	).Scan(&created)
	if err != nil {
		return false, wrapErr("upsert aqi measurement", err)
	}
	return created, nil
}

// List returns measurements matching the filter, newest first.
func (r *AQIRepository) List(ctx context.Context, f AQIFilter) ([]domain.AQIMeasurement, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CityName != "" {
		add("LOWER(a.city_name) = LOWER($%d)", f.CityName)
	}
	if f.Source != "" {
		add("a.source = $%d", f.Source)
	}
	if f.Since != nil {
		add("a.measured_at >= $%d", *f.Since)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	q := "SELECT " + aqiColumns + " FROM air_quality a"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY a.measured_at DESC NULLS LAST LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapErr("list aqi measurements", err)
	}
	defer rows.Close()

	var out []domain.AQIMeasurement
	for rows.Next() {
		m, err := scanAQI(rows)
		if err != nil {
			return nil, wrapErr("scan aqi measurement", err)
		}
		out = append(out, m)
	}
	return out, wrapErr("list aqi measurements", rows.Err())
}

// InBounds returns measurements inside the bounding box whose measured_at
// falls in [from, to]. The caller splits the window further; keeping the
// query inclusive on both ends means one round trip covers both the before
// and after sides of an event.
func (r *AQIRepository) InBounds(ctx context.Context, box domain.BoundingBox, from, to time.Time) ([]domain.AQIMeasurement, error) {
	q := `SELECT ` + aqiColumns + ` FROM air_quality a
		WHERE a.latitude BETWEEN $1 AND $2
		  AND a.longitude BETWEEN $3 AND $4
		  AND a.measured_at BETWEEN $5 AND $6
		ORDER BY a.measured_at ASC`

	rows, err := r.db.Query(ctx, q, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, from, to)
	if err != nil {
		return nil, wrapErr("aqi in bounds", err)
	}
	defer rows.Close()

	var out []domain.AQIMeasurement
	for rows.Next() {
		m, err := scanAQI(rows)
		if err != nil {
			return nil, wrapErr("aqi in bounds", err)
		}
		out = append(out, m)
	}
	return out, wrapErr("aqi in bounds", rows.Err())
}

// LatestByCity returns each city's most recent measurement, for the city
// comparison endpoint. Cities are keyed by lowercase name. A non-nil before
// restricts the lookup to measurements taken before that instant, answering
// "what was each city's latest reading as of that date".
func (r *AQIRepository) LatestByCity(ctx context.Context, cityNames []string, before *time.Time) ([]domain.AQIMeasurement, error) {
	q := `SELECT DISTINCT ON (LOWER(a.city_name)) ` + aqiColumns + `
		FROM air_quality a
		WHERE LOWER(a.city_name) = ANY($1)`

	lowered := make([]string, len(cityNames))
	for i, n := range cityNames {
		lowered[i] = strings.ToLower(n)
	}
	args := []any{lowered}
	if before != nil {
		args = append(args, *before)
		q += " AND a.measured_at < $2"
	}
	q += ` ORDER BY LOWER(a.city_name), a.measured_at DESC NULLS LAST`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapErr("latest aqi by city", err)
	}
	defer rows.Close()

	var out []domain.AQIMeasurement
	for rows.Next() {
		m, err := scanAQI(rows)
		if err != nil {
			return nil, wrapErr("latest aqi by city", err)
		}
		out = append(out, m)
	}
	return out, wrapErr("latest aqi by city", rows.Err())
}
