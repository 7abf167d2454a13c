package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// DisasterFilter narrows List results. Zero values mean "no constraint";
// Limit falls back to a server-side default.
type DisasterFilter struct {
	ID           int64
	Kind         domain.DisasterKind
	Source       string
	Severity     domain.Severity
	Since        *time.Time
	MinMagnitude *float64
	Bounds       *domain.BoundingBox
	Limit        int
}

const defaultListLimit = 100

// DisasterRepository provides data access for the disasters table.
type DisasterRepository struct {
	db DBTX
}

// NewDisasterRepository creates a repository backed by the given pool or
// transaction.
func NewDisasterRepository(db DBTX) *DisasterRepository {
	return &DisasterRepository{db: db}
}

const disasterColumns = `d.id, d.disaster_type, d.title, d.description,
	d.latitude, d.longitude, d.occurred_at, d.magnitude, d.severity, d.status,
	d.source, d.source_id, d.url, d.created_at, d.updated_at, d.data_fetched_at`

func scanDisaster(row pgx.Row) (domain.Disaster, error) {
	var d domain.Disaster
	err := row.Scan(
		&d.ID,
		&d.Kind,
		&d.Title,
		&d.Description,
		&d.Latitude,
		&d.Longitude,
		&d.OccurredAt,
		&d.Magnitude,
		&d.Severity,
		&d.Status,
		&d.Source,
		&d.SourceID,
		&d.URL,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DataFetchedAt,
	)
	return d, err
}

// Upsert inserts or fully replaces a disaster on its (source, source_id)
// natural key. The geom column is recomputed from the incoming coordinates on
// both paths. Returns true when the row was newly created.
func (r *DisasterRepository) Upsert(ctx context.Context, ev domain.NormalizedEvent, fetchedAt time.Time) (bool, error) {
	const q = `
		INSERT INTO disasters (
			disaster_type, title, description, latitude, longitude, geom,
			occurred_at, magnitude, severity, status, source, source_id, url,
			created_at, updated_at, data_fetched_at
		) VALUES (
			$1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($5, $4), 4326),
			$6, $7, $8, $9, $10, $11, $12,
			$13, $13, $14
		)
		ON CONFLICT (source, source_id) DO UPDATE SET
			disaster_type = EXCLUDED.disaster_type,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			geom = EXCLUDED.geom,
			occurred_at = EXCLUDED.occurred_at,
			magnitude = EXCLUDED.magnitude,
			severity = EXCLUDED.severity,
			status = EXCLUDED.status,
			url = EXCLUDED.url,
			updated_at = EXCLUDED.updated_at,
			data_fetched_at = EXCLUDED.data_fetched_at
		RETURNING (xmax = 0)`

	var created bool
	err := r.db.QueryRow(ctx, q,
		ev.Kind, ev.Title, ev.Description, ev.Latitude, ev.Longitude,
		ev.OccurredAt, ev.Magnitude, ev.Severity, ev.Status,
		ev.Source, ev.SourceID, ev.URL,
		fetchedAt, fetchedAt,
	).Scan(&created)
	if err != nil {
		return false, wrapErr("upsert disaster", err)
	}
	return created, nil
}

// List returns disasters matching the filter, newest occurrence first.
func (r *DisasterRepository) List(ctx context.Context, f DisasterFilter) ([]domain.Disaster, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ID != 0 {
		add("d.id = $%d", f.ID)
	}
	if f.Kind != "" {
		add("d.disaster_type = $%d", f.Kind)
	}
	if f.Source != "" {
		add("d.source = $%d", f.Source)
	}
	if f.Severity != "" {
		add("d.severity = $%d", f.Severity)
	}
	if f.Since != nil {
		add("d.occurred_at >= $%d", *f.Since)
	}
	if f.MinMagnitude != nil {
		add("d.magnitude >= $%d", *f.MinMagnitude)
	}
	if f.Bounds != nil {
		args = append(args, f.Bounds.MinLat, f.Bounds.MaxLat)
		conds = append(conds, fmt.Sprintf("d.latitude BETWEEN $%d AND $%d", len(args)-1, len(args)))
		args = append(args, f.Bounds.MinLon, f.Bounds.MaxLon)
		conds = append(conds, fmt.Sprintf("d.longitude BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	q := "SELECT " + disasterColumns + " FROM disasters d"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY d.occurred_at DESC NULLS LAST LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapErr("list disasters", err)
	}
	defer rows.Close()

	var out []domain.Disaster
	for rows.Next() {
		d, err := scanDisaster(rows)
		if err != nil {
			return nil, wrapErr("scan disaster", err)
		}
		out = append(out, d)
	}
	return out, wrapErr("list disasters", rows.Err())
}

// CountBySource returns the number of stored disasters per source. Used by
// the fetch endpoints to report store totals alongside cycle counts.
func (r *DisasterRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT source, COUNT(*) FROM disasters GROUP BY source`)
	if err != nil {
		return nil, wrapErr("count disasters", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, wrapErr("count disasters", err)
		}
		out[source] = n
	}
	return out, wrapErr("count disasters", rows.Err())
}
