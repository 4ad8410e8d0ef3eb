package db

import (
	"context"
	"time"

	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// InsertIncident stores the incident unless its hash (or url) already exists.
// A duplicate is reported as created=false with a nil error.
func (db *Postgres) InsertIncident(ctx context.Context, inc model.Incident) (string, bool, error) {
	query := `
		INSERT INTO incidents (
			id, title, description, url, published_at, source, category, severity,
			location, hash, tags, is_verified, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT DO NOTHING
		RETURNING id
	`

	tags := inc.Tags
	if tags == nil {
		tags = []string{}
	}

	var id string
	err := db.Pool.QueryRow(ctx, query,
		inc.ID,
		inc.Title,
		inc.Description,
		inc.URL,
		inc.PublishedDate,
		inc.Source,
		inc.Category,
		inc.Severity,
		inc.Location,
		inc.Hash,
		tags,
		inc.IsVerified,
	).Scan(&id)
	if err != nil {
		if IsNoRows(err) || isUniqueViolation(err) {
			return "", false, nil
		}
		return "", false, storageErr("insert incident", err)
	}
	return id, true, nil
}

// FindIncidents lists India incidents matching the filter, newest first.
func (db *Postgres) FindIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error) {
	sql, args := buildFindQuery(filter)
	list, err := db.queryIncidents(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("find incidents", err)
	}
	return list, nil
}

// SearchIncidents matches term against title or description, case-insensitively.
func (db *Postgres) SearchIncidents(ctx context.Context, term string, limit int) ([]model.Incident, error) {
	sql, args := buildSearchQuery(term, limit)
	list, err := db.queryIncidents(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("search incidents", err)
	}
	return list, nil
}

func (db *Postgres) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get incident", err)
	}
	return inc, nil
}

// SetIncidentVerified flips is_verified, the only mutable incident attribute.
func (db *Postgres) SetIncidentVerified(ctx context.Context, id string, verified bool) (*model.Incident, error) {
	query := `
		UPDATE incidents
		SET is_verified = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + incidentColumns

	inc, err := scanIncident(db.Pool.QueryRow(ctx, query, id, verified))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("verify incident", err)
	}
	return inc, nil
}

// GetIncidentStats runs the five India-scoped aggregates concurrently.
// Counts are not taken from a single snapshot.
func (db *Postgres) GetIncidentStats(ctx context.Context, now time.Time) (*model.IncidentStats, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := &model.IncidentStats{
		BySource:   []model.SourceCount{},
		BySeverity: []model.SeverityCount{},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return db.count(gctx, &stats.Total, `SELECT COUNT(*) FROM incidents WHERE location = $1`, model.DefaultLocation)
	})
	g.Go(func() error {
		return db.count(gctx, &stats.Today,
			`SELECT COUNT(*) FROM incidents WHERE location = $1 AND created_at >= $2`, model.DefaultLocation, midnight)
	})
	g.Go(func() error {
		return db.count(gctx, &stats.Recent,
			`SELECT COUNT(*) FROM incidents WHERE location = $1 AND created_at >= $2`, model.DefaultLocation, weekAgo)
	})
	g.Go(func() error {
		rows, err := db.Pool.Query(gctx, `
			SELECT source, COUNT(*) FROM incidents
			WHERE location = $1
			GROUP BY source
			ORDER BY COUNT(*) DESC, source`, model.DefaultLocation)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sc model.SourceCount
			if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
				return err
			}
			stats.BySource = append(stats.BySource, sc)
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := db.Pool.Query(gctx, `
			SELECT severity, COUNT(*) FROM incidents
			WHERE location = $1
			GROUP BY severity
			ORDER BY COUNT(*) DESC, severity`, model.DefaultLocation)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sc model.SeverityCount
			if err := rows.Scan(&sc.Severity, &sc.Count); err != nil {
				return err
			}
			stats.BySeverity = append(stats.BySeverity, sc)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, storageErr("incident stats", err)
	}
	return stats, nil
}

func (db *Postgres) count(ctx context.Context, dst *int64, query string, args ...any) error {
	return db.Pool.QueryRow(ctx, query, args...).Scan(dst)
}

func (db *Postgres) queryIncidents(ctx context.Context, query string, args ...any) ([]model.Incident, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func scanIncident(row pgx.Row) (*model.Incident, error) {
	var i model.Incident
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.URL,
		&i.PublishedDate,
		&i.Source,
		&i.Category,
		&i.Severity,
		&i.Location,
		&i.Hash,
		&i.Tags,
		&i.IsVerified,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if i.Tags == nil {
		i.Tags = []string{}
	}
	return &i, nil
}
