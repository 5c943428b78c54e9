// Package postgres provides the production sunset.Repository backed by
// PostgreSQL via pgx. Schema DDL lives under migrations/ at the repository
// root.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/endpoint-sunset/pkg/sunset"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements sunset.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) sunset.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) sunset.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "endpoint") {
				return fmt.Errorf("endpoint already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced endpoint not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Endpoint record operations

func (r *Repository) GetEndpointBySlug(ctx context.Context, slug string) (*sunset.Endpoint, error) {
	query := `
        SELECT id, slug, path, description_markdown, deprecation_reason_markdown,
               deprecated_on, sunsets_on, created_at, updated_at
        FROM endpoints WHERE slug = $1`

	var endpoint sunset.Endpoint
	err := r.db.QueryRow(ctx, query, slug).Scan(
		&endpoint.ID, &endpoint.Slug, &endpoint.Path,
		&endpoint.DescriptionMarkdown, &endpoint.DeprecationReasonMarkdown,
		&endpoint.DeprecatedOn, &endpoint.SunsetsOn,
		&endpoint.CreatedAt, &endpoint.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sunset.ErrEndpointNotFound
		}
		return nil, r.handlePostgresError("get endpoint", err)
	}

	return &endpoint, nil
}

func (r *Repository) UpsertEndpoint(ctx context.Context, endpoint *sunset.Endpoint) error {
	query := `
		INSERT INTO endpoints (
			id, slug, path, description_markdown, deprecation_reason_markdown,
			deprecated_on, sunsets_on, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO UPDATE SET
			path = EXCLUDED.path,
			description_markdown = EXCLUDED.description_markdown,
			deprecation_reason_markdown = EXCLUDED.deprecation_reason_markdown,
			deprecated_on = EXCLUDED.deprecated_on,
			sunsets_on = EXCLUDED.sunsets_on,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		endpoint.ID, endpoint.Slug, endpoint.Path,
		endpoint.DescriptionMarkdown, endpoint.DeprecationReasonMarkdown,
		endpoint.DeprecatedOn, endpoint.SunsetsOn,
		endpoint.CreatedAt, endpoint.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("upsert endpoint", err)
	}

	return nil
}

func (r *Repository) BackfillSunset(ctx context.Context, slug string, sunsetsOn time.Time) (time.Time, error) {
	// Single-statement set-if-still-null: first writer wins under
	// concurrent first requests, everyone reads back the winning value.
	query := `
		UPDATE endpoints
		SET sunsets_on = COALESCE(sunsets_on, $2)
		WHERE slug = $1
		RETURNING sunsets_on`

	var assigned time.Time
	err := r.db.QueryRow(ctx, query, slug, sunsetsOn).Scan(&assigned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, sunset.ErrEndpointNotFound
		}
		return time.Time{}, r.handlePostgresError("backfill sunset", err)
	}

	return assigned, nil
}

// Usage operations

func (r *Repository) CreateUsageRecord(ctx context.Context, record *sunset.UsageRecord) error {
	query := `
		INSERT INTO endpoint_users (
			id, endpoint_id, user_id, ip_address, user_agent, response_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.EndpointID, record.UserID,
		record.IPAddress, record.UserAgent,
		record.ResponseType, record.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create usage record", err)
	}

	return nil
}

func (r *Repository) CountRecentErrors(ctx context.Context, ip, userAgent string, since time.Time) (int, error) {
	// The NOT NULL predicates let the planner pick the partial index over
	// (ip_address, user_agent, response_type, created_at).
	query := `
        SELECT COUNT(*)
        FROM endpoint_users
        WHERE ip_address = $1
          AND user_agent = $2
          AND response_type = $3
          AND created_at >= $4
          AND ip_address IS NOT NULL
          AND user_agent IS NOT NULL`

	var count int
	err := r.db.QueryRow(ctx, query, ip, userAgent, sunset.ResponseTypeError, since).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count recent errors", err)
	}

	return count, nil
}

func (r *Repository) ListMonthlyUsage(ctx context.Context, endpointID uuid.UUID, month time.Time) ([]sunset.MonthlyUsage, error) {
	query := `
        SELECT response_type, COUNT(*)
        FROM endpoint_users
        WHERE endpoint_id = $1
          AND date_trunc('month', created_at AT TIME ZONE 'utc') = $2
        GROUP BY response_type
        ORDER BY response_type`

	monthStart := time.Date(month.UTC().Year(), month.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.db.Query(ctx, query, endpointID, monthStart)
	if err != nil {
		return nil, r.handlePostgresError("list monthly usage", err)
	}
	defer rows.Close()

	var result []sunset.MonthlyUsage
	for rows.Next() {
		usage := sunset.MonthlyUsage{EndpointID: endpointID, Month: monthStart}
		if err := rows.Scan(&usage.ResponseType, &usage.Count); err != nil {
			return nil, r.handlePostgresError("list monthly usage", err)
		}
		result = append(result, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list monthly usage", err)
	}

	return result, nil
}

// Catalog operations

func (r *Repository) ListEndpointSlugs(ctx context.Context, req sunset.ListEndpointSlugsRequest) (*sunset.EndpointSlugPage, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if req.BeforeSlug != "" {
		args = append(args, req.BeforeSlug)
		conditions = append(conditions, fmt.Sprintf("slug < $%d", len(args)))
	}
	if req.AfterSlug != "" {
		args = append(args, req.AfterSlug)
		conditions = append(conditions, fmt.Sprintf("slug > $%d", len(args)))
	}

	query := "SELECT slug FROM endpoints"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if req.Order == sunset.SlugOrderDesc {
		query += " ORDER BY slug DESC"
	} else {
		query += " ORDER BY slug ASC"
	}
	// One row of look-ahead to detect whether another page exists.
	args = append(args, req.Limit+1)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list endpoint slugs", err)
	}
	defer rows.Close()

	slugs := make([]string, 0, req.Limit)
	hasMore := false
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, r.handlePostgresError("list endpoint slugs", err)
		}
		if len(slugs) >= req.Limit {
			hasMore = true
			continue
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list endpoint slugs", err)
	}

	return &sunset.EndpointSlugPage{Slugs: slugs, HasMore: hasMore}, nil
}

func (r *Repository) SuggestEndpointSlugs(ctx context.Context, query string, limit int) ([]string, error) {
	sql := `
        SELECT slug FROM endpoints
        WHERE slug ILIKE '%' || $1 || '%'
        ORDER BY slug ASC
        LIMIT $2`

	rows, err := r.db.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, r.handlePostgresError("suggest endpoint slugs", err)
	}
	defer rows.Close()

	slugs := make([]string, 0, limit)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, r.handlePostgresError("suggest endpoint slugs", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("suggest endpoint slugs", err)
	}

	return slugs, nil
}

func (r *Repository) GetEndpointParams(ctx context.Context, endpointID uuid.UUID) ([]*sunset.EndpointParam, error) {
	query := `
        SELECT endpoint_id, location, path, name, var_type, description_markdown, added_date
        FROM endpoint_params
        WHERE endpoint_id = $1
        ORDER BY location, path, name`

	rows, err := r.db.Query(ctx, query, endpointID)
	if err != nil {
		return nil, r.handlePostgresError("get endpoint params", err)
	}
	defer rows.Close()

	var params []*sunset.EndpointParam
	for rows.Next() {
		var param sunset.EndpointParam
		if err := rows.Scan(
			&param.EndpointID, &param.Location, &param.Path, &param.Name,
			&param.VarType, &param.DescriptionMarkdown, &param.AddedDate); err != nil {
			return nil, r.handlePostgresError("get endpoint params", err)
		}
		params = append(params, &param)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("get endpoint params", err)
	}

	return params, nil
}

func (r *Repository) GetEndpointParam(ctx context.Context, slug string, location sunset.ParamLocation, path, name string) (*sunset.EndpointParam, error) {
	query := `
        SELECT p.endpoint_id, p.location, p.path, p.name, p.var_type,
               p.description_markdown, p.added_date
        FROM endpoint_params p
        JOIN endpoints e ON p.endpoint_id = e.id
        WHERE e.slug = $1 AND p.location = $2 AND p.path = $3 AND p.name = $4`

	var param sunset.EndpointParam
	err := r.db.QueryRow(ctx, query, slug, location, path, name).Scan(
		&param.EndpointID, &param.Location, &param.Path, &param.Name,
		&param.VarType, &param.DescriptionMarkdown, &param.AddedDate)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sunset.ErrParamNotFound
		}
		return nil, r.handlePostgresError("get endpoint param", err)
	}

	return &param, nil
}

func (r *Repository) UpsertEndpointParam(ctx context.Context, slug string, param *sunset.EndpointParam) error {
	query := `
		INSERT INTO endpoint_params (
			endpoint_id, location, path, name, var_type, description_markdown, added_date
		)
		SELECT id, $2, $3, $4, $5, $6, $7 FROM endpoints WHERE slug = $1
		ON CONFLICT (endpoint_id, location, path, name) DO UPDATE SET
			var_type = EXCLUDED.var_type,
			description_markdown = EXCLUDED.description_markdown`

	tag, err := r.db.Exec(ctx, query, slug,
		param.Location, param.Path, param.Name,
		param.VarType, param.DescriptionMarkdown, param.AddedDate)
	if err != nil {
		return r.handlePostgresError("upsert endpoint param", err)
	}
	if tag.RowsAffected() == 0 {
		return sunset.ErrEndpointNotFound
	}

	return nil
}

func (r *Repository) ListAlternativeSlugs(ctx context.Context, oldEndpointID uuid.UUID) ([]string, error) {
	query := `
        SELECT e.slug
        FROM endpoint_alternatives a
        JOIN endpoints e ON e.id = a.new_endpoint_id
        WHERE a.old_endpoint_id = $1
        ORDER BY e.slug`

	rows, err := r.db.Query(ctx, query, oldEndpointID)
	if err != nil {
		return nil, r.handlePostgresError("list alternative slugs", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, r.handlePostgresError("list alternative slugs", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list alternative slugs", err)
	}

	return slugs, nil
}

func (r *Repository) GetAlternative(ctx context.Context, fromSlug, toSlug string) (*sunset.EndpointAlternative, error) {
	query := `
        SELECT a.old_endpoint_id, a.new_endpoint_id, a.explanation_markdown,
               a.created_at, a.updated_at
        FROM endpoint_alternatives a
        JOIN endpoints old_e ON old_e.id = a.old_endpoint_id
        JOIN endpoints new_e ON new_e.id = a.new_endpoint_id
        WHERE old_e.slug = $1 AND new_e.slug = $2`

	var alternative sunset.EndpointAlternative
	err := r.db.QueryRow(ctx, query, fromSlug, toSlug).Scan(
		&alternative.OldEndpointID, &alternative.NewEndpointID,
		&alternative.ExplanationMarkdown,
		&alternative.CreatedAt, &alternative.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sunset.ErrAlternativeNotFound
		}
		return nil, r.handlePostgresError("get alternative", err)
	}

	return &alternative, nil
}

func (r *Repository) UpsertAlternative(ctx context.Context, fromSlug, toSlug, explanationMarkdown string) error {
	query := `
		INSERT INTO endpoint_alternatives (
			old_endpoint_id, new_endpoint_id, explanation_markdown, created_at, updated_at
		)
		SELECT old_e.id, new_e.id, $3, now(), now()
		FROM endpoints old_e, endpoints new_e
		WHERE old_e.slug = $1 AND new_e.slug = $2
		ON CONFLICT (old_endpoint_id, new_endpoint_id) DO UPDATE SET
			explanation_markdown = EXCLUDED.explanation_markdown,
			updated_at = now()`

	tag, err := r.db.Exec(ctx, query, fromSlug, toSlug, explanationMarkdown)
	if err != nil {
		return r.handlePostgresError("upsert alternative", err)
	}
	if tag.RowsAffected() == 0 {
		return sunset.ErrEndpointNotFound
	}

	return nil
}
