package sunset

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for endpoint and usage persistence.
type Repository interface {
	// Endpoint record operations
	GetEndpointBySlug(ctx context.Context, slug string) (*Endpoint, error)
	UpsertEndpoint(ctx context.Context, endpoint *Endpoint) error

	// BackfillSunset assigns sunsetsOn to the endpoint only if its
	// sunsets_on is still null, and returns the authoritative value either
	// way. First writer wins under concurrency; implementations must make
	// the set-if-null atomic rather than read-then-write.
	BackfillSunset(ctx context.Context, slug string, sunsetsOn time.Time) (time.Time, error)

	// Usage operations
	CreateUsageRecord(ctx context.Context, record *UsageRecord) error

	// CountRecentErrors counts committed error responses for the anonymous
	// (ip, userAgent) identity created at or after since.
	CountRecentErrors(ctx context.Context, ip, userAgent string, since time.Time) (int, error)

	// ListMonthlyUsage aggregates an endpoint's usage records for the UTC
	// calendar month containing month.
	ListMonthlyUsage(ctx context.Context, endpointID uuid.UUID, month time.Time) ([]MonthlyUsage, error)

	// Catalog operations
	ListEndpointSlugs(ctx context.Context, req ListEndpointSlugsRequest) (*EndpointSlugPage, error)
	SuggestEndpointSlugs(ctx context.Context, query string, limit int) ([]string, error)
	GetEndpointParams(ctx context.Context, endpointID uuid.UUID) ([]*EndpointParam, error)
	GetEndpointParam(ctx context.Context, slug string, location ParamLocation, path, name string) (*EndpointParam, error)
	UpsertEndpointParam(ctx context.Context, slug string, param *EndpointParam) error
	ListAlternativeSlugs(ctx context.Context, oldEndpointID uuid.UUID) ([]string, error)
	GetAlternative(ctx context.Context, fromSlug, toSlug string) (*EndpointAlternative, error)
	UpsertAlternative(ctx context.Context, fromSlug, toSlug, explanationMarkdown string) error
}
