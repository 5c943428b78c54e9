package sunset

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service defines the main interface for the endpoint-sunset library
type Service interface {
	// Evaluate decides the fate of one call to a legacy endpoint. A nil
	// verdict means the caller should proceed with the endpoint's normal
	// handling; a non-nil verdict is a full response override and the
	// endpoint's normal body must not run. Evaluate never fails the
	// request: store errors degrade to pass-through (metadata reads) or
	// are logged without changing an already-decided verdict (usage
	// writes).
	Evaluate(ctx context.Context, req EvaluateRequest) (*Verdict, error)

	// Catalog operations
	GetEndpoint(ctx context.Context, slug string) (*EndpointDoc, error)
	ListEndpointSlugs(ctx context.Context, req ListEndpointSlugsRequest) (*EndpointSlugPage, error)
	SuggestEndpointSlugs(ctx context.Context, query string, limit int) ([]string, error)
	GetEndpointParam(ctx context.Context, slug string, location ParamLocation, path, name string) (*EndpointParam, error)
	GetEndpointAlternative(ctx context.Context, fromSlug, toSlug string) (*EndpointAlternative, error)
	PutEndpoint(ctx context.Context, req PutEndpointRequest) error
	PutEndpointParam(ctx context.Context, req PutEndpointParamRequest) error
	PutEndpointAlternative(ctx context.Context, req PutEndpointAlternativeRequest) error

	// Digest support
	ListMonthlyUsage(ctx context.Context, endpointID uuid.UUID, month time.Time) ([]MonthlyUsage, error)
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithPolicy overrides the compiled-in schedule constants. An invalid
// policy does not fail construction; it fails closed at evaluation time
// (every call passes through as if not deprecated).
func WithPolicy(policy Policy) Option {
	return func(s *service) {
		s.policy = policy
	}
}

// WithLogger sets the structured logger used for operational warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the evaluation clock, for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}
