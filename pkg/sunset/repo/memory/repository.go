// Package memory provides an in-memory sunset.Repository, used by tests and
// development servers. All methods copy on the way in and out so callers can
// never mutate stored state.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/endpoint-sunset/pkg/sunset"
)

// Repository implements sunset.Repository using in-memory storage
type Repository struct {
	mu            sync.RWMutex
	endpoints     map[string]*sunset.Endpoint               // slug -> endpoint
	slugsByID     map[uuid.UUID]string                      // endpoint_id -> slug
	params        map[uuid.UUID][]*sunset.EndpointParam     // endpoint_id -> params
	alternatives  map[uuid.UUID]map[uuid.UUID]*sunset.EndpointAlternative // old_id -> new_id -> edge
	usage         []*sunset.UsageRecord
}

// New creates a new in-memory repository
func New() sunset.Repository {
	return &Repository{
		endpoints:    make(map[string]*sunset.Endpoint),
		slugsByID:    make(map[uuid.UUID]string),
		params:       make(map[uuid.UUID][]*sunset.EndpointParam),
		alternatives: make(map[uuid.UUID]map[uuid.UUID]*sunset.EndpointAlternative),
	}
}

// Endpoint record operations

func (r *Repository) GetEndpointBySlug(ctx context.Context, slug string) (*sunset.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoint, exists := r.endpoints[slug]
	if !exists {
		return nil, sunset.ErrEndpointNotFound
	}

	endpointCopy := *endpoint
	return &endpointCopy, nil
}

func (r *Repository) UpsertEndpoint(ctx context.Context, endpoint *sunset.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	endpointCopy := *endpoint
	if existing, exists := r.endpoints[endpoint.Slug]; exists {
		// The identifier and creation time survive replacement.
		endpointCopy.ID = existing.ID
		endpointCopy.CreatedAt = existing.CreatedAt
	}
	r.endpoints[endpointCopy.Slug] = &endpointCopy
	r.slugsByID[endpointCopy.ID] = endpointCopy.Slug

	return nil
}

func (r *Repository) BackfillSunset(ctx context.Context, slug string, sunsetsOn time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	endpoint, exists := r.endpoints[slug]
	if !exists {
		return time.Time{}, sunset.ErrEndpointNotFound
	}

	// Set-if-still-null under the lock: first writer wins, later callers
	// observe the already-assigned value.
	if endpoint.SunsetsOn == nil {
		assigned := sunsetsOn
		endpoint.SunsetsOn = &assigned
	}

	return *endpoint.SunsetsOn, nil
}

// Usage operations

func (r *Repository) CreateUsageRecord(ctx context.Context, record *sunset.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recordCopy := *record
	r.usage = append(r.usage, &recordCopy)

	return nil
}

func (r *Repository) CountRecentErrors(ctx context.Context, ip, userAgent string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.usage {
		if rec.ResponseType != sunset.ResponseTypeError {
			continue
		}
		if rec.IPAddress == nil || rec.UserAgent == nil {
			continue
		}
		if *rec.IPAddress != ip || *rec.UserAgent != userAgent {
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		count++
	}

	return count, nil
}

func (r *Repository) ListMonthlyUsage(ctx context.Context, endpointID uuid.UUID, month time.Time) ([]sunset.MonthlyUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	monthStart := truncateToMonth(month)
	counts := make(map[sunset.ResponseType]int64)
	for _, rec := range r.usage {
		if rec.EndpointID != endpointID {
			continue
		}
		if !truncateToMonth(rec.CreatedAt).Equal(monthStart) {
			continue
		}
		counts[rec.ResponseType]++
	}

	result := make([]sunset.MonthlyUsage, 0, len(counts))
	for _, responseType := range []sunset.ResponseType{sunset.ResponseTypeError, sunset.ResponseTypePassthrough} {
		if n, ok := counts[responseType]; ok {
			result = append(result, sunset.MonthlyUsage{
				EndpointID:   endpointID,
				Month:        monthStart,
				ResponseType: responseType,
				Count:        n,
			})
		}
	}

	return result, nil
}

func truncateToMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Catalog operations

func (r *Repository) ListEndpointSlugs(ctx context.Context, req sunset.ListEndpointSlugsRequest) (*sunset.EndpointSlugPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs := make([]string, 0, len(r.endpoints))
	for slug := range r.endpoints {
		if req.BeforeSlug != "" && slug >= req.BeforeSlug {
			continue
		}
		if req.AfterSlug != "" && slug <= req.AfterSlug {
			continue
		}
		slugs = append(slugs, slug)
	}

	sort.Strings(slugs)
	if req.Order == sunset.SlugOrderDesc {
		for i, j := 0, len(slugs)-1; i < j; i, j = i+1, j-1 {
			slugs[i], slugs[j] = slugs[j], slugs[i]
		}
	}

	// One row of look-ahead tells us whether another page exists without
	// returning the extra row.
	hasMore := len(slugs) > req.Limit
	if hasMore {
		slugs = slugs[:req.Limit]
	}

	return &sunset.EndpointSlugPage{Slugs: slugs, HasMore: hasMore}, nil
}

func (r *Repository) SuggestEndpointSlugs(ctx context.Context, query string, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(query)
	matches := make([]string, 0, limit)
	slugs := make([]string, 0, len(r.endpoints))
	for slug := range r.endpoints {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		if !strings.Contains(strings.ToLower(slug), needle) {
			continue
		}
		matches = append(matches, slug)
		if len(matches) >= limit {
			break
		}
	}

	return matches, nil
}

func (r *Repository) GetEndpointParams(ctx context.Context, endpointID uuid.UUID) ([]*sunset.EndpointParam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	params := r.params[endpointID]
	result := make([]*sunset.EndpointParam, 0, len(params))
	for _, param := range params {
		paramCopy := *param
		result = append(result, &paramCopy)
	}

	return result, nil
}

func (r *Repository) GetEndpointParam(ctx context.Context, slug string, location sunset.ParamLocation, path, name string) (*sunset.EndpointParam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoint, exists := r.endpoints[slug]
	if !exists {
		return nil, sunset.ErrEndpointNotFound
	}

	for _, param := range r.params[endpoint.ID] {
		if param.Location == location && param.Path == path && param.Name == name {
			paramCopy := *param
			return &paramCopy, nil
		}
	}

	return nil, sunset.ErrParamNotFound
}

func (r *Repository) UpsertEndpointParam(ctx context.Context, slug string, param *sunset.EndpointParam) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	endpoint, exists := r.endpoints[slug]
	if !exists {
		return sunset.ErrEndpointNotFound
	}

	paramCopy := *param
	paramCopy.EndpointID = endpoint.ID

	existing := r.params[endpoint.ID]
	for i, p := range existing {
		if p.Location == paramCopy.Location && p.Path == paramCopy.Path && p.Name == paramCopy.Name {
			paramCopy.AddedDate = p.AddedDate
			existing[i] = &paramCopy
			return nil
		}
	}
	r.params[endpoint.ID] = append(existing, &paramCopy)

	return nil
}

func (r *Repository) ListAlternativeSlugs(ctx context.Context, oldEndpointID uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.alternatives[oldEndpointID]))
	for newID := range r.alternatives[oldEndpointID] {
		if slug, ok := r.slugsByID[newID]; ok {
			result = append(result, slug)
		}
	}
	sort.Strings(result)

	return result, nil
}

func (r *Repository) GetAlternative(ctx context.Context, fromSlug, toSlug string) (*sunset.EndpointAlternative, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, exists := r.endpoints[fromSlug]
	if !exists {
		return nil, sunset.ErrEndpointNotFound
	}
	to, exists := r.endpoints[toSlug]
	if !exists {
		return nil, sunset.ErrEndpointNotFound
	}

	alternative, exists := r.alternatives[from.ID][to.ID]
	if !exists {
		return nil, sunset.ErrAlternativeNotFound
	}

	alternativeCopy := *alternative
	return &alternativeCopy, nil
}

func (r *Repository) UpsertAlternative(ctx context.Context, fromSlug, toSlug, explanationMarkdown string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, exists := r.endpoints[fromSlug]
	if !exists {
		return sunset.ErrEndpointNotFound
	}
	to, exists := r.endpoints[toSlug]
	if !exists {
		return sunset.ErrEndpointNotFound
	}

	now := time.Now().UTC()
	if existing, ok := r.alternatives[from.ID][to.ID]; ok {
		existing.ExplanationMarkdown = explanationMarkdown
		existing.UpdatedAt = now
		return nil
	}

	if r.alternatives[from.ID] == nil {
		r.alternatives[from.ID] = make(map[uuid.UUID]*sunset.EndpointAlternative)
	}
	r.alternatives[from.ID][to.ID] = &sunset.EndpointAlternative{
		OldEndpointID:       from.ID,
		NewEndpointID:       to.ID,
		ExplanationMarkdown: explanationMarkdown,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	return nil
}
