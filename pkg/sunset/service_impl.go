package sunset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	policy     Policy
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		policy: DefaultPolicy(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	return s, nil
}

// Evaluate runs the full decision for one call: read the deprecation record,
// repair a missing sunset date, classify the phase, apply suppression and
// the anonymous monthly allowance, commit the usage record, and compose the
// verdict. Everything is recomputed from durable facts on every call.
func (s *service) Evaluate(ctx context.Context, req EvaluateRequest) (*Verdict, error) {
	if err := s.policy.Validate(); err != nil {
		// Fail closed: a broken policy must never take down a healthy
		// legacy endpoint.
		s.logger.Warn("deprecation policy invalid, passing all legacy calls through", "err", err)
		return nil, nil
	}

	endpoint, err := s.repository.GetEndpointBySlug(ctx, req.Slug)
	if err != nil {
		if !errors.Is(err, ErrEndpointNotFound) {
			s.logger.Error("failed reading deprecation record, passing call through",
				"slug", req.Slug, "err", err)
		}
		return nil, nil
	}

	if endpoint.DeprecatedOn == nil {
		return nil, nil
	}

	now := s.now()

	sunsetsOn := endpoint.SunsetsOn
	if sunsetsOn == nil {
		s.logger.Warn("endpoint is deprecated but has no sunset date set; "+
			"assigning the maximum sunsetting window",
			"slug", req.Slug, "months", s.policy.BackfillMonths)
		assigned, err := s.repository.BackfillSunset(ctx, req.Slug,
			dateOnly(now.AddDate(0, s.policy.BackfillMonths, 0)))
		if err != nil {
			s.logger.Error("sunset backfill failed, passing call through",
				"slug", req.Slug, "err", err)
			return nil, nil
		}
		sunsetsOn = &assigned
	}

	sunsetInstant := s.policy.SunsetInstant(*sunsetsOn)
	phase := s.policy.Classify(now, endpoint.DeprecatedOn, sunsetInstant)
	reqURL := req.parsedURL()

	switch phase {
	case PhaseNotDeprecated, PhasePending:
		return nil, nil

	case PhaseRetired:
		// Final and publicly cacheable, so no recording either.
		return retiredVerdict(req.Method), nil

	case PhasePostSunsetGrace:
		verdict := graceVerdict(req.Method, *endpoint.DeprecatedOn, *sunsetsOn, reqURL, req.Slug)
		s.record(ctx, endpoint.ID, req, ResponseTypeError)
		return verdict, nil
	}

	// Strictly before the sunset instant the caller may suppress all
	// behavior, including recording.
	if SuppressRequested(reqURL) {
		return nil, nil
	}

	if phase == PhaseFinalWarn {
		verdict := finalWarnVerdict(*endpoint.DeprecatedOn, *sunsetsOn, reqURL, req.Slug)
		s.record(ctx, endpoint.ID, req, ResponseTypeError)
		return verdict, nil
	}

	// PhaseEarlyWarn. Authenticated callers are warned out-of-band via the
	// monthly digest; their calls pass through silently but recorded.
	if req.UserID != nil {
		s.record(ctx, endpoint.ID, req, ResponseTypePassthrough)
		return nil, nil
	}

	errorsThisMonth, err := s.repository.CountRecentErrors(ctx, req.IPAddress, req.UserAgent, monthStartUTC(now))
	if err != nil {
		s.logger.Error("abuse counter query failed, treating allowance as exhausted",
			"slug", req.Slug, "err", err)
		errorsThisMonth = s.policy.MonthlyErrorAllowance
	}

	if errorsThisMonth < s.policy.MonthlyErrorAllowance {
		verdict := earlyWarnVerdict(*endpoint.DeprecatedOn, *sunsetsOn, reqURL, req.Slug,
			s.policy.MonthlyErrorAllowance)
		s.record(ctx, endpoint.ID, req, ResponseTypeError)
		return verdict, nil
	}

	// Allowance exhausted: stop punishing until the next phase boundary.
	s.record(ctx, endpoint.ID, req, ResponseTypePassthrough)
	return nil, nil
}

// record commits one usage row for a terminal outcome before the verdict is
// returned, keeping the abuse counter consistent with what callers actually
// observed. A write failure never changes the verdict; it is logged.
func (s *service) record(ctx context.Context, endpointID uuid.UUID, req EvaluateRequest, responseType ResponseType) {
	rec := &UsageRecord{
		ID:           uuid.New(),
		EndpointID:   endpointID,
		ResponseType: responseType,
		CreatedAt:    s.now(),
	}
	if req.UserID != nil {
		userID := *req.UserID
		rec.UserID = &userID
	} else {
		ip, userAgent := req.IPAddress, req.UserAgent
		rec.IPAddress = &ip
		rec.UserAgent = &userAgent
	}

	if err := s.repository.CreateUsageRecord(ctx, rec); err != nil {
		s.logger.Error("failed committing usage record, verdict unchanged",
			"slug", req.Slug, "endpoint_id", endpointID, "response_type", responseType, "err", err)
	}
}

// dateOnly truncates an instant to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Catalog operations

func (s *service) GetEndpoint(ctx context.Context, slug string) (*EndpointDoc, error) {
	endpoint, err := s.repository.GetEndpointBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	params, err := s.repository.GetEndpointParams(ctx, endpoint.ID)
	if err != nil {
		return nil, &EndpointError{Slug: slug, Op: "get_params", Err: err}
	}

	alternatives, err := s.repository.ListAlternativeSlugs(ctx, endpoint.ID)
	if err != nil {
		return nil, &EndpointError{Slug: slug, Op: "list_alternatives", Err: err}
	}

	return &EndpointDoc{Endpoint: *endpoint, Params: params, Alternatives: alternatives}, nil
}

func (s *service) ListEndpointSlugs(ctx context.Context, req ListEndpointSlugsRequest) (*EndpointSlugPage, error) {
	if req.Order == "" {
		req.Order = SlugOrderAsc
	}
	if req.Order != SlugOrderAsc && req.Order != SlugOrderDesc {
		return nil, ErrInvalidSlugOrder
	}
	if req.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.repository.ListEndpointSlugs(ctx, req)
}

func (s *service) SuggestEndpointSlugs(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.repository.SuggestEndpointSlugs(ctx, query, limit)
}

func (s *service) GetEndpointParam(ctx context.Context, slug string, location ParamLocation, path, name string) (*EndpointParam, error) {
	return s.repository.GetEndpointParam(ctx, slug, location, path, name)
}

func (s *service) GetEndpointAlternative(ctx context.Context, fromSlug, toSlug string) (*EndpointAlternative, error) {
	return s.repository.GetAlternative(ctx, fromSlug, toSlug)
}

func (s *service) PutEndpoint(ctx context.Context, req PutEndpointRequest) error {
	if req.Slug == "" {
		return &EndpointError{Slug: req.Slug, Op: "put_endpoint", Err: fmt.Errorf("slug is required")}
	}
	if req.SunsetsOn != nil && req.DeprecatedOn == nil {
		return &EndpointError{Slug: req.Slug, Op: "put_endpoint", Err: ErrNotDeprecated}
	}

	now := s.now()
	endpoint := &Endpoint{
		ID:                        uuid.New(),
		Slug:                      req.Slug,
		Path:                      req.Path,
		DescriptionMarkdown:       req.DescriptionMarkdown,
		DeprecationReasonMarkdown: req.DeprecationReasonMarkdown,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if req.DeprecatedOn != nil {
		d := dateOnly(*req.DeprecatedOn)
		endpoint.DeprecatedOn = &d
	}
	if req.SunsetsOn != nil {
		d := dateOnly(*req.SunsetsOn)
		endpoint.SunsetsOn = &d
	}

	return s.repository.UpsertEndpoint(ctx, endpoint)
}

func (s *service) PutEndpointParam(ctx context.Context, req PutEndpointParamRequest) error {
	switch req.Location {
	case ParamLocationQuery, ParamLocationHeader, ParamLocationBody:
	default:
		return &EndpointError{Slug: req.Slug, Op: "put_param", Err: ErrInvalidParamLocation}
	}
	if req.Name == "" {
		return &EndpointError{Slug: req.Slug, Op: "put_param", Err: fmt.Errorf("name is required")}
	}

	param := &EndpointParam{
		Location:            req.Location,
		Path:                req.Path,
		Name:                req.Name,
		VarType:             req.VarType,
		DescriptionMarkdown: req.DescriptionMarkdown,
		AddedDate:           dateOnly(s.now()),
	}
	return s.repository.UpsertEndpointParam(ctx, req.Slug, param)
}

func (s *service) PutEndpointAlternative(ctx context.Context, req PutEndpointAlternativeRequest) error {
	if req.FromSlug == req.ToSlug {
		return &EndpointError{Slug: req.FromSlug, Op: "put_alternative",
			Err: fmt.Errorf("an endpoint cannot be its own alternative")}
	}
	return s.repository.UpsertAlternative(ctx, req.FromSlug, req.ToSlug, req.ExplanationMarkdown)
}

func (s *service) ListMonthlyUsage(ctx context.Context, endpointID uuid.UUID, month time.Time) ([]MonthlyUsage, error) {
	return s.repository.ListMonthlyUsage(ctx, endpointID, month)
}
