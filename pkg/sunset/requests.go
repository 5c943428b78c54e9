package sunset

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// EvaluateRequest carries everything the evaluator needs about one inbound
// call to a legacy endpoint. The caller resolves authentication before
// invoking the evaluator; this package never parses credentials.
type EvaluateRequest struct {
	// Slug is the stable internal name for the legacy endpoint.
	Slug string

	// Method is the HTTP method of the inbound request.
	Method string

	// URL is the full request URL including query string and fragment. It
	// is used to detect the suppression flag and to reconstruct the
	// suppression-hint URL. A malformed URL is treated as having no query
	// string (fail-open).
	URL string

	// UserID identifies the authenticated caller, nil when anonymous.
	UserID *uuid.UUID

	// IPAddress and UserAgent identify an anonymous caller for abuse
	// accounting. Ignored when UserID is set.
	IPAddress string
	UserAgent string
}

// parsedURL returns the request URL, falling back to an empty URL when the
// raw value does not parse.
func (r EvaluateRequest) parsedURL() *url.URL {
	u, err := url.Parse(r.URL)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// SuppressRequested reports whether a URL carries the canonical suppression
// flag: a query parameter literally named deprecated with value true. Any
// other spelling or value counts as absent.
func SuppressRequested(u *url.URL) bool {
	return u.Query().Get("deprecated") == "true"
}

// ListEndpointSlugsRequest is the paging window for the slug index.
// BeforeSlug and AfterSlug bound the results alphabetically when non-empty.
type ListEndpointSlugsRequest struct {
	BeforeSlug string
	AfterSlug  string
	Order      SlugOrder
	Limit      int
}

// PutEndpointRequest creates or replaces an endpoint's catalog entry.
// The deprecation schedule itself is an administrative decision; this core
// only stores what it is told.
type PutEndpointRequest struct {
	Slug                      string
	Path                      string
	DescriptionMarkdown       string
	DeprecationReasonMarkdown string
	DeprecatedOn              *time.Time
	SunsetsOn                 *time.Time
}

// PutEndpointParamRequest creates or replaces one documented parameter.
type PutEndpointParamRequest struct {
	Slug                string
	Location            ParamLocation
	Path                string
	Name                string
	VarType             string
	DescriptionMarkdown string
}

// PutEndpointAlternativeRequest creates or replaces the migration
// explanation from one endpoint to another.
type PutEndpointAlternativeRequest struct {
	FromSlug            string
	ToSlug              string
	ExplanationMarkdown string
}
