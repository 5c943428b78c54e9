package sunset

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the position of "now" within an endpoint's deprecation schedule.
// Phases are totally ordered: for a fixed schedule, a later clock never
// yields an earlier phase.
type Phase int

const (
	PhaseNotDeprecated Phase = iota
	PhasePending
	PhaseEarlyWarn
	PhaseFinalWarn
	PhasePostSunsetGrace
	PhaseRetired
)

func (p Phase) String() string {
	switch p {
	case PhaseNotDeprecated:
		return "not_deprecated"
	case PhasePending:
		return "pending"
	case PhaseEarlyWarn:
		return "early_warn"
	case PhaseFinalWarn:
		return "final_warn"
	case PhasePostSunsetGrace:
		return "post_sunset_grace"
	case PhaseRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// ResponseType is the domain type for recorded evaluation outcomes.
type ResponseType string

// Response type constants (typed).
const (
	ResponseTypeError       ResponseType = "error"
	ResponseTypePassthrough ResponseType = "passthrough"
)

// ParamLocation is where a documented endpoint parameter is passed.
type ParamLocation string

// Param location constants (typed).
const (
	ParamLocationQuery  ParamLocation = "query"
	ParamLocationHeader ParamLocation = "header"
	ParamLocationBody   ParamLocation = "body"
)

// SlugOrder dictates the direction of slug-ordered catalog pagination.
type SlugOrder string

const (
	SlugOrderAsc  SlugOrder = "asc"
	SlugOrderDesc SlugOrder = "desc"
)

// Endpoint is the per-endpoint deprecation record plus its human-maintained
// documentation. DeprecatedOn and SunsetsOn carry date precision; SunsetsOn
// is non-nil only when DeprecatedOn is non-nil (a record violating that is
// repaired by the sunset backfill).
type Endpoint struct {
	ID                        uuid.UUID  `json:"id"`
	Slug                      string     `json:"slug"`
	Path                      string     `json:"path"`
	DescriptionMarkdown       string     `json:"description_markdown"`
	DeprecationReasonMarkdown string     `json:"deprecation_reason_markdown,omitempty"`
	DeprecatedOn              *time.Time `json:"deprecated_on,omitempty"`
	SunsetsOn                 *time.Time `json:"sunsets_on,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// EndpointParam documents one parameter of an endpoint. Path is the
// dot-separated route to the enclosing object for body parameters and blank
// for query and header parameters.
type EndpointParam struct {
	EndpointID          uuid.UUID     `json:"endpoint_id"`
	Location            ParamLocation `json:"location"`
	Path                string        `json:"path"`
	Name                string        `json:"name"`
	VarType             string        `json:"var_type"`
	DescriptionMarkdown string        `json:"description_markdown,omitempty"`
	AddedDate           time.Time     `json:"added_date"`
}

// EndpointAlternative is a directed migration edge between two endpoints,
// explaining how to move off the old one onto the new one.
type EndpointAlternative struct {
	OldEndpointID       uuid.UUID `json:"old_endpoint_id"`
	NewEndpointID       uuid.UUID `json:"new_endpoint_id"`
	ExplanationMarkdown string    `json:"explanation_markdown"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UsageRecord is one committed evaluation outcome, written exactly once per
// request that reached a terminal verdict. Exactly one of UserID or the
// (IPAddress, UserAgent) pair is set. Records are immutable and accumulate
// without deletion; monthly aggregation truncates CreatedAt to the UTC
// calendar month.
type UsageRecord struct {
	ID           uuid.UUID    `json:"id"`
	EndpointID   uuid.UUID    `json:"endpoint_id"`
	UserID       *uuid.UUID   `json:"user_id,omitempty"`
	IPAddress    *string      `json:"ip_address,omitempty"`
	UserAgent    *string      `json:"user_agent,omitempty"`
	ResponseType ResponseType `json:"response_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

// MonthlyUsage is an aggregate of usage records for one endpoint within one
// UTC calendar month, the raw material for the out-of-band monthly digest.
type MonthlyUsage struct {
	EndpointID   uuid.UUID    `json:"endpoint_id"`
	Month        time.Time    `json:"month"`
	ResponseType ResponseType `json:"response_type"`
	Count        int64        `json:"count"`
}

// EndpointDoc is the full catalog view of an endpoint: the record itself,
// its documented parameters, and the slugs of its official alternatives.
type EndpointDoc struct {
	Endpoint
	Params       []*EndpointParam `json:"params"`
	Alternatives []string         `json:"alternatives"`
}

// EndpointSlugPage is one page of slug-ordered catalog results.
type EndpointSlugPage struct {
	Slugs   []string `json:"slugs"`
	HasMore bool     `json:"has_more"`
}
