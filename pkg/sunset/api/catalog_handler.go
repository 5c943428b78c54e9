package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/endpoint-sunset/pkg/sunset"
)

// catalogCacheControl is sent with catalog show responses. The catalog
// changes rarely and is aggressively cached; the front-end busts the cache
// explicitly when needed.
const catalogCacheControl = "public, max-age=86400, stale-while-revalidate=86400, stale-if-error=604800"

const isoDate = "2006-01-02"

// CatalogHandler serves the endpoint documentation catalog: what endpoints
// exist, their parameters, their deprecation schedules, and the official
// migration paths between them.
type CatalogHandler struct {
	service sunset.Service
}

func NewCatalogHandler(service sunset.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Routes returns the router for catalog endpoints
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Get("/suggest", h.Suggest)
	r.Get("/migrate/{from_slug}/{to_slug}", h.ShowAlternative)
	r.Put("/migrate/{from_slug}/{to_slug}", h.PutAlternative)
	r.Get("/{slug}", h.Show)
	r.Put("/{slug}", h.Put)
	r.Get("/{slug}/params/{location}", h.ShowParam)
	r.Put("/{slug}/params/{location}", h.PutParam)
	return r
}

// validationError mirrors the body shape clients already parse for
// unprocessable requests.
type validationError struct {
	Detail validationDetail `json:"detail"`
}

type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func renderValidationError(w http.ResponseWriter, r *http.Request, loc, msg, errType string) {
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, validationError{Detail: validationDetail{
		Loc:  []string{loc},
		Msg:  msg,
		Type: errType,
	}})
}

// IndexResponse is one page of endpoint slugs.
type IndexResponse struct {
	Endpoints []string `json:"endpoints"`
	HasMore   bool     `json:"has_more"`
}

// Index lists endpoint slugs in a paginated manner, alphabetically in the
// requested direction.
func (h *CatalogHandler) Index(w http.ResponseWriter, r *http.Request) {
	order := r.URL.Query().Get("order")
	if order == "" {
		order = string(sunset.SlugOrderAsc)
	}
	if order != string(sunset.SlugOrderAsc) && order != string(sunset.SlugOrderDesc) {
		renderValidationError(w, r, "order", "Must be one of 'asc', 'desc'", "value_error")
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			renderValidationError(w, r, "limit", "Must be positive", "range_error")
			return
		}
		limit = n
	}

	page, err := h.service.ListEndpointSlugs(r.Context(), sunset.ListEndpointSlugsRequest{
		BeforeSlug: r.URL.Query().Get("before_slug"),
		AfterSlug:  r.URL.Query().Get("after_slug"),
		Order:      sunset.SlugOrder(order),
		Limit:      limit,
	})
	if err != nil {
		slog.Error("Failed to list endpoint slugs", "error", err)
		http.Error(w, "failed to list endpoints", http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, IndexResponse{Endpoints: page.Slugs, HasMore: page.HasMore})
}

// SuggestResponse carries slug suggestions for a partial query.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Suggest returns endpoint slugs matching a case-insensitive substring.
func (h *CatalogHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	limit := 3
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			renderValidationError(w, r, "limit", "Must be positive", "range_error")
			return
		}
		limit = n
	}

	suggestions, err := h.service.SuggestEndpointSlugs(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		slog.Error("Failed to suggest endpoint slugs", "error", err)
		http.Error(w, "failed to suggest endpoints", http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, SuggestResponse{Suggestions: suggestions})
}

// ParamResponse documents one endpoint parameter.
type ParamResponse struct {
	Location            string   `json:"location"`
	Path                []string `json:"path"`
	Name                string   `json:"name"`
	VarType             string   `json:"var_type"`
	DescriptionMarkdown string   `json:"description_markdown,omitempty"`
	AddedDate           string   `json:"added_date"`
}

func paramResponse(param *sunset.EndpointParam) ParamResponse {
	return ParamResponse{
		Location:            string(param.Location),
		Path:                strings.Split(param.Path, "."),
		Name:                param.Name,
		VarType:             param.VarType,
		DescriptionMarkdown: param.DescriptionMarkdown,
		AddedDate:           param.AddedDate.Format(isoDate),
	}
}

// ShowResponse is the full catalog entry for one endpoint.
type ShowResponse struct {
	Slug                      string          `json:"slug"`
	Path                      string          `json:"path"`
	DescriptionMarkdown       string          `json:"description_markdown"`
	Params                    []ParamResponse `json:"params"`
	Alternatives              []string        `json:"alternatives"`
	DeprecationReasonMarkdown string          `json:"deprecation_reason_markdown,omitempty"`
	DeprecatedOn              *string         `json:"deprecated_on"`
	SunsetsOn                 *string         `json:"sunsets_on"`
	CreatedAt                 int64           `json:"created_at"`
	UpdatedAt                 int64           `json:"updated_at"`
}

// Show fetches the catalog entry for one slug, aggressively cached.
func (h *CatalogHandler) Show(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	doc, err := h.service.GetEndpoint(r.Context(), slug)
	if err != nil {
		if errors.Is(err, sunset.ErrEndpointNotFound) {
			http.Error(w, "endpoint not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get endpoint", "slug", slug, "error", err)
		http.Error(w, "failed to get endpoint", http.StatusInternalServerError)
		return
	}

	resp := ShowResponse{
		Slug:                      doc.Slug,
		Path:                      doc.Path,
		DescriptionMarkdown:       doc.DescriptionMarkdown,
		Params:                    make([]ParamResponse, 0, len(doc.Params)),
		Alternatives:              doc.Alternatives,
		DeprecationReasonMarkdown: doc.DeprecationReasonMarkdown,
		CreatedAt:                 doc.CreatedAt.Unix(),
		UpdatedAt:                 doc.UpdatedAt.Unix(),
	}
	for _, param := range doc.Params {
		resp.Params = append(resp.Params, paramResponse(param))
	}
	if doc.DeprecatedOn != nil {
		formatted := doc.DeprecatedOn.Format(isoDate)
		resp.DeprecatedOn = &formatted
	}
	if doc.SunsetsOn != nil {
		formatted := doc.SunsetsOn.Format(isoDate)
		resp.SunsetsOn = &formatted
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	render.JSON(w, r, resp)
}

// ShowParam fetches one documented parameter, identified by its location,
// dotted path, and name.
func (h *CatalogHandler) ShowParam(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	location := sunset.ParamLocation(chi.URLParam(r, "location"))
	path := r.URL.Query().Get("path")
	name := r.URL.Query().Get("name")

	param, err := h.service.GetEndpointParam(r.Context(), slug, location, path, name)
	if err != nil {
		if errors.Is(err, sunset.ErrEndpointNotFound) || errors.Is(err, sunset.ErrParamNotFound) {
			http.Error(w, "endpoint parameter not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get endpoint param", "slug", slug, "error", err)
		http.Error(w, "failed to get endpoint parameter", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	render.JSON(w, r, paramResponse(param))
}

// AlternativeResponse explains how to migrate between two endpoints.
type AlternativeResponse struct {
	ExplanationMarkdown string `json:"explanation_markdown"`
	CreatedAt           int64  `json:"created_at"`
	UpdatedAt           int64  `json:"updated_at"`
}

// ShowAlternative provides the official migration explanation from one
// endpoint to another.
func (h *CatalogHandler) ShowAlternative(w http.ResponseWriter, r *http.Request) {
	fromSlug := chi.URLParam(r, "from_slug")
	toSlug := chi.URLParam(r, "to_slug")

	alternative, err := h.service.GetEndpointAlternative(r.Context(), fromSlug, toSlug)
	if err != nil {
		if errors.Is(err, sunset.ErrEndpointNotFound) || errors.Is(err, sunset.ErrAlternativeNotFound) {
			http.Error(w, "no migration path between those endpoints", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get alternative", "from", fromSlug, "to", toSlug, "error", err)
		http.Error(w, "failed to get alternative", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	render.JSON(w, r, AlternativeResponse{
		ExplanationMarkdown: alternative.ExplanationMarkdown,
		CreatedAt:           alternative.CreatedAt.Unix(),
		UpdatedAt:           alternative.UpdatedAt.Unix(),
	})
}

// PutRequest creates or replaces an endpoint's catalog entry. Dates use
// ISO-8601 calendar dates.
type PutRequest struct {
	Path                      string  `json:"path"`
	DescriptionMarkdown       string  `json:"description_markdown"`
	DeprecationReasonMarkdown string  `json:"deprecation_reason_markdown,omitempty"`
	DeprecatedOn              *string `json:"deprecated_on,omitempty"`
	SunsetsOn                 *string `json:"sunsets_on,omitempty"`
}

// Put creates or replaces the catalog entry for one slug.
func (h *CatalogHandler) Put(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deprecatedOn, ok := parseOptionalDate(req.DeprecatedOn)
	if !ok {
		renderValidationError(w, r, "deprecated_on", "Must be an ISO-8601 date", "value_error")
		return
	}
	sunsetsOn, ok := parseOptionalDate(req.SunsetsOn)
	if !ok {
		renderValidationError(w, r, "sunsets_on", "Must be an ISO-8601 date", "value_error")
		return
	}
	if sunsetsOn != nil && deprecatedOn == nil {
		renderValidationError(w, r, "sunsets_on", "Requires deprecated_on", "value_error")
		return
	}

	err := h.service.PutEndpoint(r.Context(), sunset.PutEndpointRequest{
		Slug:                      slug,
		Path:                      req.Path,
		DescriptionMarkdown:       req.DescriptionMarkdown,
		DeprecationReasonMarkdown: req.DeprecationReasonMarkdown,
		DeprecatedOn:              deprecatedOn,
		SunsetsOn:                 sunsetsOn,
	})
	if err != nil {
		slog.Error("Failed to put endpoint", "slug", slug, "error", err)
		http.Error(w, "failed to store endpoint", http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"slug": slug})
}

// PutParamRequest creates or replaces one documented parameter.
type PutParamRequest struct {
	Path                string `json:"path"`
	Name                string `json:"name"`
	VarType             string `json:"var_type"`
	DescriptionMarkdown string `json:"description_markdown,omitempty"`
}

// PutParam creates or replaces one documented parameter on an endpoint.
func (h *CatalogHandler) PutParam(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	location := sunset.ParamLocation(chi.URLParam(r, "location"))

	var req PutParamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.PutEndpointParam(r.Context(), sunset.PutEndpointParamRequest{
		Slug:                slug,
		Location:            location,
		Path:                req.Path,
		Name:                req.Name,
		VarType:             req.VarType,
		DescriptionMarkdown: req.DescriptionMarkdown,
	})
	if err != nil {
		switch {
		case errors.Is(err, sunset.ErrEndpointNotFound):
			http.Error(w, "endpoint not found", http.StatusNotFound)
		case errors.Is(err, sunset.ErrInvalidParamLocation):
			renderValidationError(w, r, "location", "Must be one of 'query', 'header', 'body'", "value_error")
		default:
			slog.Error("Failed to put endpoint param", "slug", slug, "error", err)
			http.Error(w, "failed to store endpoint parameter", http.StatusInternalServerError)
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"slug": slug, "name": req.Name})
}

// PutAlternativeRequest creates or replaces a migration explanation.
type PutAlternativeRequest struct {
	ExplanationMarkdown string `json:"explanation_markdown"`
}

// PutAlternative creates or replaces the migration explanation between two
// endpoints.
func (h *CatalogHandler) PutAlternative(w http.ResponseWriter, r *http.Request) {
	fromSlug := chi.URLParam(r, "from_slug")
	toSlug := chi.URLParam(r, "to_slug")

	var req PutAlternativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.PutEndpointAlternative(r.Context(), sunset.PutEndpointAlternativeRequest{
		FromSlug:            fromSlug,
		ToSlug:              toSlug,
		ExplanationMarkdown: req.ExplanationMarkdown,
	})
	if err != nil {
		if errors.Is(err, sunset.ErrEndpointNotFound) {
			http.Error(w, "one of the endpoints does not exist", http.StatusNotFound)
			return
		}
		slog.Error("Failed to put alternative", "from", fromSlug, "to", toSlug, "error", err)
		http.Error(w, "failed to store alternative", http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"from": fromSlug, "to": toSlug})
}

func parseOptionalDate(raw *string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(isoDate, *raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
