package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/endpoint-sunset/pkg/sunset"
	"github.com/tendant/endpoint-sunset/pkg/sunset/api"
	"github.com/tendant/endpoint-sunset/pkg/sunset/repo/memory"
)

func catalogServer(t *testing.T) (http.Handler, sunset.Service) {
	t.Helper()

	svc, err := sunset.New(sunset.WithRepository(memory.New()))
	require.NoError(t, err)

	return api.NewCatalogHandler(svc).Routes(), svc
}

func seedCatalog(t *testing.T, svc sunset.Service) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, svc.PutEndpoint(ctx, sunset.PutEndpointRequest{
		Slug:                      "loans_php",
		Path:                      "/api/loans.php",
		DescriptionMarkdown:       "Legacy loan listing.",
		DeprecationReasonMarkdown: "Superseded by the paginated listing.",
		DeprecatedOn:              date(2024, 1, 1),
		SunsetsOn:                 date(2024, 7, 1),
	}))
	require.NoError(t, svc.PutEndpoint(ctx, sunset.PutEndpointRequest{
		Slug: "loans",
		Path: "/api/loans",
	}))
	require.NoError(t, svc.PutEndpointParam(ctx, sunset.PutEndpointParamRequest{
		Slug:     "loans_php",
		Location: sunset.ParamLocationQuery,
		Path:     "filters.creation",
		Name:     "after",
		VarType:  "str",
	}))
	require.NoError(t, svc.PutEndpointAlternative(ctx, sunset.PutEndpointAlternativeRequest{
		FromSlug:            "loans_php",
		ToSlug:              "loans",
		ExplanationMarkdown: "Use the paginated listing.",
	}))
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCatalogIndex(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	rec := doJSON(t, handler, http.MethodGet, "/?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Endpoints []string `json:"endpoints"`
		HasMore   bool     `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"loans"}, resp.Endpoints)
	assert.True(t, resp.HasMore)
}

func TestCatalogIndexValidation(t *testing.T) {
	handler, _ := catalogServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/?order=sideways", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loc":["order"]`)

	rec = doJSON(t, handler, http.MethodGet, "/?limit=0", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loc":["limit"]`)
}

func TestCatalogSuggest(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	rec := doJSON(t, handler, http.MethodGet, "/suggest?q=php", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"loans_php"}, resp.Suggestions)
}

func TestCatalogShow(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	rec := doJSON(t, handler, http.MethodGet, "/loans_php", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "public, max-age=86400")

	var resp struct {
		Slug         string   `json:"slug"`
		Path         string   `json:"path"`
		Alternatives []string `json:"alternatives"`
		DeprecatedOn *string  `json:"deprecated_on"`
		SunsetsOn    *string  `json:"sunsets_on"`
		Params       []struct {
			Location string   `json:"location"`
			Path     []string `json:"path"`
			Name     string   `json:"name"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "loans_php", resp.Slug)
	assert.Equal(t, "/api/loans.php", resp.Path)
	assert.Equal(t, []string{"loans"}, resp.Alternatives)
	require.NotNil(t, resp.DeprecatedOn)
	assert.Equal(t, "2024-01-01", *resp.DeprecatedOn)
	require.NotNil(t, resp.SunsetsOn)
	assert.Equal(t, "2024-07-01", *resp.SunsetsOn)
	require.Len(t, resp.Params, 1)
	assert.Equal(t, []string{"filters", "creation"}, resp.Params[0].Path)
	assert.Equal(t, "after", resp.Params[0].Name)
}

func TestCatalogShowNotFound(t *testing.T) {
	handler, _ := catalogServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogShowParam(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	rec := doJSON(t, handler, http.MethodGet, "/loans_php/params/query?path=filters.creation&name=after", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"var_type":"str"`)

	rec = doJSON(t, handler, http.MethodGet, "/loans_php/params/query?name=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogShowAlternative(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	rec := doJSON(t, handler, http.MethodGet, "/migrate/loans_php/loans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Use the paginated listing.")

	rec = doJSON(t, handler, http.MethodGet, "/migrate/loans/loans_php", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogPut(t *testing.T) {
	handler, svc := catalogServer(t)

	body := `{"path":"/api/lenders.php","description_markdown":"Legacy lender listing.","deprecated_on":"2024-03-01","sunsets_on":"2024-09-01"}`
	rec := doJSON(t, handler, http.MethodPut, "/lenders_php", body)
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := svc.GetEndpoint(context.Background(), "lenders_php")
	require.NoError(t, err)
	require.NotNil(t, doc.DeprecatedOn)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *doc.DeprecatedOn)
}

func TestCatalogPutValidation(t *testing.T) {
	handler, _ := catalogServer(t)

	tests := []struct {
		name string
		body string
		loc  string
	}{
		{
			name: "bad date",
			body: `{"deprecated_on":"March 1st"}`,
			loc:  "deprecated_on",
		},
		{
			name: "sunset without deprecation",
			body: `{"sunsets_on":"2024-09-01"}`,
			loc:  "sunsets_on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPut, "/lenders_php", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), `"loc":["`+tt.loc+`"]`)
		})
	}
}

func TestCatalogPutParam(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	body := `{"name":"id","var_type":"int"}`
	rec := doJSON(t, handler, http.MethodPut, "/loans_php/params/query", body)
	require.Equal(t, http.StatusOK, rec.Code)

	param, err := svc.GetEndpointParam(context.Background(), "loans_php", sunset.ParamLocationQuery, "", "id")
	require.NoError(t, err)
	assert.Equal(t, "int", param.VarType)

	rec = doJSON(t, handler, http.MethodPut, "/loans_php/params/cookie", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, handler, http.MethodPut, "/missing/params/query", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogPutAlternative(t *testing.T) {
	handler, svc := catalogServer(t)
	seedCatalog(t, svc)

	body := `{"explanation_markdown":"Rewritten."}`
	rec := doJSON(t, handler, http.MethodPut, "/migrate/loans_php/loans", body)
	require.Equal(t, http.StatusOK, rec.Code)

	alternative, err := svc.GetEndpointAlternative(context.Background(), "loans_php", "loans")
	require.NoError(t, err)
	assert.Equal(t, "Rewritten.", alternative.ExplanationMarkdown)

	rec = doJSON(t, handler, http.MethodPut, "/migrate/loans_php/missing", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
