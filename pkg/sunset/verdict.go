package sunset

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// sunsettedCacheControl is sent with responses for endpoints at or past
// their sunset instant. These are safe to cache aggressively: retirement is
// final and the same for every caller.
const sunsettedCacheControl = "public, max-age=86400, stale-while-revalidate=604800, stale-if-error=604800"

const dateFormat = "January 2, 2006"

// Verdict is a complete response override. The calling handler must render
// it verbatim and skip the endpoint's normal body. A nil *Verdict means
// pass-through.
type Verdict struct {
	StatusCode int
	Header     http.Header
	Body       *VerdictBody
}

// VerdictBody is the structured rejection body shared by all non-empty
// verdicts.
type VerdictBody struct {
	Deprecated bool   `json:"deprecated"`
	Sunsetted  bool   `json:"sunsetted"`
	Retryable  bool   `json:"retryable"`
	Error      string `json:"error"`
}

// SuppressionHintURL rebuilds the request URL with the deprecated=true
// suppression parameter ensured in its query string, preserving the existing
// query and fragment. Parsing and re-encoding (rather than string
// concatenation) avoids double separators and malformed fragments.
func SuppressionHintURL(reqURL *url.URL) string {
	u := *reqURL
	q := u.Query()
	q.Set("deprecated", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// DocURL returns the migration documentation link for an endpoint slug,
// keyed off the scheme and host the request arrived on.
func DocURL(reqURL *url.URL, slug string) string {
	return fmt.Sprintf("%s://%s/endpoints.html?slug=%s", reqURL.Scheme, reqURL.Host, url.QueryEscape(slug))
}

func headerWith(kv ...string) http.Header {
	h := make(http.Header, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// retiredVerdict composes the response for a fully retired endpoint: a
// cacheable not-found for reads, method-not-allowed advertising the read
// methods otherwise. No body either way; the identifier is free for reuse.
func retiredVerdict(method string) *Verdict {
	if method != http.MethodGet && method != http.MethodHead {
		return &Verdict{
			StatusCode: http.StatusMethodNotAllowed,
			Header:     headerWith("Allow", "GET, HEAD"),
		}
	}
	return &Verdict{
		StatusCode: http.StatusNotFound,
		Header:     headerWith("Cache-Control", sunsettedCacheControl),
	}
}

// graceVerdict composes the explanatory, non-retryable rejection served
// between the sunset instant and full retirement.
func graceVerdict(method string, deprecatedOn, sunsetsOn time.Time, reqURL *url.URL, slug string) *Verdict {
	if method == http.MethodHead {
		return &Verdict{StatusCode: http.StatusBadRequest, Header: make(http.Header)}
	}
	h := make(http.Header)
	if method == http.MethodGet {
		h.Set("Cache-Control", sunsettedCacheControl)
	}
	return &Verdict{
		StatusCode: http.StatusBadRequest,
		Header:     h,
		Body: &VerdictBody{
			Deprecated: true,
			Sunsetted:  true,
			Retryable:  false,
			Error: fmt.Sprintf(
				"This endpoint has been deprecated since %s and was sunsetted on %s, "+
					"meaning that it can no longer be used. For the reason for deprecation "+
					"and how to migrate off, visit %s",
				deprecatedOn.Format(dateFormat),
				sunsetsOn.Format(dateFormat),
				DocURL(reqURL, slug),
			),
		},
	}
}

// finalWarnVerdict composes the hard rejection served to every caller in
// the last stretch before the sunset instant.
func finalWarnVerdict(deprecatedOn, sunsetsOn time.Time, reqURL *url.URL, slug string) *Verdict {
	return &Verdict{
		StatusCode: http.StatusBadRequest,
		Header:     headerWith("Cache-Control", "no-store"),
		Body: &VerdictBody{
			Deprecated: true,
			Sunsetted:  false,
			Retryable:  false,
			Error: fmt.Sprintf(
				"This endpoint has been deprecated since %s and will sunset on %s. "+
					"For the reason for deprecation and how to migrate off, visit %s. "+
					"To continue using this endpoint until %s you must acknowledge this "+
					"warning by setting the query parameter \"deprecated\" with the "+
					"value \"true\".",
				deprecatedOn.Format(dateFormat),
				sunsetsOn.Format(dateFormat),
				DocURL(reqURL, slug),
				sunsetsOn.Format(dateFormat),
			),
		},
	}
}

// earlyWarnVerdict composes the retryable rejection served to anonymous
// callers still under their monthly allowance, including the exact
// incantation that suppresses further warnings.
func earlyWarnVerdict(deprecatedOn, sunsetsOn time.Time, reqURL *url.URL, slug string, allowance int) *Verdict {
	return &Verdict{
		StatusCode: http.StatusBadRequest,
		Header:     headerWith("Cache-Control", "no-store"),
		Body: &VerdictBody{
			Deprecated: true,
			Sunsetted:  false,
			Retryable:  true,
			Error: fmt.Sprintf(
				"This endpoint has been deprecated since %s and will sunset on %s. "+
					"Since your request is not authenticated the only means to alert you "+
					"of the sunset date is to fail some of your requests. You may pass the "+
					"query parameter `deprecated=true` to suppress this behavior, for "+
					"example: %s. We will only fail %d requests per month until it gets "+
					"closer to the sunset date.\n\n"+
					"Check %s for information about why this endpoint was deprecated and "+
					"how to migrate.",
				deprecatedOn.Format(dateFormat),
				sunsetsOn.Format(dateFormat),
				SuppressionHintURL(reqURL),
				allowance,
				DocURL(reqURL, slug),
			),
		},
	}
}
