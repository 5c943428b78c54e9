package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/endpoint-sunset/pkg/sunset"
)

// Sunset returns middleware that enforces the deprecation schedule for one
// legacy endpoint. When the evaluator returns a verdict it is rendered
// verbatim and the wrapped handler never runs; otherwise the request
// proceeds untouched.
func Sunset(service sunset.Service, slug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			verdict, err := service.Evaluate(r.Context(), EvaluateRequestFromHTTP(r, slug))
			if err != nil {
				slog.Error("Deprecation evaluation failed, passing call through",
					"slug", slug, "error", err)
			}
			if verdict == nil {
				next.ServeHTTP(w, r)
				return
			}
			WriteVerdict(w, r, verdict)
		})
	}
}

// EvaluateRequestFromHTTP assembles the evaluator's input from an inbound
// request: the full URL, the resolved user id, and — for anonymous callers —
// the client network identity.
func EvaluateRequestFromHTTP(r *http.Request, slug string) sunset.EvaluateRequest {
	req := sunset.EvaluateRequest{
		Slug:   slug,
		Method: r.Method,
		URL:    requestURL(r),
		UserID: UserIDFromRequest(r),
	}
	if req.UserID == nil {
		req.IPAddress = clientIP(r)
		req.UserAgent = r.UserAgent()
	}
	return req
}

// WriteVerdict renders a response override exactly as composed: headers,
// status, and the JSON body when present.
func WriteVerdict(w http.ResponseWriter, r *http.Request, verdict *sunset.Verdict) {
	for key, values := range verdict.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if verdict.Body == nil {
		w.WriteHeader(verdict.StatusCode)
		return
	}
	render.Status(r, verdict.StatusCode)
	render.JSON(w, r, verdict.Body)
}

func requestURL(r *http.Request) string {
	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = requestScheme(r)
	}
	return u.String()
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
