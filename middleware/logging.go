package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aporthq/aport-go/internal/httpx"
	"github.com/aporthq/aport-go/internal/trace"
)

// Trace seeds every request with a trace id, reusing an inbound
// X-Request-ID when present, and echoes it back on the response.
func Trace() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(trace.Header)
			if id == "" {
				id = trace.NewID()
			}
			ctx := trace.With(r.Context(), id)
			w.Header().Set(trace.Header, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LogOpts tunes the request logger.
type LogOpts struct {
	SkipPaths []string
}

// RequestLogger emits a one-liner per request, plus a detail record with
// redacted headers on error responses.
func RequestLogger(opts LogOpts) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range opts.SkipPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			rec := httpx.NewRecorder(w)
			next.ServeHTTP(rec, r)
			dur := time.Since(start)

			slog.Info("req",
				"trace", trace.From(r.Context()),
				"m", r.Method,
				"path", r.URL.Path,
				"status", rec.Status,
				"ms", dur.Milliseconds(),
				"bytes", rec.Bytes,
			)

			if rec.Status >= 400 {
				h := map[string]string{}
				for k, vv := range r.Header {
					if len(vv) == 0 {
						continue
					}
					vl := vv[0]
					if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Idempotency-Key") {
						vl = "***redacted***"
					}
					h[k] = vl
				}
				slog.Error("req_detail",
					"trace", trace.From(r.Context()),
					"m", r.Method, "path", r.URL.Path,
					"status", rec.Status, "ms", dur.Milliseconds(),
					"headers", h,
				)
			}
		})
	}
}
