package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// routeUnmatched labels requests no route claimed, keeping raw paths out of
// metric labels.
const routeUnmatched = "unmatched"

// instrumentRequests records request metrics and a debug log line per request.
// Routes are labelled by their chi pattern, never by the raw path.
func instrumentRequests(sc *ServerContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routeUnmatched
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			duration := time.Since(start)

			sc.Metrics().RecordHTTPRequest(r.Context(), r.Method, route, status, duration)
			sc.Logger().LogAttrs(r.Context(), slog.LevelDebug, "http request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("duration", duration),
				slog.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
