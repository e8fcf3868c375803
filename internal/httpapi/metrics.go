package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lottied/internal/manager"
	"lottied/internal/metrics"
)

// Instrument records request count, latency and concurrency. The route
// label is the matched chi pattern, known only after routing, so frame and
// animation ids never become label values.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPInflight.Inc()
		defer metrics.HTTPInflight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := routeLabel(r)
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		metrics.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// routeLabel is the chi route pattern, or "unmatched" for requests no route
// claimed.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// countRejection attributes a 429 to the exhausted resource.
func countRejection(err error) {
	reason := manager.TooBusyReason(err)
	if reason == "" {
		return
	}
	metrics.Backpressure.WithLabelValues(reason).Inc()
}
