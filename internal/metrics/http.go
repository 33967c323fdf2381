package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteMatcher resolves the pattern a request dispatches to.
// *http.ServeMux implements it.
type RouteMatcher interface {
	http.Handler
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// Middleware records request counts and latencies labelled by the matched
// route pattern. Unmatched requests are labelled "unmatched".
func (m *Metrics) Middleware(routes RouteMatcher) http.Handler {
	var byRoute sync.Map // route pattern -> instrumented handler

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, route := routes.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		h, ok := byRoute.Load(route)
		if !ok {
			h, _ = byRoute.LoadOrStore(route, m.instrument(route, routes))
		}
		h.(http.Handler).ServeHTTP(w, r)
	})
}

func (m *Metrics) instrument(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		m.httpDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.httpRequests.MustCurryWith(labels), next),
	)
}
