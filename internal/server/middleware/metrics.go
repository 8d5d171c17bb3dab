package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmetrics "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

// Prometheus returns a middleware recording request metrics on reg.
func Prometheus(reg prometheus.Registerer) func(http.Handler) http.Handler {
	mdlw := httpmetrics.New(httpmetrics.Config{
		Recorder: metrics.NewRecorder(metrics.Config{
			Registry: reg,
		}),
	})

	return func(next http.Handler) http.Handler {
		return std.Handler("", mdlw, next)
	}
}
