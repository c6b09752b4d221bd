package metrics

import (
	"net/http"

	"github.com/nspcc-dev/substrate-go/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsPath is the path client metrics are served at.
const MetricsPath = "/metrics"

// NewPrometheusService creates a service exposing metrics collected by g at
// MetricsPath. RPC client metrics (requests, subscriptions, submitted
// extrinsics) live in the default registry, it's used if g is nil.
// Collection errors are logged and the rest of metrics is still served.
func NewPrometheusService(cfg config.BasicService, g prometheus.Gatherer, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(log.With(zap.String("service", "Prometheus"))),
		ErrorHandling: promhttp.ContinueOnError,
	}))
	return newHTTPService("Prometheus", cfg, mux, log)
}
