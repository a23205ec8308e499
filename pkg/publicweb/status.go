package publicweb

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wormhole-foundation/wormhole/core/pkg/readiness"
)

// NewStatusRouter serves /readyz and /metrics. Both are safe to expose to untrusted clients.
func NewStatusRouter(ready *readiness.Registry) http.Handler {
	// Use a custom router instead of http.DefaultServeMux to avoid exposing packages that register themselves with it.
	router := mux.NewRouter()
	router.HandleFunc("/readyz", ready.Handler)
	router.Handle("/metrics", promhttp.Handler())
	return router
}
