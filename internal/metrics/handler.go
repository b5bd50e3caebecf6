package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the default registry, which holds every metric of this package.
func Handler() http.Handler {
	return promhttp.Handler()
}
