// internal/pipeline/metrics.go
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mcp-diet-check/internal/models"
)

var verdictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dietcheck_verdicts_total",
		Help: "Total number of safety verdicts returned by classification",
	},
	[]string{"classification"},
)

func observeVerdict(c models.Classification) {
	verdictsTotal.WithLabelValues(string(c)).Inc()
}
