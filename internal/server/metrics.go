// internal/server/metrics.go
package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dietcheck_tool_calls_total",
			Help: "Total number of tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dietcheck_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
)

func observeCall(tool string, resp Response, d time.Duration) {
	if _, ok := knownTools[tool]; !ok {
		// Keep label cardinality bounded.
		tool = "unknown"
	}

	outcome := "success"
	if !resp.Success {
		outcome = resp.ErrorCode
	}

	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

var knownTools = func() map[string]struct{} {
	m := make(map[string]struct{}, len(toolSpecs))
	for _, t := range toolSpecs {
		m[t.Name] = struct{}{}
	}
	return m
}()
