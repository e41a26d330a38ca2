// Package metrics exposes Prometheus counters for tool dispatch, plan
// execution and model calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tapestry"

// Collector holds the application counters on a private registry.
type Collector struct {
	registry *prometheus.Registry

	ToolCalls  *prometheus.CounterVec
	PlanSteps  *prometheus.CounterVec
	AIRequests *prometheus.CounterVec
	AIRetries  prometheus.Counter
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool calls dispatched, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		PlanSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_steps_total",
				Help:      "Plan steps finished, by final status",
			},
			[]string{"status"},
		),
		AIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_requests_total",
				Help:      "Model calls, by outcome",
			},
			[]string{"outcome"},
		),
		AIRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_retries_total",
				Help:      "Model calls retried after a transient failure",
			},
		),
	}
	c.registry.MustRegister(c.ToolCalls, c.PlanSteps, c.AIRequests, c.AIRetries)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ToolCall counts one dispatched tool call.
func (c *Collector) ToolCall(tool, outcome string) {
	c.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// PlanStep counts one finished plan step.
func (c *Collector) PlanStep(status string) {
	c.PlanSteps.WithLabelValues(status).Inc()
}

// AIRequest counts one model call.
func (c *Collector) AIRequest(outcome string) {
	c.AIRequests.WithLabelValues(outcome).Inc()
}

// AIRetry counts one retry.
func (c *Collector) AIRetry() {
	c.AIRetries.Inc()
}
