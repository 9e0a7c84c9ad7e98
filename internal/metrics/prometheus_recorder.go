// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "bleep"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	bundleDuration *prom.HistogramVec
	bundleErrors   *prom.CounterVec
	cycleDuration  prom.Histogram
	cycleBundles   prom.Histogram
	hookRuns       *prom.CounterVec
	toolRestarts   *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them with
// reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		bundleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_duration_seconds",
			Help:      "Duration of individual bundle outputs as reported by the bundler",
			Buckets:   prom.DefBuckets,
		}, []string{"module", "outcome"}),
		bundleErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_errors_total",
			Help:      "Bundler errors by module",
		}, []string{"module"}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of watch cycles from first change to END",
			Buckets:   prom.DefBuckets,
		}),
		cycleBundles: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_bundles",
			Help:      "Number of outputs bundled per watch cycle",
			Buckets:   prom.LinearBuckets(0, 5, 10),
		}),
		hookRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hook_runs_total",
			Help:      "Build hook commands run, by module, phase and outcome",
		}, []string{"module", "phase", "outcome"}),
		toolRestarts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tool_restarts_total",
			Help:      "Restarts of supervised watch tools",
		}, []string{"tool"}),
	}
	reg.MustRegister(pr.bundleDuration, pr.bundleErrors, pr.cycleDuration, pr.cycleBundles, pr.hookRuns, pr.toolRestarts)
	return pr
}

func (p *PrometheusRecorder) ObserveBundle(module string, d time.Duration, outcome string) {
	if p == nil {
		return
	}
	p.bundleDuration.WithLabelValues(module, outcome).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBundleError(module string) {
	if p == nil {
		return
	}
	p.bundleErrors.WithLabelValues(module).Inc()
}

func (p *PrometheusRecorder) ObserveCycle(d time.Duration, bundles int) {
	if p == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
	p.cycleBundles.Observe(float64(bundles))
}

func (p *PrometheusRecorder) IncHookRun(module, phase, outcome string) {
	if p == nil {
		return
	}
	p.hookRuns.WithLabelValues(module, phase, outcome).Inc()
}

func (p *PrometheusRecorder) IncToolRestart(tool string) {
	if p == nil {
		return
	}
	p.toolRestarts.WithLabelValues(tool).Inc()
}
