// SPDX-License-Identifier: MPL-2.0

// Package metrics records watch-session observations (bundles, cycles, hook
// runs, tool restarts) behind a Recorder interface. NoopRecorder is the
// default; PrometheusRecorder is used when a metrics listen address is set.
package metrics
