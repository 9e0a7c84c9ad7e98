// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	prom "github.com/prometheus/client_golang/prometheus"
)

// counterValue sums the samples of the named counter family.
func counterValue(t *testing.T, reg *prom.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()

	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveBundle("site", 120*time.Millisecond, OutcomeSuccess)
	pr.IncBundleError("site")
	pr.IncBundleError("site")
	pr.ObserveCycle(2*time.Second, 3)
	pr.IncHookRun("site", "pre", OutcomeSuccess)
	pr.IncToolRestart("gulp")

	if got := counterValue(t, reg, "bleep_bundle_errors_total"); got != 2 {
		t.Errorf("bundle_errors_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "bleep_tool_restarts_total"); got != 1 {
		t.Errorf("tool_restarts_total = %v, want 1", got)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 6 {
		t.Errorf("gathered %d metric families, want 6", len(mfs))
	}
}

func TestNilAndNoopRecorders(t *testing.T) {
	t.Parallel()

	var pr *PrometheusRecorder
	pr.ObserveBundle("x", 0, OutcomeFailed)
	pr.IncHookRun("x", "post", OutcomeFailed)

	r := OrNoop(nil)
	if _, ok := r.(NoopRecorder); !ok {
		t.Errorf("OrNoop(nil) = %T", r)
	}
	r.ObserveCycle(time.Second, 1)
}

func TestServe(t *testing.T) {
	t.Parallel()

	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncToolRestart("tsc")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, reg, log.New(io.Discard)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `bleep_tool_restarts_total{tool="tsc"} 1`) {
		t.Errorf("unexpected body:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
