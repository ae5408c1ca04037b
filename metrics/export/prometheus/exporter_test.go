package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/otpgate"
)

type fakeSource struct {
	snapshot otpgate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() otpgate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenNothingRecorded(t *testing.T) {
	exp := New(fakeSource{
		snapshot: otpgate.MetricsSnapshot{
			Counters:   map[otpgate.MetricID]uint64{},
			Histograms: map[otpgate.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
}

func TestRenderCountersAndHistograms(t *testing.T) {
	exp := New(fakeSource{
		snapshot: otpgate.MetricsSnapshot{
			Counters: map[otpgate.MetricID]uint64{
				otpgate.MetricOTPSent:       7,
				otpgate.MetricAccountLocked: 2,
			},
			Histograms: map[otpgate.MetricID][]uint64{
				otpgate.MetricAuthorizeLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})

	out := exp.Render()
	for _, want := range []string{
		"otpgate_otp_sent_total 7",
		"otpgate_account_locked_total 2",
		"otpgate_login_success_total 0",
		"# TYPE otpgate_authorize_latency_seconds histogram",
		`otpgate_authorize_latency_seconds_bucket{le="0.005"} 1`,
		`otpgate_authorize_latency_seconds_bucket{le="0.025"} 6`,
		`otpgate_authorize_latency_seconds_bucket{le="+Inf"} 36`,
		"otpgate_authorize_latency_seconds_count 36",
		`otpgate_login_latency_seconds_bucket{le="+Inf"} 0`,
		"otpgate_audit_dropped_total 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRenderFromEngine(t *testing.T) {
	m := otpgate.NewMetrics(otpgate.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(otpgate.MetricSessionCreated)
	m.Observe(otpgate.MetricLoginLatency, 30*time.Millisecond)

	out := New(metricsOnly{m}).Render()
	if !strings.Contains(out, "otpgate_session_created_total 1") {
		t.Fatalf("expected session counter, got:\n%s", out)
	}
	if !strings.Contains(out, `otpgate_login_latency_seconds_bucket{le="0.025"} 0`) ||
		!strings.Contains(out, `otpgate_login_latency_seconds_bucket{le="0.05"} 1`) {
		t.Fatalf("expected 30ms sample in the 50ms bucket, got:\n%s", out)
	}
}

type metricsOnly struct{ m *otpgate.Metrics }

func (s metricsOnly) MetricsSnapshot() otpgate.MetricsSnapshot { return s.m.Snapshot() }
func (s metricsOnly) AuditDropped() uint64                     { return 0 }

func TestHandlerContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: otpgate.MetricsSnapshot{
			Counters:   map[otpgate.MetricID]uint64{otpgate.MetricLoginSuccess: 1},
			Histograms: map[otpgate.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: otpgate.MetricsSnapshot{
			Counters: map[otpgate.MetricID]uint64{
				otpgate.MetricLoginSuccess:     1000,
				otpgate.MetricLoginFailure:     40,
				otpgate.MetricOTPVerifySuccess: 900,
				otpgate.MetricRefreshSuccess:   800,
				otpgate.MetricSessionExpired:   20,
			},
			Histograms: map[otpgate.MetricID][]uint64{
				otpgate.MetricLoginLatency:     {10, 20, 30, 40, 50, 60, 70, 80},
				otpgate.MetricAuthorizeLatency: {80, 70, 60, 50, 40, 30, 20, 10},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
