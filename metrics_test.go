package otpgate

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsInc(t *testing.T) {
	tests := []struct {
		name string
		cfg  MetricsConfig
		want uint64
	}{
		{"enabled", MetricsConfig{Enabled: true}, 3},
		{"disabled", MetricsConfig{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics(tt.cfg)
			for i := 0; i < 3; i++ {
				m.Inc(MetricOTPSent)
			}
			if got := m.Value(MetricOTPSent); got != tt.want {
				t.Fatalf("OTPSent = %d, want %d", got, tt.want)
			}
			if !tt.cfg.Enabled && len(m.Snapshot().Counters) != 0 {
				t.Fatal("disabled metrics produced a snapshot")
			}
		})
	}
}

func TestMetricsNilAndOutOfRange(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Second)
	if m.Enabled() || m.LatencyEnabled() || m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
	if snap := m.Snapshot(); snap.Counters == nil || snap.Histograms == nil {
		t.Fatal("nil snapshot maps must be non-nil")
	}

	live := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	live.Inc(metricIDCount)
	live.Observe(metricIDCount+1, time.Millisecond)
	if got := live.Value(metricIDCount); got != 0 {
		t.Fatalf("out of range id counted: %d", got)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	tests := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{499 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{3 * time.Second, 7},
	}
	for _, tt := range tests {
		m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
		m.Observe(MetricLoginLatency, tt.d)
		buckets := m.Snapshot().Histograms[MetricLoginLatency]
		if len(buckets) != histBucketCount {
			t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
		}
		for i, v := range buckets {
			want := uint64(0)
			if i == tt.bucket {
				want = 1
			}
			if v != want {
				t.Fatalf("%v: bucket %d = %d, want %d", tt.d, i, v, want)
			}
		}
	}
}

func TestMetricsHistogramSeparation(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginFailure, time.Millisecond)
	m.Observe(MetricAuthorizeLatency, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricLoginFailure]; ok {
		t.Fatal("counter metric carries a histogram")
	}
	if _, ok := snap.Counters[MetricAuthorizeLatency]; ok {
		t.Fatal("latency metric appears as a counter")
	}
	if snap.Histograms[MetricAuthorizeLatency][0] != 1 || snap.Histograms[MetricLoginLatency][0] != 0 {
		t.Fatalf("observation landed in the wrong histogram: %v", snap.Histograms)
	}

	noLatency := NewMetrics(MetricsConfig{Enabled: true})
	noLatency.Observe(MetricLoginLatency, time.Millisecond)
	if len(noLatency.Snapshot().Histograms) != 0 {
		t.Fatal("histograms reported with latency disabled")
	}
}

func TestMetricsConcurrentLoginPath(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	const workers, logins = 16, 2000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < logins; i++ {
				m.Inc(MetricLoginSuccess)
				m.Inc(MetricOTPSent)
				m.Inc(MetricOTPVerifySuccess)
				m.Observe(MetricLoginLatency, 20*time.Millisecond)
				if i%100 == 0 {
					_ = m.Snapshot()
				}
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	want := uint64(workers * logins)
	for _, id := range []MetricID{MetricLoginSuccess, MetricOTPSent, MetricOTPVerifySuccess} {
		if snap.Counters[id] != want {
			t.Fatalf("metric %d = %d, want %d", id, snap.Counters[id], want)
		}
	}
	if snap.Histograms[MetricLoginLatency][2] != want {
		t.Fatalf("latency bucket = %d, want %d", snap.Histograms[MetricLoginLatency][2], want)
	}
}
