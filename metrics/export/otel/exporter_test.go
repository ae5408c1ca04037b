package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/otpgate"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[otpgate.MetricID]uint64
	hist     map[otpgate.MetricID][]uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() otpgate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := otpgate.MetricsSnapshot{
		Counters:   make(map[otpgate.MetricID]uint64, len(f.counters)),
		Histograms: make(map[otpgate.MetricID][]uint64, len(f.hist)),
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	for k, b := range f.hist {
		out.Histograms[k] = append([]uint64(nil), b...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findInt(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[otpgate.MetricID]uint64{otpgate.MetricOTPVerifySuccess: 3},
		hist:     map[otpgate.MetricID][]uint64{otpgate.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1}},
		dropped:  4,
	}

	exp, err := New(provider.Meter("otpgate-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	cases := map[string]int64{
		"otpgate_otp_verify_success_total":             3,
		"otpgate_login_success_total":                  0,
		"otpgate_login_latency_seconds_bucket_le_0_01": 2,
		"otpgate_login_latency_seconds_bucket_le_inf":  8,
		"otpgate_login_latency_seconds_count":          8,
		"otpgate_audit_dropped_total":                  4,
	}
	for name, want := range cases {
		got, ok := findInt(rm, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	if _, err := New(provider.Meter("otpgate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[otpgate.MetricID]uint64{otpgate.MetricLoginSuccess: 1},
		hist:     map[otpgate.MetricID][]uint64{},
	}

	exp, err := New(provider.Meter("otpgate-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[otpgate.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
