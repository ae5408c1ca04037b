package otpgate

import (
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEngineSpansRecordOutcome(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	env := newTestEnv(t, func(_ *Config, b *Builder) { b.WithTracerProvider(tp) })
	env.seed(t)

	if _, err := env.login(t, "", "wrong"); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := env.login(t, "", "correct-horse"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	failed, ok := spans[0], spans[1]
	if failed.Name != "otpgate.Login" || failed.Status.Code != codes.Error {
		t.Fatalf("unexpected failed span %s %+v", failed.Name, failed.Status)
	}
	var code string
	for _, kv := range failed.Attributes {
		if kv.Key == "otpgate.error_code" {
			code = kv.Value.AsString()
		}
	}
	if code != "invalid_credentials" {
		t.Fatalf("expected error code attribute, got %q", code)
	}
	if ok.Status.Code != codes.Ok {
		t.Fatalf("unexpected ok span status %+v", ok.Status)
	}
	for _, kv := range append(failed.Attributes, ok.Attributes...) {
		if kv.Value.AsString() == "correct-horse" || kv.Value.AsString() == "wrong" {
			t.Fatalf("password leaked into span attribute %s", kv.Key)
		}
	}
}
