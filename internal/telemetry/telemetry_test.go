package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDisabledSpansAreNoops(t *testing.T) {
	if err := Init(Config{Enabled: false}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if Enabled() {
		t.Fatal("Expected tracing to be disabled")
	}

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("Expected an invalid span context when disabled")
	}
	if _, _, ok := TraceFields(ctx); ok {
		t.Error("Expected no trace fields when disabled")
	}
}

func TestEnabledSpansAreExported(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Enabled: true, Writer: &buf}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "statement.parse")
	traceID, spanID, ok := TraceFields(ctx)
	if !ok || traceID == "" || spanID == "" {
		t.Errorf("Expected trace fields, got %q %q %v", traceID, spanID, ok)
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if Enabled() {
		t.Error("Expected tracing to be disabled after shutdown")
	}
	if !strings.Contains(buf.String(), "statement.parse") {
		t.Errorf("Expected exported span in output, got %q", buf.String())
	}
}
