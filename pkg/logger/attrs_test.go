package logger_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/collabcode/hub-service/pkg/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	if attrs := logger.AttrsFromCtx(context.Background()); attrs != nil {
		t.Fatalf("expected nil without a span, got %v", attrs)
	}
}

func TestAttrsFromCtx_PropagatesTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()
	tr := tp.Tracer("test")

	ctx, span := tr.Start(context.Background(), "op")
	defer span.End()

	out := captureStdOut(func() {
		logger.Init(logger.Config{
			Service:          "hub-service",
			Env:              logger.EnvProd,
			Backend:          logger.BackendZap,
			SampleInitial:    100000,
			SampleThereafter: 100000,
		})
		slog.LogAttrs(ctx, slog.LevelInfo, "with trace", logger.AttrsFromCtx(ctx)...)
	})

	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("expected JSON, got: %s, err=%v", out, err)
	}

	if m["trace_id"] == nil || m["span_id"] == nil {
		t.Fatalf("trace_id/span_id missing in log: %v", m)
	}
	if m["msg"] != "with trace" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}
