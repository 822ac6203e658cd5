package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/reactor/internal/adapters/telemetry"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestInterfaceSatisfaction(_ *testing.T) {
	var _ ports.Tracer = (*telemetry.OTelTracer)(nil)
	var _ ports.Span = (*telemetry.OTelSpan)(nil)
	var _ ports.Tracer = (*telemetry.NoOpTracer)(nil)
	var _ ports.Span = (*telemetry.NoOpSpan)(nil)
}

func TestOTelTracer_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := telemetry.NewOTelTracer("test", rec)

	ctx, build := tracer.Start(context.Background(), "build")
	build.SetAttribute("reactor.build_id", "b1")
	build.SetAttribute("reactor.modules", 3)
	build.SetAttribute("reactor.result", domain.ResultUnstable)

	_, module := tracer.Start(ctx, "org.example:core")
	n, err := module.Write([]byte("[INFO] compiling"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	module.RecordError(errors.New("module did not succeed"))
	module.End()
	build.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "org.example:core", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "module did not succeed", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 2)
	assert.Equal(t, "log", spans[0].Events()[0].Name)

	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String("reactor.build_id", "b1"),
		attribute.Int("reactor.modules", 3),
		attribute.String("reactor.result", "UNSTABLE"),
	}, spans[1].Attributes())

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestOTelSpan_RecordNilError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := telemetry.NewOTelTracer("test", rec)

	_, span := tracer.Start(context.Background(), "quiet")
	span.RecordError(nil)
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Unset, rec.Ended()[0].Status().Code)
}

func TestLogBridge_WarnsOnFailedSpans(t *testing.T) {
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		assert.Contains(t, msg, "org.example:web")
		assert.Contains(t, msg, "tests failed")
	}).Times(1)

	tracer := telemetry.NewOTelTracer("test", telemetry.NewLogBridge(log))
	_, ok := tracer.Start(context.Background(), "org.example:core")
	ok.End()
	_, bad := tracer.Start(context.Background(), "org.example:web")
	bad.RecordError(errors.New("tests failed"))
	bad.End()

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNoOpTracer_Start(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()

	ctx := context.Background()
	got, span := tracer.Start(ctx, "test-span")
	assert.Equal(t, ctx, got)

	span.SetAttribute("key", "value")
	span.RecordError(errors.New("ignored"))
	n, err := span.Write([]byte("test log"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	span.End()
	assert.NoError(t, tracer.Shutdown(ctx))
}
