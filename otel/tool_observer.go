// Package otel records controller observations as OpenTelemetry metrics and
// spans.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/commandry/tool"
)

// ToolObserver records tool listings, calls and catalog changes.
type ToolObserver struct {
	tracer trace.Tracer

	calls   metric.Int64Counter
	lists   metric.Int64Counter
	changes metric.Int64Counter
	latency metric.Float64Histogram
}

// NewToolObserver creates a tool observer bound to the provided meter/tracer.
// A nil tracer disables spans.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	calls, err := meter.Int64Counter(
		"commandry.tool.calls",
		metric.WithDescription("Number of tools/call requests"),
	)
	if err != nil {
		return nil, err
	}
	lists, err := meter.Int64Counter(
		"commandry.tool.lists",
		metric.WithDescription("Number of tools/list requests"),
	)
	if err != nil {
		return nil, err
	}
	changes, err := meter.Int64Counter(
		"commandry.catalog.changes",
		metric.WithDescription("Number of command catalog change notifications"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"commandry.tool.latency",
		metric.WithDescription("Tool request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:  tracer,
		calls:   calls,
		lists:   lists,
		changes: changes,
		latency: latency,
	}, nil
}

// ObserveCall records one tools/call outcome.
func (o *ToolObserver) ObserveCall(observation tool.CallObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.Bool("is_error", observation.IsError),
		attribute.Bool("canceled", observation.Canceled),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.calls.Add(ctx, 1, options)
	o.latency.Record(ctx, seconds(observation.DurationMS), metric.WithAttributes(
		attribute.String("method", "tools/call"),
		attribute.String("tool_name", observation.ToolName),
	))

	if o.tracer == nil {
		return
	}
	spanAttrs := attrs
	if observation.CommandName != "" {
		spanAttrs = append(spanAttrs, attribute.String("command_name", observation.CommandName))
	}
	if observation.InvocationID != "" {
		spanAttrs = append(spanAttrs, attribute.String("invocation_id", observation.InvocationID))
	}
	end := time.Now()
	start := end.Add(-time.Duration(observation.DurationMS) * time.Millisecond)
	_, span := o.tracer.Start(ctx, "tool.call", trace.WithTimestamp(start), trace.WithAttributes(spanAttrs...))
	if observation.IsError {
		span.SetStatus(codes.Error, observation.ErrorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

// ObserveList records one tools/list outcome.
func (o *ToolObserver) ObserveList(observation tool.ListObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	o.lists.Add(ctx, 1, metric.WithAttributes(attrs...))
	o.latency.Record(ctx, seconds(observation.DurationMS), metric.WithAttributes(
		attribute.String("method", "tools/list"),
	))

	if o.tracer == nil {
		return
	}
	spanAttrs := append(attrs,
		attribute.Int("commands", observation.Commands),
		attribute.Int("tools", observation.Tools),
	)
	end := time.Now()
	start := end.Add(-time.Duration(observation.DurationMS) * time.Millisecond)
	_, span := o.tracer.Start(ctx, "tool.list", trace.WithTimestamp(start), trace.WithAttributes(spanAttrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

// ObserveChange records one catalog change notification.
func (o *ToolObserver) ObserveChange(observation tool.ChangeObservation) {
	if o == nil {
		return
	}
	o.changes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("primitive", string(observation.Primitive)),
	))
}

func seconds(durationMS int64) float64 {
	return float64(time.Duration(durationMS)*time.Millisecond) / float64(time.Second)
}

var _ tool.Observer = (*ToolObserver)(nil)
