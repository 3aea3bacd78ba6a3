// Package telemetry holds the OpenTelemetry handles used by the order engine.
// Without a configured SDK the global providers are no-ops.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "bookstore/orders"

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

type Metrics struct {
	transitions metric.Int64Counter
	orders      metric.Int64Counter
	refunds     metric.Int64Counter
}

// NewMetrics registers counters on meter; nil uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	transitions, err := meter.Int64Counter(
		"orders.status_transitions",
		metric.WithDescription("Committed order status transitions"),
	)
	if err != nil {
		return nil, err
	}
	orders, err := meter.Int64Counter(
		"orders.created",
		metric.WithDescription("Orders created from checkout"),
	)
	if err != nil {
		return nil, err
	}
	refunds, err := meter.Int64Counter(
		"orders.refund_decisions",
		metric.WithDescription("Refund request state changes"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{transitions: transitions, orders: orders, refunds: refunds}, nil
}

func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, orderType string) {
	if m == nil {
		return
	}
	m.orders.Add(ctx, 1, metric.WithAttributes(attribute.String("order_type", orderType)))
}

func (m *Metrics) RecordRefund(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.refunds.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
