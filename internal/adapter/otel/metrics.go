package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "testforge"

// Metrics holds all TestForge metric instruments.
type Metrics struct {
	SessionsCreated       metric.Int64Counter
	ScenariosDelegated    metric.Int64Counter
	ScenariosCompleted    metric.Int64Counter
	NotificationsReceived metric.Int64Counter
	VerificationScore     metric.Float64Histogram
	ProviderRequests      metric.Int64Counter
	ProviderFallbacks     metric.Int64Counter
	CheckDuration         metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SessionsCreated, err = meter.Int64Counter("testforge.sessions.created",
		metric.WithDescription("Number of test sessions created"))
	if err != nil {
		return nil, err
	}

	m.ScenariosDelegated, err = meter.Int64Counter("testforge.scenarios.delegated",
		metric.WithDescription("Number of scenarios delegated to worker queues"))
	if err != nil {
		return nil, err
	}

	m.ScenariosCompleted, err = meter.Int64Counter("testforge.scenarios.completed",
		metric.WithDescription("Number of scenarios that reached a terminal state"))
	if err != nil {
		return nil, err
	}

	m.NotificationsReceived, err = meter.Int64Counter("testforge.notifications.received",
		metric.WithDescription("Number of worker notifications received"))
	if err != nil {
		return nil, err
	}

	m.VerificationScore, err = meter.Float64Histogram("testforge.verification.score",
		metric.WithDescription("Overall verification score per completed session"))
	if err != nil {
		return nil, err
	}

	m.ProviderRequests, err = meter.Int64Counter("testforge.provider.requests",
		metric.WithDescription("Number of LLM provider requests"))
	if err != nil {
		return nil, err
	}

	m.ProviderFallbacks, err = meter.Int64Counter("testforge.provider.fallbacks",
		metric.WithDescription("Number of requests served by a fallback provider"))
	if err != nil {
		return nil, err
	}

	m.CheckDuration, err = meter.Float64Histogram("testforge.check.duration_seconds",
		metric.WithDescription("Scenario check execution time in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
