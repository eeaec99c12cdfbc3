package match

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/phaseline/lightcycle/internal/match"

type sessionMetrics struct {
	tickDuration metric.Float64Histogram
	kills        metric.Int64Counter
	teleports    metric.Int64Counter
	segments     metric.Int64Gauge
	vehicles     metric.Int64Gauge
}

func newSessionMetrics() (sessionMetrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		sm  sessionMetrics
		err error
	)

	sm.tickDuration, err = m.Float64Histogram(
		"match.tick.duration",
		metric.WithDescription("Wall time spent simulating one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return sm, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	sm.kills, err = m.Int64Counter(
		"match.kills",
		metric.WithDescription("Vehicles killed, by cause"),
	)
	if err != nil {
		return sm, fmt.Errorf("creating kills counter: %w", err)
	}

	sm.teleports, err = m.Int64Counter(
		"match.teleports",
		metric.WithDescription("Completed teleports, by reason"),
	)
	if err != nil {
		return sm, fmt.Errorf("creating teleports counter: %w", err)
	}

	sm.segments, err = m.Int64Gauge(
		"match.trail.segments",
		metric.WithDescription("Live trail colliders"),
	)
	if err != nil {
		return sm, fmt.Errorf("creating segments gauge: %w", err)
	}

	sm.vehicles, err = m.Int64Gauge(
		"match.vehicles",
		metric.WithDescription("Vehicles registered with the session"),
	)
	if err != nil {
		return sm, fmt.Errorf("creating vehicles gauge: %w", err)
	}
	return sm, nil
}

type replicaMetrics struct {
	reconciles metric.Int64Counter
	replayed   metric.Int64Counter
	discarded  metric.Int64Counter
}

func newReplicaMetrics() (replicaMetrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		rm  replicaMetrics
		err error
	)

	rm.reconciles, err = m.Int64Counter(
		"replica.reconciles",
		metric.WithDescription("Authoritative snapshots applied by the predictor"),
	)
	if err != nil {
		return rm, fmt.Errorf("creating reconciles counter: %w", err)
	}

	rm.replayed, err = m.Int64Counter(
		"replica.replayed",
		metric.WithDescription("Inputs re-simulated after a correction"),
	)
	if err != nil {
		return rm, fmt.Errorf("creating replayed counter: %w", err)
	}

	rm.discarded, err = m.Int64Counter(
		"replica.discarded",
		metric.WithDescription("Snapshots dropped as stale or superseded"),
	)
	if err != nil {
		return rm, fmt.Errorf("creating discarded counter: %w", err)
	}
	return rm, nil
}
