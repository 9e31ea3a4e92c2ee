package sim

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pthm-cable/mudtrack/sim"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments are the pass counters exported through the global meter
// provider. Without a provider installed they are no-ops.
type instruments struct {
	ticks        metric.Int64Counter
	wheelTicks   metric.Int64Counter
	rejected     metric.Int64Counter
	tickDuration metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	m := meter()
	var (
		ins instruments
		err error
	)

	ins.ticks, err = m.Int64Counter(
		"mudtrack.sim.ticks",
		metric.WithDescription("Batch update passes completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	ins.wheelTicks, err = m.Int64Counter(
		"mudtrack.sim.wheel_ticks",
		metric.WithDescription("Wheel updates computed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wheel_ticks counter: %w", err)
	}

	ins.rejected, err = m.Int64Counter(
		"mudtrack.sim.rejected",
		metric.WithDescription("Wheel updates rejected for non-finite values"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	ins.tickDuration, err = m.Float64Histogram(
		"mudtrack.sim.tick_duration",
		metric.WithDescription("Wall time of one batch update pass"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick_duration histogram: %w", err)
	}

	return &ins, nil
}
