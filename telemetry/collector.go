package telemetry

import (
	"github.com/pthm-cable/mudtrack/components"
)

// WheelSample is one wheel's published state, captured for telemetry.
type WheelSample struct {
	VehicleID uint32
	Index     int
	Slip      components.WheelSlipState
	Tire      components.TireState
	Output    components.WheelOutput
	Load      float64 // suspension normal load, N
}

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	ticks    int
	rejected int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int64(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordTick records one completed batch pass.
func (c *Collector) RecordTick() {
	c.ticks++
}

// RecordRejection records a wheel tick rejected for non-finite values.
func (c *Collector) RecordRejection() {
	c.rejected++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the wheels' current state and resets
// counters for the next window.
func (c *Collector) Flush(currentTick int64, vehicles int, wheels []WheelSample) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Vehicles:        vehicles,
		Wheels:          len(wheels),
		Ticks:           c.ticks,
		RejectedTicks:   c.rejected,
	}

	var slip, traction, load, sink []float64
	temp := make([]float64, 0, len(wheels))
	pressure := make([]float64, 0, len(wheels))
	wear := make([]float64, 0, len(wheels))
	mud := make([]float64, 0, len(wheels))
	worst := components.ConditionNew

	for i := range wheels {
		w := &wheels[i]
		if w.Output.Grounded {
			stats.Grounded++
			slip = append(slip, w.Slip.SlipRatio)
			traction = append(traction, w.Slip.TractionCoefficient)
			load = append(load, w.Load)
			sink = append(sink, w.Slip.SinkDepth)
		}
		temp = append(temp, w.Tire.Temperature)
		pressure = append(pressure, w.Tire.Pressure)
		wear = append(wear, w.Tire.TreadWear)
		mud = append(mud, w.Tire.MudMass)
		stats.MudParticles += w.Tire.MudParticles
		worst = max(worst, w.Tire.Condition)
	}

	s := Summarize(slip)
	stats.SlipMean, stats.SlipP50, stats.SlipP90 = s.Mean, s.P50, s.P90
	s = Summarize(traction)
	stats.TractionMean, stats.TractionP10 = s.Mean, s.P10
	stats.LoadMean = Summarize(load).Mean
	s = Summarize(sink)
	stats.SinkMean, stats.SinkMax = s.Mean, s.Max
	s = Summarize(temp)
	stats.TemperatureMean, stats.TemperatureMax = s.Mean, s.Max
	s = Summarize(pressure)
	stats.PressureMean, stats.PressureMin = s.Mean, s.Min
	s = Summarize(wear)
	stats.TreadWearMean, stats.TreadWearMax = s.Mean, s.Max
	stats.MudMean = Summarize(mud).Mean
	if len(wheels) > 0 {
		stats.WorstCondition = worst.String()
	}

	c.windowStartTick = currentTick
	c.ticks = 0
	c.rejected = 0

	return stats
}
