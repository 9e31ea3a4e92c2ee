// Package telemetry aggregates wheel state into windowed stats, bookmarks
// notable moments, and writes CSV, JSON and InfluxDB output.
package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated wheel statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Counts at window end
	Vehicles int `csv:"vehicles"`
	Wheels   int `csv:"wheels"`
	Grounded int `csv:"grounded"`

	// Events during window
	Ticks         int `csv:"ticks"`
	RejectedTicks int `csv:"rejected_ticks"`

	// Slip and traction (sampled at window end, grounded wheels only)
	SlipMean     float64 `csv:"slip_mean"`
	SlipP50      float64 `csv:"slip_p50"`
	SlipP90      float64 `csv:"slip_p90"`
	TractionMean float64 `csv:"traction_mean"`
	TractionP10  float64 `csv:"traction_p10"`
	LoadMean     float64 `csv:"load_mean"`
	SinkMean     float64 `csv:"sink_mean"`
	SinkMax      float64 `csv:"sink_max"`

	// Tire state (all wheels)
	TemperatureMean float64 `csv:"temperature_mean"`
	TemperatureMax  float64 `csv:"temperature_max"`
	PressureMean    float64 `csv:"pressure_mean"`
	PressureMin     float64 `csv:"pressure_min"`
	TreadWearMean   float64 `csv:"tread_wear_mean"`
	TreadWearMax    float64 `csv:"tread_wear_max"`
	MudMean         float64 `csv:"mud_mean"`
	MudParticles    int     `csv:"mud_particles"`
	WorstCondition  string  `csv:"worst_condition"`
}

// Percentile returns the p-th quantile of a sorted slice using the
// empirical distribution. p is clamped to [0, 1]. Returns 0 if empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 1)
	if p == 0 {
		return sorted[0]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Summary is the mean, spread and extremes of a sample.
type Summary struct {
	Mean, Std     float64
	Min, Max      float64
	P10, P50, P90 float64
}

// Summarize computes a Summary without modifying values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var s Summary
	s.Mean, s.Std = stat.PopMeanStdDev(sorted, nil)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.P10 = Percentile(sorted, 0.10)
	s.P50 = Percentile(sorted, 0.50)
	s.P90 = Percentile(sorted, 0.90)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("vehicles", s.Vehicles),
		slog.Int("wheels", s.Wheels),
		slog.Int("grounded", s.Grounded),
		slog.Int("rejected_ticks", s.RejectedTicks),
		slog.Float64("slip_mean", s.SlipMean),
		slog.Float64("slip_p90", s.SlipP90),
		slog.Float64("traction_mean", s.TractionMean),
		slog.Float64("sink_max", s.SinkMax),
		slog.Float64("temperature_max", s.TemperatureMax),
		slog.Float64("pressure_min", s.PressureMin),
		slog.Float64("tread_wear_max", s.TreadWearMax),
		slog.Float64("mud_mean", s.MudMean),
		slog.String("worst_condition", s.WorstCondition),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"wheels", s.Wheels,
		"grounded", s.Grounded,
		"rejected_ticks", s.RejectedTicks,
		"slip_mean", s.SlipMean,
		"slip_p50", s.SlipP50,
		"slip_p90", s.SlipP90,
		"traction_mean", s.TractionMean,
		"load_mean", s.LoadMean,
		"sink_mean", s.SinkMean,
		"temperature_mean", s.TemperatureMean,
		"pressure_mean", s.PressureMean,
		"tread_wear_mean", s.TreadWearMean,
		"mud_mean", s.MudMean,
		"mud_particles", s.MudParticles,
		"worst_condition", s.WorstCondition,
	)
}
