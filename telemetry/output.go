package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/mudtrack/config"
)

// WheelRow is one wheel's state at a window boundary, flattened for wheels.csv.
type WheelRow struct {
	Tick         int64   `csv:"tick"`
	VehicleID    uint32  `csv:"vehicle"`
	Wheel        int     `csv:"wheel"`
	Grounded     bool    `csv:"grounded"`
	Surface      string  `csv:"surface"`
	SlipRatio    float64 `csv:"slip_ratio"`
	SlipAngle    float64 `csv:"slip_angle"`
	Traction     float64 `csv:"traction"`
	SinkDepth    float64 `csv:"sink_depth"`
	Load         float64 `csv:"load"`
	Temperature  float64 `csv:"temperature"`
	Pressure     float64 `csv:"pressure"`
	TreadWear    float64 `csv:"tread_wear"`
	MudMass      float64 `csv:"mud_mass"`
	MudParticles int     `csv:"mud_particles"`
	Condition    string  `csv:"condition"`
}

// WheelRows flattens samples taken at tick into CSV rows.
func WheelRows(tick int64, wheels []WheelSample) []WheelRow {
	rows := make([]WheelRow, len(wheels))
	for i := range wheels {
		w := &wheels[i]
		rows[i] = WheelRow{
			Tick:         tick,
			VehicleID:    w.VehicleID,
			Wheel:        w.Index,
			Grounded:     w.Output.Grounded,
			Surface:      w.Slip.LastSurface.String(),
			SlipRatio:    w.Slip.SlipRatio,
			SlipAngle:    w.Slip.SlipAngle,
			Traction:     w.Slip.TractionCoefficient,
			SinkDepth:    w.Slip.SinkDepth,
			Load:         w.Load,
			Temperature:  w.Tire.Temperature,
			Pressure:     w.Tire.Pressure,
			TreadWear:    w.Tire.TreadWear,
			MudMass:      w.Tire.MudMass,
			MudParticles: w.Tire.MudParticles,
			Condition:    w.Tire.Condition.String(),
		}
	}
	return rows
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir           string
	telemetryFile *os.File
	perfFile      *os.File
	bookmarkFile  *os.File
	wheelFile     *os.File

	// Track if headers have been written
	telemetryHeaderWritten bool
	perfHeaderWritten      bool
	bookmarkHeaderWritten  bool
	wheelHeaderWritten     bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  **os.File
	}{
		{"telemetry.csv", &om.telemetryFile},
		{"perf.csv", &om.perfFile},
		{"bookmarks.csv", &om.bookmarkFile},
		{"wheels.csv", &om.wheelFile},
	}
	for _, f := range files {
		fh, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", f.name, err)
		}
		*f.dst = fh
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// writeRecords appends records to f, writing the header row only once.
func writeRecords[T any](f *os.File, headerWritten *bool, records []T) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.telemetryFile, &om.telemetryHeaderWritten, []WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.perfFile, &om.perfHeaderWritten, []PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.bookmarkFile, &om.bookmarkHeaderWritten, []Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// WriteWheels appends per-wheel rows to wheels.csv.
func (om *OutputManager) WriteWheels(tick int64, wheels []WheelSample) error {
	if om == nil || len(wheels) == 0 {
		return nil
	}
	if err := writeRecords(om.wheelFile, &om.wheelHeaderWritten, WheelRows(tick, wheels)); err != nil {
		return fmt.Errorf("writing wheels: %w", err)
	}
	return nil
}

// WriteSnapshot saves a bookmark snapshot under the snapshots subdirectory.
func (om *OutputManager) WriteSnapshot(snapshot *Snapshot) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveSnapshot(snapshot, filepath.Join(om.dir, "snapshots"))
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.telemetryFile, om.perfFile, om.bookmarkFile, om.wheelFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
