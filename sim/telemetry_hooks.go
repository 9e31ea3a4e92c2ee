package sim

import (
	"log/slog"

	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Sim) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	wheels := s.sampleWheels()
	stats := s.collector.Flush(s.tick, len(s.vehicles), wheels)
	perfStats := s.perfCollector.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if s.outputManager != nil {
		if err := s.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
		if err := s.outputManager.WriteWheels(s.tick, wheels); err != nil {
			slog.Error("failed to write wheels", "error", err)
		}
	}

	if s.influx != nil {
		if err := s.influx.WriteWheels(stats.SimTimeSec, wheels); err != nil {
			slog.Error("failed to write influx points", "error", err)
		}
		if err := s.influx.WriteStats(stats); err != nil {
			slog.Error("failed to write influx stats", "error", err)
		}
	}

	for _, bm := range s.bookmarkDetector.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}

		if s.outputManager != nil {
			if err := s.outputManager.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
			s.writeBookmarkSnapshot(&bm, stats.SimTimeSec, wheels)
		}
	}
}

func (s *Sim) writeBookmarkSnapshot(bm *telemetry.Bookmark, simTime float64, wheels []telemetry.WheelSample) {
	path, err := s.outputManager.WriteSnapshot(&telemetry.Snapshot{
		Version:    telemetry.SnapshotVersion,
		Tick:       s.tick,
		SimTimeSec: simTime,
		Wheels:     wheels,
		Bookmark:   bm,
	})
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "bookmark", string(bm.Type))
}

// sampleWheels collects every wheel's published state in vehicle and wheel order.
func (s *Sim) sampleWheels() []telemetry.WheelSample {
	states := s.Records()
	wheels := make([]telemetry.WheelSample, len(states))
	for i := range states {
		rec := &states[i].Record
		wheels[i] = telemetry.WheelSample{
			VehicleID: states[i].VehicleID,
			Index:     states[i].Index,
			Slip:      rec.Slip,
			Tire:      rec.Tire,
			Output:    rec.Output,
			Load:      systems.NormalLoad(&rec.Suspension),
		}
	}
	return wheels
}

// saveSnapshot persists all wheel states every storeInterval ticks.
func (s *Sim) saveSnapshot() {
	if s.store == nil || s.tick%s.storeInterval != 0 {
		return
	}
	if err := s.store.Save(s.tick, s.Records()); err != nil {
		slog.Error("failed to save wheel states", "tick", s.tick, "error", err)
	}
}
