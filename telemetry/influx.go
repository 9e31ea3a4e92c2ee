package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
)

// InfluxSink streams per-wheel points to InfluxDB. When the server is
// disabled or unreachable, points go to a gzipped line-protocol file instead.
type InfluxSink struct {
	client      influxdb2.Client
	writer      influxdb2_api.WriteAPI
	backupFile  *os.File
	backup      *gzip.Writer
	measurement string
	epoch       time.Time
}

// NewInfluxSink connects to the configured server. Returns nil if influx is
// disabled and no backup path is set.
func NewInfluxSink(ctx context.Context, cfg config.InfluxConfig) (*InfluxSink, error) {
	if !cfg.Enabled && cfg.BackupPath == "" {
		return nil, nil
	}

	s := &InfluxSink{
		measurement: cfg.Measurement,
		epoch:       time.Now().Truncate(time.Second),
	}
	if s.measurement == "" {
		s.measurement = "wheel"
	}

	if cfg.Enabled {
		client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
			influxdb2.DefaultOptions().
				SetBatchSize(max(cfg.BatchSize, 1)).
				SetFlushInterval(max(cfg.FlushSeconds, 1)*1000),
		)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		running, err := client.Ping(pingCtx)
		cancel()
		if err == nil && running {
			s.client = client
			s.writer = client.WriteAPI(cfg.Org, cfg.Bucket)
			go func(errorsCh <-chan error) {
				for writeErr := range errorsCh {
					slog.Error("influx write failed", "bucket", cfg.Bucket, "error", writeErr)
				}
			}(s.writer.Errors())
			slog.Info("influx sink connected", "url", cfg.URL, "bucket", cfg.Bucket)
			return s, nil
		}
		client.Close()
		if cfg.BackupPath == "" {
			return nil, fmt.Errorf("influx unreachable at %s and no backup_path set: %w", cfg.URL, pingError(err))
		}
		slog.Warn("influx unreachable, writing to backup file", "url", cfg.URL, "backup_path", cfg.BackupPath, "error", err)
	}

	file, err := os.OpenFile(cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating influx backup file: %w", err)
	}
	s.backupFile = file
	s.backup = gzip.NewWriter(file)
	return s, nil
}

func pingError(err error) error {
	if err == nil {
		return errors.New("server not ready")
	}
	return err
}

// WheelPoint builds one point from a wheel sample. Slip and tire fields
// follow the component field descriptors.
func WheelPoint(measurement string, ts time.Time, w *WheelSample) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(measurement).
		AddTag("vehicle", strconv.FormatUint(uint64(w.VehicleID), 10)).
		AddTag("wheel", strconv.Itoa(w.Index)).
		AddTag("tire", w.Tire.Type.String()).
		AddTag("surface", w.Slip.LastSurface.String()).
		SetTime(ts)

	for _, fd := range components.SlipFieldDescriptors() {
		p.AddField(fd.ID, components.GetSlipValue(&w.Slip, fd.ID))
	}
	for _, fd := range components.TireFieldDescriptors() {
		p.AddField(fd.ID, components.GetTireValue(&w.Tire, fd.ID))
	}
	p.AddField("load", w.Load)
	p.AddField("grounded", w.Output.Grounded)
	p.AddField("mud_particles", w.Tire.MudParticles)
	p.AddField("condition", w.Tire.Condition.String())
	return p
}

// timestamp maps simulation time onto wall time starting at the sink's epoch,
// so replays of the same run line up.
func (s *InfluxSink) timestamp(simTime float64) time.Time {
	return s.epoch.Add(time.Duration(simTime * float64(time.Second)))
}

// WriteWheels writes one point per wheel.
func (s *InfluxSink) WriteWheels(simTime float64, wheels []WheelSample) error {
	if s == nil {
		return nil
	}
	ts := s.timestamp(simTime)
	for i := range wheels {
		if err := s.write(WheelPoint(s.measurement, ts, &wheels[i])); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats writes a window summary point.
func (s *InfluxSink) WriteStats(stats WindowStats) error {
	if s == nil {
		return nil
	}
	p := influxdb2_write.NewPointWithMeasurement(s.measurement+"_window").
		AddField("wheels", stats.Wheels).
		AddField("grounded", stats.Grounded).
		AddField("rejected_ticks", stats.RejectedTicks).
		AddField("slip_mean", stats.SlipMean).
		AddField("slip_p90", stats.SlipP90).
		AddField("traction_mean", stats.TractionMean).
		AddField("sink_max", stats.SinkMax).
		AddField("temperature_max", stats.TemperatureMax).
		AddField("pressure_min", stats.PressureMin).
		AddField("tread_wear_max", stats.TreadWearMax).
		AddField("mud_mean", stats.MudMean).
		SetTime(s.timestamp(stats.SimTimeSec))
	return s.write(p)
}

func (s *InfluxSink) write(p *influxdb2_write.Point) error {
	if s.writer != nil {
		s.writer.WritePoint(p)
		return nil
	}
	// PointToLineProtocol terminates the line itself.
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := s.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("writing influx backup: %w", err)
	}
	return nil
}

// Connected reports whether points go to a live server.
func (s *InfluxSink) Connected() bool {
	return s != nil && s.writer != nil
}

// Close flushes pending points and releases the client or backup file.
func (s *InfluxSink) Close() error {
	if s == nil {
		return nil
	}
	if s.client != nil {
		s.writer.Flush()
		s.client.Close()
		return nil
	}
	return errors.Join(s.backup.Close(), s.backupFile.Close())
}
