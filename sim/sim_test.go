package sim

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/ground"
	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/telemetry"
	"github.com/pthm-cable/mudtrack/terrain"
)

func init() {
	config.MustInit("")
}

// carMounts places a four-wheel car with its centre at (x, y), moving along
// +X at speed with drive torque on every wheel.
func carMounts(cfg *config.Config, x, y, speed, drive float64) []WheelMount {
	h := cfg.Wheel.Radius + cfg.Derived.StaticLength
	com := r3.Vec{X: x, Y: y, Z: h}
	offsets := []r3.Vec{
		{X: cfg.Vehicle.Wheelbase / 2, Y: cfg.Vehicle.Track / 2},
		{X: cfg.Vehicle.Wheelbase / 2, Y: -cfg.Vehicle.Track / 2},
		{X: -cfg.Vehicle.Wheelbase / 2, Y: cfg.Vehicle.Track / 2},
		{X: -cfg.Vehicle.Wheelbase / 2, Y: -cfg.Vehicle.Track / 2},
	}
	mounts := make([]WheelMount, len(offsets))
	for i, off := range offsets {
		mounts[i] = WheelMount{
			Spec: DefaultWheel(cfg),
			Input: components.WheelInput{
				MountPosition:  r3.Add(com, off),
				Down:           r3.Vec{Z: -1},
				Forward:        r3.Vec{X: 1},
				Right:          r3.Vec{Y: -1},
				LinearVelocity: r3.Vec{X: speed},
				CenterOfMass:   com,
				DriveTorque:    drive,
			},
		}
	}
	return mounts
}

func newTestSim(t *testing.T, cfg *config.Config, surface terrain.SurfaceType, opts Options) *Sim {
	t.Helper()
	opts.Config = cfg
	opts.Ground = ground.NewPlane(0, surface)
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustSpawn(t *testing.T, s *Sim, mounts []WheelMount) uint32 {
	t.Helper()
	id, err := s.SpawnVehicle(mounts...)
	if err != nil {
		t.Fatalf("SpawnVehicle: %v", err)
	}
	return id
}

func TestNewRequiresGround(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without ground")
	}
}

func TestSpawnVehicleRejectsBadWheels(t *testing.T) {
	cfg := config.Cfg()
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{})

	if _, err := s.SpawnVehicle(); err == nil {
		t.Error("expected error for a vehicle without wheels")
	}

	bad := carMounts(cfg, 0, 0, 0, 0)
	bad[1].Spec.Radius = 0
	if _, err := s.SpawnVehicle(bad...); err == nil {
		t.Error("expected error for zero radius")
	}

	nan := carMounts(cfg, 0, 0, 0, 0)
	nan[0].Input.DriveTorque = math.NaN()
	if _, err := s.SpawnVehicle(nan...); !errors.Is(err, systems.ErrNonFinite) {
		t.Errorf("NaN input error = %v, want ErrNonFinite", err)
	}

	if len(s.Vehicles()) != 0 {
		t.Error("failed spawns should not leave vehicles behind")
	}
}

func TestStepCarriesCornerLoad(t *testing.T) {
	cfg := config.Cfg()
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{})
	id := mustSpawn(t, s, carMounts(cfg, 0, 0, 10, 0))

	for i := 0; i < 60; i++ {
		s.Step()
	}
	if s.Tick() != 60 {
		t.Errorf("Tick() = %d, want 60", s.Tick())
	}

	outs := s.Outputs(id)
	if len(outs) != 4 {
		t.Fatalf("got %d outputs, want 4", len(outs))
	}
	for i, out := range outs {
		if !out.Grounded {
			t.Errorf("wheel %d not grounded", i)
		}
		if math.Abs(out.SuspensionForce.Z-cfg.Derived.CornerLoad) > 1 {
			t.Errorf("wheel %d suspension force %.1f, want corner load %.1f", i, out.SuspensionForce.Z, cfg.Derived.CornerLoad)
		}
		if out.SlipRatio > 0.01 {
			t.Errorf("wheel %d free-rolling slip %.4f", i, out.SlipRatio)
		}
	}
}

func TestParallelMatchesSingleThreaded(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	run := func(threshold, workers int) []WheelState {
		cfg := *base
		cfg.Parallel.Threshold = threshold
		cfg.Parallel.Workers = workers
		s := newTestSim(t, &cfg, terrain.SurfaceMud, Options{})
		for v := 0; v < 20; v++ {
			mustSpawn(t, s, carMounts(&cfg, float64(v)*10, 0, float64(v%5)+1, float64(v)*40))
		}
		for i := 0; i < 50; i++ {
			s.Step()
		}
		return s.Records()
	}

	single := run(1<<30, 1)
	parallel := run(1, 4)
	if len(single) != 80 {
		t.Fatalf("got %d records, want 80", len(single))
	}
	if !reflect.DeepEqual(single, parallel) {
		t.Error("parallel pass diverged from single-threaded pass")
	}
}

func TestRejectedWheelHoldsOutputs(t *testing.T) {
	cfg := config.Cfg()
	var got []Rejection
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{
		OnReject: func(r Rejection) { got = append(got, r) },
	})
	mounts := carMounts(cfg, 0, 0, 5, 100)
	id := mustSpawn(t, s, mounts)

	for i := 0; i < 10; i++ {
		s.Step()
	}
	held := s.Outputs(id)[2]

	poisoned := mounts[2].Input
	poisoned.LinearVelocity.X = math.Inf(1)
	if err := s.SetInput(id, 2, poisoned); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		s.Step()
	}

	if len(got) != 3 {
		t.Fatalf("handler called %d times, want 3", len(got))
	}
	for _, r := range got {
		if r.VehicleID != id || r.Wheel != 2 || !errors.Is(r.Err, systems.ErrNonFinite) {
			t.Errorf("unexpected rejection %+v", r)
		}
	}
	if got[0].Tick != 10 || got[2].Tick != 12 {
		t.Errorf("rejection ticks %d..%d, want 10..12", got[0].Tick, got[2].Tick)
	}

	outs := s.Outputs(id)
	if !outs[2].Rejected || outs[2].RejectedTicks != 3 {
		t.Errorf("wheel 2 Rejected=%v RejectedTicks=%d, want true/3", outs[2].Rejected, outs[2].RejectedTicks)
	}
	if outs[2].SuspensionForce != held.SuspensionForce || outs[2].LongitudinalForce != held.LongitudinalForce {
		t.Error("rejected wheel did not hold its previous forces")
	}
	if outs[0].Rejected || outs[0].RejectedTicks != 0 {
		t.Error("healthy wheel was affected by a rejected sibling")
	}

	if err := s.SetInput(id, 2, mounts[2].Input); err != nil {
		t.Fatal(err)
	}
	s.Step()
	if out := s.Outputs(id)[2]; out.Rejected || out.RejectedTicks != 3 {
		t.Errorf("after recovery Rejected=%v RejectedTicks=%d, want false/3", out.Rejected, out.RejectedTicks)
	}
}

func TestRemoveVehicle(t *testing.T) {
	cfg := config.Cfg()
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{})
	a := mustSpawn(t, s, carMounts(cfg, 0, 0, 5, 0))
	b := mustSpawn(t, s, carMounts(cfg, 20, 0, 5, 0))
	s.Step()

	s.RemoveVehicle(a)
	s.RemoveVehicle(999)

	if s.Outputs(a) != nil {
		t.Error("removed vehicle still has outputs")
	}
	if err := s.SetInput(a, 0, components.WheelInput{}); !errors.Is(err, ErrUnknownWheel) {
		t.Errorf("SetInput on removed vehicle = %v, want ErrUnknownWheel", err)
	}
	if err := s.SetInput(b, 4, components.WheelInput{}); !errors.Is(err, ErrUnknownWheel) {
		t.Errorf("SetInput on wheel 4 = %v, want ErrUnknownWheel", err)
	}

	s.Step()
	if got := s.Vehicles(); !reflect.DeepEqual(got, []uint32{b}) {
		t.Errorf("Vehicles() = %v, want [%d]", got, b)
	}
	if n := len(s.Records()); n != 4 {
		t.Errorf("got %d records, want 4", n)
	}

	c := mustSpawn(t, s, carMounts(cfg, 40, 0, 5, 0))
	if c == a || c == b {
		t.Errorf("vehicle id %d reused", c)
	}
}

func TestRestoreReplaysIdentically(t *testing.T) {
	cfg := config.Cfg()
	a := newTestSim(t, cfg, terrain.SurfaceSand, Options{})
	mustSpawn(t, a, carMounts(cfg, 0, 0, 4, 600))
	mustSpawn(t, a, carMounts(cfg, 0, 10, 2, -50))
	for i := 0; i < 30; i++ {
		a.Step()
	}

	b := newTestSim(t, cfg, terrain.SurfaceSand, Options{})
	mustSpawn(t, b, carMounts(cfg, 100, 0, 1, 0))
	if err := b.Restore(a.Tick(), a.Records()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Records(), b.Records()) {
		t.Fatal("restored state differs")
	}

	for i := 0; i < 30; i++ {
		a.Step()
		b.Step()
	}
	if a.Tick() != b.Tick() {
		t.Errorf("ticks %d vs %d", a.Tick(), b.Tick())
	}
	if !reflect.DeepEqual(a.Records(), b.Records()) {
		t.Error("replay after restore diverged")
	}

	next := mustSpawn(t, b, carMounts(cfg, 0, 20, 0, 0))
	if next != 3 {
		t.Errorf("next vehicle id after restore = %d, want 3", next)
	}
}

func TestRestoreRejectsIndexGaps(t *testing.T) {
	cfg := config.Cfg()
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{})
	mustSpawn(t, s, carMounts(cfg, 0, 0, 0, 0))
	states := s.Records()
	states[3].Index = 7

	if err := s.Restore(0, states); err == nil {
		t.Error("expected error for non-contiguous wheel indices")
	}
	if len(s.Records()) != 4 {
		t.Error("failed restore should leave the world untouched")
	}
}

type recordingStore struct {
	ticks  []int64
	wheels []int
}

func (r *recordingStore) Save(tick int64, states []WheelState) error {
	r.ticks = append(r.ticks, tick)
	r.wheels = append(r.wheels, len(states))
	return nil
}

func TestStoreSavesAtInterval(t *testing.T) {
	cfg := config.Cfg()
	store := &recordingStore{}
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{Store: store, StoreInterval: 10})
	mustSpawn(t, s, carMounts(cfg, 0, 0, 3, 0))

	for i := 0; i < 35; i++ {
		s.Step()
	}
	if !reflect.DeepEqual(store.ticks, []int64{10, 20, 30}) {
		t.Errorf("saved at %v, want [10 20 30]", store.ticks)
	}
	for _, n := range store.wheels {
		if n != 4 {
			t.Errorf("saved %d wheels, want 4", n)
		}
	}
}

func TestTelemetryWindows(t *testing.T) {
	cfg := config.Cfg()
	dir := t.TempDir()
	var windows []telemetry.WindowStats
	s := newTestSim(t, cfg, terrain.SurfaceAsphalt, Options{
		StatsWindowSec: 0.5,
		OutputDir:      dir,
		StatsCallback:  func(ws telemetry.WindowStats) { windows = append(windows, ws) },
	})
	mustSpawn(t, s, carMounts(cfg, 0, 0, 8, 200))

	for i := 0; i < 90; i++ {
		s.Step()
	}

	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	w := windows[2]
	if w.WindowEndTick != 90 || w.Ticks != 30 {
		t.Errorf("last window end=%d ticks=%d, want 90/30", w.WindowEndTick, w.Ticks)
	}
	if w.Vehicles != 1 || w.Wheels != 4 || w.Grounded != 4 {
		t.Errorf("counts vehicles=%d wheels=%d grounded=%d", w.Vehicles, w.Wheels, w.Grounded)
	}
	if math.Abs(w.LoadMean-cfg.Derived.CornerLoad) > 1 {
		t.Errorf("LoadMean %.1f, want %.1f", w.LoadMean, cfg.Derived.CornerLoad)
	}

	for _, name := range []string{"telemetry.csv", "perf.csv", "wheels.csv", "config.yaml"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
