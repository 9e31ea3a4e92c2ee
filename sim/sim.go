// Package sim owns the wheels of every vehicle in an ECS world and advances
// them together in a fixed-tick batch pass.
package sim

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mlange-42/ark/ecs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/telemetry"
	"github.com/pthm-cable/mudtrack/weather"
)

// ErrUnknownWheel is returned when a vehicle or wheel index does not exist.
var ErrUnknownWheel = errors.New("unknown wheel")

// Rejection describes one wheel tick that was rejected for non-finite values.
type Rejection struct {
	VehicleID uint32
	Wheel     int
	Tick      int64
	Err       error
}

// RejectHandler receives every rejected wheel tick, in vehicle and wheel
// order, after the pass has been applied.
type RejectHandler func(Rejection)

// Snapshotter persists wheel states. storage.Store implements it.
type Snapshotter interface {
	Save(tick int64, states []WheelState) error
}

// WheelMount is one wheel to attach when spawning a vehicle.
type WheelMount struct {
	Spec  components.WheelSpec
	Input components.WheelInput
}

// WheelState is everything needed to restore one wheel.
type WheelState struct {
	VehicleID uint32
	Index     int
	Spec      components.WheelSpec
	Input     components.WheelInput
	Record    systems.WheelRecord
}

// Options configures a Sim.
type Options struct {
	Config  *config.Config       // nil = config.Cfg()
	Ground  systems.SpatialQuery // required
	Weather weather.Service      // nil = built from Config.Weather

	OnReject RejectHandler

	// Telemetry
	LogStats       bool
	StatsWindowSec float64 // 0 = Config.Telemetry.StatsWindow
	OutputDir      string  // CSV, config and bookmark snapshots; empty disables
	StatsCallback  func(telemetry.WindowStats)
	Influx         *telemetry.InfluxSink

	// Storage
	Store         Snapshotter
	StoreInterval int // ticks between saves; 0 = Config.Storage.Interval
}

// Sim holds the wheel world and advances it one tick per Step.
type Sim struct {
	cfg     *config.Config
	params  *systems.Params
	ground  systems.SpatialQuery
	weather weather.Service

	world *ecs.World

	wheelMapper *ecs.Map7[
		components.WheelSpec,
		components.WheelInput,
		components.WheelContact,
		components.SuspensionState,
		components.WheelSlipState,
		components.TireState,
		components.WheelOutput,
	]
	wheelFilter *ecs.Filter7[
		components.WheelSpec,
		components.WheelInput,
		components.WheelContact,
		components.SuspensionState,
		components.WheelSlipState,
		components.TireState,
		components.WheelOutput,
	]

	inputMap  *ecs.Map1[components.WheelInput]
	outputMap *ecs.Map1[components.WheelOutput]

	// Wheels per vehicle, by index
	vehicles      map[uint32][]ecs.Entity
	nextVehicleID uint32

	tick     int64
	parallel *parallelState
	onReject RejectHandler
	metrics  *instruments

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	influx           *telemetry.InfluxSink
	statsCallback    func(telemetry.WindowStats)
	logStats         bool

	store         Snapshotter
	storeInterval int64
}

// New creates a simulation with no vehicles.
func New(opts Options) (*Sim, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	if opts.Ground == nil {
		return nil, errors.New("sim: ground is required")
	}

	svc := opts.Weather
	if svc == nil {
		var err error
		if svc, err = weather.New(cfg.Weather); err != nil {
			return nil, fmt.Errorf("building weather: %w", err)
		}
	}

	ins, err := newInstruments()
	if err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	s := &Sim{
		cfg:     cfg,
		params:  systems.NewParams(cfg),
		ground:  opts.Ground,
		weather: svc,
		world:   world,
		wheelMapper: ecs.NewMap7[
			components.WheelSpec,
			components.WheelInput,
			components.WheelContact,
			components.SuspensionState,
			components.WheelSlipState,
			components.TireState,
			components.WheelOutput,
		](world),
		wheelFilter: ecs.NewFilter7[
			components.WheelSpec,
			components.WheelInput,
			components.WheelContact,
			components.SuspensionState,
			components.WheelSlipState,
			components.TireState,
			components.WheelOutput,
		](world),
		inputMap:      ecs.NewMap1[components.WheelInput](world),
		outputMap:     ecs.NewMap1[components.WheelOutput](world),
		vehicles:      make(map[uint32][]ecs.Entity),
		nextVehicleID: 1,
		parallel:      newParallelState(cfg.Parallel.Workers, cfg.Parallel.Threshold),
		onReject:      opts.OnReject,
		metrics:       ins,
		influx:        opts.Influx,
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
		store:         opts.Store,
	}

	window := opts.StatsWindowSec
	if window <= 0 {
		window = cfg.Telemetry.StatsWindow
	}
	s.collector = telemetry.NewCollector(window, cfg.Physics.DT)
	s.perfCollector = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	s.bookmarkDetector = telemetry.NewBookmarkDetector(10)

	s.storeInterval = int64(opts.StoreInterval)
	if s.storeInterval <= 0 {
		s.storeInterval = int64(cfg.Storage.Interval)
	}

	if opts.OutputDir != "" {
		om, err := telemetry.NewOutputManager(opts.OutputDir)
		if err != nil {
			return nil, err
		}
		if err := om.WriteConfig(cfg); err != nil {
			om.Close()
			return nil, err
		}
		s.outputManager = om
	}

	return s, nil
}

// DefaultWheel returns a wheel spec built from the wheel config section.
func DefaultWheel(cfg *config.Config) components.WheelSpec {
	tireType, err := components.ParseTireType(cfg.Wheel.TireType)
	if err != nil {
		panic(fmt.Sprintf("sim: %v", err))
	}
	return components.WheelSpec{
		Radius:   cfg.Wheel.Radius,
		Width:    cfg.Wheel.Width,
		Inertia:  cfg.Wheel.Inertia,
		TireType: tireType,
	}
}

// SpawnVehicle attaches the given wheels as a new vehicle and returns its ID.
// Each wheel starts resting on the ground under its input, rolling at the
// ground speed. VehicleID and Index on the specs are assigned here.
func (s *Sim) SpawnVehicle(mounts ...WheelMount) (uint32, error) {
	if len(mounts) == 0 {
		return 0, errors.New("sim: vehicle needs at least one wheel")
	}
	for i := range mounts {
		sp := &mounts[i].Spec
		if sp.Radius <= 0 || sp.Width <= 0 || sp.Inertia <= 0 {
			return 0, fmt.Errorf("sim: wheel %d: radius, width and inertia must be positive", i)
		}
		if err := systems.CheckInput(&mounts[i].Input); err != nil {
			return 0, fmt.Errorf("sim: wheel %d: %w", i, err)
		}
	}

	id := s.nextVehicleID
	s.nextVehicleID++

	simTime := s.SimTime()
	wheels := make([]ecs.Entity, len(mounts))
	for i := range mounts {
		spec := mounts[i].Spec
		spec.VehicleID = id
		spec.Index = i
		in := mounts[i].Input
		w := weather.Properties(s.weather, in.MountPosition, simTime)
		rec := systems.MountWheel(s.params, s.ground, &spec, &in, w)
		wheels[i] = s.newWheel(&spec, &in, &rec)
	}
	s.vehicles[id] = wheels

	slog.Debug("vehicle spawned", "vehicle", id, "wheels", len(mounts), "tick", s.tick)
	return id, nil
}

func (s *Sim) newWheel(spec *components.WheelSpec, in *components.WheelInput, rec *systems.WheelRecord) ecs.Entity {
	return s.wheelMapper.NewEntity(spec, in, &rec.Contact, &rec.Suspension, &rec.Slip, &rec.Tire, &rec.Output)
}

// RemoveVehicle removes a vehicle and its wheels. Unknown IDs are ignored.
func (s *Sim) RemoveVehicle(id uint32) {
	wheels, ok := s.vehicles[id]
	if !ok {
		return
	}
	for _, e := range wheels {
		if s.world.Alive(e) {
			s.world.RemoveEntity(e)
		}
	}
	delete(s.vehicles, id)
}

// Vehicles returns the IDs of all live vehicles in ascending order.
func (s *Sim) Vehicles() []uint32 {
	ids := make([]uint32, 0, len(s.vehicles))
	for id := range s.vehicles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Sim) wheel(vehicleID uint32, index int) (ecs.Entity, error) {
	wheels, ok := s.vehicles[vehicleID]
	if !ok || index < 0 || index >= len(wheels) {
		return ecs.Entity{}, fmt.Errorf("%w: vehicle %d wheel %d", ErrUnknownWheel, vehicleID, index)
	}
	return wheels[index], nil
}

// SetInput replaces the input a wheel reads on the next Step. Inputs persist
// until replaced.
func (s *Sim) SetInput(vehicleID uint32, index int, in components.WheelInput) error {
	e, err := s.wheel(vehicleID, index)
	if err != nil {
		return err
	}
	*s.inputMap.Get(e) = in
	return nil
}

// Outputs returns a vehicle's wheel outputs ordered by wheel index, or nil if
// the vehicle does not exist.
func (s *Sim) Outputs(vehicleID uint32) []components.WheelOutput {
	wheels, ok := s.vehicles[vehicleID]
	if !ok {
		return nil
	}
	out := make([]components.WheelOutput, len(wheels))
	for i, e := range wheels {
		out[i] = *s.outputMap.Get(e)
	}
	return out
}

// Step runs one batch update pass over every wheel.
func (s *Sim) Step() {
	ctx := context.Background()
	s.perfCollector.StartTick()

	// Phase A: snapshot (single-threaded)
	s.perfCollector.StartPhase(telemetry.PhaseSnapshot)
	n := s.snapshot()

	// Phase B: compute
	s.perfCollector.StartPhase(telemetry.PhaseCompute)
	if n > 0 {
		if n < s.parallel.threshold || s.parallel.numWorkers == 1 {
			s.computeChunk(0, n)
		} else {
			s.computeParallel(n)
		}
	}

	// Phase C: apply (single-threaded, snapshot order)
	s.perfCollector.StartPhase(telemetry.PhaseApply)
	s.apply()

	s.tick++
	s.collector.RecordTick()

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.flushTelemetry()

	s.perfCollector.StartPhase(telemetry.PhaseStorage)
	s.saveSnapshot()

	d := s.perfCollector.EndTick()

	s.metrics.ticks.Add(ctx, 1)
	s.metrics.wheelTicks.Add(ctx, int64(n))
	s.metrics.tickDuration.Record(ctx, float64(d)/float64(time.Millisecond))
}

// snapshot copies every wheel's inputs and previous record, sorted by
// vehicle and wheel index so rejection reports are ordered.
func (s *Sim) snapshot() int {
	p := s.parallel
	p.snapshots = p.snapshots[:0]
	simTime := s.SimTime()

	query := s.wheelFilter.Query()
	for query.Next() {
		spec, in, contact, susp, slip, tire, out := query.Get()
		p.snapshots = append(p.snapshots, wheelSnapshot{
			Entity:  query.Entity(),
			Spec:    *spec,
			Input:   *in,
			Weather: weather.Properties(s.weather, in.MountPosition, simTime),
			Prev: systems.WheelRecord{
				Contact:    *contact,
				Suspension: *susp,
				Slip:       *slip,
				Tire:       *tire,
				Output:     *out,
			},
		})
	}

	slices.SortFunc(p.snapshots, func(a, b wheelSnapshot) int {
		return cmp.Or(cmp.Compare(a.Spec.VehicleID, b.Spec.VehicleID), cmp.Compare(a.Spec.Index, b.Spec.Index))
	})

	n := len(p.snapshots)
	if cap(p.results) < n {
		p.results = make([]wheelResult, n)
	}
	p.results = p.results[:n]
	return n
}

// apply writes results back to the components and reports rejections.
func (s *Sim) apply() {
	for i := range s.parallel.snapshots {
		snap := &s.parallel.snapshots[i]
		res := &s.parallel.results[i]

		_, _, contact, susp, slip, tire, out := s.wheelMapper.Get(snap.Entity)
		*contact = res.Record.Contact
		*susp = res.Record.Suspension
		*slip = res.Record.Slip
		*tire = res.Record.Tire
		*out = res.Record.Output

		if res.Err != nil {
			s.reject(Rejection{
				VehicleID: snap.Spec.VehicleID,
				Wheel:     snap.Spec.Index,
				Tick:      s.tick,
				Err:       res.Err,
			})
		}
	}
}

func (s *Sim) reject(r Rejection) {
	slog.Warn("wheel tick rejected",
		"vehicle", r.VehicleID,
		"wheel", r.Wheel,
		"tick", r.Tick,
		"reason", r.Err.Error(),
	)
	s.collector.RecordRejection()
	s.metrics.rejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int64("vehicle", int64(r.VehicleID))))
	if s.onReject != nil {
		s.onReject(r)
	}
}

// Records returns every wheel's state ordered by vehicle and wheel index.
func (s *Sim) Records() []WheelState {
	states := make([]WheelState, 0, len(s.parallel.snapshots))
	query := s.wheelFilter.Query()
	for query.Next() {
		spec, in, contact, susp, slip, tire, out := query.Get()
		states = append(states, WheelState{
			VehicleID: spec.VehicleID,
			Index:     spec.Index,
			Spec:      *spec,
			Input:     *in,
			Record: systems.WheelRecord{
				Contact:    *contact,
				Suspension: *susp,
				Slip:       *slip,
				Tire:       *tire,
				Output:     *out,
			},
		})
	}
	slices.SortFunc(states, func(a, b WheelState) int {
		return cmp.Or(cmp.Compare(a.VehicleID, b.VehicleID), cmp.Compare(a.Index, b.Index))
	})
	return states
}

// Restore replaces every vehicle with the given states and sets the tick.
// Stepping a restored Sim produces the same results as the Sim the states
// were taken from.
func (s *Sim) Restore(tick int64, states []WheelState) error {
	byVehicle := make(map[uint32][]WheelState)
	for _, st := range states {
		byVehicle[st.VehicleID] = append(byVehicle[st.VehicleID], st)
	}
	for id, wheels := range byVehicle {
		slices.SortFunc(wheels, func(a, b WheelState) int { return cmp.Compare(a.Index, b.Index) })
		for i, w := range wheels {
			if w.Index != i {
				return fmt.Errorf("restoring vehicle %d: wheel indices must be 0..%d, got %d", id, len(wheels)-1, w.Index)
			}
		}
	}

	for _, id := range s.Vehicles() {
		s.RemoveVehicle(id)
	}

	s.nextVehicleID = 1
	for id, wheels := range byVehicle {
		entities := make([]ecs.Entity, len(wheels))
		for i := range wheels {
			w := &wheels[i]
			spec := w.Spec
			spec.VehicleID, spec.Index = id, w.Index
			entities[i] = s.newWheel(&spec, &w.Input, &w.Record)
		}
		s.vehicles[id] = entities
		s.nextVehicleID = max(s.nextVehicleID, id+1)
	}

	s.tick = tick
	return nil
}

// Tick returns the number of completed passes.
func (s *Sim) Tick() int64 {
	return s.tick
}

// SimTime returns simulated seconds elapsed.
func (s *Sim) SimTime() float64 {
	return float64(s.tick) * s.cfg.Physics.DT
}

// Close stops the worker pool and closes telemetry outputs.
func (s *Sim) Close() error {
	s.parallel.stopWorkers()
	return s.outputManager.Close()
}
