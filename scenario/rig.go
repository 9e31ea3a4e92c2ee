package scenario

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/ground"
	"github.com/pthm-cable/mudtrack/sim"
	"github.com/pthm-cable/mudtrack/telemetry"
	"github.com/pthm-cable/mudtrack/weather"
)

// heightMap is implemented by grounds that can report their height under a point.
type heightMap interface {
	HeightAt(x, y float64) float64
}

// Frame is every wheel's state after one tick.
type Frame struct {
	Tick   int64
	Wheels []sim.WheelState
}

// Result summarizes a finished run.
type Result struct {
	Name       string
	Ticks      int64
	Vehicles   []uint32
	Windows    []telemetry.WindowStats
	Rejections []sim.Rejection
	Final      []sim.WheelState
	Frames     []Frame // only when RunOptions.Trace is set
}

// RunOptions configures Run. Everything except Config is optional.
type RunOptions struct {
	Config   *config.Config // nil = config.Cfg()
	Trace    bool
	LogStats bool
	// StatsWindowSec of 0 takes the config's telemetry window.
	StatsWindowSec float64
	OutputDir      string
	Influx         *telemetry.InfluxSink
	Store          sim.Snapshotter
	// Restore, when set, replaces the spawned vehicles before the first tick.
	Restore func(s *sim.Sim) error
}

// rigVehicle is the held motion and controls of one chassis.
type rigVehicle struct {
	id      uint32
	def     Vehicle
	x, y    float64
	heading float64
	offsets []r3.Vec // chassis frame: X forward, Y left
	next    int      // next control to apply

	speed, throttle, brake, steer float64
}

type rig struct {
	cfg      *config.Config
	heights  heightMap
	vehicles []*rigVehicle
}

// Run builds the ground and weather, spawns the vehicles and steps the
// simulation for sc.Ticks ticks.
func Run(sc *Scenario, opts RunOptions) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	g, err := ground.New(sc.Ground)
	if err != nil {
		return nil, fmt.Errorf("building ground: %w", err)
	}
	svc, err := weather.New(sc.Weather)
	if err != nil {
		return nil, fmt.Errorf("building weather: %w", err)
	}

	res := &Result{Name: sc.Name}
	s, err := sim.New(sim.Options{
		Config:         cfg,
		Ground:         g,
		Weather:        svc,
		OnReject:       func(r sim.Rejection) { res.Rejections = append(res.Rejections, r) },
		LogStats:       opts.LogStats,
		StatsWindowSec: opts.StatsWindowSec,
		OutputDir:      opts.OutputDir,
		StatsCallback:  func(ws telemetry.WindowStats) { res.Windows = append(res.Windows, ws) },
		Influx:         opts.Influx,
		Store:          opts.Store,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	r := &rig{cfg: cfg}
	if hm, ok := g.(heightMap); ok {
		r.heights = hm
	}

	for i, def := range sc.Vehicles {
		v, err := r.spawn(s, def)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
		res.Vehicles = append(res.Vehicles, v.id)
	}

	if opts.Restore != nil {
		if err := opts.Restore(s); err != nil {
			return nil, fmt.Errorf("restoring: %w", err)
		}
		for range s.Tick() {
			r.advance(cfg.Physics.DT)
		}
	}

	for s.Tick() < int64(sc.Ticks) {
		if err := r.drive(s); err != nil {
			return nil, err
		}
		s.Step()
		r.advance(cfg.Physics.DT)

		if opts.Trace {
			res.Frames = append(res.Frames, Frame{Tick: s.Tick(), Wheels: s.Records()})
		}
	}

	res.Ticks = s.Tick()
	res.Final = s.Records()
	return res, nil
}

func (r *rig) spawn(s *sim.Sim, def Vehicle) (*rigVehicle, error) {
	cfg := r.cfg
	wheels := def.Wheels
	if wheels == 0 {
		wheels = cfg.Vehicle.Wheels
	}

	spec := sim.DefaultWheel(cfg)
	if def.TireType != "" {
		tt, err := components.ParseTireType(def.TireType)
		if err != nil {
			return nil, err
		}
		spec.TireType = tt
	}

	hw, ht := cfg.Vehicle.Wheelbase/2, cfg.Vehicle.Track/2
	offsets := []r3.Vec{{X: hw}, {X: -hw}}
	if wheels == 4 {
		offsets = []r3.Vec{{X: hw, Y: ht}, {X: hw, Y: -ht}, {X: -hw, Y: ht}, {X: -hw, Y: -ht}}
	}

	v := &rigVehicle{
		def:      def,
		x:        def.X,
		y:        def.Y,
		heading:  def.Heading,
		offsets:  offsets,
		speed:    def.Speed,
		throttle: def.Throttle,
		brake:    def.Brake,
		steer:    def.Steer,
	}

	mounts := make([]sim.WheelMount, len(offsets))
	for i := range offsets {
		mounts[i] = sim.WheelMount{Spec: spec, Input: r.input(v, i)}
	}
	id, err := s.SpawnVehicle(mounts...)
	if err != nil {
		return nil, err
	}
	v.id = id
	r.vehicles = append(r.vehicles, v)
	return v, nil
}

// drive applies due controls and feeds every wheel its input for the next tick.
func (r *rig) drive(s *sim.Sim) error {
	t := s.SimTime()
	for _, v := range r.vehicles {
		for v.next < len(v.def.Controls) && v.def.Controls[v.next].At <= t {
			c := v.def.Controls[v.next]
			if c.Speed != nil {
				v.speed = *c.Speed
			}
			if c.Throttle != nil {
				v.throttle = *c.Throttle
			}
			if c.Brake != nil {
				v.brake = *c.Brake
			}
			if c.Steer != nil {
				v.steer = *c.Steer
			}
			v.next++
		}

		for i := range v.offsets {
			if err := s.SetInput(v.id, i, r.input(v, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// advance moves every chassis along its heading.
func (r *rig) advance(dt float64) {
	for _, v := range r.vehicles {
		v.x += v.speed * math.Cos(v.heading) * dt
		v.y += v.speed * math.Sin(v.heading) * dt
	}
}

func (r *rig) height(x, y float64) float64 {
	if r.heights == nil {
		return 0
	}
	return r.heights.HeightAt(x, y)
}

// input places wheel i of v with its spring at the static length above the
// ground under it.
func (r *rig) input(v *rigVehicle, i int) components.WheelInput {
	cfg := r.cfg
	cos, sin := math.Cos(v.heading), math.Sin(v.heading)
	fwd := r3.Vec{X: cos, Y: sin}
	right := r3.Vec{X: sin, Y: -cos}

	off := v.offsets[i]
	x := v.x + off.X*cos - off.Y*sin
	y := v.y + off.X*sin + off.Y*cos
	lift := cfg.Wheel.Radius + cfg.Derived.StaticLength

	steer := 0.0
	if off.X > 0 {
		steer = v.steer
	}

	return components.WheelInput{
		MountPosition:  r3.Vec{X: x, Y: y, Z: r.height(x, y) + lift},
		Down:           r3.Vec{Z: -1},
		Forward:        fwd,
		Right:          right,
		LinearVelocity: r3.Scale(v.speed, fwd),
		CenterOfMass:   r3.Vec{X: v.x, Y: v.y, Z: r.height(v.x, v.y) + lift},
		DriveTorque:    v.throttle,
		BrakeTorque:    v.brake,
		SteerAngle:     steer,
	}
}
