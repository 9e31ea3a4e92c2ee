package main

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/ground"
	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/terrain"
)

// settleBand is the fraction of the initial sag the body must stay within
// to count as settled.
const settleBand = 0.02

// DropResult describes how a quarter car settles after being set down on
// an unloaded spring.
type DropResult struct {
	Overshoot  float64 // how far the body sinks past static height, as a fraction of the sag
	SettleTime float64 // s until the body stays within settleBand of static height
	PeakForce  float64 // N
}

// DropTest lowers one corner mass onto its wheel with the spring at rest and
// integrates the body for duration seconds on flat asphalt.
func DropTest(cfg *config.Config, duration float64) DropResult {
	p := systems.NewParams(cfg)
	spec := components.WheelSpec{
		Radius:  cfg.Wheel.Radius,
		Width:   cfg.Wheel.Width,
		Inertia: cfg.Wheel.Inertia,
	}
	g := ground.NewPlane(0, terrain.SurfaceAsphalt)
	mass := cfg.Derived.CornerMass

	// Start just inside probe range so the first tick is grounded
	z := spec.Radius + cfg.Suspension.RestLength - 1e-3
	static := spec.Radius + cfg.Derived.StaticLength
	sag := z - static

	in := components.WheelInput{
		MountPosition: r3.Vec{Z: z},
		Down:          r3.Vec{Z: -1},
		Forward:       r3.Vec{X: 1},
		Right:         r3.Vec{Y: -1},
		CenterOfMass:  r3.Vec{Z: z},
	}
	susp := systems.NewSuspensionState(cfg.Suspension)
	c := systems.ResolveContact(g, &spec, &in, &susp)
	susp = systems.PrimeSuspension(susp, &c, spec.Radius)

	var res DropResult
	var v float64
	lowest := z
	settledAt := -1
	steps := int(duration / p.DT)

	for i := 0; i < steps; i++ {
		in.MountPosition.Z = z
		in.CenterOfMass.Z = z
		c = systems.ResolveContact(g, &spec, &in, &susp)
		susp = systems.UpdateSuspension(p, susp, &c, spec.Radius)

		f := systems.NormalLoad(&susp)
		res.PeakForce = max(res.PeakForce, f)

		v += (f/mass - p.Gravity) * p.DT
		z += v * p.DT
		lowest = min(lowest, z)

		if math.Abs(z-static) > settleBand*sag {
			settledAt = -1
		} else if settledAt < 0 {
			settledAt = i
		}
	}

	if sag > 0 {
		res.Overshoot = max(static-lowest, 0) / sag
	}
	if settledAt >= 0 {
		res.SettleTime = float64(settledAt+1) * p.DT
	} else {
		res.SettleTime = math.Inf(1)
	}
	return res
}
