// Package ground provides the world geometry wheels probe for contact: a flat
// plane and a procedurally generated heightfield. Both are immutable after
// construction and safe for concurrent ray casts.
package ground

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/terrain"
)

// Plane is an infinite horizontal surface at a fixed height.
type Plane struct {
	Height  float64
	Surface terrain.SurfaceType
}

// NewPlane creates a plane at height z covered by surface s.
func NewPlane(z float64, s terrain.SurfaceType) *Plane {
	return &Plane{Height: z, Surface: s}
}

// HeightAt returns the plane height everywhere.
func (p *Plane) HeightAt(x, y float64) float64 {
	return p.Height
}

// CastRay intersects a ray with the plane.
func (p *Plane) CastRay(origin, dir r3.Vec, maxDist float64) (systems.Hit, bool) {
	if dir.Z > -1e-9 {
		return systems.Hit{}, false
	}
	t := (p.Height - origin.Z) / dir.Z
	if t < 0 || t > maxDist {
		return systems.Hit{}, false
	}
	return systems.Hit{
		Point:    r3.Add(origin, r3.Scale(t, dir)),
		Normal:   r3.Vec{Z: 1},
		Distance: t,
		Surface:  p.Surface,
	}, true
}

// New builds the ground described by cfg.
func New(cfg config.GroundConfig) (systems.SpatialQuery, error) {
	surface, err := terrain.ParseSurface(cfg.Surface)
	if err != nil {
		return nil, err
	}
	if cfg.Kind == "heightfield" {
		return Generate(GenConfig{
			Seed:        cfg.Seed,
			Size:        cfg.Size,
			CellSize:    cfg.CellSize,
			Amplitude:   cfg.Amplitude,
			Scale:       cfg.Scale,
			Octaves:     cfg.Octaves,
			MarchStep:   cfg.MarchStep,
			WaterLevel:  cfg.WaterLevel,
			SurfaceBias: cfg.SurfaceBias,
			Road:        surface,
		}), nil
	}
	return NewPlane(0, surface), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
