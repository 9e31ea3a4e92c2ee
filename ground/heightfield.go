package ground

import (
	"math"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/terrain"
)

// GenConfig parameterizes heightfield generation.
type GenConfig struct {
	Seed        int64
	Size        float64 // square extent in metres, centred on the origin
	CellSize    float64
	Amplitude   float64 // peak height above and below zero
	Scale       float64 // base noise frequency per metre
	Octaves     int
	MarchStep   float64 // ray march step
	WaterLevel  float64 // heights below this are open water
	SurfaceBias float64 // shifts the wetness field; positive is muddier
	Road        terrain.SurfaceType
}

const (
	lacunarity = 2.0
	gain       = 0.5

	shoreBand  = 0.3  // metres above water level that count as shoreline
	roadWidth  = 0.03 // half-width of the road band in noise units
	cliffSlope = 0.6  // 1 - normal.Z above which ground is bare rock
	steepSlope = 0.25
	snowLine   = 0.7 // fraction of amplitude
	refineIter = 16
)

// Heightfield is a regular grid of heights with a surface type per vertex.
// Coordinates outside the grid clamp to its edge.
type Heightfield struct {
	n        int // vertices per side
	cell     float64
	half     float64
	step     float64
	heights  []float64
	surfaces []terrain.SurfaceType
}

// Generate builds terrain from layered simplex noise: one field for
// elevation, one for wetness and one for the road network.
func Generate(gc GenConfig) *Heightfield {
	n := int(gc.Size/gc.CellSize) + 1
	if n < 2 {
		n = 2
	}
	octaves := max(gc.Octaves, 1)
	h := &Heightfield{
		n:        n,
		cell:     gc.CellSize,
		half:     float64(n-1) * gc.CellSize / 2,
		step:     gc.MarchStep,
		heights:  make([]float64, n*n),
		surfaces: make([]terrain.SurfaceType, n*n),
	}
	if h.step <= 0 {
		h.step = gc.CellSize / 4
	}

	elevation := opensimplex.NewNormalized(gc.Seed)
	wetness := opensimplex.NewNormalized(gc.Seed + 1)
	roads := opensimplex.NewNormalized(gc.Seed + 2)

	// 1. Elevation
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			x, y := h.vertex(i, j)
			h.heights[j*n+i] = gc.Amplitude * (2*fbm(elevation, x, y, gc.Scale, octaves) - 1)
		}
	}

	// 2. Surfaces from height, slope, wetness and roads
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			x, y := h.vertex(i, j)
			slope := 1 - h.NormalAt(x, y).Z
			wet := fbm(wetness, x, y, gc.Scale*2, 2) + gc.SurfaceBias
			road := math.Abs(fbm(roads, x, y, gc.Scale/2, 1)-0.5) < roadWidth
			h.surfaces[j*n+i] = classify(gc, h.heights[j*n+i], slope, wet, road)
		}
	}
	return h
}

func classify(gc GenConfig, height, slope, wet float64, road bool) terrain.SurfaceType {
	switch {
	case height < gc.WaterLevel:
		return terrain.SurfaceWater
	case height < gc.WaterLevel+shoreBand:
		if wet > 0.5 {
			return terrain.SurfaceSwamp
		}
		return terrain.SurfaceMud
	case slope > cliffSlope:
		return terrain.SurfaceRock
	case road && slope < steepSlope:
		return gc.Road
	case slope > steepSlope:
		return terrain.SurfaceGravel
	case gc.Amplitude > 0 && height > snowLine*gc.Amplitude:
		return terrain.SurfaceSnow
	case wet > 0.65:
		return terrain.SurfaceMud
	case wet > 0.5:
		return terrain.SurfaceGrass
	case wet > 0.35:
		return terrain.SurfaceDirt
	}
	return terrain.SurfaceSand
}

// fbm sums octaves of normalized noise and returns a value in [0,1].
func fbm(noise opensimplex.Noise, x, y, freq float64, octaves int) float64 {
	var sum, norm float64
	amp := 1.0
	for o := 0; o < octaves; o++ {
		sum += amp * noise.Eval2(x*freq, y*freq)
		norm += amp
		freq *= lacunarity
		amp *= gain
	}
	return sum / norm
}

func (h *Heightfield) vertex(i, j int) (x, y float64) {
	return float64(i)*h.cell - h.half, float64(j)*h.cell - h.half
}

// grid maps a world coordinate to a clamped fractional grid coordinate.
func (h *Heightfield) grid(v float64) float64 {
	return clamp((v+h.half)/h.cell, 0, float64(h.n-1))
}

// HeightAt returns the bilinearly interpolated terrain height.
func (h *Heightfield) HeightAt(x, y float64) float64 {
	gx, gy := h.grid(x), h.grid(y)
	i := min(int(gx), h.n-2)
	j := min(int(gy), h.n-2)
	fx, fy := gx-float64(i), gy-float64(j)

	a := h.heights[j*h.n+i]
	b := h.heights[j*h.n+i+1]
	c := h.heights[(j+1)*h.n+i]
	d := h.heights[(j+1)*h.n+i+1]
	ab := a + (b-a)*fx
	cd := c + (d-c)*fx
	return ab + (cd-ab)*fy
}

// NormalAt returns the unit surface normal from central differences.
func (h *Heightfield) NormalAt(x, y float64) r3.Vec {
	e := h.cell / 2
	dx := (h.HeightAt(x+e, y) - h.HeightAt(x-e, y)) / (2 * e)
	dy := (h.HeightAt(x, y+e) - h.HeightAt(x, y-e)) / (2 * e)
	return r3.Unit(r3.Vec{X: -dx, Y: -dy, Z: 1})
}

// SurfaceAt returns the surface of the nearest grid vertex.
func (h *Heightfield) SurfaceAt(x, y float64) terrain.SurfaceType {
	i := int(math.Round(h.grid(x)))
	j := int(math.Round(h.grid(y)))
	return h.surfaces[j*h.n+i]
}

// Extent returns the half-width of the generated area.
func (h *Heightfield) Extent() float64 {
	return h.half
}

// CastRay marches along the ray in fixed steps and refines the first
// crossing below the surface by bisection. An origin already under the
// terrain reports a hit at distance zero.
func (h *Heightfield) CastRay(origin, dir r3.Vec, maxDist float64) (systems.Hit, bool) {
	if h.above(origin) <= 0 {
		return h.hit(origin, 0), true
	}

	prev := 0.0
	for t := h.step; ; t += h.step {
		if t > maxDist {
			t = maxDist
		}
		if h.above(along(origin, dir, t)) <= 0 {
			t = h.refine(origin, dir, prev, t)
			return h.hit(along(origin, dir, t), t), true
		}
		if t >= maxDist {
			return systems.Hit{}, false
		}
		prev = t
	}
}

func (h *Heightfield) above(p r3.Vec) float64 {
	return p.Z - h.HeightAt(p.X, p.Y)
}

// refine narrows [lo, hi] where lo is above ground and hi is not.
func (h *Heightfield) refine(origin, dir r3.Vec, lo, hi float64) float64 {
	for i := 0; i < refineIter; i++ {
		mid := (lo + hi) / 2
		if h.above(along(origin, dir, mid)) <= 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

func (h *Heightfield) hit(p r3.Vec, dist float64) systems.Hit {
	return systems.Hit{
		Point:    p,
		Normal:   h.NormalAt(p.X, p.Y),
		Distance: dist,
		Surface:  h.SurfaceAt(p.X, p.Y),
	}
}

func along(origin, dir r3.Vec, t float64) r3.Vec {
	return r3.Add(origin, r3.Scale(t, dir))
}
