package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Clamp functions for common value ranges

// clampFloat clamps v between minVal and maxVal.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps v to the [0, 1] range.
func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

// sign returns -1, 0 or 1.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Vector helpers

// unitOr normalizes v, returning fallback when v is (near) zero.
func unitOr(v, fallback r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-9 {
		return fallback
	}
	return r3.Scale(1/n, v)
}

// rotateAbout rotates v by angle radians around the unit axis k (Rodrigues).
func rotateAbout(v, k r3.Vec, angle float64) r3.Vec {
	if angle == 0 {
		return v
	}
	sin, cos := math.Sincos(angle)
	// v cos + (k × v) sin + k (k·v)(1 - cos)
	out := r3.Scale(cos, v)
	out = r3.Add(out, r3.Scale(sin, r3.Cross(k, v)))
	return r3.Add(out, r3.Scale(r3.Dot(k, v)*(1-cos), k))
}

// projectOnPlane removes the component of v along the unit normal n.
func projectOnPlane(v, n r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, n), n))
}

// approach moves current toward target by the fraction rate*dt, never past it.
func approach(current, target, rate, dt float64) float64 {
	return current + (target-current)*clamp01(rate*dt)
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteVec reports whether all components of v are finite.
func finiteVec(v r3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}
