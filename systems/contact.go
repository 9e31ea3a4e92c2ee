package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

// Hit is a ray intersection reported by a SpatialQuery.
type Hit struct {
	Point    r3.Vec
	Normal   r3.Vec
	Distance float64
	Surface  terrain.SurfaceType
}

// SpatialQuery casts rays against the world geometry.
// Implementations must be safe for concurrent use; the batch pass calls
// CastRay from every worker at once.
type SpatialQuery interface {
	CastRay(origin, dir r3.Vec, maxDist float64) (Hit, bool)
}

// worldDown is used when a wheel reports a zero suspension axis.
var worldDown = r3.Vec{Z: -1}

// ProbeLength is how far below the mount the resolver looks for ground.
func ProbeLength(susp *components.SuspensionState, radius float64) float64 {
	return susp.RestLength + radius
}

// ResolveContact probes along the suspension axis and reports what the
// wheel is touching. A miss yields the zero contact.
func ResolveContact(q SpatialQuery, spec *components.WheelSpec, in *components.WheelInput, susp *components.SuspensionState) components.WheelContact {
	dir := unitOr(in.Down, worldDown)
	maxDist := ProbeLength(susp, spec.Radius)

	hit, ok := q.CastRay(in.MountPosition, dir, maxDist)
	if !ok || hit.Distance < 0 || hit.Distance > maxDist {
		return components.WheelContact{}
	}

	return components.WheelContact{
		Grounded: true,
		Point:    hit.Point,
		Normal:   unitOr(hit.Normal, r3.Scale(-1, dir)),
		Distance: hit.Distance,
		Surface:  hit.Surface,
	}
}
