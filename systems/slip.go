package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

// SlipInputs is what the slip model reads for one wheel in one tick.
// Tire is the state published at the end of the previous tick.
type SlipInputs struct {
	Spec       *components.WheelSpec
	Input      *components.WheelInput
	Contact    *components.WheelContact
	NormalLoad float64
	Tire       *components.TireState
}

// WheelAxes returns the steered forward and right axes of a wheel and the
// up axis. When grounded the forward and right axes lie in the contact plane.
func WheelAxes(in *components.WheelInput, c *components.WheelContact) (fwd, right, up r3.Vec) {
	up = r3.Scale(-1, unitOr(in.Down, worldDown))
	fwd = rotateAbout(unitOr(in.Forward, r3.Vec{X: 1}), up, in.SteerAngle)
	right = rotateAbout(unitOr(in.Right, r3.Vec{Y: -1}), up, in.SteerAngle)
	if !c.Grounded {
		return fwd, right, up
	}

	n := c.Normal
	fwd = unitOr(projectOnPlane(fwd, n), fwd)
	rightG := r3.Cross(fwd, n)
	if r3.Dot(rightG, right) < 0 {
		rightG = r3.Scale(-1, rightG)
	}
	return fwd, unitOr(rightG, right), n
}

// PointVelocity is the chassis velocity at the wheel mount.
func PointVelocity(in *components.WheelInput) r3.Vec {
	arm := r3.Sub(in.MountPosition, in.CenterOfMass)
	return r3.Add(in.LinearVelocity, r3.Cross(in.AngularVelocity, arm))
}

// SlipRatio is |wheelSpeed - groundSpeed| / max(|wheelSpeed|, eps), capped.
func SlipRatio(wheelSpeed, groundSpeed, eps, maxRatio float64) float64 {
	ratio := math.Abs(wheelSpeed-groundSpeed) / math.Max(math.Abs(wheelSpeed), eps)
	return clampFloat(ratio, 0, maxRatio)
}

// SlipAngle is the angle between the velocity and the wheel forward axis.
// Zero when the wheel is not moving.
func SlipAngle(vel, fwd r3.Vec, minSpeed float64) float64 {
	speed := r3.Norm(vel)
	if speed < minSpeed {
		return 0
	}
	return math.Acos(clampFloat(r3.Dot(r3.Scale(1/speed, vel), fwd), -1, 1))
}

// TractionCoefficient combines the surface base traction with the tire's
// fed-back multiplier and its temperature, wear, pressure, slip and
// moisture factors.
func TractionCoefficient(p *Params, base float64, tire *components.TireState, slipRatio float64) float64 {
	temp := clampFloat(tire.Temperature/p.Slip.TemperatureRef, 0.5, 1.5)
	wear := 1 - 0.5*clamp01(tire.TreadWear)
	pressure := clampFloat(tire.PressureRatio(), 0.7, 1.2)
	slip := clampFloat(1-slipRatio, 0.1, 1)
	moisture := clampFloat(1-tire.Moisture*0.5, 0.3, 1)
	return base * tire.TractionMultiplier * temp * wear * pressure * slip * moisture
}

// SinkDepth is how far a wheel pressing with load newtons over area m² has
// sunk into a surface after contactTime seconds. Rigid surfaces return 0.
func SinkDepth(p *Params, surface terrain.SurfaceProperties, load, area, contactTime float64) float64 {
	if !surface.Deformable() || area <= 0 || load <= 0 {
		return 0
	}
	contactPressure := load / area
	target := math.Min(p.Slip.SinkScale*contactPressure/surface.Density, surface.PenetrationDepth)
	settle := 1 - math.Exp(-contactTime/p.Slip.SettleTime)
	return target * settle
}

// Buoyancy is the Archimedes lift on a wheel sunk depth metres into a surface.
func Buoyancy(surface terrain.SurfaceProperties, gravity, radius, depth float64) float64 {
	return surface.Density * gravity * math.Pi * radius * radius * depth
}

// RollingResistance scales the surface coefficient with speed and sink.
func RollingResistance(p *Params, surface terrain.SurfaceProperties, load, speed, sink, radius float64) float64 {
	return surface.RollingResistance * load * (1 + speed/p.Slip.RollingSpeedRef) * (1 + sink/radius)
}

// ClampFrictionCircle scales both force components by the same factor so
// their combined magnitude does not exceed limit. Returns the clamped
// components and the resulting magnitude.
func ClampFrictionCircle(long, lat r3.Vec, limit float64) (r3.Vec, r3.Vec, float64) {
	mag := math.Sqrt(r3.Dot(long, long) + r3.Dot(lat, lat))
	if limit <= 0 {
		return r3.Vec{}, r3.Vec{}, 0
	}
	if mag > limit {
		k := limit / mag
		return r3.Scale(k, long), r3.Scale(k, lat), limit
	}
	return long, lat, mag
}

// opposeSpin reduces |omega| by up to delta without reversing it.
func opposeSpin(omega, delta float64) float64 {
	if math.Abs(omega) <= delta {
		return 0
	}
	return omega - sign(omega)*delta
}

// UpdateSlip computes slip, resistances and the friction-clamped traction
// forces for one tick, and integrates wheel spin.
//
// Slip is measured from the spin carried in from the previous tick. The
// ground couples the wheel toward rolling speed with a torque bounded by
// traction; the reaction to that torque is the longitudinal force.
func UpdateSlip(p *Params, prev components.WheelSlipState, in SlipInputs) components.WheelSlipState {
	s := prev
	dt := p.DT
	r := in.Spec.Radius
	inertia := in.Spec.Inertia

	fwd, right, up := WheelAxes(in.Input, in.Contact)
	vel := PointVelocity(in.Input)
	groundVel := projectOnPlane(vel, up)
	speed := r3.Norm(groundVel)

	wheelSpeed := prev.AngularVelocity * r
	vLong := r3.Dot(vel, fwd)
	s.SlipVelocity = wheelSpeed - vLong
	s.SlipRatio = SlipRatio(wheelSpeed, vLong, p.Slip.Epsilon, p.Slip.MaxRatio)
	s.SlipAngle = SlipAngle(groundVel, fwd, p.Slip.MinSpeed)

	omega := prev.AngularVelocity + in.Input.DriveTorque/inertia*dt

	if !in.Contact.Grounded {
		omega = opposeSpin(omega, math.Max(in.Input.BrakeTorque, 0)/inertia*dt)
		s.AngularVelocity = clampFloat(omega, -p.Slip.MaxAngularVelocity, p.Slip.MaxAngularVelocity)
		s.SurfaceTraction = 0
		s.TractionCoefficient = 0
		s.SinkDepth = 0
		s.RollingResistance = 0
		s.ViscousResistance = 0
		s.BuoyancyForce = 0
		s.LongitudinalForce = r3.Vec{}
		s.LateralForce = r3.Vec{}
		s.CurrentTractionForce = 0
		s.MaxTractionForce = 0
		s.ContactTime = 0
		return s
	}

	surface := terrain.Surface(in.Contact.Surface)
	load := in.NormalLoad

	if in.Contact.Surface != prev.LastSurface {
		s.ContactTime = 0
	}
	s.ContactTime += dt
	s.LastSurface = in.Contact.Surface

	s.SurfaceTraction = surface.Traction
	mu := TractionCoefficient(p, surface.Traction, in.Tire, s.SlipRatio)
	s.TractionCoefficient = mu

	area := in.Tire.ContactArea
	if area <= 0 {
		area = ContactArea(p, in.Spec, in.Tire, 0)
	}
	s.SinkDepth = SinkDepth(p, surface, load-prev.BuoyancyForce, area, s.ContactTime)
	s.BuoyancyForce = Buoyancy(surface, p.Gravity, r, s.SinkDepth)

	patchSlip := r3.Sub(r3.Scale(wheelSpeed, fwd), groundVel)
	s.RollingResistance = RollingResistance(p, surface, load, speed, s.SinkDepth, r)
	s.ViscousResistance = surface.Viscosity * r3.Norm(patchSlip) * r

	// Brakes and resistance slow the wheel but never spin it backwards
	resist := math.Max(in.Input.BrakeTorque, 0) + (s.RollingResistance+s.ViscousResistance)*r
	omega = opposeSpin(omega, resist/inertia*dt)

	// Ground coupling toward rolling speed
	maxCouple := mu * load * r
	need := (vLong/r - omega) * inertia / dt
	tau := clampFloat(need, -maxCouple, maxCouple)
	omega += tau / inertia * dt
	s.AngularVelocity = clampFloat(omega, -p.Slip.MaxAngularVelocity, p.Slip.MaxAngularVelocity)

	long := r3.Scale(-tau/r, fwd)

	var lat r3.Vec
	if speed > p.Slip.MinSpeed {
		vDir := r3.Scale(1/speed, groundVel)
		lat = r3.Scale(-mu*load*r3.Dot(right, vDir), right)
	}

	s.MaxTractionForce = load * surface.Friction * in.Tire.FrictionMultiplier
	limit := math.Min(mu*load, s.MaxTractionForce)
	s.LongitudinalForce, s.LateralForce, s.CurrentTractionForce = ClampFrictionCircle(long, lat, limit)

	return s
}
