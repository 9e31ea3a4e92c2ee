package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

// WheelRecord is the complete state one wheel owns. A tick maps the
// previous record plus inputs to the next record; nothing else is shared.
type WheelRecord struct {
	Contact    components.WheelContact
	Suspension components.SuspensionState
	Slip       components.WheelSlipState
	Tire       components.TireState
	Output     components.WheelOutput
}

// NewWheelRecord returns the state of a freshly mounted wheel.
func NewWheelRecord(p *Params, spec *components.WheelSpec, w terrain.WeatherProperties) WheelRecord {
	rec := WheelRecord{
		Suspension: NewSuspensionState(p.Suspension),
		Tire:       NewTireState(p, spec, w),
	}
	rec.Output = publish(&rec, 0)
	return rec
}

// MountWheel returns a fresh record already resting on whatever the probe
// finds under in: the suspension is primed to the contact and a grounded
// wheel starts rolling at the ground speed.
func MountWheel(p *Params, q SpatialQuery, spec *components.WheelSpec, in *components.WheelInput, w terrain.WeatherProperties) WheelRecord {
	rec := NewWheelRecord(p, spec, w)
	c := ResolveContact(q, spec, in, &rec.Suspension)
	rec.Suspension = PrimeSuspension(rec.Suspension, &c, spec.Radius)
	if c.Grounded {
		fwd, _, _ := WheelAxes(in, &c)
		rec.Slip.AngularVelocity = r3.Dot(PointVelocity(in), fwd) / spec.Radius
		rec.Slip.LastSurface = c.Surface
	}
	return rec
}

// StepWheel runs contact, suspension, slip and tire updates in that order.
//
// Inputs or results containing NaN or infinities reject the tick: the
// previous record is returned with its outputs held, Rejected set and
// RejectedTicks incremented, together with an error wrapping ErrNonFinite.
func StepWheel(p *Params, q SpatialQuery, spec *components.WheelSpec, in *components.WheelInput, w terrain.WeatherProperties, prev WheelRecord) (WheelRecord, error) {
	if err := CheckInput(in); err != nil {
		return reject(prev, err), err
	}

	var rec WheelRecord
	rec.Contact = ResolveContact(q, spec, in, &prev.Suspension)
	if err := checkContact(&rec.Contact); err != nil {
		return reject(prev, err), err
	}

	rec.Suspension = UpdateSuspension(p, prev.Suspension, &rec.Contact, spec.Radius)
	load := NormalLoad(&rec.Suspension)

	rec.Slip = UpdateSlip(p, prev.Slip, SlipInputs{
		Spec:       spec,
		Input:      in,
		Contact:    &rec.Contact,
		NormalLoad: load,
		Tire:       &prev.Tire,
	})

	_, _, up := WheelAxes(in, &rec.Contact)
	speed := r3.Norm(projectOnPlane(PointVelocity(in), up))
	surface := rec.Contact.Surface
	if !rec.Contact.Grounded {
		surface = rec.Slip.LastSurface
	}

	rec.Tire = UpdateTire(p, prev.Tire, TireInputs{
		Spec:          spec,
		Grounded:      rec.Contact.Grounded,
		Surface:       surface,
		Weather:       w,
		SlipRatio:     rec.Slip.SlipRatio,
		TractionForce: rec.Slip.CurrentTractionForce,
		NormalLoad:    load,
		SinkDepth:     rec.Slip.SinkDepth,
		Speed:         speed,
	})

	if err := checkRecord(&rec); err != nil {
		return reject(prev, err), err
	}
	rec.Output = publish(&rec, prev.Output.RejectedTicks)
	return rec, nil
}

func reject(prev WheelRecord, err error) WheelRecord {
	prev.Output.Rejected = true
	prev.Output.RejectedTicks++
	prev.Output.RejectReason = err.Error()
	return prev
}

func publish(rec *WheelRecord, rejectedTicks int) components.WheelOutput {
	return components.WheelOutput{
		SuspensionForce:     rec.Suspension.Force,
		LongitudinalForce:   rec.Slip.LongitudinalForce,
		LateralForce:        rec.Slip.LateralForce,
		Grounded:            rec.Contact.Grounded,
		Condition:           rec.Tire.Condition,
		Pressure:            rec.Tire.Pressure,
		TreadWear:           rec.Tire.TreadWear,
		MudParticles:        rec.Tire.MudParticles,
		SlipRatio:           rec.Slip.SlipRatio,
		TractionCoefficient: rec.Slip.TractionCoefficient,
		RejectedTicks:       rejectedTicks,
	}
}
