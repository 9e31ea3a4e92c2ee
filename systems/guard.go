package systems

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
)

// ErrNonFinite marks a wheel tick rejected because a value was NaN or ±Inf.
var ErrNonFinite = errors.New("non-finite value")

type namedVec struct {
	name string
	v    r3.Vec
}

type namedScalar struct {
	name string
	v    float64
}

func checkFields(scope string, vecs []namedVec, scalars []namedScalar) error {
	for _, f := range vecs {
		if !finiteVec(f.v) {
			return fmt.Errorf("%w: %s.%s", ErrNonFinite, scope, f.name)
		}
	}
	for _, f := range scalars {
		if !finite(f.v) {
			return fmt.Errorf("%w: %s.%s", ErrNonFinite, scope, f.name)
		}
	}
	return nil
}

// CheckInput rejects inputs carrying NaN or infinities.
func CheckInput(in *components.WheelInput) error {
	return checkFields("input",
		[]namedVec{
			{"mount_position", in.MountPosition},
			{"down", in.Down},
			{"forward", in.Forward},
			{"right", in.Right},
			{"linear_velocity", in.LinearVelocity},
			{"angular_velocity", in.AngularVelocity},
			{"center_of_mass", in.CenterOfMass},
		},
		[]namedScalar{
			{"drive_torque", in.DriveTorque},
			{"brake_torque", in.BrakeTorque},
			{"steer_angle", in.SteerAngle},
		})
}

func checkContact(c *components.WheelContact) error {
	if !c.Grounded {
		return nil
	}
	return checkFields("contact",
		[]namedVec{{"point", c.Point}, {"normal", c.Normal}},
		[]namedScalar{{"distance", c.Distance}})
}

// checkRecord validates everything a tick publishes or carries forward.
func checkRecord(rec *WheelRecord) error {
	return checkFields("result",
		[]namedVec{
			{"suspension_force", rec.Suspension.Force},
			{"longitudinal_force", rec.Slip.LongitudinalForce},
			{"lateral_force", rec.Slip.LateralForce},
		},
		[]namedScalar{
			{"compression", rec.Suspension.Compression},
			{"compression_velocity", rec.Suspension.CompressionVelocity},
			{"angular_velocity", rec.Slip.AngularVelocity},
			{"slip_ratio", rec.Slip.SlipRatio},
			{"slip_angle", rec.Slip.SlipAngle},
			{"traction_coefficient", rec.Slip.TractionCoefficient},
			{"sink_depth", rec.Slip.SinkDepth},
			{"temperature", rec.Tire.Temperature},
			{"pressure", rec.Tire.Pressure},
			{"tread_wear", rec.Tire.TreadWear},
			{"mud_mass", rec.Tire.MudMass},
			{"moisture", rec.Tire.Moisture},
			{"traction_multiplier", rec.Tire.TractionMultiplier},
		})
}
