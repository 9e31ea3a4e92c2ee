// Package components defines ECS components for the wheel simulation.
//
// A wheel entity carries exactly seven components, mirroring WheelRecord in
// the systems package: static spec, per-tick input, transient contact, and the
// persistent suspension, slip and tire state plus the last published output.
package components

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/terrain"
)

// TireType is the tread family of a tire. Immutable per tire.
type TireType uint8

const (
	TireSummer TireType = iota
	TireWinter
	TireOffRoad
	TireMud
	TireStreet
)

// TireCondition is the derived wear tier of a tire, ordered by severity.
type TireCondition uint8

const (
	ConditionNew TireCondition = iota
	ConditionGood
	ConditionFair
	ConditionPoor
	ConditionDamaged
	ConditionWorn
)

// WheelSpec holds static per-wheel parameters set at spawn.
type WheelSpec struct {
	VehicleID uint32
	Index     int
	Radius    float64 // m
	Width     float64 // m
	Inertia   float64 // kg·m² about the axle
	TireType  TireType
}

// WheelInput is everything the wheel reads from collaborators each tick.
// Vectors are world space. Forward and Right are the unsteered chassis axes.
type WheelInput struct {
	MountPosition   r3.Vec // suspension top, where the probe starts
	Down            r3.Vec // suspension axis
	Forward         r3.Vec
	Right           r3.Vec
	LinearVelocity  r3.Vec // chassis, at CenterOfMass
	AngularVelocity r3.Vec // chassis, rad/s
	CenterOfMass    r3.Vec
	DriveTorque     float64 // N·m, signed
	BrakeTorque     float64 // N·m, >= 0
	SteerAngle      float64 // rad about the up axis
}

// WheelContact is the probe result for the current tick.
type WheelContact struct {
	Grounded bool
	Point    r3.Vec
	Normal   r3.Vec
	Distance float64 // from mount to hit along the suspension axis
	Surface  terrain.SurfaceType
}

// SuspensionState is the spring-damper state of one wheel.
type SuspensionState struct {
	RestLength          float64
	MinLength           float64
	MaxLength           float64
	CurrentLength       float64
	Compression         float64
	PreviousCompression float64
	CompressionVelocity float64
	SpringStiffness     float64 // N/m
	Damping             float64 // N·s/m
	MaxDamping          float64 // N·s/m, caps the effective damping rate
	SpringForce         float64
	DamperForce         float64
	Force               r3.Vec // along the contact normal
	StoredEnergy        float64
	Compressed          bool
	Extended            bool
}

// MaxCompression is how far the spring can travel from rest.
func (s *SuspensionState) MaxCompression() float64 {
	return s.RestLength - s.MinLength
}

// WheelSlipState is the traction state of one wheel.
type WheelSlipState struct {
	AngularVelocity      float64 // rad/s
	SlipRatio            float64
	SlipAngle            float64 // rad
	SlipVelocity         float64 // m/s, tread speed minus ground speed
	SurfaceTraction      float64 // base traction of the surface under the wheel
	TractionCoefficient  float64 // after tire, wear, pressure, slip and moisture factors
	SinkDepth            float64 // m
	RollingResistance    float64 // N
	ViscousResistance    float64 // N
	BuoyancyForce        float64 // N
	LongitudinalForce    r3.Vec
	LateralForce         r3.Vec
	CurrentTractionForce float64 // |Longitudinal + Lateral| after clamping
	MaxTractionForce     float64
	ContactTime          float64 // s on LastSurface
	LastSurface          terrain.SurfaceType
}

// TireState is the thermal, pressure and wear state of one tire.
type TireState struct {
	Type      TireType
	Condition TireCondition

	Temperature         float64 // °C
	Pressure            float64 // kPa
	RecommendedPressure float64 // kPa
	AmbientPressure     float64 // kPa seen last tick; 0 until first update
	ContactArea         float64 // m²
	Moisture            float64 // 0..1
	TreadWear           float64 // 0..1
	TreadDepth          float64 // mm
	MudMass             float64 // kg
	MudParticles        int
	Age                 float64 // days
	Mileage             float64 // km

	// Limits
	MaxTemperature    float64
	MinPressure       float64
	MaxPressure       float64
	MudCapacity       float64
	MaxAge            float64
	MaxMileage        float64
	InitialTreadDepth float64

	// Read by the slip model on the next tick.
	FrictionMultiplier float64
	TractionMultiplier float64
}

// PressureRatio returns current over recommended pressure.
func (t *TireState) PressureRatio() float64 {
	if t.RecommendedPressure <= 0 {
		return 1
	}
	return t.Pressure / t.RecommendedPressure
}

// WheelOutput is what the wheel publishes to collaborators after a tick.
// Forces are friction-clamped and in world space.
type WheelOutput struct {
	SuspensionForce     r3.Vec
	LongitudinalForce   r3.Vec
	LateralForce        r3.Vec
	Grounded            bool
	Condition           TireCondition
	Pressure            float64
	TreadWear           float64
	MudParticles        int
	SlipRatio           float64
	TractionCoefficient float64

	// Set when this tick's inputs or results were non-finite and the
	// previous outputs were held.
	Rejected      bool
	RejectedTicks int
	RejectReason  string
}
