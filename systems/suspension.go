package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
)

// NewSuspensionState returns a spring at rest using the configured geometry.
func NewSuspensionState(cfg config.SuspensionConfig) components.SuspensionState {
	return components.SuspensionState{
		RestLength:      cfg.RestLength,
		MinLength:       cfg.MinLength,
		MaxLength:       cfg.MaxLength,
		CurrentLength:   cfg.RestLength,
		SpringStiffness: cfg.SpringStiffness,
		Damping:         cfg.Damping,
		MaxDamping:      cfg.MaxDamping,
		Extended:        true,
	}
}

// PrimeSuspension seeds compression from an initial contact so the first
// update does not see a velocity spike from rest to the loaded length.
func PrimeSuspension(susp components.SuspensionState, c *components.WheelContact, radius float64) components.SuspensionState {
	if !c.Grounded {
		return susp
	}
	susp.CurrentLength = clampFloat(c.Distance-radius, susp.MinLength, susp.MaxLength)
	susp.Compression = clampFloat(susp.RestLength-susp.CurrentLength, 0, susp.MaxCompression())
	susp.PreviousCompression = susp.Compression
	susp.Compressed = susp.Compression > 0
	susp.Extended = susp.CurrentLength >= susp.RestLength
	return susp
}

// UpdateSuspension advances the spring-damper by one tick.
//
// Compression velocity is positive while the spring shortens; the damper
// then adds to the spring. The net force pushes along the contact normal and
// never pulls the wheel into the ground.
func UpdateSuspension(p *Params, prev components.SuspensionState, c *components.WheelContact, radius float64) components.SuspensionState {
	s := prev
	dt := p.DT
	s.PreviousCompression = prev.Compression

	if c.Grounded {
		s.CurrentLength = clampFloat(c.Distance-radius, s.MinLength, s.MaxLength)
	} else {
		s.CurrentLength = clampFloat(approach(prev.CurrentLength, s.RestLength, p.Suspension.RelaxRate, dt), s.MinLength, s.MaxLength)
	}

	s.Compression = clampFloat(s.RestLength-s.CurrentLength, 0, s.MaxCompression())
	s.CompressionVelocity = (s.Compression - s.PreviousCompression) / dt
	s.StoredEnergy = 0.5*s.SpringStiffness*s.Compression*s.Compression +
		0.5*s.Damping*s.CompressionVelocity*s.CompressionVelocity
	s.Compressed = s.Compression > 0
	s.Extended = s.CurrentLength >= s.RestLength

	if !c.Grounded {
		s.SpringForce = 0
		s.DamperForce = 0
		s.Force = r3.Vec{}
		return s
	}

	s.SpringForce = math.Max(s.Compression*s.SpringStiffness, 0)

	v := s.CompressionVelocity
	limit := s.MaxDamping * math.Abs(v)
	s.DamperForce = clampFloat(v*s.Damping, -limit, limit)

	s.Force = r3.Scale(math.Max(s.SpringForce+s.DamperForce, 0), c.Normal)
	return s
}

// NormalLoad is the magnitude of the suspension force, the load the tire
// presses into the ground with.
func NormalLoad(s *components.SuspensionState) float64 {
	return r3.Norm(s.Force)
}
