package systems

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/components"
)

func TestUpdateSuspensionHooke(t *testing.T) {
	p := testParams()
	radius := 0.45
	s := NewSuspensionState(p.Suspension)
	c := components.WheelContact{Grounded: true, Normal: r3.Vec{Z: 1}, Distance: radius + s.RestLength - 0.1}

	s = PrimeSuspension(s, &c, radius)
	s = UpdateSuspension(p, s, &c, radius)

	if math.Abs(s.Compression-0.1) > 1e-9 {
		t.Fatalf("compression = %v, want 0.1", s.Compression)
	}
	if s.CompressionVelocity != 0 {
		t.Errorf("primed spring should have zero velocity, got %v", s.CompressionVelocity)
	}
	want := 0.1 * s.SpringStiffness
	if math.Abs(s.SpringForce-want) > 1e-6 {
		t.Errorf("spring force = %v, want %v", s.SpringForce, want)
	}
	if math.Abs(s.Force.Z-want) > 1e-6 || s.Force.X != 0 || s.Force.Y != 0 {
		t.Errorf("force = %v, want along normal with magnitude %v", s.Force, want)
	}
	if math.Abs(s.StoredEnergy-0.5*s.SpringStiffness*0.01) > 1e-6 {
		t.Errorf("stored energy = %v", s.StoredEnergy)
	}
	if !s.Compressed || s.Extended {
		t.Errorf("flags compressed=%v extended=%v", s.Compressed, s.Extended)
	}
}

func TestUpdateSuspensionDamperOpposesMotion(t *testing.T) {
	p := testParams()
	radius := 0.45
	s := NewSuspensionState(p.Suspension)
	c := components.WheelContact{Grounded: true, Normal: r3.Vec{Z: 1}, Distance: radius + s.RestLength - 0.05}
	s = PrimeSuspension(s, &c, radius)

	// Compressing: damper adds to the spring
	c.Distance -= 0.01
	compressing := UpdateSuspension(p, s, &c, radius)
	if compressing.CompressionVelocity <= 0 || compressing.DamperForce <= 0 {
		t.Errorf("compressing: v=%v damper=%v, want both > 0", compressing.CompressionVelocity, compressing.DamperForce)
	}
	if NormalLoad(&compressing) <= compressing.SpringForce {
		t.Errorf("compressing: load %v not above spring force %v", NormalLoad(&compressing), compressing.SpringForce)
	}
	limit := compressing.MaxDamping * math.Abs(compressing.CompressionVelocity)
	if math.Abs(compressing.DamperForce) > limit+1e-9 {
		t.Errorf("damper %v exceeds limit %v", compressing.DamperForce, limit)
	}

	// Rebounding fast: force never pulls toward the ground
	c.Distance = radius + s.RestLength - 0.001
	rebound := UpdateSuspension(p, compressing, &c, radius)
	if rebound.DamperForce >= 0 {
		t.Errorf("rebounding damper = %v, want < 0", rebound.DamperForce)
	}
	if rebound.Force.Z < 0 {
		t.Errorf("suspension pulled wheel into ground: %v", rebound.Force)
	}
}

func TestUpdateSuspensionUngroundedRelaxes(t *testing.T) {
	p := testParams()
	radius := 0.45
	s := NewSuspensionState(p.Suspension)
	c := components.WheelContact{Grounded: true, Normal: r3.Vec{Z: 1}, Distance: radius + s.MinLength}
	s = PrimeSuspension(s, &c, radius)

	air := components.WheelContact{}
	prevLen := s.CurrentLength
	for i := 0; i < 120; i++ {
		s = UpdateSuspension(p, s, &air, radius)
		if s.Force != (r3.Vec{}) || s.SpringForce != 0 || s.DamperForce != 0 {
			t.Fatalf("tick %d: ungrounded forces not zero: %+v", i, s)
		}
		if s.CurrentLength < prevLen {
			t.Fatalf("tick %d: length moved away from rest", i)
		}
		prevLen = s.CurrentLength
	}
	if math.Abs(s.CurrentLength-s.RestLength) > 1e-3 {
		t.Errorf("length %v did not relax to rest %v", s.CurrentLength, s.RestLength)
	}
}

func TestSuspensionInvariantsHoldForAnyDistance(t *testing.T) {
	p := testParams()
	radius := 0.45
	rng := rand.New(rand.NewSource(7))
	s := NewSuspensionState(p.Suspension)

	for i := 0; i < 5000; i++ {
		c := components.WheelContact{
			Grounded: rng.Float64() < 0.8,
			Normal:   r3.Vec{Z: 1},
			Distance: rng.Float64()*2 - 0.5,
		}
		s = UpdateSuspension(p, s, &c, radius)
		if s.CurrentLength < s.MinLength || s.CurrentLength > s.MaxLength {
			t.Fatalf("iteration %d: length %v outside [%v, %v]", i, s.CurrentLength, s.MinLength, s.MaxLength)
		}
		if s.SpringForce < 0 {
			t.Fatalf("iteration %d: negative spring force %v", i, s.SpringForce)
		}
		if s.Compression < 0 || s.Compression > s.MaxCompression()+1e-12 {
			t.Fatalf("iteration %d: compression %v out of range", i, s.Compression)
		}
	}
}
