package systems

import (
	"testing"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

func TestGripTable(t *testing.T) {
	g := NewGripTable(map[string]map[string]float64{
		"mud":     {"ice": 2.0, "lava": 9},
		"unicorn": {"asphalt": 3},
	})

	tests := []struct {
		name    string
		tire    components.TireType
		surface terrain.SurfaceType
		want    float64
	}{
		{"override", components.TireMud, terrain.SurfaceIce, 2.0},
		{"default kept", components.TireMud, terrain.SurfaceMud, 1.5},
		{"winter on ice", components.TireWinter, terrain.SurfaceIce, 1.5},
		{"missing pair", components.TireStreet, terrain.SurfaceAsphalt, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Grip(tt.tire, tt.surface); got != tt.want {
				t.Errorf("Grip(%v, %v) = %v, want %v", tt.tire, tt.surface, got, tt.want)
			}
		})
	}

	if defaultGrip.Grip(components.TireMud, terrain.SurfaceIce) != 0.7 {
		t.Error("override leaked into the built-in table")
	}
}

func TestConditionGrip(t *testing.T) {
	g := NewConditionGrip(map[string]float64{"Worn": 0.3, "bogus": 7})

	if got := g.Factor(components.ConditionWorn); got != 0.3 {
		t.Errorf("worn factor = %v, want 0.3", got)
	}
	if got := g.Factor(components.ConditionNew); got != 1 {
		t.Errorf("new factor = %v, want 1", got)
	}
	if got := g.Factor(components.TireCondition(42)); got != 0.3 {
		t.Errorf("out-of-range condition = %v, want worn factor", got)
	}

	for c := components.ConditionNew; c < components.ConditionWorn; c++ {
		if defaultConditionGrip[c] < defaultConditionGrip[c+1] {
			t.Errorf("default grip rises from %v to %v", c, c+1)
		}
	}
}
