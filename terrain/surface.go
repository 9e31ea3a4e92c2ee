// Package terrain holds the static surface and weather property tables that
// parameterize the wheel contact, slip and tire models.
//
// Tables are plain arrays indexed by the enum value. They are written once at
// package init and never mutated, so concurrent reads from wheel workers need
// no locking.
package terrain

import (
	"fmt"
	"strings"
)

// SurfaceType identifies the ground material under a wheel.
type SurfaceType uint8

const (
	SurfaceAsphalt SurfaceType = iota
	SurfaceConcrete
	SurfaceGravel
	SurfaceDirt
	SurfaceMud
	SurfaceSand
	SurfaceGrass
	SurfaceWater
	SurfaceIce
	SurfaceSnow
	SurfaceSwamp
	SurfaceRock

	surfaceCount
)

// SurfaceProperties describes how a ground material interacts with a tire.
type SurfaceProperties struct {
	Friction          float64 `yaml:"friction"`           // peak friction coefficient
	Traction          float64 `yaml:"traction"`           // base traction coefficient
	RollingResistance float64 `yaml:"rolling_resistance"` // base rolling resistance coefficient
	Density           float64 `yaml:"density"`            // kg/m³
	Viscosity         float64 `yaml:"viscosity"`          // drag per m/s of slip; 0 = not viscous
	PenetrationDepth  float64 `yaml:"penetration_depth"`  // max sink depth (m); 0 = rigid
	Moisture          float64 `yaml:"moisture"`           // 0..1
}

// Deformable reports whether wheels can sink into the surface.
func (p SurfaceProperties) Deformable() bool {
	return p.PenetrationDepth > 0
}

// Viscous reports whether the surface drags on a slipping wheel.
func (p SurfaceProperties) Viscous() bool {
	return p.Viscosity > 0
}

var surfaceNames = [surfaceCount]string{
	"asphalt", "concrete", "gravel", "dirt", "mud", "sand",
	"grass", "water", "ice", "snow", "swamp", "rock",
}

var surfaceTable = [surfaceCount]SurfaceProperties{
	SurfaceAsphalt:  {Friction: 0.90, Traction: 1.00, RollingResistance: 0.015, Density: 2400, Viscosity: 0, PenetrationDepth: 0, Moisture: 0.00},
	SurfaceConcrete: {Friction: 0.85, Traction: 0.95, RollingResistance: 0.012, Density: 2400, Viscosity: 0, PenetrationDepth: 0, Moisture: 0.00},
	SurfaceGravel:   {Friction: 0.60, Traction: 0.65, RollingResistance: 0.030, Density: 1800, Viscosity: 0, PenetrationDepth: 0.02, Moisture: 0.10},
	SurfaceDirt:     {Friction: 0.65, Traction: 0.60, RollingResistance: 0.040, Density: 1500, Viscosity: 0, PenetrationDepth: 0.04, Moisture: 0.20},
	SurfaceMud:      {Friction: 0.35, Traction: 0.30, RollingResistance: 0.080, Density: 1200, Viscosity: 50, PenetrationDepth: 0.15, Moisture: 0.80},
	SurfaceSand:     {Friction: 0.45, Traction: 0.40, RollingResistance: 0.100, Density: 1600, Viscosity: 5, PenetrationDepth: 0.10, Moisture: 0.05},
	SurfaceGrass:    {Friction: 0.55, Traction: 0.50, RollingResistance: 0.045, Density: 1300, Viscosity: 0, PenetrationDepth: 0.03, Moisture: 0.30},
	SurfaceWater:    {Friction: 0.10, Traction: 0.05, RollingResistance: 0.150, Density: 1000, Viscosity: 80, PenetrationDepth: 0.50, Moisture: 1.00},
	SurfaceIce:      {Friction: 0.10, Traction: 0.12, RollingResistance: 0.010, Density: 917, Viscosity: 0, PenetrationDepth: 0, Moisture: 0.10},
	SurfaceSnow:     {Friction: 0.30, Traction: 0.25, RollingResistance: 0.060, Density: 400, Viscosity: 10, PenetrationDepth: 0.20, Moisture: 0.40},
	SurfaceSwamp:    {Friction: 0.25, Traction: 0.20, RollingResistance: 0.120, Density: 1100, Viscosity: 70, PenetrationDepth: 0.35, Moisture: 0.95},
	SurfaceRock:     {Friction: 0.70, Traction: 0.75, RollingResistance: 0.020, Density: 2700, Viscosity: 0, PenetrationDepth: 0, Moisture: 0.00},
}

// Surface returns the properties for s.
// Panics if s is outside the enumeration; that is a programming error.
func Surface(s SurfaceType) SurfaceProperties {
	if s >= surfaceCount {
		panic(fmt.Sprintf("terrain: undefined surface type %d", s))
	}
	return surfaceTable[s]
}

// Surfaces returns every defined surface type in enum order.
func Surfaces() []SurfaceType {
	out := make([]SurfaceType, surfaceCount)
	for i := range out {
		out[i] = SurfaceType(i)
	}
	return out
}

// AccumulatesMud reports whether driving on s loads mud onto the tire.
func (s SurfaceType) AccumulatesMud() bool {
	return s == SurfaceMud || s == SurfaceSwamp
}

// String returns the lower-case name of the surface.
func (s SurfaceType) String() string {
	if s < surfaceCount {
		return surfaceNames[s]
	}
	return fmt.Sprintf("surface(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler so surfaces read well in YAML/JSON.
func (s SurfaceType) MarshalText() ([]byte, error) {
	if s >= surfaceCount {
		return nil, fmt.Errorf("undefined surface type %d", s)
	}
	return []byte(surfaceNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SurfaceType) UnmarshalText(text []byte) error {
	v, err := ParseSurface(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSurface converts a name such as "mud" to its SurfaceType.
func ParseSurface(name string) (SurfaceType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range surfaceNames {
		if n == name {
			return SurfaceType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown surface %q", name)
}
