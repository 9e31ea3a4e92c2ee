package systems

import (
	"strings"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

// gripKey indexes the tire × surface grip table.
type gripKey struct {
	Tire    components.TireType
	Surface terrain.SurfaceType
}

// GripTable maps a (tire type, surface) pair to a traction multiplier.
// Pairs not present grip at 1.0.
type GripTable map[gripKey]float64

// defaultGrip holds the built-in tire × surface multipliers.
var defaultGrip = GripTable{
	{components.TireSummer, terrain.SurfaceAsphalt}:  1.10,
	{components.TireSummer, terrain.SurfaceConcrete}: 1.05,
	{components.TireSummer, terrain.SurfaceMud}:      0.70,
	{components.TireSummer, terrain.SurfaceSwamp}:    0.70,
	{components.TireSummer, terrain.SurfaceSand}:     0.80,
	{components.TireSummer, terrain.SurfaceWater}:    0.80,
	{components.TireSummer, terrain.SurfaceIce}:      0.60,
	{components.TireSummer, terrain.SurfaceSnow}:     0.60,

	{components.TireWinter, terrain.SurfaceAsphalt}:  0.90,
	{components.TireWinter, terrain.SurfaceConcrete}: 0.90,
	{components.TireWinter, terrain.SurfaceMud}:      0.90,
	{components.TireWinter, terrain.SurfaceIce}:      1.50,
	{components.TireWinter, terrain.SurfaceSnow}:     1.40,

	{components.TireOffRoad, terrain.SurfaceAsphalt}: 0.90,
	{components.TireOffRoad, terrain.SurfaceGravel}:  1.20,
	{components.TireOffRoad, terrain.SurfaceDirt}:    1.20,
	{components.TireOffRoad, terrain.SurfaceMud}:     1.30,
	{components.TireOffRoad, terrain.SurfaceSand}:    1.20,
	{components.TireOffRoad, terrain.SurfaceGrass}:   1.15,
	{components.TireOffRoad, terrain.SurfaceSwamp}:   1.20,
	{components.TireOffRoad, terrain.SurfaceSnow}:    1.10,
	{components.TireOffRoad, terrain.SurfaceRock}:    1.20,

	{components.TireMud, terrain.SurfaceAsphalt}:  0.80,
	{components.TireMud, terrain.SurfaceConcrete}: 0.80,
	{components.TireMud, terrain.SurfaceDirt}:     1.25,
	{components.TireMud, terrain.SurfaceMud}:      1.50,
	{components.TireMud, terrain.SurfaceSwamp}:    1.40,
	{components.TireMud, terrain.SurfaceGrass}:    1.20,
	{components.TireMud, terrain.SurfaceSand}:     1.10,
	{components.TireMud, terrain.SurfaceIce}:      0.70,

	{components.TireStreet, terrain.SurfaceMud}:   0.80,
	{components.TireStreet, terrain.SurfaceSwamp}: 0.80,
	{components.TireStreet, terrain.SurfaceIce}:   0.80,
}

// NewGripTable copies the built-in table and applies overrides keyed by
// tire type name then surface name. Unknown names are skipped; config.Validate
// rejects them before they get here.
func NewGripTable(overrides map[string]map[string]float64) GripTable {
	t := make(GripTable, len(defaultGrip))
	for k, v := range defaultGrip {
		t[k] = v
	}
	for tireName, row := range overrides {
		tire, err := components.ParseTireType(tireName)
		if err != nil {
			continue
		}
		for surfaceName, v := range row {
			s, err := terrain.ParseSurface(surfaceName)
			if err != nil {
				continue
			}
			t[gripKey{tire, s}] = v
		}
	}
	return t
}

// Grip returns the multiplier for a tire type on a surface.
func (t GripTable) Grip(tire components.TireType, s terrain.SurfaceType) float64 {
	if v, ok := t[gripKey{tire, s}]; ok {
		return v
	}
	return 1.0
}

// ConditionGrip maps each tire condition to a grip factor.
type ConditionGrip [6]float64

var defaultConditionGrip = ConditionGrip{1.0, 0.97, 0.9, 0.8, 0.6, 0.5}

// NewConditionGrip builds the table from condition names. Missing entries
// keep their defaults.
func NewConditionGrip(byName map[string]float64) ConditionGrip {
	out := defaultConditionGrip
	for i, name := range components.TireConditionNames() {
		for k, v := range byName {
			if strings.EqualFold(k, name) {
				out[i] = v
			}
		}
	}
	return out
}

// Factor returns the grip factor for c.
func (g ConditionGrip) Factor(c components.TireCondition) float64 {
	if int(c) < len(g) {
		return g[c]
	}
	return g[components.ConditionWorn]
}
