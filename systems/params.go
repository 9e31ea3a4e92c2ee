package systems

import (
	"github.com/pthm-cable/mudtrack/config"
)

// Params bundles the tunables the wheel models read every tick.
// It is built once per simulation and shared read-only by all workers.
type Params struct {
	DT         float64
	Gravity    float64
	Suspension config.SuspensionConfig
	Slip       config.SlipConfig
	Tire       config.TireConfig

	Grip          GripTable
	ConditionGrip ConditionGrip
}

// NewParams extracts wheel model parameters from a loaded config.
func NewParams(cfg *config.Config) *Params {
	return &Params{
		DT:            cfg.Physics.DT,
		Gravity:       cfg.Physics.Gravity,
		Suspension:    cfg.Suspension,
		Slip:          cfg.Slip,
		Tire:          cfg.Tire,
		Grip:          NewGripTable(cfg.Tire.GripOverrides),
		ConditionGrip: NewConditionGrip(cfg.Tire.ConditionGrip),
	}
}
