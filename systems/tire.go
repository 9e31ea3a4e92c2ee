package systems

import (
	"math"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

const secondsPerDay = 86400

// TireInputs is what the tire model reads for one wheel in one tick.
// Surface is the last surface touched when the wheel is airborne.
type TireInputs struct {
	Spec          *components.WheelSpec
	Grounded      bool
	Surface       terrain.SurfaceType
	Weather       terrain.WeatherProperties
	SlipRatio     float64
	TractionForce float64 // friction-clamped magnitude, N
	NormalLoad    float64
	SinkDepth     float64
	Speed         float64 // ground speed at the wheel, m/s
}

// NewTireState returns a fresh tire of the spec's type, settled to the
// given weather.
func NewTireState(p *Params, spec *components.WheelSpec, w terrain.WeatherProperties) components.TireState {
	cfg := p.Tire
	t := components.TireState{
		Type:                spec.TireType,
		Condition:           components.ConditionNew,
		Temperature:         w.Temperature,
		Pressure:            cfg.RecommendedPressure,
		RecommendedPressure: cfg.RecommendedPressure,
		AmbientPressure:     w.AtmosphericPressure,
		TreadDepth:          cfg.TreadDepth,
		MaxTemperature:      cfg.MaxTemperature,
		MinPressure:         cfg.MinPressure,
		MaxPressure:         cfg.MaxPressure,
		MudCapacity:         cfg.MudCapacity,
		MaxAge:              cfg.MaxAge,
		MaxMileage:          cfg.MaxMileage,
		InitialTreadDepth:   cfg.TreadDepth,
		FrictionMultiplier:  1,
		TractionMultiplier:  1,
	}
	t.ContactArea = ContactArea(p, spec, &t, 0)
	return t
}

// ContactArea estimates the tire patch. It grows when under-inflated and
// when sunk into soft ground.
func ContactArea(p *Params, spec *components.WheelSpec, t *components.TireState, sink float64) float64 {
	inflation := clampFloat(1/t.PressureRatio(), 0.5, 2)
	patch := spec.Radius * p.Tire.ContactAreaScale * inflation * (1 + sink/spec.Radius)
	return spec.Width * patch
}

// DeriveCondition grades a tire from its wear, age, mileage, pressure and
// temperature. It is a pure function of those fields.
func DeriveCondition(p *Params, t *components.TireState) components.TireCondition {
	switch {
	case t.TreadWear >= 1 || t.Age >= t.MaxAge || t.Mileage >= t.MaxMileage:
		return components.ConditionWorn
	case t.Pressure <= p.Tire.Pressure.DamageRatio*t.MinPressure ||
		t.Temperature >= p.Tire.Wear.DamageHeat*t.MaxTemperature:
		return components.ConditionDamaged
	case t.TreadWear >= 0.8:
		return components.ConditionPoor
	case t.TreadWear >= 0.5:
		return components.ConditionFair
	case t.TreadWear >= 0.2:
		return components.ConditionGood
	}
	return components.ConditionNew
}

// GripMultipliers returns the friction and traction multipliers a tire in
// state t feeds to the slip model on surface s.
func GripMultipliers(p *Params, t *components.TireState, s terrain.SurfaceType) (friction, traction float64) {
	mud := 1.0
	if t.MudCapacity > 0 {
		mud = 1 - 0.5*clamp01(t.MudMass/t.MudCapacity)
	}
	cond := p.ConditionGrip.Factor(t.Condition)
	friction = cond * mud
	traction = p.Grip.Grip(t.Type, s) * cond * mud
	return friction, traction
}

// UpdateTire integrates tire temperature, pressure, moisture, mud and wear
// for one tick and regrades its condition.
//
// An airborne tire still ages, cools and leaks but gains no heat, mileage,
// wear or mud.
func UpdateTire(p *Params, prev components.TireState, in TireInputs) components.TireState {
	t := prev
	dt := p.DT
	w := in.Weather
	cfg := p.Tire

	t.Age += dt / secondsPerDay
	if in.Grounded {
		t.Mileage += in.Speed * dt / 1000
	}

	var surface terrain.SurfaceProperties
	if in.Grounded {
		surface = terrain.Surface(in.Surface)
	}

	// Temperature
	th := cfg.Thermal
	var heat float64
	if in.Grounded {
		heat = th.FrictionHeat*in.SlipRatio*in.TractionForce +
			th.CompressionHeat*math.Abs(prev.PressureRatio()-1) +
			th.DeformationHeat*in.SinkDepth*in.Spec.Radius
	}
	cooling := th.Cooling * (1 + w.WindSpeed*th.WindCooling) *
		(1 + w.Humidity*th.HumidityCooling) * (1 + w.RainIntensity*th.RainCooling)
	t.Temperature += heat*dt - clamp01(cooling*dt)*(prev.Temperature-w.Temperature)
	t.Temperature = clampFloat(t.Temperature, -50, t.MaxTemperature)

	// Pressure
	pc := cfg.Pressure
	t.Pressure += pc.PerDegree * (t.Temperature - prev.Temperature)
	if prev.AmbientPressure > 0 {
		t.Pressure -= pc.Atmospheric * (w.AtmosphericPressure - prev.AmbientPressure)
	}
	t.AmbientPressure = w.AtmosphericPressure
	leak := pc.Leak *
		(1 + pc.AgeLeak*t.Age/t.MaxAge) *
		(1 + pc.WearLeak*prev.TreadWear) *
		(1 + pc.HeatLeak*math.Max(t.Temperature-pc.HeatRef, 0)) *
		(1 + pc.LoadLeak*math.Max(in.NormalLoad, 0)/pc.LoadRef) *
		(1 + pc.SpeedLeak*in.Speed/pc.SpeedRef)
	t.Pressure -= leak * dt
	t.Pressure = clampFloat(t.Pressure, t.MinPressure, t.MaxPressure)

	sink := 0.0
	if in.Grounded {
		sink = in.SinkDepth
	}
	t.ContactArea = ContactArea(p, in.Spec, &t, sink)

	// Moisture
	var target float64
	if in.Grounded {
		target = math.Max(surface.Moisture, w.RainIntensity)
	} else {
		target = math.Max(w.RainIntensity, 0.3*w.Humidity)
	}
	t.Moisture = clamp01(approach(prev.Moisture, target, cfg.MoistureRate, dt))

	// Mud
	mc := cfg.Mud
	if in.Grounded && in.Surface.AccumulatesMud() {
		wetness := math.Max(surface.Moisture, w.RainIntensity)
		t.MudMass += mc.Accumulation * surface.Viscosity * wetness * dt
	}
	t.MudMass -= mc.Cleaning * prev.MudMass * dt
	t.MudMass = clampFloat(t.MudMass, 0, t.MudCapacity)
	t.MudParticles = min(int(t.MudMass*mc.ParticleScale), mc.MaxParticles)

	// Tread wear
	if in.Grounded {
		wc := cfg.Wear
		rate := wc.Friction*in.SlipRatio*math.Abs(in.TractionForce) +
			wc.Temperature*math.Max(t.Temperature-wc.TemperatureRef, 0) +
			wc.Age
		t.TreadWear = clamp01(t.TreadWear + rate*dt)
	}
	t.TreadDepth = t.InitialTreadDepth * (1 - t.TreadWear)

	// Condition only ever degrades
	if c := DeriveCondition(p, &t); c > prev.Condition {
		t.Condition = c
	}

	t.FrictionMultiplier, t.TractionMultiplier = GripMultipliers(p, &t, in.Surface)
	return t
}
