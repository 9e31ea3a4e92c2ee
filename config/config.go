// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/terrain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Wheel      WheelConfig      `yaml:"wheel"`
	Suspension SuspensionConfig `yaml:"suspension"`
	Slip       SlipConfig       `yaml:"slip"`
	Tire       TireConfig       `yaml:"tire"`
	Vehicle    VehicleConfig    `yaml:"vehicle"`
	Ground     GroundConfig     `yaml:"ground"`
	Weather    WeatherConfig    `yaml:"weather"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    StorageConfig    `yaml:"storage"`
	Influx     InfluxConfig     `yaml:"influx"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds fixed-step parameters shared by all wheel models.
type PhysicsConfig struct {
	DT      float64 `yaml:"dt"`      // Fixed tick in seconds
	Gravity float64 `yaml:"gravity"` // m/s²
}

// ParallelConfig controls the batch update worker pool.
type ParallelConfig struct {
	Threshold int `yaml:"threshold"` // Wheel count below which the pass runs single-threaded
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
}

// WheelConfig holds spawn defaults for wheel geometry.
type WheelConfig struct {
	Radius   float64 `yaml:"radius"`
	Width    float64 `yaml:"width"`
	Inertia  float64 `yaml:"inertia"`
	TireType string  `yaml:"tire_type"`
}

// SuspensionConfig holds spawn defaults and model constants for suspension.
type SuspensionConfig struct {
	RestLength      float64 `yaml:"rest_length"`
	MinLength       float64 `yaml:"min_length"`
	MaxLength       float64 `yaml:"max_length"`
	SpringStiffness float64 `yaml:"spring_stiffness"`
	Damping         float64 `yaml:"damping"`
	MaxDamping      float64 `yaml:"max_damping"`
	RelaxRate       float64 `yaml:"relax_rate"` // Fraction per second an unloaded spring returns to rest
}

// SlipConfig holds slip and traction model constants.
type SlipConfig struct {
	Epsilon            float64 `yaml:"epsilon"`              // Floor on wheel speed in the slip ratio denominator
	MaxRatio           float64 `yaml:"max_ratio"`            // Slip ratio ceiling
	TemperatureRef     float64 `yaml:"temperature_ref"`      // Tire °C that gives a temperature factor of 1
	SinkScale          float64 `yaml:"sink_scale"`           // Sink (m) per (Pa / (kg/m³))
	SettleTime         float64 `yaml:"settle_time"`          // Time constant for sinking into a new surface
	RollingSpeedRef    float64 `yaml:"rolling_speed_ref"`    // Speed at which rolling resistance doubles
	MaxAngularVelocity float64 `yaml:"max_angular_velocity"` // Wheel spin limit, rad/s
	MinSpeed           float64 `yaml:"min_speed"`            // Below this velocity direction is undefined
}

// TireConfig holds spawn limits and model coefficients for tires.
type TireConfig struct {
	RecommendedPressure float64 `yaml:"recommended_pressure"`
	MinPressure         float64 `yaml:"min_pressure"`
	MaxPressure         float64 `yaml:"max_pressure"`
	MaxTemperature      float64 `yaml:"max_temperature"`
	MudCapacity         float64 `yaml:"mud_capacity"`
	MaxAge              float64 `yaml:"max_age"`     // days
	MaxMileage          float64 `yaml:"max_mileage"` // km
	TreadDepth          float64 `yaml:"tread_depth"` // mm

	Thermal  TireThermalConfig  `yaml:"thermal"`
	Pressure TirePressureConfig `yaml:"pressure"`
	Wear     TireWearConfig     `yaml:"wear"`
	Mud      TireMudConfig      `yaml:"mud"`

	MoistureRate     float64                       `yaml:"moisture_rate"`      // Relaxation rate toward target moisture, 1/s
	ConditionGrip    map[string]float64            `yaml:"condition_grip"`     // condition name -> grip factor
	GripOverrides    map[string]map[string]float64 `yaml:"grip_overrides"`     // tire type -> surface -> grip
	ContactAreaScale float64                       `yaml:"contact_area_scale"` // Patch length as a fraction of radius
}

// TireThermalConfig holds heating and cooling coefficients.
type TireThermalConfig struct {
	FrictionHeat    float64 `yaml:"friction_heat"`    // °C/s per (slip · N)
	CompressionHeat float64 `yaml:"compression_heat"` // °C/s per |pressure ratio - 1|
	DeformationHeat float64 `yaml:"deformation_heat"` // °C/s per (sink · radius) m²
	Cooling         float64 `yaml:"cooling"`          // 1/s toward ambient
	WindCooling     float64 `yaml:"wind_cooling"`     // extra cooling per m/s of wind
	HumidityCooling float64 `yaml:"humidity_cooling"` // extra cooling per unit humidity
	RainCooling     float64 `yaml:"rain_cooling"`     // extra cooling per unit rain intensity
}

// TirePressureConfig holds pressure coupling and leakage coefficients.
type TirePressureConfig struct {
	PerDegree   float64 `yaml:"per_degree"`   // kPa per °C of tire temperature change
	Atmospheric float64 `yaml:"atmospheric"`  // gauge kPa lost per kPa of ambient rise
	Leak        float64 `yaml:"leak"`         // base kPa/s
	AgeLeak     float64 `yaml:"age_leak"`     // leak multiplier per unit age/max_age
	WearLeak    float64 `yaml:"wear_leak"`    // leak multiplier per unit tread wear
	HeatLeak    float64 `yaml:"heat_leak"`    // leak multiplier per °C above heat_ref
	HeatRef     float64 `yaml:"heat_ref"`     // °C
	LoadLeak    float64 `yaml:"load_leak"`    // leak multiplier per load_ref of normal load
	LoadRef     float64 `yaml:"load_ref"`     // N
	SpeedLeak   float64 `yaml:"speed_leak"`   // leak multiplier per speed_ref
	SpeedRef    float64 `yaml:"speed_ref"`    // m/s
	DamageRatio float64 `yaml:"damage_ratio"` // damaged at or below this fraction of min pressure
}

// TireWearConfig holds tread wear coefficients.
type TireWearConfig struct {
	Friction       float64 `yaml:"friction"`    // wear/s per (slip · N)
	Temperature    float64 `yaml:"temperature"` // wear/s per °C above temperature_ref
	TemperatureRef float64 `yaml:"temperature_ref"`
	Age            float64 `yaml:"age"`         // wear/s while grounded
	DamageHeat     float64 `yaml:"damage_heat"` // damaged at or above this fraction of max temperature
}

// TireMudConfig holds mud accumulation coefficients.
type TireMudConfig struct {
	Accumulation  float64 `yaml:"accumulation"`   // kg/s per (viscosity · moisture)
	Cleaning      float64 `yaml:"cleaning"`       // fraction of mud shed per second
	ParticleScale float64 `yaml:"particle_scale"` // particles per kg
	MaxParticles  int     `yaml:"max_particles"`
}

// VehicleConfig holds defaults for scenario vehicles.
type VehicleConfig struct {
	Mass      float64 `yaml:"mass"` // kg
	Wheelbase float64 `yaml:"wheelbase"`
	Track     float64 `yaml:"track"`
	Wheels    int     `yaml:"wheels"` // 2 or 4
}

// GroundConfig holds parameters for generated heightfield terrain.
type GroundConfig struct {
	Kind        string  `yaml:"kind"` // "plane" or "heightfield"
	Surface     string  `yaml:"surface"`
	Seed        int64   `yaml:"seed"`
	Size        float64 `yaml:"size"`      // m, square extent
	CellSize    float64 `yaml:"cell_size"` // m
	Amplitude   float64 `yaml:"amplitude"` // m
	Scale       float64 `yaml:"scale"`     // noise frequency
	Octaves     int     `yaml:"octaves"`
	MarchStep   float64 `yaml:"march_step"` // ray march step, m
	WaterLevel  float64 `yaml:"water_level"`
	SurfaceBias float64 `yaml:"surface_bias"`
}

// WeatherConfig selects and parameterizes the weather service.
type WeatherConfig struct {
	Default  string               `yaml:"default"`
	Schedule []WeatherPhaseConfig `yaml:"schedule"`
}

// WeatherPhaseConfig is one entry of a weather schedule.
type WeatherPhaseConfig struct {
	Start   float64 `yaml:"start"` // sim seconds
	Weather string  `yaml:"weather"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// StorageConfig holds snapshot store parameters.
type StorageConfig struct {
	Path     string `yaml:"path"`     // sqlite file; empty disables snapshots
	Interval int    `yaml:"interval"` // ticks between snapshots
}

// InfluxConfig holds InfluxDB sink parameters.
type InfluxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Org          string `yaml:"org"`
	Bucket       string `yaml:"bucket"`
	Measurement  string `yaml:"measurement"`
	BackupPath   string `yaml:"backup_path"`
	BatchSize    uint   `yaml:"batch_size"`
	FlushSeconds uint   `yaml:"flush_seconds"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TicksPerSecond float64 // 1 / Physics.DT
	CornerMass     float64 // Vehicle.Mass / Vehicle.Wheels
	CornerLoad     float64 // CornerMass * Gravity
	// Length of suspension at which the spring carries CornerLoad.
	StaticLength float64
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every setting that would make the wheel models misbehave.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Physics.DT > 0, "physics.dt must be positive, got %v", c.Physics.DT)
	check(c.Physics.Gravity > 0, "physics.gravity must be positive")
	check(c.Parallel.Threshold >= 0 && c.Parallel.Workers >= 0, "parallel settings must be non-negative")

	check(c.Wheel.Radius > 0 && c.Wheel.Width > 0, "wheel radius and width must be positive")
	check(c.Wheel.Inertia > 0, "wheel.inertia must be positive")
	if _, err := components.ParseTireType(c.Wheel.TireType); err != nil {
		errs = append(errs, fmt.Errorf("wheel.tire_type: %w", err))
	}

	s := c.Suspension
	check(s.MinLength > 0 && s.MinLength <= s.RestLength && s.RestLength <= s.MaxLength,
		"suspension lengths must satisfy 0 < min <= rest <= max, got %v/%v/%v", s.MinLength, s.RestLength, s.MaxLength)
	check(s.SpringStiffness > 0, "suspension.spring_stiffness must be positive")
	check(s.Damping >= 0 && s.MaxDamping >= 0, "suspension damping must be non-negative")

	check(c.Slip.Epsilon > 0, "slip.epsilon must be positive")
	check(c.Slip.MaxRatio > 0, "slip.max_ratio must be positive")
	check(c.Slip.TemperatureRef > 0, "slip.temperature_ref must be positive")
	check(c.Slip.SettleTime > 0, "slip.settle_time must be positive")
	check(c.Slip.RollingSpeedRef > 0, "slip.rolling_speed_ref must be positive")

	t := c.Tire
	check(t.MinPressure > 0 && t.MinPressure <= t.RecommendedPressure && t.RecommendedPressure <= t.MaxPressure,
		"tire pressures must satisfy 0 < min <= recommended <= max")
	check(t.MaxTemperature > -50, "tire.max_temperature must exceed -50")
	check(t.MudCapacity > 0 && t.MaxAge > 0 && t.MaxMileage > 0, "tire capacity, max_age and max_mileage must be positive")
	check(t.Thermal.Cooling >= 0 && t.Thermal.Cooling*c.Physics.DT < 1,
		"tire.thermal.cooling * dt must be in [0, 1) to avoid overshooting ambient")
	check(t.Pressure.Leak > 0, "tire.pressure.leak must be positive")
	check(t.Mud.MaxParticles > 0, "tire.mud.max_particles must be positive")
	for name := range t.ConditionGrip {
		if !validConditionName(name) {
			errs = append(errs, fmt.Errorf("tire.condition_grip: unknown condition %q", name))
		}
	}
	for tireName, row := range t.GripOverrides {
		if _, err := components.ParseTireType(tireName); err != nil {
			errs = append(errs, fmt.Errorf("tire.grip_overrides: %w", err))
		}
		for surfaceName, v := range row {
			if _, err := terrain.ParseSurface(surfaceName); err != nil {
				errs = append(errs, fmt.Errorf("tire.grip_overrides.%s: %w", tireName, err))
			}
			check(v > 0, "tire.grip_overrides.%s.%s must be positive", tireName, surfaceName)
		}
	}

	check(c.Vehicle.Mass > 0, "vehicle.mass must be positive")
	check(c.Vehicle.Wheels == 2 || c.Vehicle.Wheels == 4, "vehicle.wheels must be 2 or 4, got %d", c.Vehicle.Wheels)

	switch c.Ground.Kind {
	case "plane":
	case "heightfield":
		check(c.Ground.Size > 0 && c.Ground.CellSize > 0, "ground size and cell_size must be positive")
		check(c.Ground.MarchStep > 0, "ground.march_step must be positive")
	default:
		errs = append(errs, fmt.Errorf("ground.kind must be plane or heightfield, got %q", c.Ground.Kind))
	}
	if _, err := terrain.ParseSurface(c.Ground.Surface); err != nil {
		errs = append(errs, fmt.Errorf("ground.surface: %w", err))
	}

	if _, err := terrain.ParseWeather(c.Weather.Default); err != nil {
		errs = append(errs, fmt.Errorf("weather.default: %w", err))
	}
	for i, p := range c.Weather.Schedule {
		if _, err := terrain.ParseWeather(p.Weather); err != nil {
			errs = append(errs, fmt.Errorf("weather.schedule[%d]: %w", i, err))
		}
		if i > 0 && p.Start < c.Weather.Schedule[i-1].Start {
			errs = append(errs, fmt.Errorf("weather.schedule[%d]: start times must be ascending", i))
		}
	}

	if c.Influx.Enabled {
		check(c.Influx.URL != "" && c.Influx.Bucket != "", "influx url and bucket are required when enabled")
	}

	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TicksPerSecond = 1 / c.Physics.DT
	c.Derived.CornerMass = c.Vehicle.Mass / float64(c.Vehicle.Wheels)
	c.Derived.CornerLoad = c.Derived.CornerMass * c.Physics.Gravity

	// Spring length that balances the corner load, clamped to travel
	static := c.Suspension.RestLength - c.Derived.CornerLoad/c.Suspension.SpringStiffness
	if static < c.Suspension.MinLength {
		static = c.Suspension.MinLength
	}
	c.Derived.StaticLength = static
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func validConditionName(name string) bool {
	var c components.TireCondition
	return c.UnmarshalText([]byte(name)) == nil
}
