// Package scenario drives vehicles through the wheel simulation on a
// kinematic rig: each chassis holds its speed and heading while the wheels
// react to the ground underneath.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/terrain"
	"github.com/pthm-cable/mudtrack/weather"
)

// Scenario describes a run.
type Scenario struct {
	Name     string               `yaml:"name"`
	Ticks    int                  `yaml:"ticks"`
	Ground   config.GroundConfig  `yaml:"ground"`
	Weather  config.WeatherConfig `yaml:"weather"`
	Vehicles []Vehicle            `yaml:"vehicles"`
}

// Vehicle is one rig-driven chassis. Zero Wheels or empty TireType take the
// config defaults.
type Vehicle struct {
	Wheels   int       `yaml:"wheels"`
	TireType string    `yaml:"tire_type"`
	X        float64   `yaml:"x"`
	Y        float64   `yaml:"y"`
	Heading  float64   `yaml:"heading"`  // rad, 0 = +X
	Speed    float64   `yaml:"speed"`    // m/s, held by the rig
	Throttle float64   `yaml:"throttle"` // drive torque per wheel, N·m
	Brake    float64   `yaml:"brake"`    // brake torque per wheel, N·m
	Steer    float64   `yaml:"steer"`    // front wheel angle, rad
	Controls []Control `yaml:"controls"`
}

// Control changes a vehicle's controls at a given sim time. Unset fields
// keep their current value.
type Control struct {
	At       float64  `yaml:"at"` // s
	Speed    *float64 `yaml:"speed"`
	Throttle *float64 `yaml:"throttle"`
	Brake    *float64 `yaml:"brake"`
	Steer    *float64 `yaml:"steer"`
}

func ptr(v float64) *float64 { return &v }

// builtins are keyed by name; cfg supplies ground and weather defaults.
var builtins = map[string]func(cfg *config.Config) *Scenario{
	"dry-asphalt": func(cfg *config.Config) *Scenario {
		return flat(cfg, "dry-asphalt", "asphalt", "clear", 60,
			Vehicle{Speed: 10, Throttle: 500})
	},
	"deep-mud": func(cfg *config.Config) *Scenario {
		return flat(cfg, "deep-mud", "mud", "rainy", 120,
			Vehicle{Speed: 2, Throttle: 500})
	},
	"ice-idle": func(cfg *config.Config) *Scenario {
		// Tires mount in clear weather, then the cold sets in
		sc := flat(cfg, "ice-idle", "ice", "clear", 200, Vehicle{})
		sc.Weather.Schedule = []config.WeatherPhaseConfig{{Start: cfg.Physics.DT / 2, Weather: "cold"}}
		return sc
	},
	"mud-run": func(cfg *config.Config) *Scenario {
		return flat(cfg, "mud-run", "mud", "rainy", 1800,
			Vehicle{Speed: 4, Throttle: 400, Controls: []Control{
				{At: 10, Throttle: ptr(900)},
				{At: 20, Throttle: ptr(0), Brake: ptr(300)},
			}})
	},
	"hill-country": func(cfg *config.Config) *Scenario {
		sc := flat(cfg, "hill-country", "asphalt", "cloudy", 3600,
			Vehicle{Speed: 6, Throttle: 300, Steer: 0.05},
			Vehicle{Y: 20, Speed: 3, Throttle: 600, TireType: "offroad"},
		)
		sc.Ground.Kind = "heightfield"
		sc.Weather.Schedule = []config.WeatherPhaseConfig{
			{Start: 20, Weather: "rainy"},
			{Start: 40, Weather: "stormy"},
		}
		return sc
	},
}

func flat(cfg *config.Config, name, surface, wx string, ticks int, vehicles ...Vehicle) *Scenario {
	sc := &Scenario{
		Name:     name,
		Ticks:    ticks,
		Ground:   cfg.Ground,
		Weather:  config.WeatherConfig{Default: wx},
		Vehicles: vehicles,
	}
	sc.Ground.Kind = "plane"
	sc.Ground.Surface = surface
	return sc
}

// Builtins returns the names of the built-in scenarios.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Builtin returns the named built-in scenario.
func Builtin(name string, cfg *config.Config) (*Scenario, error) {
	mk, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (have %v)", name, Builtins())
	}
	sc := mk(cfg)
	return sc, sc.Validate()
}

// Load reads a scenario from a YAML file. Ground and weather settings not
// given in the file come from cfg.
func Load(path string, cfg *config.Config) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	sc := &Scenario{
		Ticks:   600,
		Ground:  cfg.Ground,
		Weather: cfg.Weather,
	}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return sc, nil
}

// Resolve returns the built-in scenario called nameOrPath, or loads it as a file.
func Resolve(nameOrPath string, cfg *config.Config) (*Scenario, error) {
	if _, ok := builtins[nameOrPath]; ok {
		return Builtin(nameOrPath, cfg)
	}
	return Load(nameOrPath, cfg)
}

// Validate reports every problem with the scenario.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.Ticks <= 0 {
		errs = append(errs, fmt.Errorf("ticks must be positive, got %d", sc.Ticks))
	}
	if len(sc.Vehicles) == 0 {
		errs = append(errs, errors.New("at least one vehicle is required"))
	}
	switch sc.Ground.Kind {
	case "plane", "heightfield":
	default:
		errs = append(errs, fmt.Errorf("ground.kind must be plane or heightfield, got %q", sc.Ground.Kind))
	}
	if _, err := terrain.ParseSurface(sc.Ground.Surface); err != nil {
		errs = append(errs, fmt.Errorf("ground.surface: %w", err))
	}
	if _, err := weather.New(sc.Weather); err != nil {
		errs = append(errs, fmt.Errorf("weather: %w", err))
	}
	for i, v := range sc.Vehicles {
		if v.Wheels != 0 && v.Wheels != 2 && v.Wheels != 4 {
			errs = append(errs, fmt.Errorf("vehicles[%d]: wheels must be 2 or 4, got %d", i, v.Wheels))
		}
		if v.TireType != "" {
			if _, err := components.ParseTireType(v.TireType); err != nil {
				errs = append(errs, fmt.Errorf("vehicles[%d]: %w", i, err))
			}
		}
		if v.Brake < 0 {
			errs = append(errs, fmt.Errorf("vehicles[%d]: brake must be non-negative", i))
		}
		for j, c := range v.Controls {
			if j > 0 && c.At < v.Controls[j-1].At {
				errs = append(errs, fmt.Errorf("vehicles[%d].controls[%d]: times must be ascending", i, j))
			}
			if c.Brake != nil && *c.Brake < 0 {
				errs = append(errs, fmt.Errorf("vehicles[%d].controls[%d]: brake must be non-negative", i, j))
			}
		}
	}
	return errors.Join(errs...)
}
