// Package weather answers which weather applies at a position and time.
package weather

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/terrain"
)

// Service reports the weather at a world position at simulation time t
// (seconds). Implementations must be safe for concurrent reads.
type Service interface {
	WeatherAt(pos r3.Vec, t float64) terrain.WeatherType
}

// Properties looks up the physical properties of the weather at pos.
func Properties(s Service, pos r3.Vec, t float64) terrain.WeatherProperties {
	return terrain.Weather(s.WeatherAt(pos, t))
}

// Fixed is the same weather everywhere, always.
type Fixed struct {
	Weather terrain.WeatherType
}

// NewFixed returns a service that always reports w.
func NewFixed(w terrain.WeatherType) *Fixed {
	return &Fixed{Weather: w}
}

func (f *Fixed) WeatherAt(r3.Vec, float64) terrain.WeatherType {
	return f.Weather
}

// Phase switches the weather at Start seconds.
type Phase struct {
	Start   float64
	Weather terrain.WeatherType
}

// Schedule changes the global weather over time.
type Schedule struct {
	initial terrain.WeatherType
	phases  []Phase
}

// NewSchedule returns a schedule starting in initial weather. Phases must
// have strictly ascending start times.
func NewSchedule(initial terrain.WeatherType, phases []Phase) (*Schedule, error) {
	for i := 1; i < len(phases); i++ {
		if phases[i].Start <= phases[i-1].Start {
			return nil, fmt.Errorf("weather phase %d starts at %v, not after %v", i, phases[i].Start, phases[i-1].Start)
		}
	}
	return &Schedule{initial: initial, phases: append([]Phase(nil), phases...)}, nil
}

func (s *Schedule) WeatherAt(_ r3.Vec, t float64) terrain.WeatherType {
	// index of the first phase starting after t
	i := sort.Search(len(s.phases), func(i int) bool { return s.phases[i].Start > t })
	if i == 0 {
		return s.initial
	}
	return s.phases[i-1].Weather
}

// Zone is a circular region (in the XY plane) with its own weather.
type Zone struct {
	Center  r3.Vec
	Radius  float64
	Weather terrain.WeatherType
}

func (z Zone) contains(pos r3.Vec) bool {
	dx, dy := pos.X-z.Center.X, pos.Y-z.Center.Y
	return dx*dx+dy*dy <= z.Radius*z.Radius
}

// Zones overrides a base service inside local regions. The first zone
// containing a position wins.
type Zones struct {
	base  Service
	zones []Zone
}

// NewZones layers zones over base.
func NewZones(base Service, zones ...Zone) *Zones {
	return &Zones{base: base, zones: append([]Zone(nil), zones...)}
}

func (z *Zones) WeatherAt(pos r3.Vec, t float64) terrain.WeatherType {
	for _, zone := range z.zones {
		if zone.contains(pos) {
			return zone.Weather
		}
	}
	return z.base.WeatherAt(pos, t)
}

// New builds the service described by cfg: a schedule when phases are
// configured, otherwise fixed weather.
func New(cfg config.WeatherConfig) (Service, error) {
	initial, err := terrain.ParseWeather(cfg.Default)
	if err != nil {
		return nil, err
	}
	if len(cfg.Schedule) == 0 {
		return NewFixed(initial), nil
	}
	phases := make([]Phase, len(cfg.Schedule))
	for i, p := range cfg.Schedule {
		w, err := terrain.ParseWeather(p.Weather)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		phases[i] = Phase{Start: p.Start, Weather: w}
	}
	return NewSchedule(initial, phases)
}
