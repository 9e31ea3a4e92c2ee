package terrain

import (
	"errors"
	"fmt"
	"strings"
)

// WeatherType identifies the prevailing weather over a region.
type WeatherType uint8

const (
	WeatherClear WeatherType = iota
	WeatherCloudy
	WeatherRainy
	WeatherSnowy
	WeatherFoggy
	WeatherStormy
	WeatherCold
	WeatherHot
	WeatherWindy

	weatherCount
)

// WeatherProperties holds the ambient conditions for a weather type.
type WeatherProperties struct {
	Temperature         float64 `yaml:"temperature"`          // °C
	Humidity            float64 `yaml:"humidity"`             // 0..1
	WindSpeed           float64 `yaml:"wind_speed"`           // m/s
	RainIntensity       float64 `yaml:"rain_intensity"`       // 0..1, includes snowfall
	AtmosphericPressure float64 `yaml:"atmospheric_pressure"` // kPa
	Visibility          float64 `yaml:"visibility"`           // m
}

var weatherNames = [weatherCount]string{
	"clear", "cloudy", "rainy", "snowy", "foggy", "stormy", "cold", "hot", "windy",
}

var weatherTable = [weatherCount]WeatherProperties{
	WeatherClear:  {Temperature: 20, Humidity: 0.40, WindSpeed: 3, RainIntensity: 0, AtmosphericPressure: 101.3, Visibility: 10000},
	WeatherCloudy: {Temperature: 15, Humidity: 0.60, WindSpeed: 5, RainIntensity: 0, AtmosphericPressure: 100.8, Visibility: 8000},
	WeatherRainy:  {Temperature: 12, Humidity: 0.90, WindSpeed: 6, RainIntensity: 0.6, AtmosphericPressure: 100.2, Visibility: 3000},
	WeatherSnowy:  {Temperature: -5, Humidity: 0.80, WindSpeed: 5, RainIntensity: 0.3, AtmosphericPressure: 100.5, Visibility: 1500},
	WeatherFoggy:  {Temperature: 10, Humidity: 0.95, WindSpeed: 1, RainIntensity: 0, AtmosphericPressure: 101.0, Visibility: 200},
	WeatherStormy: {Temperature: 14, Humidity: 0.95, WindSpeed: 18, RainIntensity: 1.0, AtmosphericPressure: 98.5, Visibility: 800},
	WeatherCold:   {Temperature: -15, Humidity: 0.50, WindSpeed: 4, RainIntensity: 0, AtmosphericPressure: 102.5, Visibility: 10000},
	WeatherHot:    {Temperature: 35, Humidity: 0.20, WindSpeed: 2, RainIntensity: 0, AtmosphericPressure: 100.9, Visibility: 10000},
	WeatherWindy:  {Temperature: 16, Humidity: 0.45, WindSpeed: 14, RainIntensity: 0, AtmosphericPressure: 100.6, Visibility: 9000},
}

// Weather returns the properties for w.
// Panics if w is outside the enumeration; that is a programming error.
func Weather(w WeatherType) WeatherProperties {
	if w >= weatherCount {
		panic(fmt.Sprintf("terrain: undefined weather type %d", w))
	}
	return weatherTable[w]
}

// Weathers returns every defined weather type in enum order.
func Weathers() []WeatherType {
	out := make([]WeatherType, weatherCount)
	for i := range out {
		out[i] = WeatherType(i)
	}
	return out
}

// String returns the lower-case name of the weather type.
func (w WeatherType) String() string {
	if w < weatherCount {
		return weatherNames[w]
	}
	return fmt.Sprintf("weather(%d)", uint8(w))
}

// MarshalText implements encoding.TextMarshaler.
func (w WeatherType) MarshalText() ([]byte, error) {
	if w >= weatherCount {
		return nil, fmt.Errorf("undefined weather type %d", w)
	}
	return []byte(weatherNames[w]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *WeatherType) UnmarshalText(text []byte) error {
	v, err := ParseWeather(string(text))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// ParseWeather converts a name such as "rainy" to its WeatherType.
func ParseWeather(name string) (WeatherType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range weatherNames {
		if n == name {
			return WeatherType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weather %q", name)
}

// Validate checks both tables for entries that would break the models.
// It is run once at startup; a failure is a build/config defect.
func Validate() error {
	var errs []error
	for i, p := range surfaceTable {
		s := SurfaceType(i)
		if surfaceNames[i] == "" {
			errs = append(errs, fmt.Errorf("surface %d has no name", i))
		}
		if p.Friction <= 0 || p.Traction <= 0 {
			errs = append(errs, fmt.Errorf("surface %s: friction and traction must be positive", s))
		}
		if p.Density <= 0 {
			errs = append(errs, fmt.Errorf("surface %s: density must be positive", s))
		}
		if p.RollingResistance < 0 || p.Viscosity < 0 || p.PenetrationDepth < 0 {
			errs = append(errs, fmt.Errorf("surface %s: resistances and depth must be non-negative", s))
		}
		if p.Moisture < 0 || p.Moisture > 1 {
			errs = append(errs, fmt.Errorf("surface %s: moisture %.2f outside [0,1]", s, p.Moisture))
		}
	}
	for i, p := range weatherTable {
		w := WeatherType(i)
		if weatherNames[i] == "" {
			errs = append(errs, fmt.Errorf("weather %d has no name", i))
		}
		if p.Humidity < 0 || p.Humidity > 1 || p.RainIntensity < 0 || p.RainIntensity > 1 {
			errs = append(errs, fmt.Errorf("weather %s: humidity and rain must be in [0,1]", w))
		}
		if p.AtmosphericPressure <= 0 {
			errs = append(errs, fmt.Errorf("weather %s: atmospheric pressure must be positive", w))
		}
		if p.WindSpeed < 0 || p.Visibility < 0 {
			errs = append(errs, fmt.Errorf("weather %s: wind and visibility must be non-negative", w))
		}
	}
	return errors.Join(errs...)
}
