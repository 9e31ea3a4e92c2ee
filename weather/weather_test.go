package weather

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/terrain"
)

func TestSchedule(t *testing.T) {
	s, err := NewSchedule(terrain.WeatherClear, []Phase{
		{Start: 10, Weather: terrain.WeatherRainy},
		{Start: 30, Weather: terrain.WeatherStormy},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		t    float64
		want terrain.WeatherType
	}{
		{0, terrain.WeatherClear},
		{9.99, terrain.WeatherClear},
		{10, terrain.WeatherRainy},
		{29, terrain.WeatherRainy},
		{30, terrain.WeatherStormy},
		{1e6, terrain.WeatherStormy},
	}
	for _, tt := range tests {
		if got := s.WeatherAt(r3.Vec{}, tt.t); got != tt.want {
			t.Errorf("WeatherAt(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestScheduleRejectsUnordered(t *testing.T) {
	_, err := NewSchedule(terrain.WeatherClear, []Phase{
		{Start: 5, Weather: terrain.WeatherRainy},
		{Start: 5, Weather: terrain.WeatherCold},
	})
	if err == nil {
		t.Error("expected error for duplicate start times")
	}
}

func TestZones(t *testing.T) {
	z := NewZones(NewFixed(terrain.WeatherClear),
		Zone{Center: r3.Vec{X: 100}, Radius: 20, Weather: terrain.WeatherSnowy},
		Zone{Center: r3.Vec{X: 110}, Radius: 50, Weather: terrain.WeatherFoggy},
	)

	tests := []struct {
		name string
		pos  r3.Vec
		want terrain.WeatherType
	}{
		{"outside", r3.Vec{X: -50}, terrain.WeatherClear},
		{"first zone", r3.Vec{X: 95, Y: 5, Z: 40}, terrain.WeatherSnowy},
		{"overlap picks first", r3.Vec{X: 115}, terrain.WeatherSnowy},
		{"second zone", r3.Vec{X: 150}, terrain.WeatherFoggy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := z.WeatherAt(tt.pos, 0); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	w, err := New(config.WeatherConfig{Default: "cold"})
	if err != nil {
		t.Fatal(err)
	}
	if got := Properties(w, r3.Vec{}, 0); got != terrain.Weather(terrain.WeatherCold) {
		t.Errorf("properties = %+v", got)
	}

	w, err = New(config.WeatherConfig{
		Default:  "clear",
		Schedule: []config.WeatherPhaseConfig{{Start: 60, Weather: "rainy"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := w.WeatherAt(r3.Vec{}, 61); got != terrain.WeatherRainy {
		t.Errorf("scheduled weather = %v, want rainy", got)
	}

	if _, err := New(config.WeatherConfig{Default: "clear", Schedule: []config.WeatherPhaseConfig{{Weather: "acid"}}}); err == nil {
		t.Error("unknown scheduled weather should fail")
	}
}
