package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}
	if cfg.Physics.DT <= 0 {
		t.Errorf("dt = %v, want > 0", cfg.Physics.DT)
	}
	if math.Abs(cfg.Derived.TicksPerSecond-60) > 1e-6 {
		t.Errorf("ticks per second = %v, want 60", cfg.Derived.TicksPerSecond)
	}
	if cfg.Derived.CornerMass != cfg.Vehicle.Mass/float64(cfg.Vehicle.Wheels) {
		t.Errorf("corner mass = %v", cfg.Derived.CornerMass)
	}
	s := cfg.Suspension
	if cfg.Derived.StaticLength < s.MinLength || cfg.Derived.StaticLength > s.RestLength {
		t.Errorf("static length %v outside [%v, %v]", cfg.Derived.StaticLength, s.MinLength, s.RestLength)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	data := []byte("physics:\n  dt: 0.01\nweather:\n  default: rainy\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Physics.DT != 0.01 {
		t.Errorf("dt = %v, want 0.01", cfg.Physics.DT)
	}
	if cfg.Weather.Default != "rainy" {
		t.Errorf("weather = %q, want rainy", cfg.Weather.Default)
	}
	// Keys absent from the overlay keep their defaults
	if cfg.Physics.Gravity != 9.81 {
		t.Errorf("gravity = %v, want default 9.81", cfg.Physics.Gravity)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero dt", "physics:\n  dt: 0\n", "physics.dt"},
		{"bad surface", "ground:\n  surface: lava\n", "ground.surface"},
		{"bad weather", "weather:\n  default: meteor\n", "weather.default"},
		{"bad tire", "wheel:\n  tire_type: slick\n", "wheel.tire_type"},
		{"inverted lengths", "suspension:\n  min_length: 0.7\n", "suspension lengths"},
		{"bad grip override", "tire:\n  grip_overrides:\n    winter:\n      lava: 1.2\n", "grip_overrides"},
		{"unsorted schedule", "weather:\n  schedule:\n    - {start: 10, weather: rainy}\n    - {start: 5, weather: clear}\n", "ascending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Tire.MaxTemperature = 130

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if back.Tire.MaxTemperature != 130 {
		t.Errorf("max temperature = %v, want 130", back.Tire.MaxTemperature)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}
