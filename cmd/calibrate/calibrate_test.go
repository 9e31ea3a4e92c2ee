package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/mudtrack/config"
)

func init() {
	config.MustInit("")
}

func withDamping(c float64) *config.Config {
	cfg := *config.Cfg()
	cfg.Suspension.Damping = c
	return &cfg
}

func TestDropTestSettlesAtStaticHeight(t *testing.T) {
	cfg := config.Cfg()
	res := DropTest(cfg, dropDuration)

	if math.IsInf(res.SettleTime, 1) || res.SettleTime <= 0 {
		t.Fatalf("settle time = %v", res.SettleTime)
	}
	if res.PeakForce <= cfg.Derived.CornerLoad {
		t.Errorf("peak force %.0f should exceed corner load %.0f", res.PeakForce, cfg.Derived.CornerLoad)
	}
}

func TestDropTestOvershootFallsWithDamping(t *testing.T) {
	prev := math.Inf(1)
	for _, c := range []float64{500, 1500, 3000, 4500} {
		res := DropTest(withDamping(c), dropDuration)
		if res.Overshoot >= prev {
			t.Fatalf("damping %v: overshoot %.4f did not fall from %.4f", c, res.Overshoot, prev)
		}
		prev = res.Overshoot
	}

	undamped := DropTest(withDamping(0), dropDuration)
	if undamped.Overshoot < 0.8 {
		t.Errorf("undamped overshoot = %.3f, want close to 1", undamped.Overshoot)
	}
}

func TestCalibrateHitsTarget(t *testing.T) {
	var rows []EvalRow
	best, err := Calibrate(config.Cfg(), 0.1, 80, func(r EvalRow) { rows = append(rows, r) })
	if err != nil {
		t.Logf("optimization ended: %v", err)
	}

	if len(rows) != best.Evals || best.Evals == 0 {
		t.Fatalf("logged %d rows for %d evals", len(rows), best.Evals)
	}
	if math.Abs(best.Result.Overshoot-0.1) > 0.01 {
		t.Errorf("best overshoot = %.4f at damping %.1f, want 0.1", best.Result.Overshoot, best.Damping)
	}
	if best.Damping <= 0 || best.Damping > config.Cfg().Suspension.MaxDamping {
		t.Errorf("damping %.1f out of range", best.Damping)
	}
}

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector(config.Cfg())
	raw := []float64{1234}
	got := pv.Denormalize(pv.Normalize(raw))
	if math.Abs(got[0]-raw[0]) > 1e-9 {
		t.Errorf("round trip = %v", got)
	}
	if c := pv.Clamp([]float64{-5}); c[0] != 0 {
		t.Errorf("Clamp(-5) = %v", c)
	}
}
