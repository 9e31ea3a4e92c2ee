package main

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/mudtrack/config"
)

// dropDuration is long enough for a lightly damped corner to settle.
const dropDuration = 5.0

// EvalRow is one line of the evaluation log.
type EvalRow struct {
	Eval       int     `csv:"eval"`
	Damping    float64 `csv:"damping"`
	Overshoot  float64 `csv:"overshoot"`
	SettleTime float64 `csv:"settle_time"`
	Error      float64 `csv:"error"`
}

// Calibration is the best damping found.
type Calibration struct {
	Damping float64
	Result  DropResult
	Evals   int
}

// Calibrate searches for the damping rate whose drop test overshoots by
// target. onEval, if set, sees every evaluation.
func Calibrate(base *config.Config, target float64, maxEvals int, onEval func(EvalRow)) (Calibration, error) {
	params := NewParamVector(base)
	best := Calibration{}
	bestErr := math.Inf(1)
	evals := 0

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			cfg := *base
			params.ApplyToConfig(&cfg, raw)

			res := DropTest(&cfg, dropDuration)
			d := res.Overshoot - target
			e := d * d
			// Out-of-range guesses score worse than the nearest bound
			for i, v := range params.Normalize(raw) {
				e += (x[i] - v) * (x[i] - v)
			}

			evals++
			if e < bestErr {
				bestErr = e
				best = Calibration{Damping: raw[0], Result: res}
			}
			if onEval != nil {
				onEval(EvalRow{
					Eval:       evals,
					Damping:    raw[0],
					Overshoot:  res.Overshoot,
					SettleTime: res.SettleTime,
					Error:      e,
				})
			}
			return e
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Iterations: 20,
		},
	}
	method := &optimize.NelderMead{SimplexSize: 0.2}

	initX := params.Normalize(params.ExtractFromConfig(base))
	_, err := optimize.Minimize(problem, initX, settings, method)
	best.Evals = evals
	return best, err
}
