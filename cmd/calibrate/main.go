// Package main calibrates suspension damping with a Nelder-Mead search over
// a quarter-car drop test.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/mudtrack/config"
)

// formatDuration formats a duration as MmSSs, or HhMMmSSs when long.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	target := flag.Float64("target-overshoot", 0.1, "Desired overshoot as a fraction of static sag")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of drop tests")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *target < 0 || *target >= 1 {
		log.Fatalf("--target-overshoot must be in [0, 1), got %v", *target)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	start := time.Now()
	wroteHeader := false
	onEval := func(row EvalRow) {
		rows := []EvalRow{row}
		var werr error
		if wroteHeader {
			werr = gocsv.MarshalWithoutHeaders(rows, logFile)
		} else {
			werr = gocsv.Marshal(rows, logFile)
			wroteHeader = true
		}
		if werr != nil {
			log.Printf("failed to log evaluation %d: %v", row.Eval, werr)
		}
		fmt.Printf("Eval %d/%d: damping=%.1f overshoot=%.4f settle=%.2fs | elapsed: %s\n",
			row.Eval, *maxEvals, row.Damping, row.Overshoot, row.SettleTime,
			formatDuration(time.Since(start)))
	}

	before := DropTest(baseCfg, dropDuration)
	fmt.Printf("Current damping %.1f: overshoot=%.4f settle=%.2fs\n",
		baseCfg.Suspension.Damping, before.Overshoot, before.SettleTime)
	fmt.Printf("Searching for overshoot %.3f, max_evals=%d\n", *target, *maxEvals)

	best, err := Calibrate(baseCfg, *target, *maxEvals, onEval)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", best.Evals, formatDuration(time.Since(start)))
	fmt.Printf("Best damping: %.1f N·s/m (overshoot %.4f, settle %.2fs, peak force %.0f N)\n",
		best.Damping, best.Result.Overshoot, best.Result.SettleTime, best.Result.PeakForce)

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	NewParamVector(bestCfg).ApplyToConfig(bestCfg, []float64{best.Damping})

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
