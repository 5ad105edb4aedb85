// Command fabolas runs FABOLAS on a synthetic multi-fidelity Branin
// benchmark.
//
//	fabolas -config run.yaml -runs 4 -workers 2
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/cheggaaa/pb/v3"

	"github.com/thalesfsp/fabolas"
)

var (
	configPath string
	seed       uint64
	runs       int
	workers    int
	verbose    bool
)

func main() {
	flag.StringVar(&configPath, "config", "", "YAML run configuration (default: built-in Branin setup)")
	flag.Uint64Var(&seed, "seed", 1, "seed of the first run")
	flag.IntVar(&runs, "runs", 1, "number of independent runs")
	flag.IntVar(&workers, "workers", 1, "runs executed in parallel")
	flag.BoolVar(&verbose, "v", false, "log every round to stderr")
	flag.Parse()

	config, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	config.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	progress := make(chan fabolas.ProgressUpdate, runs*config.Iterations)
	config.ProgressChan = progress

	bar := pb.StartNew(runs * config.Iterations)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range progress {
			bar.Increment()
		}
	}()

	seeds := make([]uint64, runs)
	for i := range seeds {
		seeds[i] = seed + uint64(i)
	}

	results, err := fabolas.OptimizeSeeds(braninObjective(config.SMax), config, seeds, workers)
	close(progress)
	<-done
	bar.Finish()
	if err != nil {
		log.Fatal(err)
	}

	for _, res := range results {
		last := len(res.Trajectory) - 1
		fmt.Printf("seed=%d x_opt=%v estimated=%.4f true=%.4f evaluations=%d runtime=%s\n",
			res.Seed,
			res.XOpt,
			res.IncumbentValues[last],
			branin(res.XOpt[0], res.XOpt[1]),
			len(res.Observations),
			res.Runtime[len(res.Runtime)-1])
	}
}

func loadConfig() (fabolas.OptimizationConfig, error) {
	if configPath != "" {
		config, err := fabolas.LoadConfig(configPath)
		if err != nil {
			return config, err
		}
		if len(config.Lower) != 2 {
			return config, fmt.Errorf("the Branin benchmark is two-dimensional, config has %d dimensions", len(config.Lower))
		}
		return config, nil
	}

	config := fabolas.DefaultConfig()
	config.Lower = []float64{-5, 0}
	config.Upper = []float64{10, 15}
	config.SMin = 100
	config.SMax = 10000
	config.InitialDesign = 4
	config.Iterations = 20

	return config, config.Validate()
}
