// cmd/monitor/bench.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-monitor/internal/logging"
	"github.com/tamzrod/modbus-monitor/internal/poller"
)

func newBenchCmd() *cobra.Command {
	var (
		path   string
		cycles int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the achievable read rate of the configured plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cycles < 1 {
				return fmt.Errorf("cycles must be >= 1")
			}
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			engine, closeEngine, err := poller.Build(cfg, log)
			if err != nil {
				return err
			}
			defer closeEngine()

			res, err := engine.Benchmark(cycles)
			fmt.Fprintf(os.Stdout, "reads:    %d\n", res.Reads)
			fmt.Fprintf(os.Stdout, "errors:   %d\n", res.Errors)
			fmt.Fprintf(os.Stdout, "elapsed:  %s\n", res.Duration)
			fmt.Fprintf(os.Stdout, "rate:     %.1f reads/s\n", res.PerSecond())
			return err
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "monitor.yaml", "Config file (.yaml or .toml)")
	cmd.Flags().IntVarP(&cycles, "cycles", "n", 100, "Full plan passes to run")
	return cmd
}
