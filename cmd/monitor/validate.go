// cmd/monitor/validate.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-monitor/internal/poller"
)

func newValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file without opening the port",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			regs, vars, bits, err := poller.Definitions(cfg)
			if err != nil {
				return err
			}

			blocks := 0
			for _, p := range poller.PlanAll(regs) {
				blocks += len(p)
			}
			fmt.Fprintf(os.Stdout, "%s: ok\n", path)
			fmt.Fprintf(os.Stdout, "  registers: %d\n", len(regs))
			fmt.Fprintf(os.Stdout, "  variables: %d\n", len(vars))
			fmt.Fprintf(os.Stdout, "  bits:      %d\n", len(bits))
			fmt.Fprintf(os.Stdout, "  reads per full cycle: %d\n", blocks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "monitor.yaml", "Config file (.yaml or .toml)")
	return cmd
}
