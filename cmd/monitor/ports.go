// cmd/monitor/ports.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pmodbus "github.com/tamzrod/modbus-monitor/internal/poller/modbus"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := pmodbus.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(os.Stdout, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.USB {
					fmt.Fprintf(os.Stdout, "%-20s USB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.Product, p.Serial)
					continue
				}
				fmt.Fprintln(os.Stdout, p.Name)
			}
			return nil
		},
	}
}
