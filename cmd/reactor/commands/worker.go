package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/reactor/internal/engine/driver"
)

func (c *CLI) newWorkerCmd() *cobra.Command {
	opts := &driver.Options{}
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve builds for an orchestrator (started by reactor itself)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := c.resolve.Worker(cmd.Context())
			if err != nil {
				return err
			}
			return w.Serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port of the orchestrator's acceptor")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Address of the orchestrator's acceptor (overrides --port)")
	cmd.Flags().StringVar(&opts.ToolHome, "tool-home", "", "Build tool installation directory")
	cmd.Flags().StringVar(&opts.RuntimeHome, "runtime-home", "", "Runtime installation directory")
	cmd.Flags().StringArrayVar(&opts.Support, "support", nil, "Extra support path handed to tool commands")
	return cmd
}
