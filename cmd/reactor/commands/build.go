package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.trai.ch/reactor/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [goals...]",
		Short: "Build the modules affected by changes since the last successful build",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			comps, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, comps.App.Close(context.WithoutCancel(cmd.Context())))
			}()

			root, _ := cmd.Flags().GetString("root")
			buildID, _ := cmd.Flags().GetString("build-id")
			return comps.App.WithConsole(c.out).Run(cmd.Context(), app.RunOptions{
				Root:    root,
				Goals:   args,
				BuildID: buildID,
			})
		},
	}
	cmd.Flags().String("build-id", "", "Identifier of this build (defaults to a generated id)")
	return cmd
}
