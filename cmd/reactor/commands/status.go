package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/reactor/internal/app"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [build-id]",
		Short: "Show the module results of a build (defaults to the last build)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			comps, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, comps.App.Close(context.WithoutCancel(cmd.Context())))
			}()

			root, _ := cmd.Flags().GetString("root")
			var buildID string
			if len(args) == 1 {
				buildID = args[0]
			}
			report, err := comps.App.Status(cmd.Context(), root, buildID)
			if err != nil {
				return err
			}
			return printReport(c.out, report)
		},
	}
}

func printReport(w io.Writer, report *app.Report) error {
	result := report.Result.String()
	if result == "" {
		result = "-"
	}
	if _, err := fmt.Fprintf(w, "Build %s: %s\n", report.BuildID, result); err != nil {
		return err
	}
	if len(report.Modules) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODULE\tSTATE\tRESULT\tDURATION\tTASKS")
	for i := range report.Modules {
		m := &report.Modules[i]
		res := m.Result.String()
		if res == "" {
			res = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			m.Module, m.State, res, m.Duration.Round(time.Millisecond), len(m.Tasks))
	}
	return tw.Flush()
}
