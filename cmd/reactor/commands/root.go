// Package commands implements the CLI commands for the reactor build orchestrator.
package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/reactor/internal/app"
	"go.trai.ch/reactor/internal/build"
)

// Resolver builds the application components a command needs. Commands
// resolve lazily so a worker process never initializes the orchestrator side.
type Resolver struct {
	Components func(ctx context.Context) (*app.Components, error)
	Worker     func(ctx context.Context) (*app.Worker, error)
}

// CLI represents the command line interface for reactor.
type CLI struct {
	resolve Resolver
	rootCmd *cobra.Command
	out     io.Writer
}

// New creates a new CLI instance.
func New(resolve Resolver) *CLI {
	rootCmd := &cobra.Command{
		Use:           "reactor",
		Short:         "An incremental build orchestrator with pooled workers",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("root", "C", "", "Project root directory (defaults to the working directory)")

	c := &CLI{
		resolve: resolve,
		rootCmd: rootCmd,
		out:     os.Stdout,
	}

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newWorkerCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
	c.rootCmd.SetOut(w)
}

func (c *CLI) components(ctx context.Context) (*app.Components, error) {
	return c.resolve.Components(ctx)
}
