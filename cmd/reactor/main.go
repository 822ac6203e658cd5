// Package main is the entry point for the reactor build orchestrator.
package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"github.com/joho/godotenv"
	"go.trai.ch/reactor/cmd/reactor/commands"
	"go.trai.ch/reactor/internal/adapters/logger"
	"go.trai.ch/reactor/internal/app"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	_ "go.trai.ch/reactor/internal/wiring"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Environment overrides from .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	// 2. Components are resolved per command
	var log ports.Logger
	cli := commands.New(commands.Resolver{
		Components: func(ctx context.Context) (*app.Components, error) {
			components, _, err := graft.ExecuteFor[*app.Components](ctx)
			if err != nil {
				return nil, err
			}
			log = components.Logger
			return components, nil
		},
		Worker: func(ctx context.Context) (*app.Worker, error) {
			worker, _, err := graft.ExecuteFor[*app.Worker](ctx)
			if err != nil {
				return nil, err
			}
			log = worker.Logger
			return worker, nil
		},
	})
	cli.SetArgs(args)
	cli.SetOutput(out)

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrBuildExecutionFailed) {
			return 1
		}
		if log == nil {
			// Logger is not available yet if initialization failed
			log = logger.New()
		}
		log.Error(err)
		return 1
	}
	return 0
}
