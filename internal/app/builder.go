package app

import (
	"context"

	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/driver"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

// Worker is the worker side of the application: it serves one orchestrator
// connection and runs tool commands on its behalf.
type Worker struct {
	Executor ports.ToolExecutor
	Logger   ports.Logger
}

// Serve dials the orchestrator described by opts and serves it until the
// connection closes or ctx is done.
func (w *Worker) Serve(ctx context.Context, opts *driver.Options) error {
	return driver.New(w.Executor, w.Logger, opts).Serve(ctx)
}
