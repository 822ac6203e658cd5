// Package app implements the application layer for reactor.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/aggregator"
	"go.trai.ch/reactor/internal/engine/pool"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	aggregator *aggregator.Aggregator
	loader     ports.ProjectLoader
	states     ports.StateStore
	records    ports.RecordStore
	pool       *pool.Pool
	tracer     ports.Tracer
	events     ports.EventPublisher
	logger     ports.Logger
	console    io.Writer
}

// RunOptions configures a single build.
type RunOptions struct {
	// Root is the project root. Empty means the working directory.
	Root string
	// Goals overrides the configured goals.
	Goals []string
	// BuildID names the build. Empty means a generated id.
	BuildID string
}

// Report is the recorded outcome of a previous build.
type Report struct {
	BuildID string
	Result  domain.Result
	Modules []domain.ModuleRecord
}

// New creates a new App instance.
func New(
	agg *aggregator.Aggregator,
	states ports.StateStore,
	records ports.RecordStore,
	tracer ports.Tracer,
	events ports.EventPublisher,
	logger ports.Logger,
) *App {
	return &App{
		aggregator: agg,
		loader:     agg.Loader,
		states:     states,
		records:    records,
		pool:       agg.Pool,
		tracer:     tracer,
		events:     events,
		logger:     logger,
		console:    os.Stdout,
	}
}

// WithConsole redirects the build console output.
func (a *App) WithConsole(w io.Writer) *App {
	a.console = w
	return a
}

// Run executes one build of the project. It returns an error wrapping
// domain.ErrBuildExecutionFailed when the aggregate result is worse than UNSTABLE.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	root, err := resolveRoot(opts.Root)
	if err != nil {
		return err
	}

	settings, err := a.loader.LoadSettings(root)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	a.pool.SetLimits(settings.Pool.MaxProcesses, settings.Pool.MaxReuse)

	janitor, err := pool.NewJanitor(a.pool, settings.Pool.SweepInterval, settings.Pool.IdleTimeout)
	if err != nil {
		return err
	}
	janitor.Start()
	defer func() {
		if err := janitor.Stop(); err != nil {
			a.logger.Error(err)
		}
	}()

	out, err := a.aggregator.Build(ctx, &aggregator.Request{
		Root:    root,
		Goals:   opts.Goals,
		BuildID: opts.BuildID,
		Console: a.console,
	})
	if err != nil {
		return zerr.Wrap(err, "build failed")
	}

	a.logger.Info("build " + out.BuildID + " finished with " + out.Result.String() +
		" in " + out.Duration.Round(time.Millisecond).String())
	if out.Result.IsWorseThan(domain.ResultUnstable) {
		return zerr.With(zerr.Wrap(domain.ErrBuildExecutionFailed, "build did not succeed"), "result", out.Result.String())
	}
	return nil
}

// Status returns the records of buildID, or of the last build when buildID is empty.
func (a *App) Status(ctx context.Context, root, buildID string) (*Report, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	report := &Report{BuildID: buildID}
	if buildID == "" {
		state, err := a.states.Load(root)
		if err != nil {
			return nil, err
		}
		if state.LastBuildID == "" {
			return nil, domain.ErrNoPreviousBuild
		}
		report.BuildID = state.LastBuildID
		report.Result = state.LastResult
	}

	report.Modules, err = a.records.List(ctx, root, report.BuildID)
	if err != nil {
		return nil, err
	}
	if buildID != "" {
		results := make([]domain.Result, len(report.Modules))
		for i := range report.Modules {
			results[i] = report.Modules[i].Result
		}
		report.Result = domain.CombineAggregate(domain.ResultNone, results...)
	}
	return report, nil
}

// Close releases pooled workers and flushes every adapter.
func (a *App) Close(ctx context.Context) error {
	a.pool.Close()
	return errors.Join(
		a.records.Close(),
		a.events.Close(),
		a.tracer.Shutdown(ctx),
	)
}

func resolveRoot(root string) (string, error) {
	if root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "failed to determine working directory")
	}
	return wd, nil
}
