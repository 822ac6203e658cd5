// Package aggregator orchestrates one build: it selects the modules to run,
// drives a pooled worker through them and folds the module results into the
// aggregate result that the next build starts from.
package aggregator

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/launcher"
	"go.trai.ch/reactor/internal/engine/pool"
	"go.trai.ch/reactor/internal/engine/selection"
	"go.trai.ch/zerr"
)

// Request describes one build.
type Request struct {
	// Root is the project root directory.
	Root string
	// Goals overrides the configured goals when not empty.
	Goals []string
	// BuildID identifies the build. Empty means a fresh UUID.
	BuildID string
	// Console receives the build's console output in addition to the build log.
	Console io.Writer
}

// Outcome is the result of a build.
type Outcome struct {
	BuildID   string
	Result    domain.Result
	Selection selection.Selection
	// Modules holds the final record of every module, in dependency order.
	Modules  []domain.ModuleRecord
	Duration time.Duration
}

// Deps are the collaborators of an Aggregator.
type Deps struct {
	Loader   ports.ProjectLoader
	States   ports.StateStore
	Changes  ports.ChangeSetProvider
	Records  ports.RecordStore
	Host     ports.Host
	Pool     *pool.Pool
	Launcher *launcher.Launcher
	Tracer   ports.Tracer
	Metrics  ports.Metrics
	Events   ports.EventPublisher
	Logger   ports.Logger
}

// Aggregator runs builds.
type Aggregator struct {
	Deps
	clock func() time.Time
}

// New creates an Aggregator.
func New(deps *Deps) *Aggregator {
	return &Aggregator{Deps: *deps, clock: time.Now}
}

// Build runs one build. A returned error means the build could not be
// driven at all; a failing build is reported through Outcome.Result.
func (a *Aggregator) Build(ctx context.Context, req *Request) (*Outcome, error) {
	started := a.clock()
	buildID := req.BuildID
	if buildID == "" {
		buildID = uuid.NewString()
	}

	settings, err := a.Loader.LoadSettings(req.Root)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load settings")
	}
	if len(req.Goals) > 0 {
		settings.Goals = req.Goals
	}

	state, err := a.States.Load(req.Root)
	if err != nil {
		a.Logger.Warn("ignoring previous build state: " + err.Error())
		state = domain.NewBuildState()
	}

	ctx, span := a.Tracer.Start(ctx, "build")
	defer span.End()
	span.SetAttribute("reactor.build_id", buildID)

	graph, err := a.Loader.LoadGraph(req.Root)
	if err != nil {
		err = errors.Join(domain.ErrGraphDiscoveryFailed, err)
		span.RecordError(err)
		a.Logger.Error(err)
		state.NeedsFullBuild = true
		state.LastBuildID = buildID
		state.LastResult = domain.ResultFailure
		if saveErr := a.States.Save(req.Root, state); saveErr != nil {
			a.Logger.Error(saveErr)
		}
		out := &Outcome{BuildID: buildID, Result: domain.ResultFailure, Duration: a.clock().Sub(started)}
		a.finished(ctx, settings, out)
		return out, nil
	}

	sel, revision := a.selectModules(ctx, req.Root, settings, state, graph)
	expected := graph.Names()
	if !sel.Full {
		if expected, err = graph.WithDependents(sel.Seeds); err != nil {
			return nil, err
		}
	}
	if sel.Full {
		a.Logger.Info("building every module: " + sel.Reason)
	}
	span.SetAttribute("reactor.modules", len(expected))

	s, err := newSession(ctx, a, req, buildID, settings, graph)
	if err != nil {
		return nil, err
	}
	defer s.closeLogs()

	var own domain.Result
	var runErr error
	if settings.Mode == domain.ModePerModule {
		own, runErr = s.runPerModule(ctx, expected)
	} else {
		own, runErr = s.runAggregate(ctx, &sel, expected)
	}
	if runErr != nil {
		span.RecordError(runErr)
	}

	records := s.finish(ctx)
	own = own.Combine(domain.ResultSuccess)
	if s.asyncErr != nil {
		own = own.Combine(domain.ResultFailure)
	}
	results := make([]domain.Result, 0, len(records))
	for i := range records {
		results = append(results, records[i].Result)
	}
	out := &Outcome{
		BuildID:   buildID,
		Result:    domain.CombineAggregate(own, results...),
		Selection: sel,
		Modules:   records,
		Duration:  a.clock().Sub(started),
	}
	span.SetAttribute("reactor.result", out.Result.String())

	a.persist(req.Root, state, graph, expected, out, revision)
	a.finished(ctx, settings, out)
	return out, runErr
}

// selectModules computes the incremental selection and returns the current
// revision of the working copy.
func (a *Aggregator) selectModules(
	ctx context.Context,
	root string,
	settings *domain.Settings,
	state *domain.BuildState,
	graph *domain.ModuleGraph,
) (selection.Selection, string) {
	revision, err := a.Changes.Revision(ctx, root)
	if err != nil {
		a.Logger.Warn("cannot determine revision: " + err.Error())
	}

	in := &selection.Input{
		Mode:           settings.Mode,
		Incremental:    settings.Incremental,
		Previous:       state.Results,
		Unbuilt:        state.UnbuiltSet(),
		NeedsFullBuild: state.NeedsFullBuild,
	}
	for m := range graph.Walk() {
		in.Modules = append(in.Modules, m)
	}
	if settings.Incremental {
		changes, err := a.Changes.Changes(ctx, root, state.Revision)
		switch {
		case err == nil:
			in.Changes, in.ChangesKnown = changes, true
		case !errors.Is(err, domain.ErrNoBaseline):
			a.Logger.Warn("cannot compute changes: " + err.Error())
		}
	}
	return selection.Select(in), revision
}

// persist writes the state the next build starts from.
func (a *Aggregator) persist(
	root string,
	state *domain.BuildState,
	graph *domain.ModuleGraph,
	expected []domain.ModuleName,
	out *Outcome,
	revision string,
) {
	declared := graph.Names()
	ran := make(map[domain.ModuleName]bool)
	for i := range out.Modules {
		rec := &out.Modules[i]
		if rec.Started.IsZero() {
			continue
		}
		ran[rec.Module] = true
		state.Results[rec.Module] = rec.Result
	}
	for name := range state.Results {
		if _, ok := graph.Module(name); !ok {
			delete(state.Results, name)
		}
	}

	state.SetUnbuilt(selection.CarryForward(state.UnbuiltSet(), declared, expected, ran, out.Result))
	state.NeedsFullBuild = false
	state.LastBuildID = out.BuildID
	state.LastResult = out.Result
	if out.Result == domain.ResultSuccess && revision != "" {
		state.Revision = revision
	}
	if err := a.States.Save(root, state); err != nil {
		a.Logger.Error(err)
	}
}

func (a *Aggregator) finished(ctx context.Context, settings *domain.Settings, out *Outcome) {
	a.Metrics.BuildFinished(out.Result, out.Duration)
	if settings.MetricsTextfile != "" {
		if err := a.Metrics.WriteTextfile(settings.MetricsTextfile); err != nil {
			a.Logger.Error(err)
		}
	}
	a.publish(ctx, &domain.Event{
		Kind:     domain.EventBuildFinished,
		BuildID:  out.BuildID,
		Result:   out.Result,
		Duration: out.Duration,
		Time:     a.clock(),
	})
}

func (a *Aggregator) publish(ctx context.Context, event *domain.Event) {
	if err := a.Events.Publish(ctx, event); err != nil {
		a.Logger.Warn("failed to publish " + string(event.Kind) + ": " + err.Error())
	}
}
