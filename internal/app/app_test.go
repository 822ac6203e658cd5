package app_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/adapters/telemetry"
	"go.trai.ch/reactor/internal/app"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports/mocks"
	"go.trai.ch/reactor/internal/engine/aggregator"
	"go.trai.ch/reactor/internal/engine/launcher"
	"go.trai.ch/reactor/internal/engine/pool"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	root    string
	loader  *mocks.MockProjectLoader
	states  *mocks.MockStateStore
	records *mocks.MockRecordStore
	metrics *mocks.MockMetrics
	events  *mocks.MockEventPublisher
	logger  *mocks.MockLogger
	app     *app.App
	console *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		root:    t.TempDir(),
		loader:  mocks.NewMockProjectLoader(ctrl),
		states:  mocks.NewMockStateStore(ctrl),
		records: mocks.NewMockRecordStore(ctrl),
		metrics: mocks.NewMockMetrics(ctrl),
		events:  mocks.NewMockEventPublisher(ctrl),
		logger:  mocks.NewMockLogger(ctrl),
		console: &bytes.Buffer{},
	}
	f.logger.EXPECT().Info(gomock.Any()).AnyTimes()
	f.logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	f.logger.EXPECT().Error(gomock.Any()).AnyTimes()

	host := mocks.NewMockHost(ctrl)
	tracer := telemetry.NewNoOpTracer()
	p := pool.New(f.metrics, f.logger)
	agg := aggregator.New(&aggregator.Deps{
		Loader:   f.loader,
		States:   f.states,
		Changes:  mocks.NewMockChangeSetProvider(ctrl),
		Records:  f.records,
		Host:     host,
		Pool:     p,
		Launcher: launcher.New(host, f.logger),
		Tracer:   tracer,
		Metrics:  f.metrics,
		Events:   f.events,
		Logger:   f.logger,
	})
	f.app = app.New(agg, f.states, f.records, tracer, f.events, f.logger).WithConsole(f.console)
	return f
}

func TestApp_Run_ConfigLoaderError(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().LoadSettings(f.root).Return(nil, domain.ErrConfigReadFailed)

	err := f.app.Run(context.Background(), app.RunOptions{Root: f.root})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigReadFailed)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApp_Run_BuildExecutionFailed(t *testing.T) {
	f := newFixture(t)
	settings := domain.DefaultSettings()
	settings.Pool.MaxProcesses = 2
	settings.Pool.SweepInterval = time.Hour

	f.loader.EXPECT().LoadSettings(f.root).DoAndReturn(func(string) (*domain.Settings, error) {
		s := settings
		return &s, nil
	}).Times(2)
	f.loader.EXPECT().LoadGraph(f.root).Return(nil, domain.ErrCycleDetected)
	f.states.EXPECT().Load(f.root).Return(domain.NewBuildState(), nil)

	var saved *domain.BuildState
	f.states.EXPECT().Save(f.root, gomock.Any()).DoAndReturn(func(_ string, s *domain.BuildState) error {
		saved = s
		return nil
	})
	f.metrics.EXPECT().BuildFinished(domain.ResultFailure, gomock.Any())
	f.events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *domain.Event) error {
		assert.Equal(t, domain.EventBuildFinished, e.Kind)
		assert.Equal(t, "b-1", e.BuildID)
		return nil
	})

	err := f.app.Run(context.Background(), app.RunOptions{Root: f.root, BuildID: "b-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildExecutionFailed)

	require.NotNil(t, saved)
	assert.True(t, saved.NeedsFullBuild)
	assert.Equal(t, "b-1", saved.LastBuildID)
}

func TestApp_Run_BuildError(t *testing.T) {
	f := newFixture(t)
	settings := domain.DefaultSettings()
	first := true
	f.loader.EXPECT().LoadSettings(f.root).DoAndReturn(func(string) (*domain.Settings, error) {
		if first {
			first = false
			s := settings
			return &s, nil
		}
		return nil, domain.ErrConfigParseFailed
	}).Times(2)

	err := f.app.Run(context.Background(), app.RunOptions{Root: f.root})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigParseFailed)
	assert.NotErrorIs(t, err, domain.ErrBuildExecutionFailed)
}

func TestApp_Status(t *testing.T) {
	core := domain.NewModuleName("org.example", "core")
	web := domain.NewModuleName("org.example", "web")
	records := []domain.ModuleRecord{
		{BuildID: "b-2", Module: core, Result: domain.ResultUnstable},
		{BuildID: "b-2", Module: web, Result: domain.ResultNotBuilt},
	}

	t.Run("last build", func(t *testing.T) {
		f := newFixture(t)
		state := domain.NewBuildState()
		state.LastBuildID = "b-2"
		state.LastResult = domain.ResultFailure
		f.states.EXPECT().Load(f.root).Return(state, nil)
		f.records.EXPECT().List(gomock.Any(), f.root, "b-2").Return(records, nil)

		report, err := f.app.Status(context.Background(), f.root, "")
		require.NoError(t, err)
		assert.Equal(t, "b-2", report.BuildID)
		assert.Equal(t, domain.ResultFailure, report.Result)
		assert.Equal(t, records, report.Modules)
	})

	t.Run("explicit build folds module results", func(t *testing.T) {
		f := newFixture(t)
		f.records.EXPECT().List(gomock.Any(), f.root, "b-2").Return(records, nil)

		report, err := f.app.Status(context.Background(), f.root, "b-2")
		require.NoError(t, err)
		assert.Equal(t, domain.ResultUnstable, report.Result)
	})

	t.Run("no previous build", func(t *testing.T) {
		f := newFixture(t)
		f.states.EXPECT().Load(f.root).Return(domain.NewBuildState(), nil)

		_, err := f.app.Status(context.Background(), f.root, "")
		assert.ErrorIs(t, err, domain.ErrNoPreviousBuild)
	})

	t.Run("record store failure", func(t *testing.T) {
		f := newFixture(t)
		f.records.EXPECT().List(gomock.Any(), f.root, "b-9").Return(nil, domain.ErrRecordStoreFailed)

		_, err := f.app.Status(context.Background(), f.root, "b-9")
		assert.ErrorIs(t, err, domain.ErrRecordStoreFailed)
	})
}

func TestApp_Close(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("drain failed")
	f.records.EXPECT().Close().Return(nil)
	f.events.EXPECT().Close().Return(boom)

	err := f.app.Close(context.Background())
	assert.ErrorIs(t, err, boom)
}
