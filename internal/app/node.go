package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/reactor/internal/adapters/events"    //nolint:depguard // Wired in app layer
	"go.trai.ch/reactor/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/reactor/internal/adapters/records"   //nolint:depguard // Wired in app layer
	"go.trai.ch/reactor/internal/adapters/shell"     //nolint:depguard // Wired in app layer
	"go.trai.ch/reactor/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/aggregator"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
	// WorkerNodeID is the unique identifier for the worker Graft node.
	WorkerNodeID graft.ID = "app.worker"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			aggregator.NodeID,
			cas.NodeID,
			records.NodeID,
			telemetry.TracerNodeID,
			events.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})

	// Worker Node
	graft.Register(graft.Node[*Worker]{
		ID:        WorkerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			logger.NodeID,
		},
		Run: runWorkerNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	agg, err := graft.Dep[*aggregator.Aggregator](ctx)
	if err != nil {
		return nil, err
	}
	states, err := graft.Dep[ports.StateStore](ctx)
	if err != nil {
		return nil, err
	}
	store, err := graft.Dep[ports.RecordStore](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := graft.Dep[ports.EventPublisher](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	return New(agg, states, store, tracer, publisher, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    app,
		Logger: log,
	}, nil
}

func runWorkerNode(ctx context.Context) (*Worker, error) {
	executor, err := graft.Dep[ports.ToolExecutor](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Worker{Executor: executor, Logger: log}, nil
}
