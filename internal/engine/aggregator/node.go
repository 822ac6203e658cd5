package aggregator

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/events"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/git"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/host"      //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/metrics"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/records"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/launcher"
	"go.trai.ch/reactor/internal/engine/pool"
)

// NodeID is the unique identifier for the aggregator Graft node.
const NodeID graft.ID = "engine.aggregator"

func init() {
	graft.Register(graft.Node[*Aggregator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			cas.NodeID,
			git.NodeID,
			records.NodeID,
			host.NodeID,
			pool.NodeID,
			launcher.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
			events.NodeID,
			logger.NodeID,
		},
		Run: runNode,
	})
}

func runNode(ctx context.Context) (*Aggregator, error) {
	var (
		deps Deps
		err  error
	)
	if deps.Loader, err = graft.Dep[ports.ProjectLoader](ctx); err != nil {
		return nil, err
	}
	if deps.States, err = graft.Dep[ports.StateStore](ctx); err != nil {
		return nil, err
	}
	if deps.Changes, err = graft.Dep[ports.ChangeSetProvider](ctx); err != nil {
		return nil, err
	}
	if deps.Records, err = graft.Dep[ports.RecordStore](ctx); err != nil {
		return nil, err
	}
	if deps.Host, err = graft.Dep[ports.Host](ctx); err != nil {
		return nil, err
	}
	if deps.Pool, err = graft.Dep[*pool.Pool](ctx); err != nil {
		return nil, err
	}
	if deps.Launcher, err = graft.Dep[*launcher.Launcher](ctx); err != nil {
		return nil, err
	}
	if deps.Tracer, err = graft.Dep[ports.Tracer](ctx); err != nil {
		return nil, err
	}
	if deps.Metrics, err = graft.Dep[ports.Metrics](ctx); err != nil {
		return nil, err
	}
	if deps.Events, err = graft.Dep[ports.EventPublisher](ctx); err != nil {
		return nil, err
	}
	if deps.Logger, err = graft.Dep[ports.Logger](ctx); err != nil {
		return nil, err
	}
	return New(&deps), nil
}
