package pool

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/adapters/logger"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/metrics" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/core/ports"
)

// NodeID is the unique identifier for the worker pool Graft node.
const NodeID graft.ID = "engine.pool"

func init() {
	graft.Register(graft.Node[*Pool]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{metrics.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Pool, error) {
			m, err := graft.Dep[ports.Metrics](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(m, log), nil
		},
	})
}
