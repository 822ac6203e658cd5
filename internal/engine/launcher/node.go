package launcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/adapters/host"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/reactor/internal/core/ports"
)

// NodeID is the unique identifier for the launcher Graft node.
const NodeID graft.ID = "engine.launcher"

func init() {
	graft.Register(graft.Node[*Launcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{host.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Launcher, error) {
			h, err := graft.Dep[ports.Host](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(h, log), nil
		},
	})
}
