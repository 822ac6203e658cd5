package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/adapters/logger"
	"go.trai.ch/reactor/internal/core/ports"
)

// EnvTracing disables tracing when set to "off".
const EnvTracing = "REACTOR_TRACING"

// TracerNodeID is the unique identifier for the Telemetry adapter Graft node.
const TracerNodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			if os.Getenv(EnvTracing) == "off" {
				return NewNoOpTracer(), nil
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewOTelTracer("reactor", NewLogBridge(log)), nil
		},
	})
}
