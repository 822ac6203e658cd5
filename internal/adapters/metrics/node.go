package metrics

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/core/ports"
)

const NodeID graft.ID = "adapter.metrics"

func init() {
	graft.Register(graft.Node[ports.Metrics]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{},
		Run: func(_ context.Context) (ports.Metrics, error) {
			return NewRecorder(nil), nil
		},
	})
}
