package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/core/ports"
)

const NodeID graft.ID = "adapter.state_store"

func init() {
	graft.Register(graft.Node[ports.StateStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.StateStore, error) {
			return NewStore(), nil
		},
	})
}
