package git

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/core/ports"
)

const NodeID graft.ID = "adapter.changes"

func init() {
	graft.Register(graft.Node[ports.ChangeSetProvider]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{},
		Run: func(_ context.Context) (ports.ChangeSetProvider, error) {
			return NewProvider(), nil
		},
	})
}
