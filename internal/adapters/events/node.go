package events

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/reactor/internal/adapters/logger"
	"go.trai.ch/reactor/internal/core/ports"
)

const NodeID graft.ID = "adapter.events"

func init() {
	graft.Register(graft.Node[ports.EventPublisher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.EventPublisher, error) {
			url := os.Getenv(EnvURL)
			if url == "" {
				return NoOpPublisher{}, nil
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			p, err := Connect(url, os.Getenv(EnvSubject))
			if err != nil {
				log.Warn("event publishing disabled: " + err.Error())
				return NoOpPublisher{}, nil
			}
			return p, nil
		},
	})
}
