package ports

import (
	"context"

	"go.trai.ch/reactor/internal/core/domain"
)

// EventPublisher broadcasts module lifecycle events to outside observers.
//
//go:generate mockgen -source=events.go -destination=mocks/mock_events.go -package=mocks
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
	Close() error
}
