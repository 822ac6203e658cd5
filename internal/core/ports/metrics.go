package ports

import (
	"time"

	"go.trai.ch/reactor/internal/core/domain"
)

// Metrics records pool and build measurements.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// WorkerAcquired counts an acquisition by outcome ("reused" or "launched").
	WorkerAcquired(outcome string)
	// WorkerDiscarded counts a worker dropped from the pool by reason.
	WorkerDiscarded(reason string)
	// PoolSize reports the number of idle workers cached for an owner.
	PoolSize(owner string, size int)
	// ModuleFinished counts a module result.
	ModuleFinished(result domain.Result)
	// BuildFinished records an aggregate result and its duration.
	BuildFinished(result domain.Result, duration time.Duration)
	// WriteTextfile writes every metric to path in the text exposition format.
	WriteTextfile(path string) error
}
