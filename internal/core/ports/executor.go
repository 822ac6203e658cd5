package ports

import (
	"context"
	"io"

	"go.trai.ch/reactor/internal/core/domain"
)

// ToolExecutor runs build tool commands on the worker side.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type ToolExecutor interface {
	// Execute runs the invocation, streaming its output to stdout and stderr.
	Execute(ctx context.Context, inv *domain.Invocation, stdout, stderr io.Writer) error
	// Resolve returns the absolute path of the executable the invocation would run.
	Resolve(inv *domain.Invocation) (string, error)
}
