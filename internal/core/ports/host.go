package ports

import (
	"context"
	"io"
	"time"
)

//go:generate mockgen -source=host.go -destination=mocks/mock_host.go -package=mocks

// ProcessSpec describes a process to start on a host.
type ProcessSpec struct {
	Path string
	Args []string
	Dir  string
	// Env is the complete environment in KEY=VALUE form.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a handle to a process started on a host.
type Process interface {
	// PID returns the operating system process id.
	PID() int
	// Alive reports whether the process is still running.
	Alive() bool
	// ExitCode returns the exit code once the process has exited, or -1 while it runs.
	ExitCode() int
	// Done is closed when the process exits.
	Done() <-chan struct{}
	// Kill terminates the process.
	Kill() error
}

// Acceptor waits for exactly one inbound connection.
type Acceptor interface {
	// Port returns the port the acceptor listens on.
	Port() int
	// Accept blocks until a peer connects, the timeout elapses or ctx is done.
	// The listener is closed once Accept returns. A timeout yields domain.ErrAcceptTimeout.
	Accept(ctx context.Context, timeout time.Duration) (io.ReadWriteCloser, error)
	// Close releases the listener without accepting.
	Close() error
}

// Host is the machine that worker processes run on.
type Host interface {
	// ID identifies the host's connection lifecycle. Pool entries are scoped to it.
	ID() string
	// Listen opens an acceptor on an OS-assigned port.
	Listen(ctx context.Context) (Acceptor, error)
	// Start launches a process.
	Start(ctx context.Context, spec ProcessSpec) (Process, error)
}
