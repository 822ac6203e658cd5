package domain

import (
	"time"

	"go.trai.ch/zerr"
)

// Mode selects how the orchestrator drives the worker.
type Mode string

const (
	// ModeAggregate builds every selected module in one worker invocation.
	ModeAggregate Mode = "aggregate"
	// ModePerModule builds each module in its own worker invocation.
	ModePerModule Mode = "per-module"
)

// ParseMode validates a mode name. The empty string selects ModeAggregate.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAggregate:
		return ModeAggregate, nil
	case ModePerModule:
		return ModePerModule, nil
	}
	return "", zerr.With(zerr.Wrap(ErrInvalidMode, "cannot parse mode"), "mode", s)
}

const (
	// DefaultMaxProcesses bounds how many idle workers are kept per owner.
	DefaultMaxProcesses = 5
	// DefaultMaxReuse is how many builds a single worker serves before it is retired.
	DefaultMaxReuse = 5
	// DefaultHandshakeTimeout is how long the launcher waits for a worker to connect back.
	DefaultHandshakeTimeout = 30 * time.Second
	// DefaultIdleTimeout is how long an idle worker may sit in the pool.
	DefaultIdleTimeout = 10 * time.Minute
	// DefaultSweepInterval is how often the pool janitor checks idle workers.
	DefaultSweepInterval = time.Minute
)

// PoolSettings configures the worker process pool.
type PoolSettings struct {
	MaxProcesses  int
	MaxReuse      int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// WorkerSettings configures how worker processes are launched.
type WorkerSettings struct {
	// Executable overrides the worker binary. Empty means the running binary.
	Executable string
	// Support lists extra paths handed to the worker.
	Support          []string
	HandshakeTimeout time.Duration
}

// Settings is the parsed project configuration besides the module graph.
type Settings struct {
	Mode        Mode
	Incremental bool
	FailFast    bool
	Goals       []string
	// Tasks maps a goal to the command that runs it inside a module directory.
	Tasks       map[string][]string
	Fingerprint Fingerprint
	Worker      WorkerSettings
	Pool        PoolSettings
	// MetricsTextfile is where metrics are written after the build. Empty disables it.
	MetricsTextfile string
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		Mode:        ModeAggregate,
		Incremental: true,
		FailFast:    true,
		Tasks:       make(map[string][]string),
		Worker: WorkerSettings{
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		Pool: PoolSettings{
			MaxProcesses:  DefaultMaxProcesses,
			MaxReuse:      DefaultMaxReuse,
			IdleTimeout:   DefaultIdleTimeout,
			SweepInterval: DefaultSweepInterval,
		},
	}
}
