package domain

import "time"

// EventKind names a module lifecycle transition.
type EventKind string

const (
	// EventModuleStarted is emitted when a module starts building.
	EventModuleStarted EventKind = "module.started"
	// EventModuleEnded is emitted when a module reaches its final result.
	EventModuleEnded EventKind = "module.ended"
	// EventBuildFinished is emitted once the aggregate result is known.
	EventBuildFinished EventKind = "build.finished"
)

// Event describes a lifecycle transition observed by the orchestrator.
type Event struct {
	Kind     EventKind     `json:"kind"`
	BuildID  string        `json:"buildId"`
	Module   *ModuleName   `json:"module,omitempty"`
	Result   Result        `json:"result,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Time     time.Time     `json:"time"`
}
