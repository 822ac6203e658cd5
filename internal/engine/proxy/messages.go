// Package proxy implements the per-module build proxy. The orchestrator side
// (ModuleBuild) records what the worker reports; the worker side (Remote)
// reports it.
package proxy

import (
	"encoding/json"

	"go.trai.ch/reactor/internal/core/domain"
)

// Proxy methods invoked by the worker on an exported ModuleBuild.
const (
	MethodStart            = "start"
	MethodEnd              = "end"
	MethodSetResult        = "setResult"
	MethodSetExecutedTasks = "setExecutedTasks"
	MethodExecuteAsync     = "executeAsync"
	MethodQueueArchiving   = "queueArchiving"
)

// SetResultParams carries a module result.
type SetResultParams struct {
	Result domain.Result `json:"result"`
}

// SetExecutedTasksParams carries the ordered tasks run for a module.
type SetExecutedTasksParams struct {
	Tasks []domain.ExecutedTask `json:"tasks"`
}

// ExecuteAsyncParams names an orchestrator-side callable and its arguments.
type ExecuteAsyncParams struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// QueueArchivingParams names an artifact to archive after the build.
type QueueArchivingParams struct {
	Relative string `json:"relative"`
	Absolute string `json:"absolute"`
}
