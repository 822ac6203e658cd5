package proxy

import (
	"context"
	"encoding/json"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

// Invoker calls methods on objects exported by the peer.
type Invoker interface {
	Invoke(ctx context.Context, h remoting.Handle, method string, params, result any) error
}

// Remote is the worker-side stub of a module's ModuleBuild. Every call blocks
// until the orchestrator has applied it, so calls are observed in issue order.
type Remote struct {
	ch     Invoker
	handle remoting.Handle
}

// NewRemote binds a stub to the proxy exported under h.
func NewRemote(ch Invoker, h remoting.Handle) *Remote {
	return &Remote{ch: ch, handle: h}
}

// Start announces that the module started building.
func (r *Remote) Start(ctx context.Context) error {
	return r.ch.Invoke(ctx, r.handle, MethodStart, nil, nil)
}

// End announces that the module finished.
func (r *Remote) End(ctx context.Context) error {
	return r.ch.Invoke(ctx, r.handle, MethodEnd, nil, nil)
}

// SetResult reports the module result.
func (r *Remote) SetResult(ctx context.Context, result domain.Result) error {
	return r.ch.Invoke(ctx, r.handle, MethodSetResult, SetResultParams{Result: result}, nil)
}

// SetExecutedTasks reports the tasks that ran for the module.
func (r *Remote) SetExecutedTasks(ctx context.Context, tasks []domain.ExecutedTask) error {
	return r.ch.Invoke(ctx, r.handle, MethodSetExecutedTasks, SetExecutedTasksParams{Tasks: tasks}, nil)
}

// ExecuteAsync asks the orchestrator to run a callable concurrently with the build.
func (r *Remote) ExecuteAsync(ctx context.Context, name string, args any) error {
	var raw json.RawMessage
	if args != nil {
		var err error
		if raw, err = json.Marshal(args); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to encode callable arguments"), "callable", name)
		}
	}
	return r.ch.Invoke(ctx, r.handle, MethodExecuteAsync, ExecuteAsyncParams{Name: name, Args: raw}, nil)
}

// QueueArchiving asks the orchestrator to archive an artifact after the build.
func (r *Remote) QueueArchiving(ctx context.Context, relative, absolute string) error {
	return r.ch.Invoke(ctx, r.handle, MethodQueueArchiving, QueueArchivingParams{Relative: relative, Absolute: absolute}, nil)
}
