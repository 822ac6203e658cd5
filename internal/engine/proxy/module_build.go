package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/splitlog"
	"go.trai.ch/zerr"
)

// Listener observes module lifecycle transitions.
type Listener interface {
	ModuleStarted(ctx context.Context, record domain.ModuleRecord)
	ModuleEnded(ctx context.Context, record domain.ModuleRecord)
}

// Options configures a ModuleBuild.
type Options struct {
	BuildID string
	Root    string
	Module  domain.ModuleName
	// Log receives the module's share of the console output.
	Log      io.Writer
	Split    *splitlog.Writer
	Async    *AsyncRunner
	Store    ports.RecordStore
	Listener Listener
	Logger   ports.Logger
	Clock    func() time.Time
}

// ModuleBuild is the orchestrator-side record keeper of one module in one build.
// It enforces NOT_STARTED -> STARTED -> ENDED; calls arriving out of that order
// are rejected with domain.ErrProtocolViolation and leave the record unchanged.
type ModuleBuild struct {
	opts Options

	mu      sync.Mutex
	record  domain.ModuleRecord
	started bool
}

// NewModuleBuild creates the proxy for one module.
func NewModuleBuild(opts *Options) *ModuleBuild {
	o := *opts
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Log == nil {
		o.Log = io.Discard
	}
	return &ModuleBuild{
		opts: o,
		record: domain.ModuleRecord{
			BuildID: o.BuildID,
			Module:  o.Module,
			State:   domain.ModuleNotStarted,
		},
	}
}

// Module returns the module this proxy records.
func (b *ModuleBuild) Module() domain.ModuleName {
	return b.opts.Module
}

// Record returns a copy of the current record.
func (b *ModuleBuild) Record() domain.ModuleRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record.Clone()
}

// Ran reports whether the worker ever started this module.
func (b *ModuleBuild) Ran() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Invoke implements remoting.Exported.
func (b *ModuleBuild) Invoke(ctx context.Context, method string, params json.RawMessage) (any, error) {
	err := b.invoke(ctx, method, params)
	if errors.Is(err, domain.ErrProtocolViolation) {
		b.opts.Logger.Warn("rejected " + method + " for " + b.opts.Module.String() + ": " + err.Error())
	}
	return nil, err
}

func (b *ModuleBuild) invoke(ctx context.Context, method string, params json.RawMessage) error {
	switch method {
	case MethodStart:
		return b.Start(ctx)
	case MethodEnd:
		return b.End(ctx)
	case MethodSetResult:
		var p SetResultParams
		if err := decode(params, &p); err != nil {
			return err
		}
		return b.SetResult(p.Result)
	case MethodSetExecutedTasks:
		var p SetExecutedTasksParams
		if err := decode(params, &p); err != nil {
			return err
		}
		return b.SetExecutedTasks(p.Tasks)
	case MethodExecuteAsync:
		var p ExecuteAsyncParams
		if err := decode(params, &p); err != nil {
			return err
		}
		return b.ExecuteAsync(p.Name, p.Args)
	case MethodQueueArchiving:
		var p QueueArchivingParams
		if err := decode(params, &p); err != nil {
			return err
		}
		return b.QueueArchiving(p.Relative, p.Absolute)
	}
	return zerr.With(zerr.Wrap(domain.ErrUnknownMethod, "build proxy"), "method", method)
}

// Start marks the module as building and claims the console side channel for its log.
func (b *ModuleBuild) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.record.State != domain.ModuleNotStarted {
		defer b.mu.Unlock()
		return b.violation("start", "module already started")
	}
	b.started = true
	b.record.State = domain.ModuleStarted
	b.record.Started = b.opts.Clock()
	snapshot := b.record.Clone()
	b.mu.Unlock()

	if b.opts.Split != nil {
		if err := b.opts.Split.Claim(b.opts.Log); err != nil {
			b.opts.Logger.Error(zerr.Wrap(err, "failed to write module log"))
		}
	}
	if b.opts.Listener != nil {
		b.opts.Listener.ModuleStarted(ctx, snapshot)
	}
	return nil
}

// End finalizes the module. An unset result becomes SUCCESS.
func (b *ModuleBuild) End(ctx context.Context) error {
	b.mu.Lock()
	if b.record.State != domain.ModuleStarted {
		defer b.mu.Unlock()
		return b.violation("end", "module not started or already ended")
	}
	if !b.record.Result.IsSet() {
		b.record.Result = domain.ResultSuccess
	}
	b.finishLocked()
	snapshot := b.record.Clone()
	b.mu.Unlock()

	b.ended(ctx, &snapshot)
	return nil
}

// SetResult records the module's result. The last value wins.
func (b *ModuleBuild) SetResult(r domain.Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record.State != domain.ModuleStarted {
		return b.violation("setResult", "module is not building")
	}
	b.record.Result = r
	return nil
}

// SetExecutedTasks records the ordered tasks the tool ran for the module.
func (b *ModuleBuild) SetExecutedTasks(tasks []domain.ExecutedTask) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record.State != domain.ModuleStarted {
		return b.violation("setExecutedTasks", "module is not building")
	}
	b.record.Tasks = append([]domain.ExecutedTask(nil), tasks...)
	return nil
}

// ExecuteAsync schedules a registered callable without waiting for it.
func (b *ModuleBuild) ExecuteAsync(name string, args json.RawMessage) error {
	b.mu.Lock()
	state := b.record.State
	b.mu.Unlock()
	if state != domain.ModuleStarted {
		return b.violation("executeAsync", "module is not building")
	}
	if b.opts.Async == nil {
		return zerr.With(zerr.Wrap(domain.ErrUnknownCallable, "no async runner"), "callable", name)
	}
	return b.opts.Async.Go(name, b, args)
}

// QueueArchiving records an artifact to copy out of the workspace after the build.
func (b *ModuleBuild) QueueArchiving(relative, absolute string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record.State != domain.ModuleStarted {
		return b.violation("queueArchiving", "module is not building")
	}
	b.record.Archives = append(b.record.Archives, domain.Archive{Relative: relative, Absolute: absolute})
	return nil
}

// SetFingerprint stores the digest of an archived artifact.
func (b *ModuleBuild) SetFingerprint(relative, digest string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record.Fingerprints == nil {
		b.record.Fingerprints = make(map[string]string)
	}
	b.record.Fingerprints[relative] = digest
}

// AppendLastLog copies output printed after the module released the side
// channel into its log. It is used for the last module of a build so the
// tool's closing summary is not lost.
func (b *ModuleBuild) AppendLastLog() error {
	if b.opts.Split == nil {
		return nil
	}
	return b.opts.Split.FlushTo(b.opts.Log)
}

// Close gives every module a determinate result once the worker is done.
// A module that never started becomes NOT_BUILT. A module left building
// becomes FAILURE, or ABORTED when the build was interrupted.
func (b *ModuleBuild) Close(ctx context.Context, aborted bool) {
	b.mu.Lock()
	switch b.record.State {
	case domain.ModuleEnded:
		b.mu.Unlock()
		return
	case domain.ModuleNotStarted:
		b.record.Result = domain.ResultNotBuilt
		b.record.State = domain.ModuleEnded
	case domain.ModuleStarted:
		forced := domain.ResultFailure
		if aborted {
			forced = domain.ResultAborted
		}
		b.record.Result = b.record.Result.Combine(forced)
		b.finishLocked()
	}
	snapshot := b.record.Clone()
	b.mu.Unlock()

	b.ended(ctx, &snapshot)
}

func (b *ModuleBuild) finishLocked() {
	b.record.Duration = b.opts.Clock().Sub(b.record.Started)
	b.record.State = domain.ModuleEnded
}

func (b *ModuleBuild) ended(ctx context.Context, snapshot *domain.ModuleRecord) {
	if b.opts.Split != nil {
		b.opts.Split.Release(b.opts.Log)
	}
	if b.opts.Store != nil {
		if err := b.opts.Store.Put(ctx, b.opts.Root, snapshot); err != nil {
			b.opts.Logger.Error(zerr.With(err, "module", snapshot.Module.String()))
		}
	}
	if b.opts.Listener != nil {
		b.opts.Listener.ModuleEnded(ctx, *snapshot)
	}
}

func (b *ModuleBuild) violation(method, reason string) error {
	err := zerr.Wrap(domain.ErrProtocolViolation, reason)
	err = zerr.With(err, "method", method)
	err = zerr.With(err, "module", b.opts.Module.String())
	return zerr.With(err, "state", b.record.State.String())
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return zerr.Wrap(err, "malformed proxy parameters")
	}
	return nil
}
