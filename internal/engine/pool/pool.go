// Package pool caches idle worker processes per owner so later builds with
// the same launch configuration can skip the handshake.
package pool

import (
	"context"
	"io"
	"sync"
	"time"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/launcher"
	"go.trai.ch/zerr"
)

// Acquisition outcomes.
const (
	OutcomeReused   = "reused"
	OutcomeLaunched = "launched"
)

// Discard reasons.
const (
	ReasonAge          = "age"
	ReasonBound        = "bound"
	ReasonEvicted      = "evicted"
	ReasonSanity       = "sanity"
	ReasonFailure      = "failure"
	ReasonIdle         = "idle"
	ReasonDisconnected = "disconnected"
	ReasonOwner        = "owner"
)

// LaunchFunc starts a fresh worker whose console output goes to out.
type LaunchFunc func(ctx context.Context, out io.Writer) (*launcher.WorkerProcess, error)

type ownerEntries struct {
	mu     sync.Mutex
	list   []*launcher.WorkerProcess
	closed bool
}

// Pool holds idle workers keyed by owner. An owner is a host connection
// lifecycle; when it ends, OnOwnerClosed drops its workers.
type Pool struct {
	metrics ports.Metrics
	logger  ports.Logger
	clock   func() time.Time

	mu           sync.Mutex
	owners       map[string]*ownerEntries
	leased       map[*launcher.WorkerProcess]string
	maxProcesses int
	maxReuse     int
}

// New creates an empty pool with the default limits.
func New(metrics ports.Metrics, logger ports.Logger) *Pool {
	return &Pool{
		metrics:      metrics,
		logger:       logger,
		clock:        time.Now,
		owners:       make(map[string]*ownerEntries),
		leased:       make(map[*launcher.WorkerProcess]string),
		maxProcesses: domain.DefaultMaxProcesses,
		maxReuse:     domain.DefaultMaxReuse,
	}
}

// SetLimits changes how many idle workers an owner may keep and how often a
// worker may be reused. Owners over the new bound lose their oldest workers.
func (p *Pool) SetLimits(maxProcesses, maxReuse int) {
	p.mu.Lock()
	p.maxProcesses = max(maxProcesses, 0)
	p.maxReuse = max(maxReuse, 0)
	bound := p.maxProcesses
	p.mu.Unlock()

	for id, e := range p.snapshot() {
		e.mu.Lock()
		evicted := trim(e, bound)
		size := len(e.list)
		e.mu.Unlock()
		p.discardAll(evicted, ReasonEvicted)
		p.reportSize(id, size)
	}
}

// Acquire returns a worker launched with fp for owner. A cached worker is
// reused when it passes the sanity call; otherwise launch starts a new one.
// The returned worker's output goes to out.
func (p *Pool) Acquire(ctx context.Context, owner string, fp domain.Fingerprint, launch LaunchFunc, out io.Writer) (*launcher.WorkerProcess, error) {
	e := p.entries(owner)
	for {
		w := takeMatching(e, fp)
		if w == nil {
			break
		}
		if err := w.Reset(ctx); err != nil {
			if ctx.Err() != nil {
				p.restore(owner, e, w)
				return nil, zerr.Wrap(ctx.Err(), "pooled worker acquisition cancelled")
			}
			p.logger.Warn("discarding pooled worker: " + err.Error())
			p.discard(w, ReasonSanity)
			continue
		}
		w.Reused()
		w.Redirect(out)
		p.lease(w, owner)
		p.reportSize(owner, e.size())
		p.acquired(OutcomeReused)
		return w, nil
	}

	w, err := launch(ctx, out)
	if err != nil {
		return nil, zerr.With(err, "fingerprint", fp.Key())
	}
	if w.Fingerprint() != fp {
		_ = w.Close()
		return nil, zerr.With(zerr.New("launched worker has a different fingerprint"), "fingerprint", fp.Key())
	}
	p.lease(w, owner)
	p.acquired(OutcomeLaunched)
	return w, nil
}

// Release returns a worker after a build. A reusable worker is cached unless
// it is too old or the bound is zero; the oldest cached worker is evicted when
// the bound is exceeded. A worker released as not reusable is discarded.
func (p *Pool) Release(w *launcher.WorkerProcess, reusable bool) {
	p.mu.Lock()
	owner, known := p.leased[w]
	delete(p.leased, w)
	e, open := p.owners[owner]
	bound, maxReuse := p.maxProcesses, p.maxReuse
	p.mu.Unlock()

	switch {
	case !reusable || !known:
		p.discard(w, ReasonFailure)
		return
	case !open:
		p.discard(w, ReasonOwner)
		return
	case w.Age() >= maxReuse:
		p.discard(w, ReasonAge)
		return
	case bound == 0:
		p.discard(w, ReasonBound)
		return
	}

	w.Redirect(io.Discard)
	w.Touch(p.clock())

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		p.discard(w, ReasonOwner)
		return
	}
	e.list = append(e.list, w)
	evicted := trim(e, bound)
	size := len(e.list)
	e.mu.Unlock()

	p.discardAll(evicted, ReasonEvicted)
	p.reportSize(owner, size)
}

// OnOwnerClosed drops and closes every cached worker of owner.
func (p *Pool) OnOwnerClosed(owner string) {
	p.mu.Lock()
	e, ok := p.owners[owner]
	delete(p.owners, owner)
	p.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.closed = true
	dropped := e.list
	e.list = nil
	e.mu.Unlock()

	p.discardAll(dropped, ReasonOwner)
	p.reportSize(owner, 0)
}

// Sweep discards cached workers that were idle longer than idle or whose
// connection is gone.
func (p *Pool) Sweep(idle time.Duration) {
	now := p.clock()
	for owner, e := range p.snapshot() {
		var stale, dead []*launcher.WorkerProcess
		e.mu.Lock()
		kept := e.list[:0]
		for _, w := range e.list {
			switch {
			case !w.Alive():
				dead = append(dead, w)
			case idle > 0 && now.Sub(w.LastUsed()) > idle:
				stale = append(stale, w)
			default:
				kept = append(kept, w)
			}
		}
		clear(e.list[len(kept):])
		e.list = kept
		size := len(e.list)
		e.mu.Unlock()

		p.discardAll(dead, ReasonDisconnected)
		p.discardAll(stale, ReasonIdle)
		if len(dead)+len(stale) > 0 {
			p.reportSize(owner, size)
		}
	}
}

// Cached returns the idle workers of owner, oldest first.
func (p *Pool) Cached(owner string) []*launcher.WorkerProcess {
	p.mu.Lock()
	e, ok := p.owners[owner]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*launcher.WorkerProcess(nil), e.list...)
}

// Close discards every cached worker of every owner.
func (p *Pool) Close() {
	for owner := range p.snapshot() {
		p.OnOwnerClosed(owner)
	}
}

func (p *Pool) entries(owner string) *ownerEntries {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.owners[owner]
	if !ok {
		e = &ownerEntries{}
		p.owners[owner] = e
	}
	return e
}

func (p *Pool) snapshot() map[string]*ownerEntries {
	p.mu.Lock()
	defer p.mu.Unlock()
	owners := make(map[string]*ownerEntries, len(p.owners))
	for id, e := range p.owners {
		owners[id] = e
	}
	return owners
}

// restore puts back a worker whose sanity call was interrupted by the caller.
func (p *Pool) restore(owner string, e *ownerEntries, w *launcher.WorkerProcess) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		p.discard(w, ReasonOwner)
		return
	}
	e.list = append(e.list, w)
	size := len(e.list)
	e.mu.Unlock()
	p.reportSize(owner, size)
}

func (p *Pool) lease(w *launcher.WorkerProcess, owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leased[w] = owner
}

func (p *Pool) discard(w *launcher.WorkerProcess, reason string) {
	if err := w.Close(); err != nil {
		p.logger.Warn("failed to close worker: " + err.Error())
	}
	if p.metrics != nil {
		p.metrics.WorkerDiscarded(reason)
	}
}

func (p *Pool) discardAll(ws []*launcher.WorkerProcess, reason string) {
	for _, w := range ws {
		p.discard(w, reason)
	}
}

func (p *Pool) acquired(outcome string) {
	if p.metrics != nil {
		p.metrics.WorkerAcquired(outcome)
	}
}

func (p *Pool) reportSize(owner string, size int) {
	if p.metrics != nil {
		p.metrics.PoolSize(owner, size)
	}
}

func (e *ownerEntries) size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.list)
}

// takeMatching removes and returns the most recently cached worker with fp.
func takeMatching(e *ownerEntries, fp domain.Fingerprint) *launcher.WorkerProcess {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.list) - 1; i >= 0; i-- {
		w := e.list[i]
		if w.Fingerprint() != fp {
			continue
		}
		e.list = append(e.list[:i], e.list[i+1:]...)
		return w
	}
	return nil
}

// trim removes the oldest entries until at most bound remain. e.mu must be held.
func trim(e *ownerEntries, bound int) []*launcher.WorkerProcess {
	if len(e.list) <= bound {
		return nil
	}
	n := len(e.list) - bound
	evicted := append([]*launcher.WorkerProcess(nil), e.list[:n]...)
	e.list = append(e.list[:0], e.list[n:]...)
	return evicted
}
