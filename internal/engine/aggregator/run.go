package aggregator

import (
	"context"
	"slices"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/engine/selection"
)

// strategy adapts a build request to what a worker's protocol version understands.
type strategy interface {
	apply(req *protocol.BuildRequest, sel *selection.Selection, expected []domain.ModuleName)
}

// v1Strategy expands dependents locally; V1 workers build exactly the seeds they get.
type v1Strategy struct{}

func (v1Strategy) apply(req *protocol.BuildRequest, sel *selection.Selection, expected []domain.ModuleName) {
	if sel.Full {
		return
	}
	req.Seeds = slices.Clone(expected)
}

// v2Strategy lets the worker expand the seeds to their dependents.
type v2Strategy struct{}

func (v2Strategy) apply(req *protocol.BuildRequest, sel *selection.Selection, _ []domain.ModuleName) {
	if sel.Full {
		return
	}
	req.Seeds = slices.Clone(sel.Seeds)
	req.AlsoMakeDependents = true
}

func strategyFor(v protocol.Version) strategy {
	if v >= protocol.V2 {
		return v2Strategy{}
	}
	return v1Strategy{}
}

// runAggregate builds every expected module with one worker invocation and
// returns the worker's own result.
func (s *session) runAggregate(ctx context.Context, sel *selection.Selection, expected []domain.ModuleName) (domain.Result, error) {
	w, err := s.acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.aborted = true
			return domain.ResultAborted, err
		}
		return domain.ResultFailure, err
	}

	specs, unexport := s.export(w.Conn(), s.graph.Names())
	req := s.request(specs)
	strategyFor(w.Protocol()).apply(req, sel, expected)
	return s.call(ctx, w, req, unexport)
}

// runPerModule builds the expected modules one worker invocation at a time.
// A module whose upstream did not build is skipped.
func (s *session) runPerModule(ctx context.Context, expected []domain.ModuleName) (domain.Result, error) {
	own := domain.ResultSuccess
	blocked := make(map[domain.ModuleName]bool)

	for _, name := range expected {
		if ctx.Err() != nil {
			s.aborted = true
			return own.Combine(domain.ResultAborted), ctx.Err()
		}
		if slices.ContainsFunc(s.graph.Upstream(name), func(up domain.ModuleName) bool { return blocked[up] }) {
			s.a.Logger.Warn("skipping " + name.String() + ": an upstream module did not build")
			blocked[name] = true
			continue
		}

		result, err := s.buildOne(ctx, name)
		own = own.Combine(result)
		if err != nil {
			return own, err
		}
		if s.byName[name].Record().Result.IsWorseThan(domain.ResultUnstable) || result.IsWorseThan(domain.ResultUnstable) {
			blocked[name] = true
			if s.settings.FailFast {
				break
			}
		}
	}
	return own, nil
}

func (s *session) buildOne(ctx context.Context, name domain.ModuleName) (domain.Result, error) {
	w, err := s.acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.aborted = true
			return domain.ResultAborted, err
		}
		return domain.ResultFailure, err
	}
	specs, unexport := s.export(w.Conn(), []domain.ModuleName{name})
	return s.call(ctx, w, s.request(specs), unexport)
}
