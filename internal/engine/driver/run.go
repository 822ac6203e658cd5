package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/engine/proxy"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

type buildRun struct {
	driver  *Driver
	ch      *remoting.Channel
	req     *protocol.BuildRequest
	base    []string
	console io.Writer
}

func (r *buildRun) execute(ctx context.Context) domain.Result {
	modules := Select(r.req, r.driver.opts.Protocol)
	overall := domain.ResultSuccess
	failed := make(map[domain.ModuleName]bool)

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			overall = overall.Combine(domain.ResultAborted)
			break
		}
		if blocked := r.blockedBy(&m, failed); blocked != nil {
			fmt.Fprintf(r.console, "[WARNING] Skipping %s: %s did not build\n", m.Name, blocked)
			failed[m.Name] = true
			continue
		}

		result, err := r.module(ctx, &m)
		if err != nil {
			// The proxy is unreachable; nothing more can be reported.
			r.driver.logger.Error(zerr.With(err, "module", m.Name.String()))
			return overall.Combine(domain.ResultFailure)
		}
		overall = overall.Combine(result)
		if result.IsWorseThan(domain.ResultUnstable) {
			failed[m.Name] = true
			if r.req.FailFast {
				break
			}
		}
	}

	status := "SUCCESS"
	if overall.IsWorseThan(domain.ResultUnstable) {
		status = "FAILURE"
	}
	fmt.Fprintf(r.console, "[INFO] BUILD %s\n", status)
	return overall
}

// blockedBy returns the first upstream of m that failed or was skipped.
func (r *buildRun) blockedBy(m *protocol.ModuleSpec, failed map[domain.ModuleName]bool) *domain.ModuleName {
	for _, up := range m.Upstream {
		if failed[up] {
			return &up
		}
	}
	return nil
}

func (r *buildRun) module(ctx context.Context, m *protocol.ModuleSpec) (domain.Result, error) {
	remote := proxy.NewRemote(r.ch, m.Proxy)
	if err := remote.Start(ctx); err != nil {
		return domain.ResultFailure, err
	}
	fmt.Fprintf(r.console, "[INFO] Building %s\n", m.Name)

	result := domain.ResultSuccess
	var tasks []domain.ExecutedTask
	for _, goal := range r.req.Goals {
		command, ok := r.req.Tasks[goal]
		if !ok || len(command) == 0 {
			continue
		}
		inv := &domain.Invocation{
			Goal:    goal,
			Command: command,
			Dir:     m.Dir,
			Base:    r.base,
			ToolEnv: r.driver.toolEnv(r.req),
			Environment: map[string]string{
				EnvModule:  m.Name.String(),
				EnvBuildID: r.req.BuildID,
			},
		}

		started := time.Now()
		err := r.driver.executor.Execute(ctx, inv, r.console, r.console)
		tasks = append(tasks, domain.ExecutedTask{
			Name:     goal,
			Duration: time.Since(started),
			Digest:   r.driver.digest(inv),
		})
		if err != nil {
			fmt.Fprintf(r.console, "[ERROR] %s failed for %s: %v\n", goal, m.Name, err)
			result = domain.ResultFailure
			if ctx.Err() != nil {
				result = domain.ResultAborted
			}
			break
		}
	}

	if err := remote.SetExecutedTasks(ctx, tasks); err != nil {
		return result, err
	}
	if result != domain.ResultSuccess {
		if err := remote.SetResult(ctx, result); err != nil {
			return result, err
		}
	} else if err := r.archive(ctx, remote, m); err != nil {
		return result, err
	}
	if err := remote.End(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// archive queues every declared artifact that exists and asks the
// orchestrator to fingerprint them.
func (r *buildRun) archive(ctx context.Context, remote *proxy.Remote, m *protocol.ModuleSpec) error {
	queued := 0
	for _, rel := range m.Artifacts {
		abs := filepath.Join(m.Dir, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := remote.QueueArchiving(ctx, filepath.ToSlash(rel), abs); err != nil {
			return err
		}
		queued++
	}
	if queued == 0 {
		return nil
	}
	return remote.ExecuteAsync(ctx, proxy.CallableFingerprint, nil)
}

// digest returns the content hash of the executable inv runs, or "" when it
// cannot be resolved. Digests are cached for the lifetime of the worker.
func (d *Driver) digest(inv *domain.Invocation) string {
	path, err := d.executor.Resolve(inv)
	if err != nil {
		return ""
	}
	d.mu.Lock()
	cached, ok := d.digests[path]
	d.mu.Unlock()
	if ok {
		return cached
	}

	sum, err := hashFile(path)
	if err != nil {
		return ""
	}
	d.mu.Lock()
	d.digests[path] = sum
	d.mu.Unlock()
	return sum
}

func hashFile(path string) (string, error) {
	//nolint:gosec // Executables come from project configuration
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// console streams tool output to the orchestrator as console.write notifications.
type console struct {
	ctx context.Context
	ch  *remoting.Channel
}

func newConsole(ctx context.Context, ch *remoting.Channel) *console {
	return &console{ctx: ctx, ch: ch}
}

func (c *console) Write(p []byte) (int, error) {
	err := c.ch.Notify(c.ctx, protocol.MethodConsoleWrite, protocol.ConsoleWrite{Data: p})
	if err != nil && !errors.Is(err, domain.ErrChannelClosed) {
		return 0, err
	}
	return len(p), nil
}
