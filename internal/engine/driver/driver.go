// Package driver is the worker side of a build. It dials back to the
// orchestrator, answers the handshake and runs the tool commands of every
// selected module, reporting progress through the remote build proxies.
package driver

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

// Environment variables exported to every tool command.
const (
	EnvToolOptions = "REACTOR_TOOL_OPTS"
	EnvToolHome    = "REACTOR_TOOL_HOME"
	EnvSupport     = "REACTOR_SUPPORT"
	EnvModule      = "REACTOR_MODULE"
	EnvBuildID     = "REACTOR_BUILD_ID"
)

// Options configures a worker.
type Options struct {
	// Addr is the orchestrator's acceptor address. Port is used when it is empty.
	Addr        string
	Port        int
	ToolHome    string
	RuntimeHome string
	Support     []string
	// Protocol is the version announced in the hello reply. Zero means protocol.Current.
	Protocol protocol.Version
	// Env is the initial environment snapshot. Nil means the process environment.
	Env []string
}

// Driver serves the worker protocol over one connection.
type Driver struct {
	executor ports.ToolExecutor
	logger   ports.Logger
	opts     Options

	mu      sync.Mutex
	env     []string
	digests map[string]string
}

// New creates a driver that runs tool commands through executor.
func New(executor ports.ToolExecutor, logger ports.Logger, opts *Options) *Driver {
	o := *opts
	if o.Protocol == 0 {
		o.Protocol = protocol.Current
	}
	if o.Env == nil {
		o.Env = os.Environ()
	}
	return &Driver{
		executor: executor,
		logger:   logger,
		opts:     o,
		env:      slices.Clone(o.Env),
		digests:  make(map[string]string),
	}
}

// Serve dials the orchestrator and serves requests until the connection
// closes or ctx is done.
func (d *Driver) Serve(ctx context.Context) error {
	addr := d.opts.Addr
	if addr == "" {
		addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(d.opts.Port))
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to connect to orchestrator"), "addr", addr)
	}
	return d.ServeConn(ctx, conn)
}

// ServeConn serves requests on an established connection. It returns nil when
// the orchestrator hangs up.
func (d *Driver) ServeConn(ctx context.Context, rwc io.ReadWriteCloser) error {
	ch := remoting.New("orchestrator", d.logger)
	ch.Register(protocol.MethodHello, d.hello)
	ch.Register(protocol.MethodReset, d.reset)
	ch.Register(protocol.MethodBuild, func(ctx context.Context, params json.RawMessage) (any, error) {
		return d.build(ctx, ch, params)
	})
	ch.Open(ctx, rwc)
	defer func() { _ = ch.Close() }()

	select {
	case <-ch.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) hello(context.Context, json.RawMessage) (any, error) {
	return protocol.HelloReply{
		Protocol: d.opts.Protocol.String(),
		Encoding: "UTF-8",
		Env:      d.opts.Env,
		PID:      os.Getpid(),
	}, nil
}

func (d *Driver) reset(_ context.Context, params json.RawMessage) (any, error) {
	var p protocol.ResetParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, zerr.Wrap(err, "malformed reset request")
		}
	}
	env := p.Env
	if env == nil {
		env = d.opts.Env
	}
	d.mu.Lock()
	d.env = slices.Clone(env)
	d.mu.Unlock()
	return nil, nil
}

func (d *Driver) build(ctx context.Context, ch *remoting.Channel, params json.RawMessage) (any, error) {
	var req protocol.BuildRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, zerr.Wrap(err, "malformed build request")
	}

	// Tool commands die with the connection.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ch.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	d.mu.Lock()
	base := slices.Clone(d.env)
	d.mu.Unlock()

	run := &buildRun{
		driver:  d,
		ch:      ch,
		req:     &req,
		base:    base,
		console: newConsole(ctx, ch),
	}
	return protocol.BuildReply{Result: run.execute(ctx)}, nil
}

// Select returns the modules of req to build, in request order. Without seeds
// every module builds. With seeds and dependents expansion, every module that
// transitively depends on a seed builds too; expansion is only honored by
// protocol versions that support it.
func Select(req *protocol.BuildRequest, version protocol.Version) []protocol.ModuleSpec {
	if len(req.Seeds) == 0 {
		return slices.Clone(req.Modules)
	}
	selected := make(map[domain.ModuleName]bool, len(req.Seeds))
	for _, s := range req.Seeds {
		selected[s] = true
	}
	expand := req.AlsoMakeDependents && version >= protocol.V2

	var result []protocol.ModuleSpec
	for _, m := range req.Modules {
		if !selected[m.Name] && expand {
			for _, up := range m.Upstream {
				if selected[up] {
					selected[m.Name] = true
					break
				}
			}
		}
		if selected[m.Name] {
			result = append(result, m)
		}
	}
	return result
}

func (d *Driver) toolEnv(req *protocol.BuildRequest) []string {
	env := []string{EnvToolOptions + "=" + req.ToolOptions}
	if d.opts.ToolHome != "" {
		env = append(env,
			EnvToolHome+"="+d.opts.ToolHome,
			"PATH="+filepath.Join(d.opts.ToolHome, "bin"),
		)
	}
	if len(d.opts.Support) > 0 {
		env = append(env, EnvSupport+"="+strings.Join(d.opts.Support, string(os.PathListSeparator)))
	}
	return env
}
