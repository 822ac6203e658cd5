package driver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/core/ports/mocks"
	"go.trai.ch/reactor/internal/engine/driver"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/engine/proxy"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

var (
	modA = domain.NewModuleName("org.example", "a")
	modB = domain.NewModuleName("org.example", "b")
	modC = domain.NewModuleName("org.example", "c")
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func quietLogger(t *testing.T) ports.Logger {
	t.Helper()
	l := mocks.NewMockLogger(gomock.NewController(t))
	l.EXPECT().Info(gomock.Any()).AnyTimes()
	l.EXPECT().Warn(gomock.Any()).AnyTimes()
	l.EXPECT().Error(gomock.Any()).AnyTimes()
	return l
}

// orchestrator is the peer of a driver under test.
type orchestrator struct {
	t       *testing.T
	ch      *remoting.Channel
	console *syncBuffer
	async   *proxy.AsyncRunner
	proxies map[domain.ModuleName]*proxy.ModuleBuild
}

func serve(t *testing.T, exec ports.ToolExecutor, opts *driver.Options) *orchestrator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	left, right := net.Pipe()

	d := driver.New(exec, quietLogger(t), opts)
	served := make(chan error, 1)
	go func() { served <- d.ServeConn(ctx, right) }()

	o := &orchestrator{
		t:       t,
		ch:      remoting.New("worker", quietLogger(t)),
		console: &syncBuffer{},
		async:   proxy.NewAsyncRunner(ctx, proxy.DefaultCallables()),
		proxies: make(map[domain.ModuleName]*proxy.ModuleBuild),
	}
	o.ch.Register(protocol.MethodConsoleWrite, func(_ context.Context, params json.RawMessage) (any, error) {
		var p protocol.ConsoleWrite
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		_, err := o.console.Write(p.Data)
		return nil, err
	})
	o.ch.Open(ctx, left)

	t.Cleanup(func() {
		_ = o.ch.Close()
		cancel()
		<-served
	})
	return o
}

func (o *orchestrator) module(name domain.ModuleName, dir string, upstream ...domain.ModuleName) protocol.ModuleSpec {
	b := proxy.NewModuleBuild(&proxy.Options{
		BuildID: "b1",
		Module:  name,
		Async:   o.async,
		Logger:  quietLogger(o.t),
	})
	o.proxies[name] = b
	return protocol.ModuleSpec{
		Name:     name,
		Dir:      dir,
		Upstream: upstream,
		Proxy:    o.ch.Export(b),
	}
}

func (o *orchestrator) build(req *protocol.BuildRequest) domain.Result {
	o.t.Helper()
	var reply protocol.BuildReply
	require.NoError(o.t, o.ch.Call(context.Background(), protocol.MethodBuild, req, &reply))
	require.NoError(o.t, o.async.Wait())
	for _, b := range o.proxies {
		b.Close(context.Background(), false)
	}
	return reply.Result
}

func (o *orchestrator) record(name domain.ModuleName) domain.ModuleRecord {
	return o.proxies[name].Record()
}

// recordingExecutor runs nothing and fails the goals listed in fail.
type recordingExecutor struct {
	mu   sync.Mutex
	runs []domain.Invocation
	fail map[string]bool
	exe  string
}

func (e *recordingExecutor) Execute(_ context.Context, inv *domain.Invocation, stdout, _ io.Writer) error {
	e.mu.Lock()
	e.runs = append(e.runs, *inv)
	e.mu.Unlock()
	_, _ = io.WriteString(stdout, inv.Goal+" "+filepath.Base(inv.Dir)+"\n")
	if e.fail[filepath.Base(inv.Dir)+":"+inv.Goal] {
		return zerr.Wrap(domain.ErrToolFailed, "exit status 1")
	}
	return nil
}

func (e *recordingExecutor) Resolve(*domain.Invocation) (string, error) {
	if e.exe == "" {
		return "", os.ErrNotExist
	}
	return e.exe, nil
}

func (e *recordingExecutor) invocations() []domain.Invocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Invocation(nil), e.runs...)
}

func request(modules ...protocol.ModuleSpec) *protocol.BuildRequest {
	return &protocol.BuildRequest{
		BuildID:  "b1",
		Goals:    []string{"compile", "test"},
		Modules:  modules,
		FailFast: true,
		Tasks: map[string][]string{
			"compile": {"make", "compile"},
			"test":    {"make", "test"},
		},
		ToolOptions: "-q",
	}
}

func TestDriver_Hello(t *testing.T) {
	o := serve(t, &recordingExecutor{}, &driver.Options{Env: []string{"A=1"}})

	var reply protocol.HelloReply
	require.NoError(t, o.ch.Call(context.Background(), protocol.MethodHello, nil, &reply))
	assert.Equal(t, protocol.Current.String(), reply.Protocol)
	assert.Equal(t, "UTF-8", reply.Encoding)
	assert.Equal(t, []string{"A=1"}, reply.Env)
	assert.Equal(t, os.Getpid(), reply.PID)
}

func TestDriver_BuildRunsGoalsInDependencyOrder(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "make")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	exec := &recordingExecutor{exe: exe}
	o := serve(t, exec, &driver.Options{Env: []string{"PATH=/usr/bin"}, ToolHome: "/opt/tool"})

	req := request(o.module(modA, "/src/a"), o.module(modB, "/src/b", modA))
	assert.Equal(t, domain.ResultSuccess, o.build(req))

	runs := exec.invocations()
	require.Len(t, runs, 4)
	assert.Equal(t, []string{"compile", "test", "compile", "test"},
		[]string{runs[0].Goal, runs[1].Goal, runs[2].Goal, runs[3].Goal})
	assert.Equal(t, "/src/a", runs[0].Dir)
	assert.Equal(t, "/src/b", runs[2].Dir)
	assert.Equal(t, []string{"PATH=/usr/bin"}, runs[0].Base)
	assert.Contains(t, runs[0].ToolEnv, driver.EnvToolOptions+"=-q")
	assert.Contains(t, runs[0].ToolEnv, "PATH=/opt/tool/bin")
	assert.Equal(t, modB.String(), runs[2].Environment[driver.EnvModule])

	a := o.record(modA)
	assert.Equal(t, domain.ResultSuccess, a.Result)
	assert.Equal(t, domain.ModuleEnded, a.State)
	require.Len(t, a.Tasks, 2)
	assert.Equal(t, "compile", a.Tasks[0].Name)
	assert.NotEmpty(t, a.Tasks[0].Digest)
	assert.Equal(t, a.Tasks[0].Digest, o.record(modB).Tasks[0].Digest)

	console := o.console.String()
	assert.Contains(t, console, "[INFO] Building org.example:a\ncompile a\ntest a\n")
	assert.Contains(t, console, "[INFO] BUILD SUCCESS\n")
}

func TestDriver_FailFastStopsBuild(t *testing.T) {
	exec := &recordingExecutor{fail: map[string]bool{"a:compile": true}}
	o := serve(t, exec, &driver.Options{})

	req := request(o.module(modA, "/src/a"), o.module(modC, "/src/c"))
	assert.Equal(t, domain.ResultFailure, o.build(req))

	assert.Len(t, exec.invocations(), 1)
	assert.Equal(t, domain.ResultFailure, o.record(modA).Result)
	assert.Len(t, o.record(modA).Tasks, 1)
	assert.False(t, o.proxies[modC].Ran())
	assert.Equal(t, domain.ResultNotBuilt, o.record(modC).Result)
	assert.Contains(t, o.console.String(), "[INFO] BUILD FAILURE\n")
}

func TestDriver_FailAtEndSkipsDependents(t *testing.T) {
	exec := &recordingExecutor{fail: map[string]bool{"a:test": true}}
	o := serve(t, exec, &driver.Options{})

	req := request(
		o.module(modA, "/src/a"),
		o.module(modB, "/src/b", modA),
		o.module(modC, "/src/c"),
	)
	req.FailFast = false
	assert.Equal(t, domain.ResultFailure, o.build(req))

	assert.Equal(t, domain.ResultFailure, o.record(modA).Result)
	assert.False(t, o.proxies[modB].Ran())
	assert.Equal(t, domain.ResultSuccess, o.record(modC).Result)
	assert.Contains(t, o.console.String(), "[WARNING] Skipping org.example:b: org.example:a did not build\n")
}

func TestDriver_ResetReplacesEnvironment(t *testing.T) {
	exec := &recordingExecutor{}
	o := serve(t, exec, &driver.Options{Env: []string{"INITIAL=1"}})

	require.NoError(t, o.ch.Call(context.Background(), protocol.MethodReset,
		protocol.ResetParams{Env: []string{"RESET=1"}}, nil))
	o.build(request(o.module(modA, "/src/a")))

	runs := exec.invocations()
	require.NotEmpty(t, runs)
	assert.Equal(t, []string{"RESET=1"}, runs[0].Base)
}

func TestDriver_ArchivesExistingArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0o755))
	jar := filepath.Join(dir, "target", "a.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o644))

	o := serve(t, &recordingExecutor{}, &driver.Options{})
	spec := o.module(modA, dir)
	spec.Artifacts = []string{"target/a.jar", "target/missing.jar"}
	assert.Equal(t, domain.ResultSuccess, o.build(request(spec)))

	rec := o.record(modA)
	assert.Equal(t, []domain.Archive{{Relative: "target/a.jar", Absolute: jar}}, rec.Archives)
	assert.Contains(t, rec.Fingerprints, "target/a.jar")
}

func TestSelect(t *testing.T) {
	modules := []protocol.ModuleSpec{
		{Name: modA},
		{Name: modB, Upstream: []domain.ModuleName{modA}},
		{Name: modC},
	}
	names := func(specs []protocol.ModuleSpec) []domain.ModuleName {
		var out []domain.ModuleName
		for _, s := range specs {
			out = append(out, s.Name)
		}
		return out
	}

	t.Run("no seeds builds everything", func(t *testing.T) {
		req := &protocol.BuildRequest{Modules: modules}
		assert.Equal(t, []domain.ModuleName{modA, modB, modC}, names(driver.Select(req, protocol.V2)))
	})

	t.Run("dependents expansion", func(t *testing.T) {
		req := &protocol.BuildRequest{Modules: modules, Seeds: []domain.ModuleName{modA}, AlsoMakeDependents: true}
		assert.Equal(t, []domain.ModuleName{modA, modB}, names(driver.Select(req, protocol.V2)))
	})

	t.Run("v1 ignores expansion", func(t *testing.T) {
		req := &protocol.BuildRequest{Modules: modules, Seeds: []domain.ModuleName{modA}, AlsoMakeDependents: true}
		assert.Equal(t, []domain.ModuleName{modA}, names(driver.Select(req, protocol.V1)))
	})
}

// chunkExecutor writes its output in the given pieces.
type chunkExecutor struct {
	chunks []string
}

func (e *chunkExecutor) Execute(_ context.Context, _ *domain.Invocation, stdout, _ io.Writer) error {
	for _, c := range e.chunks {
		if _, err := stdout.Write([]byte(c)); err != nil {
			return err
		}
	}
	return nil
}

func (e *chunkExecutor) Resolve(*domain.Invocation) (string, error) {
	return "", os.ErrNotExist
}

func TestDriver_ConsoleOutputKeepsRawBytes(t *testing.T) {
	exec := &chunkExecutor{chunks: []string{"caf\xc3", "\xa9|latin1:\xe9\n"}}
	o := serve(t, exec, &driver.Options{})

	req := request(o.module(modA, "/src/a"))
	req.Goals = []string{"compile"}
	assert.Equal(t, domain.ResultSuccess, o.build(req))

	assert.Contains(t, o.console.String(), "café|latin1:\xe9\n")
}
