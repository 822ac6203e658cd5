package launcher_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/core/ports/mocks"
	"go.trai.ch/reactor/internal/engine/launcher"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
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

type fakeProcess struct {
	done   chan struct{}
	once   sync.Once
	code   atomic.Int64
	killed atomic.Bool
}

func newFakeProcess() *fakeProcess {
	p := &fakeProcess{done: make(chan struct{})}
	p.code.Store(-1)
	return p
}

func (p *fakeProcess) PID() int { return 4711 }

func (p *fakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProcess) ExitCode() int { return int(p.code.Load()) }

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit(-1)
	return nil
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code.Store(int64(code))
		close(p.done)
	})
}

// fakeAcceptor hands out the connection a fake worker dials in with.
type fakeAcceptor struct {
	conns chan io.ReadWriteCloser
}

func (a *fakeAcceptor) Port() int { return 4242 }

func (a *fakeAcceptor) Accept(ctx context.Context, timeout time.Duration) (io.ReadWriteCloser, error) {
	select {
	case c := <-a.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, zerr.Wrap(domain.ErrAcceptTimeout, "worker did not connect")
	}
}

func (a *fakeAcceptor) Close() error { return nil }

func quietLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	l := mocks.NewMockLogger(gomock.NewController(t))
	l.EXPECT().Info(gomock.Any()).AnyTimes()
	l.EXPECT().Warn(gomock.Any()).AnyTimes()
	l.EXPECT().Error(gomock.Any()).AnyTimes()
	return l
}

// fakeWorker is the worker side of a handshake.
type fakeWorker struct {
	t      *testing.T
	hello  protocol.HelloReply
	resets atomic.Int32
	ch     *remoting.Channel
}

func (w *fakeWorker) connect(acceptor *fakeAcceptor) {
	left, right := net.Pipe()
	w.ch = remoting.New("worker", quietLogger(w.t))
	w.ch.Register(protocol.MethodHello, func(context.Context, json.RawMessage) (any, error) {
		return w.hello, nil
	})
	w.ch.Register(protocol.MethodReset, func(context.Context, json.RawMessage) (any, error) {
		w.resets.Add(1)
		return nil, nil
	})
	w.ch.Open(context.Background(), right)
	w.t.Cleanup(func() { _ = w.ch.Close() })
	acceptor.conns <- left
}

type harness struct {
	host     *mocks.MockHost
	acceptor *fakeAcceptor
	proc     *fakeProcess
	spec     ports.ProcessSpec
	launcher *launcher.Launcher
	toolHome string
}

func newHarness(t *testing.T, onStart func(h *harness)) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		host:     mocks.NewMockHost(ctrl),
		acceptor: &fakeAcceptor{conns: make(chan io.ReadWriteCloser, 1)},
		proc:     newFakeProcess(),
		toolHome: t.TempDir(),
	}
	h.host.EXPECT().Listen(gomock.Any()).Return(h.acceptor, nil)
	h.host.EXPECT().Start(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, spec ports.ProcessSpec) (ports.Process, error) {
			h.spec = spec
			if onStart != nil {
				onStart(h)
			}
			return h.proc, nil
		})
	h.launcher = launcher.New(h.host, quietLogger(t))
	return h
}

func (h *harness) options() *launcher.Options {
	return &launcher.Options{
		Fingerprint: domain.Fingerprint{ToolOptions: "-Xmx1g", ToolHome: h.toolHome},
		Executable:  "/opt/reactor/bin/reactor",
		Support:     []string{"/opt/reactor/lib/agent"},
		Env:         []string{"HOME=/home/builder"},
		Timeout:     time.Second,
	}
}

func TestLaunch_Handshake(t *testing.T) {
	worker := &fakeWorker{t: t, hello: protocol.HelloReply{
		Protocol: protocol.V2.String(),
		Encoding: "ISO-8859-1",
		Env:      []string{"PATH=/usr/bin"},
		PID:      4711,
	}}
	h := newHarness(t, func(h *harness) {
		_, _ = h.spec.Stdout.Write([]byte("caf\xe9\n"))
		worker.connect(h.acceptor)
	})

	out := &syncBuffer{}
	w, err := h.launcher.Launch(context.Background(), h.options(), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "/opt/reactor/bin/reactor", h.spec.Path)
	assert.Equal(t, []string{
		"worker", "--port", "4242",
		"--tool-home", h.toolHome,
		"--support", "/opt/reactor/lib/agent",
	}, h.spec.Args)
	assert.Contains(t, h.spec.Env, "REACTOR_TOOL_OPTS=-Xmx1g")
	assert.Contains(t, h.spec.Env, "HOME=/home/builder")

	assert.Equal(t, protocol.V2, w.Protocol())
	assert.Equal(t, []string{"PATH=/usr/bin"}, w.Env())
	assert.Equal(t, 0, w.Age())
	assert.Equal(t, "-Xmx1g", w.Fingerprint().ToolOptions)
	assert.True(t, w.Alive())
	assert.Equal(t, "café\n", out.String())

	require.NoError(t, worker.ch.Notify(context.Background(), protocol.MethodConsoleWrite, protocol.ConsoleWrite{Data: []byte("[INFO] ok\n")}))
	require.NoError(t, w.Reset(context.Background()))
	assert.Equal(t, int32(1), worker.resets.Load())
	assert.Equal(t, "café\n[INFO] ok\n", out.String())

	redirected := &syncBuffer{}
	w.Redirect(redirected)
	require.NoError(t, worker.ch.Notify(context.Background(), protocol.MethodConsoleWrite, protocol.ConsoleWrite{Data: []byte("later\n")}))
	require.NoError(t, w.Reset(context.Background()))
	assert.Equal(t, "later\n", redirected.String())
}

func TestLaunch_WorkerExitsBeforeConnecting(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		_, _ = h.spec.Stderr.Write([]byte("Error: could not find tool\n"))
		go h.proc.exit(3)
	})

	out := &syncBuffer{}
	_, err := h.launcher.Launch(context.Background(), h.options(), out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWorkerExited))
	assert.False(t, errors.Is(err, domain.ErrAcceptTimeout))

	var zerrErr *zerr.Error
	require.True(t, errors.As(err, &zerrErr))
	assert.Equal(t, 3, zerrErr.Metadata()["exit_code"])
	assert.Contains(t, out.String(), "could not find tool")
}

func TestLaunch_TimeoutWhileAlive(t *testing.T) {
	h := newHarness(t, nil)
	opts := h.options()
	opts.Timeout = 20 * time.Millisecond

	_, err := h.launcher.Launch(context.Background(), opts, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAcceptTimeout))
	assert.False(t, errors.Is(err, domain.ErrWorkerExited))
	assert.True(t, h.proc.killed.Load())
}

func TestLaunch_UnsupportedProtocol(t *testing.T) {
	worker := &fakeWorker{t: t, hello: protocol.HelloReply{Protocol: "reactor/9"}}
	h := newHarness(t, func(h *harness) {
		worker.connect(h.acceptor)
	})

	_, err := h.launcher.Launch(context.Background(), h.options(), io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedProtocol))
	assert.True(t, h.proc.killed.Load())
}

func TestLaunch_MissingInstallation(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := mocks.NewMockHost(ctrl)
	l := launcher.New(host, quietLogger(t))

	_, err := l.Launch(context.Background(), &launcher.Options{
		Fingerprint: domain.Fingerprint{ToolHome: filepath.Join(t.TempDir(), "missing")},
	}, io.Discard)
	assert.True(t, errors.Is(err, domain.ErrMissingInstallation))
}

func TestLaunch_SpawnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := mocks.NewMockHost(ctrl)
	acceptor := mocks.NewMockAcceptor(ctrl)
	host.EXPECT().Listen(gomock.Any()).Return(acceptor, nil)
	acceptor.EXPECT().Port().Return(1234)
	acceptor.EXPECT().Close().Return(nil)
	host.EXPECT().Start(gomock.Any(), gomock.Any()).
		Return(nil, errors.Join(domain.ErrSpawnFailed, os.ErrNotExist))

	l := launcher.New(host, quietLogger(t))
	_, err := l.Launch(context.Background(), &launcher.Options{Executable: "/nope"}, io.Discard)
	assert.True(t, errors.Is(err, domain.ErrSpawnFailed))
}

func TestWorkerProcess_CloseKillsStuckProcess(t *testing.T) {
	defer launcher.SetShutdownGrace(10 * time.Millisecond)()

	left, right := net.Pipe()
	defer func() { _ = right.Close() }()
	ch := remoting.New("worker", quietLogger(t))
	ch.Open(context.Background(), left)

	proc := newFakeProcess()
	w := launcher.NewWorkerProcess(ch, proc, launcher.WorkerConfig{})
	require.NoError(t, w.Close())
	assert.True(t, proc.killed.Load())
	assert.False(t, w.Alive())
	require.NoError(t, w.Close())
}

func TestWorkerProcess_ResetFailure(t *testing.T) {
	left, right := net.Pipe()
	orchestrator := remoting.New("orchestrator", quietLogger(t))
	worker := remoting.New("worker", quietLogger(t))
	worker.Register(protocol.MethodReset, func(context.Context, json.RawMessage) (any, error) {
		return nil, zerr.New("environment locked")
	})
	orchestrator.Open(context.Background(), left)
	worker.Open(context.Background(), right)
	defer func() { _ = worker.Close() }()

	proc := newFakeProcess()
	w := launcher.NewWorkerProcess(orchestrator, proc, launcher.WorkerConfig{Env: []string{"A=1"}})
	err := w.Reset(context.Background())
	assert.True(t, errors.Is(err, domain.ErrSanityCheckFailed))

	proc.exit(0)
	require.NoError(t, w.Close())
	assert.False(t, proc.killed.Load())
}

func TestWorkerProcess_Reused(t *testing.T) {
	left, _ := net.Pipe()
	ch := remoting.New("worker", quietLogger(t))
	ch.Open(context.Background(), left)
	w := launcher.NewWorkerProcess(ch, nil, launcher.WorkerConfig{})
	defer func() { _ = ch.Close() }()

	before := w.LastUsed()
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, w.Reused())
	assert.Equal(t, 2, w.Reused())
	assert.Equal(t, 2, w.Age())
	assert.True(t, w.LastUsed().After(before))
}

func TestLaunch_UnknownEncodingFallsBackToLatin1(t *testing.T) {
	var (
		mu       sync.Mutex
		warnings []string
	)
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, msg)
	}).AnyTimes()

	worker := &fakeWorker{t: t, hello: protocol.HelloReply{Protocol: protocol.V2.String(), Encoding: "x-bogus"}}
	h := newHarness(t, func(h *harness) {
		_, _ = h.spec.Stdout.Write([]byte("caf\xe9\n"))
		worker.connect(h.acceptor)
	})
	h.launcher = launcher.New(h.host, log)

	out := &syncBuffer{}
	w, err := h.launcher.Launch(context.Background(), h.options(), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "café\n", out.String())
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], `"x-bogus"`)
	assert.Contains(t, warnings[0], "ISO-8859-1")
}

func TestLaunch_ToolOutputKeepsEveryByte(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		chunks   []string
		want     string
	}{
		{
			name:     "utf-8 split across writes and invalid bytes pass through",
			encoding: "UTF-8",
			chunks:   []string{"caf\xc3", "\xa9|latin1:\xe9\n"},
			want:     "café|latin1:\xe9\n",
		},
		{
			name:     "latin-1 is decoded",
			encoding: "ISO-8859-1",
			chunks:   []string{"latin1:\xe9", "\n"},
			want:     "latin1:é\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker := &fakeWorker{t: t, hello: protocol.HelloReply{Protocol: protocol.V2.String(), Encoding: tt.encoding}}
			h := newHarness(t, func(h *harness) { worker.connect(h.acceptor) })

			out := &syncBuffer{}
			w, err := h.launcher.Launch(context.Background(), h.options(), out)
			require.NoError(t, err)
			t.Cleanup(func() { _ = w.Close() })

			ctx := context.Background()
			for _, c := range tt.chunks {
				require.NoError(t, worker.ch.Notify(ctx, protocol.MethodConsoleWrite, protocol.ConsoleWrite{Data: []byte(c)}))
			}
			require.NoError(t, w.Reset(ctx))
			assert.Equal(t, tt.want, out.String())
		})
	}
}
