// Package host runs worker processes on the local machine.
package host

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
)

// Local implements ports.Host for processes on this machine. Workers connect
// back over the loopback interface.
type Local struct {
	id string
}

// New creates a local host with a fresh lifecycle id.
func New() *Local {
	return &Local{id: uuid.NewString()}
}

// ID returns the host's lifecycle id.
func (h *Local) ID() string {
	return h.id
}

// Listen opens a loopback listener on an OS-assigned port.
func (h *Local) Listen(ctx context.Context) (ports.Acceptor, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Join(domain.ErrListenFailed, err)
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, zerr.Wrap(domain.ErrListenFailed, "unexpected listener type")
	}
	return &acceptor{ln: tcp}, nil
}

// Start launches a process. The process is not bound to ctx: a pooled
// worker outlives the build that started it.
func (h *Local) Start(_ context.Context, spec ports.ProcessSpec) (ports.Process, error) {
	//nolint:gosec // G204: the worker executable comes from project configuration
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.Join(domain.ErrSpawnFailed, zerr.With(err, "path", spec.Path))
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	p.exitCode.Store(-1)
	go p.wait()
	return p, nil
}

type acceptor struct {
	ln   *net.TCPListener
	once sync.Once
}

func (a *acceptor) Port() int {
	addr, ok := a.ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// Accept waits for one connection and closes the listener.
func (a *acceptor) Accept(ctx context.Context, timeout time.Duration) (io.ReadWriteCloser, error) {
	defer func() { _ = a.Close() }()

	if err := a.ln.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Join(domain.ErrListenFailed, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = a.Close() })
	defer stop()

	conn, err := a.ln.Accept()
	if err == nil {
		return conn, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeoutErr := zerr.Wrap(domain.ErrAcceptTimeout, "worker did not connect back")
		timeoutErr = zerr.With(timeoutErr, "timeout", timeout.String())
		return nil, zerr.With(timeoutErr, "port", strconv.Itoa(a.Port()))
	}
	return nil, errors.Join(domain.ErrListenFailed, err)
}

func (a *acceptor) Close() error {
	var err error
	a.once.Do(func() { err = a.ln.Close() })
	return err
}

type process struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode atomic.Int64
}

func (p *process) wait() {
	_ = p.cmd.Wait()
	if state := p.cmd.ProcessState; state != nil {
		p.exitCode.Store(int64(state.ExitCode()))
	}
	close(p.done)
}

func (p *process) PID() int {
	return p.cmd.Process.Pid
}

func (p *process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *process) ExitCode() int {
	return int(p.exitCode.Load())
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Kill() error {
	if !p.Alive() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return zerr.With(zerr.Wrap(err, "failed to kill worker"), "pid", p.PID())
	}
	return nil
}
