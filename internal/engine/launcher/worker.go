package launcher

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

// shutdownGrace is how long Close waits for a worker to exit on its own
// after its channel closed before killing it.
var shutdownGrace = 2 * time.Second

// Conn is the control channel to a worker. *remoting.Channel implements it.
type Conn interface {
	Call(ctx context.Context, method string, params, result any) error
	Export(obj remoting.Exported) remoting.Handle
	Unexport(h remoting.Handle)
	Done() <-chan struct{}
	Close() error
}

// WorkerProcess is a launched worker: its control channel, its process and
// the launch configuration it was started with.
type WorkerProcess struct {
	conn        Conn
	proc        ports.Process
	fingerprint domain.Fingerprint
	protocol    protocol.Version
	env         []string
	out         *sink
	decoders    []*consoleDecoder

	mu       sync.Mutex
	age      int
	lastUsed time.Time

	closeOnce sync.Once
	closeErr  error
}

// WorkerConfig holds the parts of a WorkerProcess known after the handshake.
type WorkerConfig struct {
	Fingerprint domain.Fingerprint
	Protocol    protocol.Version
	// Env is the environment the worker reported at startup.
	Env []string
	// Out is the initial output destination.
	Out io.Writer
}

// NewWorkerProcess assembles a WorkerProcess around an established channel.
func NewWorkerProcess(conn Conn, proc ports.Process, cfg WorkerConfig) *WorkerProcess {
	return newWorkerProcess(conn, proc, cfg, newSink(cfg.Out))
}

func newWorkerProcess(conn Conn, proc ports.Process, cfg WorkerConfig, out *sink, decoders ...*consoleDecoder) *WorkerProcess {
	return &WorkerProcess{
		conn:        conn,
		proc:        proc,
		fingerprint: cfg.Fingerprint,
		protocol:    cfg.Protocol,
		env:         append([]string(nil), cfg.Env...),
		out:         out,
		decoders:    decoders,
		lastUsed:    time.Now(),
	}
}

// Conn returns the control channel.
func (w *WorkerProcess) Conn() Conn {
	return w.conn
}

// Process returns the worker's process handle.
func (w *WorkerProcess) Process() ports.Process {
	return w.proc
}

// Fingerprint returns the launch configuration the worker was started with.
func (w *WorkerProcess) Fingerprint() domain.Fingerprint {
	return w.fingerprint
}

// Protocol returns the worker protocol version negotiated at handshake.
func (w *WorkerProcess) Protocol() protocol.Version {
	return w.protocol
}

// Env returns the environment snapshot captured at handshake.
func (w *WorkerProcess) Env() []string {
	return append([]string(nil), w.env...)
}

// Age returns how many times the worker was handed out again after its first use.
func (w *WorkerProcess) Age() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.age
}

// Reused counts one more reuse and returns the new age.
func (w *WorkerProcess) Reused() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.age++
	w.lastUsed = time.Now()
	return w.age
}

// LastUsed returns when the worker was last handed out or returned.
func (w *WorkerProcess) LastUsed() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

// Touch records use of the worker at t.
func (w *WorkerProcess) Touch(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastUsed = t
}

// Redirect sends the worker's console output to out. A nil writer discards it.
func (w *WorkerProcess) Redirect(out io.Writer) {
	w.out.set(out)
}

// Output returns the worker's redirectable console destination.
func (w *WorkerProcess) Output() io.Writer {
	return w.out
}

// Alive reports whether both the channel and the process are up.
func (w *WorkerProcess) Alive() bool {
	select {
	case <-w.conn.Done():
		return false
	default:
	}
	return w.proc == nil || w.proc.Alive()
}

// Reset performs the sanity call: a round trip that restores the worker's
// initial environment. A failure means the worker must not be reused.
func (w *WorkerProcess) Reset(ctx context.Context) error {
	if err := w.conn.Call(ctx, protocol.MethodReset, protocol.ResetParams{Env: w.env}, nil); err != nil {
		return errors.Join(domain.ErrSanityCheckFailed, zerr.With(err, "fingerprint", w.fingerprint.Key()))
	}
	return nil
}

// Close closes the channel, waits briefly for the process to exit and kills it otherwise.
func (w *WorkerProcess) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.conn.Close()
		if w.proc != nil {
			select {
			case <-w.proc.Done():
			case <-time.After(shutdownGrace):
				if err := w.proc.Kill(); err != nil {
					w.closeErr = errors.Join(w.closeErr, err)
				}
			}
		}
		for _, d := range w.decoders {
			if err := d.Close(); err != nil {
				w.closeErr = errors.Join(w.closeErr, err)
			}
		}
	})
	return w.closeErr
}
