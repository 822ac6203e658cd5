// Package launcher starts worker processes and performs the handshake that
// turns a spawned process into a connected control channel.
package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

// EnvToolOptions carries the tool's extra options string to the worker.
const EnvToolOptions = "REACTOR_TOOL_OPTS"

// Options configures one launch.
type Options struct {
	Fingerprint domain.Fingerprint
	// Executable is the worker binary. Empty means the running binary.
	Executable string
	Support    []string
	Dir        string
	// Env is the base environment of the worker. Nil means the current environment.
	Env []string
	// Timeout bounds the wait for the worker to connect back.
	Timeout time.Duration
}

// Launcher spawns workers on a host.
type Launcher struct {
	host   ports.Host
	logger ports.Logger
}

// New creates a launcher for host.
func New(host ports.Host, logger ports.Logger) *Launcher {
	return &Launcher{host: host, logger: logger}
}

// Launch spawns a worker, waits for it to connect back and completes the
// hello exchange. Console output of the worker, both its own and the tool
// output it forwards over the channel, goes to out until redirected.
// On any failure after the spawn the process is killed.
func (l *Launcher) Launch(ctx context.Context, opts *Options, out io.Writer) (*WorkerProcess, error) {
	if err := checkInstallation(opts.Fingerprint); err != nil {
		return nil, err
	}
	exe, err := resolveExecutable(opts.Executable)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultHandshakeTimeout
	}

	acceptor, err := l.host.Listen(ctx)
	if err != nil {
		return nil, err
	}

	output := newSink(out)
	decoder := newConsoleDecoder(output)
	tools := newConsoleDecoder(output)
	proc, err := l.host.Start(ctx, ports.ProcessSpec{
		Path:   exe,
		Args:   workerArgs(acceptor.Port(), opts),
		Dir:    opts.Dir,
		Env:    workerEnv(opts),
		Stdout: decoder,
		Stderr: decoder,
	})
	if err != nil {
		_ = acceptor.Close()
		return nil, err
	}

	rwc, err := accept(ctx, acceptor, proc, timeout)
	if err != nil {
		_ = tools.Close()
		return nil, acceptFailed(ctx, proc, decoder, err)
	}

	ch := remoting.New("worker-"+strconv.Itoa(proc.PID()), l.logger)
	ch.Register(protocol.MethodConsoleWrite, func(_ context.Context, params json.RawMessage) (any, error) {
		var msg protocol.ConsoleWrite
		if err := json.Unmarshal(params, &msg); err != nil {
			return nil, zerr.Wrap(err, "malformed console output")
		}
		_, err := tools.Write(msg.Data)
		return nil, err
	})
	ch.Open(context.WithoutCancel(ctx), rwc)

	worker, err := l.hello(ctx, ch, proc, opts.Fingerprint, output, timeout, decoder, tools)
	if err != nil {
		_ = ch.Close()
		_ = proc.Kill()
		_ = decoder.Close()
		_ = tools.Close()
		return nil, err
	}
	return worker, nil
}

func (l *Launcher) hello(
	ctx context.Context,
	ch *remoting.Channel,
	proc ports.Process,
	fp domain.Fingerprint,
	output *sink,
	timeout time.Duration,
	decoders ...*consoleDecoder,
) (*WorkerProcess, error) {
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reply protocol.HelloReply
	if err := ch.Call(hctx, protocol.MethodHello, nil, &reply); err != nil {
		return nil, errors.Join(domain.ErrHandshakeFailed, err)
	}
	version, err := protocol.ParseVersion(reply.Protocol)
	if err != nil {
		return nil, err
	}

	enc := ResolveEncoding(reply.Encoding)
	if enc == FallbackEncoding && reply.Encoding != "" {
		l.logger.Warn("worker reported unsupported encoding " + strconv.Quote(reply.Encoding) + ", decoding output as ISO-8859-1")
	}
	for _, d := range decoders {
		if err := d.SetEncoding(enc); err != nil {
			l.logger.Error(zerr.Wrap(err, "failed to decode early worker output"))
		}
	}

	return newWorkerProcess(ch, proc, WorkerConfig{
		Fingerprint: fp,
		Protocol:    version,
		Env:         reply.Env,
	}, output, decoders...), nil
}

// accept waits for the worker to connect back. It gives up early when the
// process exits first.
func accept(ctx context.Context, acceptor ports.Acceptor, proc ports.Process, timeout time.Duration) (io.ReadWriteCloser, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-proc.Done():
			cancel()
		case <-actx.Done():
		}
	}()
	return acceptor.Accept(actx, timeout)
}

// acceptFailed classifies an accept failure. A worker that died before it
// connected is reported by its exit code; anything else is returned as is.
func acceptFailed(ctx context.Context, proc ports.Process, decoder *consoleDecoder, err error) error {
	select {
	case <-proc.Done():
	default:
		_ = proc.Kill()
		_ = decoder.Close()
		return err
	}
	_ = decoder.Close()
	if ctx.Err() != nil {
		return err
	}
	exitErr := zerr.Wrap(domain.ErrWorkerExited, "worker exited before connecting")
	exitErr = zerr.With(exitErr, "exit_code", proc.ExitCode())
	return zerr.With(exitErr, "pid", proc.PID())
}

func checkInstallation(fp domain.Fingerprint) error {
	for _, dir := range []struct{ key, path string }{
		{"tool_home", fp.ToolHome},
		{"runtime_home", fp.RuntimeHome},
	} {
		if dir.path == "" {
			continue
		}
		info, err := os.Stat(dir.path)
		if err != nil || !info.IsDir() {
			return zerr.With(zerr.Wrap(domain.ErrMissingInstallation, "cannot launch worker"), dir.key, dir.path)
		}
	}
	return nil
}

func resolveExecutable(exe string) (string, error) {
	if exe != "" {
		return exe, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", errors.Join(domain.ErrSpawnFailed, zerr.Wrap(err, "failed to determine executable path"))
	}
	return self, nil
}

func workerArgs(port int, opts *Options) []string {
	args := []string{"worker", "--port", strconv.Itoa(port)}
	if opts.Fingerprint.ToolHome != "" {
		args = append(args, "--tool-home", opts.Fingerprint.ToolHome)
	}
	if opts.Fingerprint.RuntimeHome != "" {
		args = append(args, "--runtime-home", opts.Fingerprint.RuntimeHome)
	}
	for _, s := range opts.Support {
		args = append(args, "--support", s)
	}
	return args
}

func workerEnv(opts *Options) []string {
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = append([]string(nil), env...)
	return append(env, EnvToolOptions+"="+opts.Fingerprint.ToolOptions)
}
