package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Callable is orchestrator-side work a worker may request through executeAsync.
type Callable func(ctx context.Context, b *ModuleBuild, args json.RawMessage) error

// CallableFingerprint names the built-in callable that digests archived artifacts.
const CallableFingerprint = "fingerprint"

// DefaultCallables returns the callables every build registers.
func DefaultCallables() map[string]Callable {
	return map[string]Callable{
		CallableFingerprint: FingerprintArtifacts,
	}
}

// AsyncRunner runs callables concurrently with the build. The first failure
// cancels the callables still running.
type AsyncRunner struct {
	ctx       context.Context
	group     *errgroup.Group
	callables map[string]Callable
}

// NewAsyncRunner creates a runner bound to ctx.
func NewAsyncRunner(ctx context.Context, callables map[string]Callable) *AsyncRunner {
	group, gctx := errgroup.WithContext(ctx)
	return &AsyncRunner{
		ctx:       gctx,
		group:     group,
		callables: callables,
	}
}

// Go schedules the named callable for b. Unknown names are rejected immediately.
func (r *AsyncRunner) Go(name string, b *ModuleBuild, args json.RawMessage) error {
	fn, ok := r.callables[name]
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrUnknownCallable, "cannot schedule"), "callable", name)
	}
	r.group.Go(func() error {
		if err := fn(r.ctx, b, args); err != nil {
			return errors.Join(domain.ErrAsyncFailed, zerr.With(zerr.With(err, "callable", name), "module", b.Module().String()))
		}
		return nil
	})
	return nil
}

// Wait blocks until every scheduled callable has finished and returns the first failure.
func (r *AsyncRunner) Wait() error {
	return r.group.Wait()
}

// FingerprintArtifacts stores an xxhash digest of every artifact queued for archiving.
func FingerprintArtifacts(ctx context.Context, b *ModuleBuild, _ json.RawMessage) error {
	for _, a := range b.Record().Archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		digest, err := digestFile(a.Absolute)
		if err != nil {
			return zerr.With(err, "artifact", a.Relative)
		}
		b.SetFingerprint(a.Relative, digest)
	}
	return nil
}

func digestFile(path string) (string, error) {
	//nolint:gosec // Artifact paths are reported by our own worker
	f, err := os.Open(path)
	if err != nil {
		return "", zerr.Wrap(err, "failed to open artifact")
	}
	defer func() { _ = f.Close() }()

	d := xxhash.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", zerr.Wrap(err, "failed to read artifact")
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}

// ArchiveTo copies every queued artifact into dir, keeping relative paths.
func (b *ModuleBuild) ArchiveTo(dir string) error {
	var errs error
	for _, a := range b.Record().Archives {
		dest := filepath.Join(dir, filepath.FromSlash(a.Relative))
		if err := copyFile(a.Absolute, dest); err != nil {
			errs = errors.Join(errs, zerr.With(err, "artifact", a.Relative))
		}
	}
	return errs
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create archive directory")
	}
	//nolint:gosec // Artifact paths are reported by our own worker
	in, err := os.Open(src)
	if err != nil {
		return zerr.Wrap(err, "failed to open artifact")
	}
	defer func() { _ = in.Close() }()

	//nolint:gosec // Destination is under the project's archive directory
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm)
	if err != nil {
		return zerr.Wrap(err, "failed to create archived artifact")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, "failed to copy artifact")
	}
	return out.Close()
}
