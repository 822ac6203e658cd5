package aggregator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/reactor/internal/engine/launcher"
	"go.trai.ch/reactor/internal/engine/protocol"
	"go.trai.ch/reactor/internal/engine/proxy"
	"go.trai.ch/reactor/internal/engine/splitlog"
	"go.trai.ch/reactor/internal/remoting"
	"go.trai.ch/zerr"
)

// session is the state of one running build.
type session struct {
	a        *Aggregator
	ctx      context.Context
	req      *Request
	buildID  string
	settings *domain.Settings
	graph    *domain.ModuleGraph

	buildLog *os.File
	logs     []*lazyFile
	split    *splitlog.Writer
	async    *proxy.AsyncRunner
	proxies  []*proxy.ModuleBuild
	byName   map[domain.ModuleName]*proxy.ModuleBuild

	aborted  bool
	asyncErr error

	mu    sync.Mutex
	spans map[domain.ModuleName]ports.Span
}

func newSession(
	ctx context.Context,
	a *Aggregator,
	req *Request,
	buildID string,
	settings *domain.Settings,
	graph *domain.ModuleGraph,
) (*session, error) {
	dir := domain.BuildDir(req.Root, buildID)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create build directory"), "dir", dir)
	}
	//nolint:gosec // The build log lives under the project's workspace directory
	buildLog, err := os.Create(filepath.Join(dir, domain.BuildLogFileName))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create build log"), "dir", dir)
	}

	var console io.Writer = buildLog
	if req.Console != nil {
		console = io.MultiWriter(buildLog, req.Console)
	}

	s := &session{
		a:        a,
		ctx:      ctx,
		req:      req,
		buildID:  buildID,
		settings: settings,
		graph:    graph,
		buildLog: buildLog,
		split:    splitlog.New(console),
		async:    proxy.NewAsyncRunner(ctx, proxy.DefaultCallables()),
		byName:   make(map[domain.ModuleName]*proxy.ModuleBuild),
		spans:    make(map[domain.ModuleName]ports.Span),
	}
	for _, name := range graph.Names() {
		log := &lazyFile{path: domain.ModuleLogPath(req.Root, buildID, name)}
		s.logs = append(s.logs, log)
		b := proxy.NewModuleBuild(&proxy.Options{
			BuildID:  buildID,
			Root:     req.Root,
			Module:   name,
			Log:      log,
			Split:    s.split,
			Async:    s.async,
			Store:    a.Records,
			Listener: s,
			Logger:   a.Logger,
			Clock:    a.clock,
		})
		s.proxies = append(s.proxies, b)
		s.byName[name] = b
	}
	return s, nil
}

func (s *session) acquire(ctx context.Context) (*launcher.WorkerProcess, error) {
	fp := s.settings.Fingerprint
	launch := func(ctx context.Context, out io.Writer) (*launcher.WorkerProcess, error) {
		return s.a.Launcher.Launch(ctx, &launcher.Options{
			Fingerprint: fp,
			Executable:  s.settings.Worker.Executable,
			Support:     s.settings.Worker.Support,
			Dir:         s.req.Root,
			Timeout:     s.settings.Worker.HandshakeTimeout,
		}, out)
	}
	return s.a.Pool.Acquire(ctx, s.a.Host.ID(), fp, launch, s.split)
}

// export makes the proxies of names invokable on conn and returns their specs.
func (s *session) export(conn launcher.Conn, names []domain.ModuleName) ([]protocol.ModuleSpec, func()) {
	specs := make([]protocol.ModuleSpec, 0, len(names))
	handles := make([]remoting.Handle, 0, len(names))
	for _, name := range names {
		m, _ := s.graph.Module(name)
		h := conn.Export(s.byName[name])
		handles = append(handles, h)
		specs = append(specs, protocol.ModuleSpec{
			Name:      name,
			Dir:       filepath.Join(s.req.Root, filepath.FromSlash(m.Path)),
			Upstream:  s.graph.Upstream(name),
			Artifacts: m.Artifacts,
			Proxy:     h,
		})
	}
	return specs, func() {
		for _, h := range handles {
			conn.Unexport(h)
		}
	}
}

func (s *session) request(specs []protocol.ModuleSpec) *protocol.BuildRequest {
	return &protocol.BuildRequest{
		BuildID:     s.buildID,
		Root:        s.req.Root,
		Goals:       s.settings.Goals,
		Modules:     specs,
		FailFast:    s.settings.FailFast,
		Tasks:       s.settings.Tasks,
		ToolOptions: s.settings.Fingerprint.ToolOptions,
	}
}

// call sends a build request, unexports the build's proxies and returns the
// worker to the pool. A worker whose build did not complete normally is
// discarded.
func (s *session) call(
	ctx context.Context,
	w *launcher.WorkerProcess,
	req *protocol.BuildRequest,
	unexport func(),
) (domain.Result, error) {
	var reply protocol.BuildReply
	err := w.Conn().Call(ctx, protocol.MethodBuild, req, &reply)
	unexport()
	if err != nil {
		s.a.Pool.Release(w, false)
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.aborted = true
			return domain.ResultAborted, ctxErr
		}
		return domain.ResultFailure, zerr.Wrap(err, "worker build failed")
	}
	s.a.Pool.Release(w, true)
	return reply.Result, nil
}

// finish waits for async callables, gives every module a final record,
// archives artifacts and returns the records in dependency order.
func (s *session) finish(ctx context.Context) []domain.ModuleRecord {
	ctx = context.WithoutCancel(ctx)
	if err := s.async.Wait(); err != nil {
		s.asyncErr = err
		s.a.Logger.Error(err)
	}

	var last *proxy.ModuleBuild
	for _, b := range s.proxies {
		b.Close(ctx, s.aborted)
		if b.Ran() {
			last = b
		}
	}
	if last != nil {
		if err := last.AppendLastLog(); err != nil {
			s.a.Logger.Error(zerr.Wrap(err, "failed to write module log"))
		}
	}

	records := make([]domain.ModuleRecord, 0, len(s.proxies))
	for _, b := range s.proxies {
		rec := b.Record()
		if len(rec.Archives) > 0 {
			if err := b.ArchiveTo(domain.ArtifactDir(s.req.Root, s.buildID, rec.Module)); err != nil {
				s.a.Logger.Error(zerr.Wrap(err, "failed to archive artifacts"))
			}
		}
		if len(rec.Fingerprints) > 0 {
			if err := s.a.Records.Put(ctx, s.req.Root, &rec); err != nil {
				s.a.Logger.Error(err)
			}
		}
		records = append(records, rec)
	}
	return records
}

func (s *session) closeLogs() {
	for _, l := range s.logs {
		if err := l.Close(); err != nil {
			s.a.Logger.Error(err)
		}
	}
	if err := s.buildLog.Close(); err != nil {
		s.a.Logger.Error(zerr.Wrap(err, "failed to close build log"))
	}
}

// ModuleStarted implements proxy.Listener.
func (s *session) ModuleStarted(ctx context.Context, record domain.ModuleRecord) {
	_, span := s.a.Tracer.Start(s.ctx, record.Module.String())
	s.mu.Lock()
	s.spans[record.Module] = span
	s.mu.Unlock()

	name := record.Module
	s.a.publish(ctx, &domain.Event{
		Kind:    domain.EventModuleStarted,
		BuildID: s.buildID,
		Module:  &name,
		Time:    record.Started,
	})
}

// ModuleEnded implements proxy.Listener.
func (s *session) ModuleEnded(ctx context.Context, record domain.ModuleRecord) {
	if record.Started.IsZero() {
		return
	}
	s.a.Metrics.ModuleFinished(record.Result)

	s.mu.Lock()
	span, ok := s.spans[record.Module]
	delete(s.spans, record.Module)
	s.mu.Unlock()
	if ok {
		span.SetAttribute("reactor.result", record.Result.String())
		span.SetAttribute("reactor.tasks", len(record.Tasks))
		if record.Result.IsWorseThan(domain.ResultUnstable) {
			span.RecordError(zerr.With(zerr.New("module did not succeed"), "result", record.Result.String()))
		}
		span.End()
	}

	name := record.Module
	s.a.publish(ctx, &domain.Event{
		Kind:     domain.EventModuleEnded,
		BuildID:  s.buildID,
		Module:   &name,
		Result:   record.Result,
		Duration: record.Duration,
		Time:     record.Started.Add(record.Duration),
	})
}

// lazyFile creates its file on the first write, so modules that print
// nothing leave no log behind.
type lazyFile struct {
	path string

	mu  sync.Mutex
	f   *os.File
	err error
}

func (l *lazyFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil && l.err == nil {
		//nolint:gosec // Module logs live under the project's workspace directory
		l.f, l.err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, domain.FilePerm)
		if l.err != nil {
			l.err = zerr.With(zerr.Wrap(l.err, "failed to create module log"), "path", l.path)
		}
	}
	if l.err != nil {
		return 0, l.err
	}
	return l.f.Write(p)
}

func (l *lazyFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
