// Package config provides the project file loader for reactor.
package config

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the project file version this loader understands.
const SupportedVersion = "1"

// Loader implements ports.ProjectLoader on top of reactor.yaml.
type Loader struct {
	logger   ports.Logger
	Filename string
}

var _ ports.ProjectLoader = (*Loader)(nil)

// NewLoader creates a loader reading domain.ProjectFileName.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger, Filename: domain.ProjectFileName}
}

// LoadSettings reads the build settings of the project at root and applies defaults.
func (l *Loader) LoadSettings(root string) (*domain.Settings, error) {
	pf, err := l.read(root)
	if err != nil {
		return nil, err
	}

	settings := domain.DefaultSettings()
	if settings.Mode, err = domain.ParseMode(pf.Mode); err != nil {
		return nil, err
	}
	if pf.Incremental != nil {
		settings.Incremental = *pf.Incremental
	}
	if pf.FailFast != nil {
		settings.FailFast = *pf.FailFast
	}
	settings.Goals = slices.Clone(pf.Goals)
	for goal, cmd := range pf.Tasks {
		if len(cmd) == 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "task has no command"), "goal", goal)
		}
		settings.Tasks[goal] = slices.Clone(cmd)
	}

	settings.Fingerprint = domain.Fingerprint{
		ToolOptions: strings.TrimSpace(pf.Tool.Options),
		ToolHome:    resolvePath(root, pf.Tool.Home),
		RuntimeHome: resolvePath(root, pf.Runtime.Home),
	}

	if pf.Worker.Executable != "" {
		settings.Worker.Executable = resolvePath(root, pf.Worker.Executable)
	}
	for _, s := range pf.Worker.Support {
		settings.Worker.Support = append(settings.Worker.Support, resolvePath(root, s))
	}
	if pf.Worker.HandshakeTimeout != 0 {
		settings.Worker.HandshakeTimeout = pf.Worker.HandshakeTimeout
	}

	if err := applyPool(&settings.Pool, &pf.Pool); err != nil {
		return nil, err
	}
	if pf.Metrics.Textfile != "" {
		settings.MetricsTextfile = resolvePath(root, pf.Metrics.Textfile)
	}

	if settings.Worker.HandshakeTimeout < 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "negative handshake timeout"),
			"handshake_timeout", settings.Worker.HandshakeTimeout.String())
	}
	return &settings, nil
}

// LoadGraph reads the module declarations of the project at root and returns
// their validated graph.
func (l *Loader) LoadGraph(root string) (*domain.ModuleGraph, error) {
	pf, err := l.read(root)
	if err != nil {
		return nil, err
	}

	g := domain.NewModuleGraph()
	paths := make(map[string]string, len(pf.Modules))
	for i := range pf.Modules {
		m, err := toModule(&pf.Modules[i])
		if err != nil {
			return nil, err
		}
		if other, dup := paths[m.Path]; dup {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "two modules share a directory"),
				"module", m.Name.String()), "other", other)
		}
		paths[m.Path] = m.Name.String()
		if err := g.AddModule(m); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	l.logger.Info("discovered " + pluralModules(g.Len()))
	return g, nil
}

func (l *Loader) read(root string) (*Projectfile, error) {
	file := filepath.Join(root, l.Filename)
	data, err := os.ReadFile(file) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrConfigReadFailed, err), "cannot load project"), "file", file)
	}

	var pf Projectfile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrConfigParseFailed, err), "cannot load project"), "file", file)
	}
	if pf.Version != "" && pf.Version != SupportedVersion {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "unsupported project file version"), "version", pf.Version)
	}
	return &pf, nil
}

func applyPool(dst *domain.PoolSettings, dto *PoolDTO) error {
	if dto.MaxProcesses != nil {
		if *dto.MaxProcesses < 0 {
			return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "negative pool bound"), "max_processes", *dto.MaxProcesses)
		}
		dst.MaxProcesses = *dto.MaxProcesses
	}
	if dto.MaxReuse != nil {
		if *dto.MaxReuse < 0 {
			return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "negative reuse bound"), "max_reuse", *dto.MaxReuse)
		}
		dst.MaxReuse = *dto.MaxReuse
	}
	if dto.IdleTimeout > 0 {
		dst.IdleTimeout = dto.IdleTimeout
	}
	if dto.SweepInterval > 0 {
		dst.SweepInterval = dto.SweepInterval
	}
	return nil
}

func toModule(dto *ModuleDTO) (*domain.Module, error) {
	name, err := domain.ParseModuleName(dto.ID)
	if err != nil {
		return nil, err
	}
	dir, err := modulePath(dto.Path)
	if err != nil {
		return nil, zerr.With(err, "module", name.String())
	}

	m := &domain.Module{
		Name:      name,
		Version:   dto.Version,
		Path:      dir,
		Artifacts: canonicalizeStrings(dto.Artifacts),
	}
	for _, raw := range dto.DependsOn {
		dep, err := domain.ParseModuleDependency(raw)
		if err != nil {
			return nil, zerr.With(err, "module", name.String())
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	for _, raw := range dto.Plugins {
		dep, err := domain.ParseModuleDependency(raw)
		if err != nil {
			return nil, zerr.With(err, "module", name.String())
		}
		dep.Plugin = true
		m.Dependencies = append(m.Dependencies, dep)
	}
	return m, nil
}

// modulePath normalizes a module directory to a clean slash path relative to
// the project root. The root module has an empty path.
func modulePath(p string) (string, error) {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if path.IsAbs(p) {
		return "", zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "module path must be relative"), "path", p)
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "module path escapes the project root"), "path", p)
	}
	return clean, nil
}

// resolvePath expands environment references and anchors relative paths at root.
func resolvePath(root, p string) string {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func canonicalizeStrings(strs []string) []string {
	if len(strs) == 0 {
		return nil
	}
	sorted := make([]string, len(strs))
	copy(sorted, strs)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

func pluralModules(n int) string {
	if n == 1 {
		return "1 module"
	}
	return strconv.Itoa(n) + " modules"
}
