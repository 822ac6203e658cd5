// Package selection decides which modules an incremental build must run.
package selection

import (
	"path"
	"slices"
	"strings"

	"go.trai.ch/reactor/internal/core/domain"
)

// Reasons a build falls back to every module.
const (
	ReasonNotIncremental = "incremental builds disabled"
	ReasonPerModule      = "per-module mode"
	ReasonNeedsFull      = "previous build could not determine the module graph"
	ReasonNoBaseline     = "no baseline revision"
	ReasonNothingChanged = "no changed, failed or unbuilt modules"
)

// Input is what the previous build left behind plus the current change set.
type Input struct {
	// Modules is the full module set in dependency order.
	Modules []domain.Module
	Mode    domain.Mode
	// Incremental enables seed selection. When false every module builds.
	Incremental bool
	Previous    map[domain.ModuleName]domain.Result
	Unbuilt     map[domain.ModuleName]bool
	// Changes are slash-separated paths relative to the project root.
	Changes []string
	// ChangesKnown is false when no baseline revision exists.
	ChangesKnown   bool
	NeedsFullBuild bool
}

// Selection is the outcome of Select.
type Selection struct {
	// Seeds lists the modules to build, in dependency order. The tool adds
	// their dependents. Seeds is nil for a full build.
	Seeds []domain.ModuleName
	Full  bool
	// Reason explains a full build.
	Reason string
}

// Select computes the seed set: modules whose own directory contains a
// change, modules whose previous result was worse than SUCCESS and modules
// left unbuilt by the previous build. An empty seed set means a full build.
func Select(in *Input) Selection {
	switch {
	case !in.Incremental:
		return full(ReasonNotIncremental)
	case in.Mode == domain.ModePerModule:
		return full(ReasonPerModule)
	case in.NeedsFullBuild:
		return full(ReasonNeedsFull)
	case !in.ChangesKnown:
		return full(ReasonNoBaseline)
	}

	seeds := make(map[domain.ModuleName]bool)
	for _, name := range ChangedModules(in.Modules, in.Changes) {
		seeds[name] = true
	}
	for _, m := range in.Modules {
		if r, ok := in.Previous[m.Name]; ok && r.IsWorseThan(domain.ResultSuccess) {
			seeds[m.Name] = true
		}
		if in.Unbuilt[m.Name] {
			seeds[m.Name] = true
		}
	}
	if len(seeds) == 0 {
		return full(ReasonNothingChanged)
	}

	ordered := make([]domain.ModuleName, 0, len(seeds))
	for _, m := range in.Modules {
		if seeds[m.Name] {
			ordered = append(ordered, m.Name)
		}
	}
	return Selection{Seeds: ordered}
}

// ChangedModules maps every changed path to the module owning it. A path is
// owned by the module with the deepest directory containing it, so a change
// inside a sub-module does not count for its parent.
func ChangedModules(modules []domain.Module, changes []string) []domain.ModuleName {
	byDepth := slices.Clone(modules)
	slices.SortStableFunc(byDepth, func(a, b domain.Module) int {
		return len(cleanDir(b.Path)) - len(cleanDir(a.Path))
	})

	changed := make(map[domain.ModuleName]bool)
	for _, p := range changes {
		p = cleanDir(p)
		for _, m := range byDepth {
			if within(p, cleanDir(m.Path)) {
				changed[m.Name] = true
				break
			}
		}
	}

	var result []domain.ModuleName
	for _, m := range modules {
		if changed[m.Name] {
			result = append(result, m.Name)
		}
	}
	return result
}

// CarryForward computes the unbuilt set for the next build. Modules that ran
// leave the set. When the build did not succeed, expected modules that never
// ran join it. Modules no longer declared are dropped.
func CarryForward(
	previous map[domain.ModuleName]bool,
	declared, expected []domain.ModuleName,
	ran map[domain.ModuleName]bool,
	overall domain.Result,
) map[domain.ModuleName]bool {
	known := make(map[domain.ModuleName]bool, len(declared))
	for _, n := range declared {
		known[n] = true
	}

	next := make(map[domain.ModuleName]bool)
	for n, ok := range previous {
		if ok && known[n] && !ran[n] {
			next[n] = true
		}
	}
	if overall != domain.ResultSuccess {
		for _, n := range expected {
			if known[n] && !ran[n] {
				next[n] = true
			}
		}
	}
	return next
}

func full(reason string) Selection {
	return Selection{Full: true, Reason: reason}
}

func cleanDir(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(p)), "/")
	return p
}

func within(p, dir string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
