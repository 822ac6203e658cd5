// Package domain contains the core domain models of the build orchestrator.
package domain

import (
	"iter"
	"slices"

	"go.trai.ch/zerr"
)

// ModuleGraph represents the dependency graph of the project's modules.
// Dependencies that do not resolve to a module of the project are external
// and do not create edges.
type ModuleGraph struct {
	modules        map[ModuleName]Module
	upstream       map[ModuleName][]ModuleName
	downstream     map[ModuleName][]ModuleName
	executionOrder []ModuleName
}

// NewModuleGraph creates a new empty ModuleGraph.
func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{
		modules: make(map[ModuleName]Module),
	}
}

// AddModule adds a module to the graph.
// It returns an error if a module with the same name already exists.
func (g *ModuleGraph) AddModule(m *Module) error {
	if _, exists := g.modules[m.Name]; exists {
		return zerr.With(zerr.Wrap(ErrModuleAlreadyExists, "cannot add module"), "module", m.Name.String())
	}
	g.modules[m.Name] = *m
	return nil
}

// Len returns the number of modules.
func (g *ModuleGraph) Len() int {
	return len(g.modules)
}

// Module returns the module with the given name.
func (g *ModuleGraph) Module(name ModuleName) (Module, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// Validate resolves dependency edges and checks for cycles using a topological sort.
// It populates the execution order if successful. Modules are visited in name
// order so the resulting order is deterministic.
func (g *ModuleGraph) Validate() error {
	g.resolveEdges()

	g.executionOrder = make([]ModuleName, 0, len(g.modules))
	visited := make(map[ModuleName]int) // 0: unvisited, 1: visiting, 2: visited
	var path []ModuleName

	var visit func(u ModuleName) error
	visit = func(u ModuleName) error {
		visited[u] = 1
		path = append(path, u)

		for _, dep := range g.upstream[u] {
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, name := range g.sortedNames() {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *ModuleGraph) resolveEdges() {
	g.upstream = make(map[ModuleName][]ModuleName, len(g.modules))
	g.downstream = make(map[ModuleName][]ModuleName, len(g.modules))

	for _, name := range g.sortedNames() {
		m := g.modules[name]
		for _, dep := range m.Dependencies {
			target, ok := g.modules[dep.Name]
			if !ok || target.Name == name || !dep.Matches(target.Name, target.Version) {
				continue
			}
			if slices.Contains(g.upstream[name], target.Name) {
				continue
			}
			g.upstream[name] = append(g.upstream[name], target.Name)
			g.downstream[target.Name] = append(g.downstream[target.Name], name)
		}
	}
}

func (g *ModuleGraph) sortedNames() []ModuleName {
	names := make([]ModuleName, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	slices.SortFunc(names, ModuleName.Compare)
	return names
}

// buildCycleError constructs an error with cycle path metadata.
func (g *ModuleGraph) buildCycleError(path []ModuleName, dep ModuleName) error {
	cyclePath := ""
	startIdx := slices.Index(path, dep)
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return zerr.With(zerr.Wrap(ErrCycleDetected, "invalid module graph"), "cycle", cyclePath)
}

// Walk returns an iterator that yields modules in dependency order.
// It assumes Validate() has been called and returned nil.
func (g *ModuleGraph) Walk() iter.Seq[Module] {
	return func(yield func(Module) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.modules[name]) {
				return
			}
		}
	}
}

// Names returns every module name in dependency order.
func (g *ModuleGraph) Names() []ModuleName {
	return slices.Clone(g.executionOrder)
}

// Upstream returns the project modules that name depends on directly.
func (g *ModuleGraph) Upstream(name ModuleName) []ModuleName {
	return slices.Clone(g.upstream[name])
}

// Downstream returns the project modules that depend on name directly.
func (g *ModuleGraph) Downstream(name ModuleName) []ModuleName {
	return slices.Clone(g.downstream[name])
}

// WithDependents returns seeds plus every module that transitively depends on
// one of them, in dependency order.
func (g *ModuleGraph) WithDependents(seeds []ModuleName) ([]ModuleName, error) {
	selected := make(map[ModuleName]bool, len(seeds))
	queue := make([]ModuleName, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := g.modules[s]; !ok {
			return nil, zerr.With(zerr.Wrap(ErrModuleNotFound, "cannot expand dependents"), "module", s.String())
		}
		if !selected[s] {
			selected[s] = true
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, down := range g.downstream[current] {
			if !selected[down] {
				selected[down] = true
				queue = append(queue, down)
			}
		}
	}

	result := make([]ModuleName, 0, len(selected))
	for _, name := range g.executionOrder {
		if selected[name] {
			result = append(result, name)
		}
	}
	return result, nil
}
