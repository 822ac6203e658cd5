package domain

import (
	"slices"
)

// BuildState is the forward state one build leaves for the next.
type BuildState struct {
	// Results holds the last known result of every module that actually ran.
	Results map[ModuleName]Result `json:"results,omitempty"`
	// Unbuilt lists modules that had to be built but never got to run.
	Unbuilt []ModuleName `json:"unbuilt,omitempty"`
	// NeedsFullBuild is set when the previous attempt could not determine the module graph.
	NeedsFullBuild bool `json:"needsFullBuild,omitempty"`
	// Revision is the source revision of the last successful build.
	Revision string `json:"revision,omitempty"`
	// LastBuildID identifies the build that wrote this state.
	LastBuildID string `json:"lastBuildId,omitempty"`
	// LastResult is the aggregate result of that build.
	LastResult Result `json:"lastResult,omitempty"`
}

// NewBuildState returns an empty state, as seen before the first build.
func NewBuildState() *BuildState {
	return &BuildState{
		Results: make(map[ModuleName]Result),
	}
}

// UnbuiltSet returns the unbuilt modules as a set.
func (s *BuildState) UnbuiltSet() map[ModuleName]bool {
	set := make(map[ModuleName]bool, len(s.Unbuilt))
	for _, n := range s.Unbuilt {
		set[n] = true
	}
	return set
}

// SetUnbuilt replaces the unbuilt list with the members of set, sorted.
func (s *BuildState) SetUnbuilt(set map[ModuleName]bool) {
	s.Unbuilt = s.Unbuilt[:0]
	for n, ok := range set {
		if ok {
			s.Unbuilt = append(s.Unbuilt, n)
		}
	}
	slices.SortFunc(s.Unbuilt, ModuleName.Compare)
	if len(s.Unbuilt) == 0 {
		s.Unbuilt = nil
	}
}
