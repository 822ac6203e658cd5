package ports

import "go.trai.ch/reactor/internal/core/domain"

// StateStore persists the forward state one build leaves for the next.
//
//go:generate mockgen -source=state_store.go -destination=mocks/mock_state_store.go -package=mocks
type StateStore interface {
	// Load returns the state stored for root, or an empty state if none exists.
	Load(root string) (*domain.BuildState, error)
	// Save replaces the state stored for root.
	Save(root string, state *domain.BuildState) error
}
