package ports

import "go.trai.ch/reactor/internal/core/domain"

// ProjectLoader reads the project description found at a root directory.
//
//go:generate mockgen -source=project_loader.go -destination=mocks/mock_project_loader.go -package=mocks
type ProjectLoader interface {
	// LoadGraph discovers the modules of the project and returns their validated graph.
	LoadGraph(root string) (*domain.ModuleGraph, error)
	// LoadSettings returns the build settings of the project with defaults applied.
	LoadSettings(root string) (*domain.Settings, error)
}
