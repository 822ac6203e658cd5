package config

import "time"

// Projectfile represents the structure of the reactor.yaml project file.
type Projectfile struct {
	Version     string              `yaml:"version"`
	Mode        string              `yaml:"mode"`
	Incremental *bool               `yaml:"incremental"`
	FailFast    *bool               `yaml:"failFast"`
	Goals       []string            `yaml:"goals"`
	Tasks       map[string][]string `yaml:"tasks"`
	Tool        ToolDTO             `yaml:"tool"`
	Runtime     RuntimeDTO          `yaml:"runtime"`
	Worker      WorkerDTO           `yaml:"worker"`
	Pool        PoolDTO             `yaml:"pool"`
	Metrics     MetricsDTO          `yaml:"metrics"`
	Modules     []ModuleDTO         `yaml:"modules"`
}

// ToolDTO locates the build tool installation.
type ToolDTO struct {
	Home    string `yaml:"home"`
	Options string `yaml:"options"`
}

// RuntimeDTO locates the runtime the worker runs on.
type RuntimeDTO struct {
	Home string `yaml:"home"`
}

// WorkerDTO configures worker launches.
type WorkerDTO struct {
	Executable       string        `yaml:"executable"`
	Support          []string      `yaml:"support"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout"`
}

// PoolDTO configures the worker pool.
type PoolDTO struct {
	MaxProcesses  *int          `yaml:"maxProcesses"`
	MaxReuse      *int          `yaml:"maxReuse"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// MetricsDTO configures metric output.
type MetricsDTO struct {
	Textfile string `yaml:"textfile"`
}

// ModuleDTO represents a module definition in the project file.
type ModuleDTO struct {
	ID        string   `yaml:"id"`
	Version   string   `yaml:"version"`
	Path      string   `yaml:"path"`
	DependsOn []string `yaml:"dependsOn"`
	Plugins   []string `yaml:"plugins"`
	Artifacts []string `yaml:"artifacts"`
}
