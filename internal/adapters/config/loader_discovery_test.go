package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/core/domain"
)

func TestLoadGraph_DependencyOrder(t *testing.T) {
	root := writeProject(t, `
version: "1"
modules:
  - id: org.example:web
    version: "1.0"
    path: web
    dependsOn: ["org.example:core:1.0", "com.external:lib:2.3"]
    artifacts: [target/web.war, target/web.war]
  - id: org.example:parent
    version: "1.0"
  - id: org.example:core
    version: "1.0"
    path: ./core/
    plugins: ["org.example:parent"]
`)

	g, err := newLoader(t).LoadGraph(root)
	require.NoError(t, err)

	parent := domain.NewModuleName("org.example", "parent")
	core := domain.NewModuleName("org.example", "core")
	web := domain.NewModuleName("org.example", "web")
	assert.Equal(t, []domain.ModuleName{parent, core, web}, g.Names())
	assert.Equal(t, []domain.ModuleName{core}, g.Upstream(web))
	assert.Equal(t, []domain.ModuleName{parent}, g.Upstream(core))

	m, ok := g.Module(core)
	require.True(t, ok)
	assert.Equal(t, "core", m.Path)
	require.Len(t, m.Dependencies, 1)
	assert.True(t, m.Dependencies[0].Plugin)
	assert.Equal(t, domain.VersionNone, m.Dependencies[0].Version)

	m, _ = g.Module(web)
	assert.Equal(t, []string{"target/web.war"}, m.Artifacts)

	m, _ = g.Module(parent)
	assert.Empty(t, m.Path)
}

func TestLoadGraph_VersionMismatchIsExternal(t *testing.T) {
	root := writeProject(t, `
modules:
  - id: g:a
    version: "2.0"
    path: a
  - id: g:b
    path: b
    dependsOn: ["g:a:1.0"]
`)

	g, err := newLoader(t).LoadGraph(root)
	require.NoError(t, err)
	assert.Empty(t, g.Upstream(domain.NewModuleName("g", "b")))
}

func TestLoadGraph_UnresolvedVersionMatches(t *testing.T) {
	root := writeProject(t, `
modules:
  - id: g:a
    version: "2.0"
    path: a
  - id: g:b
    path: b
    dependsOn: ["g:a:${project.version}"]
`)

	g, err := newLoader(t).LoadGraph(root)
	require.NoError(t, err)
	assert.Equal(t, []domain.ModuleName{domain.NewModuleName("g", "a")}, g.Upstream(domain.NewModuleName("g", "b")))
}

func TestLoadGraph_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			"cycle",
			"modules:\n  - {id: 'g:a', path: a, dependsOn: ['g:b']}\n  - {id: 'g:b', path: b, dependsOn: ['g:a']}",
			domain.ErrCycleDetected,
		},
		{
			"duplicate module",
			"modules:\n  - {id: 'g:a', path: a}\n  - {id: 'g:a', path: b}",
			domain.ErrModuleAlreadyExists,
		},
		{
			"shared directory",
			"modules:\n  - {id: 'g:a', path: a}\n  - {id: 'g:b', path: ./a}",
			domain.ErrConfigParseFailed,
		},
		{
			"invalid id",
			"modules:\n  - {id: 'just-a-name', path: a}",
			domain.ErrInvalidModuleName,
		},
		{
			"invalid dependency",
			"modules:\n  - {id: 'g:a', path: a, dependsOn: ['nope']}",
			domain.ErrInvalidModuleName,
		},
		{
			"escaping path",
			"modules:\n  - {id: 'g:a', path: ../elsewhere}",
			domain.ErrConfigParseFailed,
		},
		{
			"absolute path",
			"modules:\n  - {id: 'g:a', path: /abs}",
			domain.ErrConfigParseFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, tt.content)
			_, err := newLoader(t).LoadGraph(root)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadGraph_MissingFile(t *testing.T) {
	_, err := newLoader(t).LoadGraph(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrConfigReadFailed)
}
