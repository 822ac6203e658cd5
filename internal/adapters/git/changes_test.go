package git_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/adapters/git"
	"go.trai.ch/reactor/internal/core/domain"
)

type repo struct {
	t    *testing.T
	dir  string
	repo *ggit.Repository
}

func newRepo(t *testing.T) *repo {
	t.Helper()
	dir := t.TempDir()
	r, err := ggit.PlainInit(dir, false)
	require.NoError(t, err)
	return &repo{t: t, dir: dir, repo: r}
}

func (r *repo) write(path, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, path)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o600))
}

func (r *repo) commit(msg string, paths ...string) string {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	for _, p := range paths {
		_, err := wt.Add(p)
		require.NoError(r.t, err)
	}
	hash, err := wt.Commit(msg, &ggit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
	return hash.String()
}

func TestRevision(t *testing.T) {
	ctx := context.Background()
	p := git.NewProvider()

	t.Run("outside a repository", func(t *testing.T) {
		rev, err := p.Revision(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, rev)
	})

	t.Run("repository without commits", func(t *testing.T) {
		rev, err := p.Revision(ctx, newRepo(t).dir)
		require.NoError(t, err)
		assert.Empty(t, rev)
	})

	t.Run("head commit", func(t *testing.T) {
		r := newRepo(t)
		r.write("reactor.yaml", "version: \"1\"\n")
		hash := r.commit("initial", "reactor.yaml")

		rev, err := p.Revision(ctx, r.dir)
		require.NoError(t, err)
		assert.Equal(t, hash, rev)
	})
}

func TestChanges_CommittedAndWorktree(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	r.write("core/a.txt", "one")
	r.write("web/b.txt", "one")
	r.write("docs/readme.md", "one")
	base := r.commit("initial", "core/a.txt", "web/b.txt", "docs/readme.md")

	r.write("core/a.txt", "two")
	r.commit("change core", "core/a.txt")
	r.write("docs/readme.md", "two")
	r.write("web/new.txt", "untracked")
	r.write(".reactor/state.json", "{}")

	changes, err := git.NewProvider().Changes(ctx, r.dir, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"core/a.txt", "docs/readme.md", "web/new.txt"}, changes)
}

func TestChanges_NothingChanged(t *testing.T) {
	r := newRepo(t)
	r.write("a.txt", "one")
	base := r.commit("initial", "a.txt")

	changes, err := git.NewProvider().Changes(context.Background(), r.dir, base)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestChanges_ProjectInSubdirectory(t *testing.T) {
	r := newRepo(t)
	r.write("project/core/a.txt", "one")
	r.write("other/x.txt", "one")
	base := r.commit("initial", "project/core/a.txt", "other/x.txt")

	r.write("project/core/a.txt", "two")
	r.write("other/x.txt", "two")

	changes, err := git.NewProvider().Changes(context.Background(), filepath.Join(r.dir, "project"), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"core/a.txt"}, changes)
}

func TestChanges_NoBaseline(t *testing.T) {
	ctx := context.Background()
	p := git.NewProvider()
	r := newRepo(t)
	r.write("a.txt", "one")
	r.commit("initial", "a.txt")

	t.Run("empty revision", func(t *testing.T) {
		_, err := p.Changes(ctx, r.dir, "")
		assert.ErrorIs(t, err, domain.ErrNoBaseline)
	})

	t.Run("unknown revision", func(t *testing.T) {
		_, err := p.Changes(ctx, r.dir, "0123456789012345678901234567890123456789")
		assert.ErrorIs(t, err, domain.ErrNoBaseline)
	})

	t.Run("outside a repository", func(t *testing.T) {
		_, err := p.Changes(ctx, t.TempDir(), "0123456789012345678901234567890123456789")
		assert.ErrorIs(t, err, domain.ErrNoBaseline)
	})
}
