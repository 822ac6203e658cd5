// Package git computes change sets from the git repository holding a project.
package git

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
)

// Provider implements ports.ChangeSetProvider with go-git.
type Provider struct{}

var _ ports.ChangeSetProvider = (*Provider)(nil)

// NewProvider creates a change-set provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Revision returns the commit HEAD points at. A project outside any
// repository, or a repository without commits, has an empty revision.
func (p *Provider) Revision(_ context.Context, root string) (string, error) {
	repo, _, err := open(root)
	if errors.Is(err, ggit.ErrRepositoryNotExists) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve HEAD")
	}
	return head.Hash().String(), nil
}

// Changes returns the project-relative paths that differ between since and
// HEAD, plus every staged, modified or untracked path of the worktree.
// Paths inside the reactor workspace are skipped.
func (p *Provider) Changes(ctx context.Context, root, since string) ([]string, error) {
	if since == "" {
		return nil, domain.ErrNoBaseline
	}
	repo, prefix, err := open(root)
	if errors.Is(err, ggit.ErrRepositoryNotExists) {
		return nil, errors.Join(domain.ErrNoBaseline, err)
	}
	if err != nil {
		return nil, err
	}

	base, err := repo.CommitObject(plumbing.NewHash(since))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrNoBaseline, err), "unknown baseline"), "revision", since)
	}

	changed := make(map[string]bool)
	head, err := repo.Head()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve HEAD")
	}
	if head.Hash() != base.Hash {
		if err := diffCommits(ctx, repo, base, head.Hash(), changed); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read worktree status")
	}
	for path, s := range status {
		if s.Worktree != ggit.Unmodified || s.Staging != ggit.Unmodified {
			changed[path] = true
		}
	}

	return relativize(changed, prefix), nil
}

func diffCommits(ctx context.Context, repo *ggit.Repository, base *object.Commit, head plumbing.Hash, changed map[string]bool) error {
	headCommit, err := repo.CommitObject(head)
	if err != nil {
		return zerr.Wrap(err, "failed to load HEAD commit")
	}
	from, err := base.Tree()
	if err != nil {
		return zerr.Wrap(err, "failed to load baseline tree")
	}
	to, err := headCommit.Tree()
	if err != nil {
		return zerr.Wrap(err, "failed to load HEAD tree")
	}
	diff, err := object.DiffTreeWithOptions(ctx, from, to, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to diff trees")
	}
	for _, c := range diff {
		if c.From.Name != "" {
			changed[c.From.Name] = true
		}
		if c.To.Name != "" {
			changed[c.To.Name] = true
		}
	}
	return nil
}

// open finds the repository containing root and returns the slash-separated
// path of root relative to the worktree.
func open(root string) (*ggit.Repository, string, error) {
	repo, err := ggit.PlainOpenWithOptions(root, &ggit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "failed to open repository"), "root", root)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", zerr.Wrap(err, "failed to open worktree")
	}

	top, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, "", zerr.Wrap(err, "failed to resolve worktree root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", zerr.Wrap(err, "failed to resolve project root")
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(top, abs)
	if err != nil {
		return nil, "", zerr.Wrap(err, "project root is outside the worktree")
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}
	return repo, rel, nil
}

func relativize(changed map[string]bool, prefix string) []string {
	result := make([]string, 0, len(changed))
	for path := range changed {
		if prefix != "" {
			rest, ok := strings.CutPrefix(path, prefix+"/")
			if !ok {
				continue
			}
			path = rest
		}
		if path == domain.ReactorDirName || strings.HasPrefix(path, domain.ReactorDirName+"/") {
			continue
		}
		result = append(result, path)
	}
	slices.Sort(result)
	return result
}
