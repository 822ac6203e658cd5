package ports

import "context"

// ChangeSetProvider reports which files changed since a previous revision.
//
//go:generate mockgen -source=changes.go -destination=mocks/mock_changes.go -package=mocks
type ChangeSetProvider interface {
	// Changes returns root-relative, slash-separated paths changed since the given
	// revision, including uncommitted changes. It returns domain.ErrNoBaseline when
	// since is empty or unknown.
	Changes(ctx context.Context, root, since string) ([]string, error)
	// Revision returns the current revision of the working copy.
	Revision(ctx context.Context, root string) (string, error)
}
