package gitlib

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/defectlab/pkg/alg/lru"
)

const (
	tagRefPrefix = "refs/tags/"
	// lineCacheSize bounds the blob line counts kept between Files calls.
	lineCacheSize = 1 << 16
)

// Repository wraps a libgit2 repository. It is not safe for concurrent use.
type Repository struct {
	repo  *git2go.Repository
	path  string
	lines *lru.Cache[string, int]
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path, lines: lru.New[string, int](lineCacheSize)}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// LineCacheStats reports how often Files reused a blob line count.
func (r *Repository) LineCacheStats() lru.Stats {
	return r.lines.Stats()
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points to.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// Tag is a tag resolved to the commit it points to.
type Tag struct {
	Name     string
	CommitID string
	When     time.Time
}

// Tags lists all tags peeled to their commits, ordered by commit time.
// Tags that do not resolve to a commit are ignored.
func (r *Repository) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag

	err := r.repo.Tags.Foreach(func(name string, id *git2go.Oid) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		commit, peelErr := r.peelCommit(id)
		if peelErr != nil {
			return nil //nolint:nilerr // non-commit tags are not releases.
		}
		defer commit.Free()

		tags = append(tags, Tag{
			Name:     strings.TrimPrefix(name, tagRefPrefix),
			CommitID: commit.Id().String(),
			When:     commit.Committer().When,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	sort.SliceStable(tags, func(i, j int) bool { return tags[i].When.Before(tags[j].When) })

	return tags, nil
}

func (r *Repository) peelCommit(id *git2go.Oid) (*git2go.Commit, error) {
	obj, err := r.repo.Lookup(id)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return nil, fmt.Errorf("peel %s: %w", id, err)
	}
	defer peeled.Free()

	commit, err := peeled.AsCommit()
	if err != nil {
		return nil, fmt.Errorf("as commit %s: %w", id, err)
	}

	return commit, nil
}

func (r *Repository) lookupCommit(id string) (*git2go.Commit, error) {
	hash, err := ParseHash(id)
	if err != nil {
		return nil, err
	}

	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", id, err)
	}

	return commit, nil
}
