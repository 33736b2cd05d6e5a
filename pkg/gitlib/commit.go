package gitlib

import (
	"context"
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// CommitInfo is the metadata of one commit.
type CommitInfo struct {
	ID          string
	ParentID    string
	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string
}

func newCommitInfo(c *git2go.Commit) CommitInfo {
	info := CommitInfo{
		ID:      c.Id().String(),
		When:    c.Committer().When,
		Message: c.Message(),
	}

	if author := c.Author(); author != nil {
		info.AuthorName = author.Name
		info.AuthorEmail = author.Email
	}

	if c.ParentCount() > 0 {
		info.ParentID = c.ParentId(0).String()
	}

	return info
}

// Commits returns the commits reachable from to and not from from, plus from
// itself, oldest first. An empty from walks the whole history behind to.
func (r *Repository) Commits(ctx context.Context, from, to string) ([]CommitInfo, error) {
	toHash, err := ParseHash(to)
	if err != nil {
		return nil, err
	}

	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	// Topological order keeps parents ahead of children when clocks disagree.
	walk.Sorting(git2go.SortTopological | git2go.SortTime | git2go.SortReverse)

	err = walk.Push(toHash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("push %s to revwalk: %w", to, err)
	}

	var commits []CommitInfo

	if from != "" {
		fromCommit, lookupErr := r.lookupCommit(from)
		if lookupErr != nil {
			return nil, lookupErr
		}

		commits = append(commits, newCommitInfo(fromCommit))
		fromOid := *fromCommit.Id()
		fromCommit.Free()

		err = walk.Hide(&fromOid)
		if err != nil {
			return nil, fmt.Errorf("hide %s from revwalk: %w", from, err)
		}
	}

	var walkErr error

	err = walk.Iterate(func(c *git2go.Commit) bool {
		defer c.Free()

		if ctxErr := ctx.Err(); ctxErr != nil {
			walkErr = ctxErr

			return false
		}

		commits = append(commits, newCommitInfo(c))

		return true
	})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}

	if walkErr != nil {
		return nil, walkErr
	}

	return commits, nil
}
