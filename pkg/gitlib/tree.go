package gitlib

import (
	"bytes"
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// File is one blob of a commit tree with its line count.
type File struct {
	Path  string
	Lines int
}

// PathFilter selects the paths an operation looks into. Nil accepts every path.
type PathFilter func(path string) bool

func (f PathFilter) accept(path string) bool {
	return f == nil || f(path)
}

// Files lists the blobs of the commit tree accepted by filter.
func (r *Repository) Files(ctx context.Context, commitID string, filter PathFilter) ([]File, error) {
	commit, err := r.lookupCommit(commitID)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}
	defer tree.Free()

	var files []File

	err = r.walkTree(ctx, tree, "", func(path string, entry *git2go.TreeEntry) error {
		if !filter.accept(path) {
			return nil
		}

		lines, blobErr := r.lines.GetOrLoad(entry.Id.String(), func() (int, error) {
			data, err := r.blobContents(entry.Id)

			return countLines(data), err
		})
		if blobErr != nil {
			return blobErr
		}

		files = append(files, File{Path: path, Lines: lines})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// walkTree recursively walks a tree and calls cb for each blob.
func (r *Repository) walkTree(
	ctx context.Context, tree *git2go.Tree, prefix string, cb func(path string, entry *git2go.TreeEntry) error,
) error {
	count := tree.EntryCount()

	for i := range count {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + path
		}

		switch entry.Type {
		case git2go.ObjectBlob:
			err := cb(path, entry)
			if err != nil {
				return err
			}
		case git2go.ObjectTree:
			subtree, err := r.repo.LookupTree(entry.Id)
			if err != nil {
				return fmt.Errorf("lookup tree %s: %w", path, err)
			}

			err = r.walkTree(ctx, subtree, path, cb)
			subtree.Free()

			if err != nil {
				return err
			}
		default:
			// Submodules and other entry types carry no source.
		}
	}

	return nil
}

func (r *Repository) blobContents(id *git2go.Oid) ([]byte, error) {
	if id == nil || id.IsZero() {
		return nil, nil
	}

	blob, err := r.repo.LookupBlob(id)
	if err != nil {
		return nil, fmt.Errorf("lookup blob %s: %w", id, err)
	}
	defer blob.Free()

	return bytes.Clone(blob.Contents()), nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	count := bytes.Count(data, []byte{'\n'})

	// A final line without newline still counts.
	if data[len(data)-1] != '\n' {
		count++
	}

	return count
}
