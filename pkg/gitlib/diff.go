package gitlib

import (
	"context"
	"fmt"
	"unicode/utf8"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeKind classifies a file change between two commits.
type ChangeKind int

const (
	// Add indicates a new file.
	Add ChangeKind = iota
	// Modify indicates changed content under the same path.
	Modify
	// Delete indicates a removed file.
	Delete
	// Rename indicates a file moved to a new path, possibly with edits.
	Rename
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "add"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Edit is one region of replaced lines, zero-based, in the style of a unified diff hunk.
type Edit struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// Change is one file-level difference between two commits.
type Change struct {
	Kind    ChangeKind
	OldPath string
	NewPath string
	// Edits is filled only for paths selected by the diff's line filter.
	Edits []Edit
}

// Path returns the path the change is attributed to: the old path for
// deletions, the new path otherwise.
func (c Change) Path() string {
	if c.Kind == Delete {
		return c.OldPath
	}

	return c.NewPath
}

// LinesAdded returns the number of inserted lines.
func (c Change) LinesAdded() int {
	total := 0

	for _, e := range c.Edits {
		total += e.NewLines
	}

	return total
}

// LinesDeleted returns the number of removed lines.
func (c Change) LinesDeleted() int {
	total := 0

	for _, e := range c.Edits {
		total += e.OldLines
	}

	return total
}

// DiffCommits computes the changes from oldID to newID with rename detection.
// An empty oldID diffs against the empty tree. Line edits are computed for the
// paths accepted by lines.
func (r *Repository) DiffCommits(ctx context.Context, oldID, newID string, lines PathFilter) ([]Change, error) {
	newTree, err := r.commitTree(newID)
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	var oldTree *git2go.Tree

	if oldID != "" {
		oldTree, err = r.commitTree(oldID)
		if err != nil {
			return nil, err
		}
		defer oldTree.Free()

		if oldTree.Id().Equal(newTree.Id()) {
			return nil, nil
		}
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	defer func() { _ = diff.Free() }()

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return nil, fmt.Errorf("get find options: %w", err)
	}

	findOpts.Flags = git2go.DiffFindRenames

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		return nil, fmt.Errorf("find renames: %w", err)
	}

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make([]Change, 0, numDeltas)

	for i := range numDeltas {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		change, ok := changeFromDelta(delta)
		if !ok {
			continue
		}

		if lines.accept(change.Path()) && delta.Flags&git2go.DiffFlagBinary == 0 {
			change.Edits, err = r.lineEdits(delta.OldFile.Oid, delta.NewFile.Oid)
			if err != nil {
				return nil, err
			}
		}

		changes = append(changes, change)
	}

	return changes, nil
}

func changeFromDelta(delta git2go.DiffDelta) (Change, bool) {
	change := Change{OldPath: delta.OldFile.Path, NewPath: delta.NewFile.Path}

	switch delta.Status {
	case git2go.DeltaAdded:
		change.Kind = Add
		change.OldPath = ""
	case git2go.DeltaDeleted:
		change.Kind = Delete
		change.NewPath = ""
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		change.Kind = Modify
	case git2go.DeltaRenamed:
		change.Kind = Rename
	case git2go.DeltaCopied:
		change.Kind = Add
		change.OldPath = ""
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return Change{}, false
	default:
		return Change{}, false
	}

	return change, true
}

func (r *Repository) commitTree(id string) (*git2go.Tree, error) {
	commit, err := r.lookupCommit(id)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree of %s: %w", id, err)
	}

	return tree, nil
}

func (r *Repository) lineEdits(oldID, newID *git2go.Oid) ([]Edit, error) {
	oldData, err := r.blobContents(oldID)
	if err != nil {
		return nil, err
	}

	newData, err := r.blobContents(newID)
	if err != nil {
		return nil, err
	}

	return LineEdits(string(oldData), string(newData)), nil
}

// LineEdits computes the line-level edit list turning before into after.
func LineEdits(before, after string) []Edit {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	src, dst, _ := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCleanupMerge(dmp.DiffCleanupSemanticLossless(diffs))

	var (
		edits          []Edit
		cur            *Edit
		oldPos, newPos int
	)

	flush := func() {
		if cur != nil {
			edits = append(edits, *cur)
			cur = nil
		}
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			oldPos += n
			newPos += n
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &Edit{OldStart: oldPos, NewStart: newPos}
			}

			cur.OldLines += n
			oldPos += n
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &Edit{OldStart: oldPos, NewStart: newPos}
			}

			cur.NewLines += n
			newPos += n
		}
	}

	flush()

	return edits
}
