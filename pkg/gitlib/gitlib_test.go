package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
)

// testRepo wraps a throwaway repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
	clock  time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		clock:  time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

func (tr *testRepo) deleteFile(name string) {
	tr.t.Helper()

	require.NoError(tr.t, os.Remove(filepath.Join(tr.path, name)))
}

// commit stages the working tree and commits it one hour after the previous commit.
func (tr *testRepo) commit(author, message string) string {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.UpdateAll([]string{"*"}, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	tr.clock = tr.clock.Add(time.Hour)
	sig := &git2go.Signature{Name: author, Email: author + "@example.com", When: tr.clock}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return oid.String()
}

func (tr *testRepo) tag(name, commitID string, annotated bool) {
	tr.t.Helper()

	oid, err := git2go.NewOid(commitID)
	require.NoError(tr.t, err)

	commit, err := tr.native.LookupCommit(oid)
	require.NoError(tr.t, err)

	defer commit.Free()

	if annotated {
		sig := &git2go.Signature{Name: "rel", Email: "rel@example.com", When: tr.clock}
		_, err = tr.native.Tags.Create(name, commit, sig, "release "+name)
	} else {
		_, err = tr.native.Tags.CreateLightweight(name, commit, false)
	}

	require.NoError(tr.t, err)
}

func (tr *testRepo) open() *gitlib.Repository {
	tr.t.Helper()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(tr.t, err)

	tr.t.Cleanup(repo.Free)

	return repo
}

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestRepositoryHead(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "class A {}\n")
	id := tr.commit("alice", "initial")

	head, err := tr.open().Head()
	require.NoError(t, err)
	assert.Equal(t, id, head.String())
}

func TestTagsPeelToCommits(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "class A {}\n")
	first := tr.commit("alice", "first")
	tr.createFile("B.java", "class B {}\n")
	second := tr.commit("bob", "second")

	tr.tag("release-1.0", first, false)
	tr.tag("release-2.0", second, true)

	tags, err := tr.open().Tags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)

	assert.Equal(t, "release-1.0", tags[0].Name)
	assert.Equal(t, first, tags[0].CommitID)
	assert.Equal(t, "release-2.0", tags[1].Name)
	assert.Equal(t, second, tags[1].CommitID)
	assert.True(t, tags[0].When.Before(tags[1].When))
}

func TestCommitsOldestFirst(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "a\n")
	first := tr.commit("alice", "first")
	tr.createFile("A.java", "a\nb\n")
	second := tr.commit("bob", "BUG-1 second")
	tr.createFile("A.java", "a\nb\nc\n")
	third := tr.commit("alice", "third")

	repo := tr.open()

	all, err := repo.Commits(context.Background(), "", third)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first, all[0].ID)
	assert.Empty(t, all[0].ParentID)
	assert.Equal(t, second, all[1].ID)
	assert.Equal(t, first, all[1].ParentID)
	assert.Equal(t, "bob", all[1].AuthorName)
	assert.Contains(t, all[1].Message, "BUG-1")

	ranged, err := repo.Commits(context.Background(), second, third)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, second, ranged[0].ID)
	assert.Equal(t, third, ranged[1].ID)
}

func TestCommitsCanceled(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "a\n")
	id := tr.commit("alice", "first")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.open().Commits(ctx, "", id)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFilesCountsLines(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("src/A.java", "a\nb\nc\n")
	tr.createFile("src/B.java", "a\nb")
	tr.createFile("README.md", "docs\n")
	id := tr.commit("alice", "first")

	files, err := tr.open().Files(context.Background(), id, func(path string) bool {
		return filepath.Ext(path) == ".java"
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []gitlib.File{
		{Path: "src/A.java", Lines: 3},
		{Path: "src/B.java", Lines: 2},
	}, files)
}

func TestFilesReusesUnchangedBlobs(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "a\n")
	tr.createFile("B.java", "b\nb\n")
	first := tr.commit("alice", "first")
	tr.createFile("B.java", "b\n")
	second := tr.commit("alice", "second")

	repo := tr.open()

	_, err := repo.Files(context.Background(), first, nil)
	require.NoError(t, err)

	files, err := repo.Files(context.Background(), second, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []gitlib.File{{Path: "A.java", Lines: 1}, {Path: "B.java", Lines: 1}}, files)

	stats := repo.LineCacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
	assert.Equal(t, 3, stats.Entries)
}

func TestDiffCommitsKinds(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "one\ntwo\nthree\n")
	tr.createFile("Old.java", "package x;\nclass Old {\n  int a;\n  int b;\n}\n")
	tr.createFile("Gone.java", "bye\n")
	first := tr.commit("alice", "first")

	tr.createFile("A.java", "one\n2\nthree\nfour\n")
	tr.deleteFile("Old.java")
	tr.createFile("New.java", "package x;\nclass Old {\n  int a;\n  int b;\n}\n")
	tr.deleteFile("Gone.java")
	tr.createFile("C.java", "c\nc\n")
	second := tr.commit("bob", "second")

	changes, err := tr.open().DiffCommits(context.Background(), first, second, nil)
	require.NoError(t, err)

	byPath := make(map[string]gitlib.Change, len(changes))
	for _, c := range changes {
		byPath[c.Path()] = c
	}

	require.Len(t, byPath, 4)

	modify := byPath["A.java"]
	assert.Equal(t, gitlib.Modify, modify.Kind)
	assert.Equal(t, 2, modify.LinesAdded())
	assert.Equal(t, 1, modify.LinesDeleted())

	rename := byPath["New.java"]
	assert.Equal(t, gitlib.Rename, rename.Kind)
	assert.Equal(t, "Old.java", rename.OldPath)

	assert.Equal(t, gitlib.Delete, byPath["Gone.java"].Kind)

	add := byPath["C.java"]
	assert.Equal(t, gitlib.Add, add.Kind)
	assert.Equal(t, 2, add.LinesAdded())
}

func TestDiffCommitsAgainstEmptyTree(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "a\nb\n")
	tr.createFile("notes.txt", "n\n")
	id := tr.commit("alice", "first")

	changes, err := tr.open().DiffCommits(context.Background(), "", id, func(path string) bool {
		return filepath.Ext(path) == ".java"
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)

	for _, c := range changes {
		assert.Equal(t, gitlib.Add, c.Kind)

		if c.Path() == "notes.txt" {
			assert.Empty(t, c.Edits)
		} else {
			assert.Equal(t, 2, c.LinesAdded())
		}
	}
}

func TestLineEdits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		before string
		after  string
		want   []gitlib.Edit
	}{
		{"identical", "a\nb\n", "a\nb\n", nil},
		{"append", "a\n", "a\nb\n", []gitlib.Edit{{OldStart: 1, NewStart: 1, NewLines: 1}}},
		{"replace", "a\nb\nc\n", "a\nx\nc\n", []gitlib.Edit{{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 1}}},
		{"delete all", "a\nb\n", "", []gitlib.Edit{{OldLines: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, gitlib.LineEdits(tt.before, tt.after))
		})
	}
}

func TestParseHash(t *testing.T) {
	t.Parallel()

	h, err := gitlib.ParseHash("")
	require.NoError(t, err)
	assert.True(t, h.IsZero())

	_, err = gitlib.ParseHash("xyz")
	require.ErrorIs(t, err, gitlib.ErrInvalidHash)

	const id = "0123456789abcdef0123456789abcdef01234567"

	h, err = gitlib.ParseHash(id)
	require.NoError(t, err)
	assert.Equal(t, id, h.String())
	assert.Equal(t, h, gitlib.HashFromOid(h.ToOid()))
}
