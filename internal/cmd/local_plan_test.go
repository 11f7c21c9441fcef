package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, wt *git.Worktree, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.org", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestFileAtRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	first := commitFile(t, wt, dir, "config.jsonnet", "{ a: 1 }")
	commitFile(t, wt, dir, "config.jsonnet", "{ a: 2 }")

	content, err := fileAtRevision(filepath.Join(dir, "config.jsonnet"), "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "{ a: 2 }", content)

	content, err = fileAtRevision(filepath.Join(dir, "config.jsonnet"), first)
	require.NoError(t, err)
	assert.Equal(t, "{ a: 1 }", content)
}

func TestFileAtRevision_SubdirectoryPath(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "orgs"), 0755))
	commitFile(t, wt, dir, filepath.Join("orgs", "test-org.jsonnet"), "{ github_id: 'test-org' }")

	content, err := fileAtRevision(filepath.Join(dir, "orgs", "test-org.jsonnet"), "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "{ github_id: 'test-org' }", content)
}

func TestFileAtRevision_UnknownRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commitFile(t, wt, dir, "config.jsonnet", "{}")

	_, err = fileAtRevision(filepath.Join(dir, "config.jsonnet"), "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve revision 'does-not-exist'")
}

func TestFileAtRevision_FileMissingAtRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	first := commitFile(t, wt, dir, "other.jsonnet", "{}")
	commitFile(t, wt, dir, "config.jsonnet", "{ a: 1 }")

	_, err = fileAtRevision(filepath.Join(dir, "config.jsonnet"), first)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist at revision")
}

func TestFileAtRevision_OutsideRepository(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonnet")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	_, err := fileAtRevision(path, "HEAD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not inside a git repository")
}
