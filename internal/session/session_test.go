package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/session"
)

func newRepoFixture(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	sessionsDir := filepath.Join(t.TempDir(), "sessions")
	require.NoError(t, os.MkdirAll(sessionsDir, 0o755))

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.adoc"), []byte("hello"), 0o644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(".")
	require.NoError(t, err)
	_, err = w.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@localhost"},
	})
	require.NoError(t, err)

	return root, sessionsDir
}

func TestStartCommitSession(t *testing.T) {
	root, sessionsDir := newRepoFixture(t)
	m := session.NewManager(root, sessionsDir)

	s, err := m.StartSession("bat_1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, s.Status)
	assert.DirExists(t, s.WorktreePath)

	require.NoError(t, os.WriteFile(filepath.Join(s.WorktreePath, "index.adoc"), []byte("edited"), 0o644))
	require.NoError(t, m.CommitSession(s.ID, "edit card content"))

	repo, err := git.PlainOpen(root)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "edit card content", commit.Message)
}

func TestDiscardSessionRemovesWorktree(t *testing.T) {
	root, sessionsDir := newRepoFixture(t)
	m := session.NewManager(root, sessionsDir)

	s, err := m.StartSession("bat_1")
	require.NoError(t, err)

	require.NoError(t, m.DiscardSession(s.ID))
	assert.NoDirExists(t, s.WorktreePath)

	_, err = m.Find(s.ID)
	require.Error(t, err)
}
