// Package session implements §4.J: git-worktree-backed edit sessions for
// long-running card edits that must not block the main project. go-git has
// no linked-worktree API (unlike the `git worktree` porcelain command), so a
// session is implemented the way the teacher clones a repository — a fresh
// local clone checked out onto its own branch (cmd/up/project/init.go's
// git.Clone(memory.NewStorage(), fs, cloneOptions) pattern) — which gives
// the same isolation the spec asks for: independent content, independent
// branch, promotable back onto the source repository.
package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	_ "github.com/go-git/go-git/v5/plumbing/transport/file" // registers the file:// transport used to clone a local repository
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/uuid"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCommitted Status = "committed"
	StatusDiscarded Status = "discarded"
)

// Session is one isolated edit session: its own clone, on its own branch,
// rooted at a private worktree path.
type Session struct {
	ID           string
	CardKey      string
	WorktreePath string
	Status       Status

	branch string
	repo   *git.Repository
}

// Manager tracks active sessions for one project repository.
type Manager struct {
	repoRoot    string
	sessionsDir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a Manager rooted at the project's git repository,
// storing session worktrees under sessionsDir.
func NewManager(repoRoot, sessionsDir string) *Manager {
	return &Manager{repoRoot: repoRoot, sessionsDir: sessionsDir, sessions: map[string]*Session{}}
}

// StartSession allocates a short id, clones the project repository onto a
// new branch rooted at current HEAD, and returns the session handle.
func (m *Manager) StartSession(cardKey string) (*Session, error) {
	id := uuid.New().String()[:8]
	branch := "session/" + id
	worktreePath := filepath.Join(m.sessionsDir, id)

	source, err := git.PlainOpen(m.repoRoot)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot open project repository")
	}
	head, err := source.Head()
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot resolve HEAD")
	}

	fs := osfs.New(worktreePath, osfs.WithBoundOS())
	repo, err := git.Clone(memory.NewStorage(), fs, &git.CloneOptions{
		URL:           "file://" + m.repoRoot,
		ReferenceName: head.Name(),
		SingleBranch:  true,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create session worktree")
	}

	w, err := repo.Worktree()
	if err != nil {
		return nil, errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot open session worktree")
	}
	if err := w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	}); err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot create session branch")
	}

	s := &Session{ID: id, CardKey: cardKey, WorktreePath: worktreePath, Status: StatusActive, branch: branch, repo: repo}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Find looks up an active session by id.
func (m *Manager) Find(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "edit session "+id+" not found")
	}
	return s, nil
}

// CommitSession commits all changes in the session's worktree, and
// fast-forwards the source repository's current branch to the new commit.
// This only succeeds as a fast-forward; a non-fast-forward promotion (the
// source branch moved on while the session was open) is surfaced as a
// Conflict rather than attempted as a three-way merge.
func (m *Manager) CommitSession(id, message string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "edit session "+id+" not found")
	}
	if s.Status != StatusActive {
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "edit session "+id+" is not active")
	}

	w, err := s.repo.Worktree()
	if err != nil {
		return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot open session worktree")
	}
	if _, err := w.Add("."); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot stage session changes")
	}
	commit, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "cyberismo", Email: "cyberismo@localhost"},
	})
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot commit session changes")
	}

	source, err := git.PlainOpen(m.repoRoot)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot open project repository")
	}
	head, err := source.Head()
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot resolve HEAD")
	}
	if head.Hash() != s.baseCommit() {
		return errkind.New(errkind.Conflict, errkind.CodeResourceInUse, "project advanced since session "+id+" started; fast-forward promotion not possible")
	}
	objects, err := s.repo.Storer.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read session objects")
	}
	if err := objects.ForEach(func(o plumbing.EncodedObject) error {
		if source.Storer.HasEncodedObject(o.Hash()) == nil {
			return nil
		}
		_, err := source.Storer.SetEncodedObject(o)
		return err
	}); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot copy session commit into project repository")
	}
	ref := plumbing.NewHashReference(head.Name(), commit)
	if err := source.Storer.SetReference(ref); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot fast-forward project branch")
	}

	s.Status = StatusCommitted
	return nil
}

func (s *Session) baseCommit() plumbing.Hash {
	ref, err := s.repo.Head()
	if err != nil {
		return plumbing.ZeroHash
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil || len(commit.ParentHashes) == 0 {
		return ref.Hash()
	}
	return commit.ParentHashes[0]
}

// DiscardSession removes the session's worktree and drops its tracking
// entry without touching the source repository.
func (m *Manager) DiscardSession(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "edit session "+id+" not found")
	}
	if err := os.RemoveAll(s.WorktreePath); err != nil {
		return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot remove session worktree")
	}
	s.Status = StatusDiscarded
	return nil
}
