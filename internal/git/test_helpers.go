package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepoConfig contains configuration for creating a test repository
type TestRepoConfig struct {
	Files  map[string]string // Map of filename to content
	Author *object.Signature // Author for commits (uses default if nil)
}

// CreateTestRepo creates a Git working copy under t.TempDir with one commit
// holding the specified files, and returns its path
func CreateTestRepo(t *testing.T, config TestRepoConfig) string {
	t.Helper()

	repoDir := t.TempDir()

	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}

	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	author := config.Author
	if author == nil {
		author = &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
		}
	}

	if len(config.Files) == 0 {
		config.Files = map[string]string{".gitkeep": ""}
	}

	for filename, content := range config.Files {
		filePath := filepath.Join(repoDir, filename)

		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", filename, err)
		}

		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", filename, err)
		}

		if _, err := workTree.Add(filename); err != nil {
			t.Fatalf("Failed to add file %s: %v", filename, err)
		}
	}

	if _, err := workTree.Commit("Initial commit", &git.CommitOptions{Author: author}); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	return repoDir
}

// AddBareRemote creates a bare repository under t.TempDir and registers it
// as remote name of the repository at repoDir. Returns the bare repository path.
func AddBareRemote(t *testing.T, repoDir, name string) string {
	t.Helper()

	bareDir := t.TempDir()
	if _, err := git.PlainInit(bareDir, true); err != nil {
		t.Fatalf("Failed to init bare repository: %v", err)
	}

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: name,
		URLs: []string{bareDir},
	}); err != nil {
		t.Fatalf("Failed to create remote: %v", err)
	}

	return bareDir
}

// HeadCommit returns the commit HEAD points to in the repository at dir
func HeadCommit(t *testing.T, dir string) *object.Commit {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("Failed to get HEAD: %v", err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("Failed to get commit: %v", err)
	}

	return commit
}

// BranchHash returns the hash of branch in the repository at dir, or the
// zero hash when the branch does not exist
func BranchHash(t *testing.T, dir, branch string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return plumbing.ZeroHash
	}
	return ref.Hash()
}

// CurrentBranch returns the short name of the branch HEAD points to
func CurrentBranch(t *testing.T, dir string) string {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("Failed to get HEAD: %v", err)
	}
	return ref.Name().Short()
}
