package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

const (
	// EnvUsername names the variable holding the push username
	EnvUsername = "REWRITE_SYNC_GIT_USERNAME"

	// EnvToken names the variable holding the push password or token
	EnvToken = "REWRITE_SYNC_GIT_TOKEN"

	// DefaultRemote is the remote pushed to when none is configured
	DefaultRemote = "origin"
)

// ErrNothingToCommit is returned by CommitAll when the working tree has no changes
var ErrNothingToCommit = errors.New("nothing to commit, working tree clean")

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client defines the version control operations used for publishing
type Client interface {
	// CommitAll stages every change in the working tree, including
	// deletions, and commits it
	CommitAll(ctx context.Context, message string) error

	// Push pushes the current branch to the configured remote. A remote that
	// is already up to date is not an error.
	Push(ctx context.Context) error
}

// AuthConfig contains HTTP basic authentication for pushing
type AuthConfig struct {
	Username string
	Password string
}

// AuthFromEnv reads push credentials from the environment. It returns nil
// when no username is set.
func AuthFromEnv() *AuthConfig {
	username := os.Getenv(EnvUsername)
	if username == "" {
		return nil
	}
	return &AuthConfig{
		Username: username,
		Password: os.Getenv(EnvToken),
	}
}

// Option configures the default client
type Option func(*defaultGitClient)

// WithAuthor sets the commit author
func WithAuthor(name, email string) Option {
	return func(c *defaultGitClient) {
		c.authorName = name
		c.authorEmail = email
	}
}

// WithRemote sets the remote pushed to
func WithRemote(remote string) Option {
	return func(c *defaultGitClient) {
		c.remote = remote
	}
}

// WithAuth sets credentials for push
func WithAuth(auth *AuthConfig) Option {
	return func(c *defaultGitClient) {
		c.auth = auth
	}
}

// WithClock sets the time source for commit signatures
func WithClock(now func() time.Time) Option {
	return func(c *defaultGitClient) {
		c.now = now
	}
}

// defaultGitClient implements Client using go-git on a local working copy
type defaultGitClient struct {
	repoPath    string
	remote      string
	authorName  string
	authorEmail string
	auth        *AuthConfig
	now         func() time.Time
}

// NewDefaultGitClient creates a client for the working copy at repoPath
func NewDefaultGitClient(repoPath string, opts ...Option) Client {
	c := &defaultGitClient{
		repoPath:    repoPath,
		remote:      DefaultRemote,
		authorName:  "rewrite-sync",
		authorEmail: "rewrite-sync@localhost",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *defaultGitClient) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(c.repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", c.repoPath, err)
	}
	return repo, nil
}

// CommitAll stages all changes and commits them
func (c *defaultGitClient) CommitAll(ctx context.Context, message string) error {
	repo, err := c.open()
	if err != nil {
		return err
	}

	workTree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := workTree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}

	status, err := workTree.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return ErrNothingToCommit
	}

	hash, err := workTree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.authorName,
			Email: c.authorEmail,
			When:  c.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	slog.InfoContext(ctx, "Committed changes", "commit", hash.String(), "message", message)
	return nil
}

// Push pushes the current branch to the remote
func (c *defaultGitClient) Push(ctx context.Context) error {
	repo, err := c.open()
	if err != nil {
		return err
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("HEAD is not on a branch: %s", head.Name())
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", head.Name(), head.Name()))
	pushOptions := &git.PushOptions{
		RemoteName: c.remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}

	var auth transport.AuthMethod
	if c.auth != nil && c.auth.Username != "" {
		auth = &githttp.BasicAuth{
			Username: c.auth.Username,
			Password: c.auth.Password,
		}
		slog.Debug("Using Git HTTP Basic authentication", "username", c.auth.Username)
	}
	pushOptions.Auth = auth

	err = repo.PushContext(ctx, pushOptions)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		slog.InfoContext(ctx, "Remote already up to date", "remote", c.remote, "branch", head.Name().Short())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to %s: %w", c.remote, err)
	}

	slog.InfoContext(ctx, "Pushed changes", "remote", c.remote, "branch", head.Name().Short())
	return nil
}
