// Package publish writes the generated documents into the working copy and
// records them in version control.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/rewrite-sync/internal/atomicfile"
	"github.com/stacklok/rewrite-sync/internal/git"
	"github.com/stacklok/rewrite-sync/internal/merge"
	rsotel "github.com/stacklok/rewrite-sync/internal/otel"
)

// Stage identifies the publish step that failed
type Stage string

const (
	// StageWriteDocument covers writing the merged and summary documents
	StageWriteDocument Stage = "write-document"

	// StageCommit covers staging and committing
	StageCommit Stage = "commit"

	// StagePush covers pushing to the remote
	StagePush Stage = "push"
)

// DefaultCommitPrefix precedes the timestamp in commit messages
const DefaultCommitPrefix = "Update rewrite rules: "

// PublishError is returned when a publish step fails. Steps that already
// completed are not rolled back.
//
//nolint:revive // This name is fine
type PublishError struct {
	Stage Stage
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed at %s: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks -source=publish.go Publisher

// Publisher makes a generated document and its summary visible downstream
type Publisher interface {
	// Publish writes both documents, then commits and pushes them
	Publish(ctx context.Context, merged *merge.Document, summary []byte) error
}

// Option configures the git publisher
type Option func(*gitPublisher)

// WithCommit enables or disables the commit step
func WithCommit(enabled bool) Option {
	return func(p *gitPublisher) {
		p.commit = enabled
	}
}

// WithPush enables or disables the push step
func WithPush(enabled bool) Option {
	return func(p *gitPublisher) {
		p.push = enabled
	}
}

// WithCommitPrefix sets the text preceding the timestamp in commit messages
func WithCommitPrefix(prefix string) Option {
	return func(p *gitPublisher) {
		p.commitPrefix = prefix
	}
}

// WithTracer sets the tracer for publish spans
func WithTracer(t trace.Tracer) Option {
	return func(p *gitPublisher) {
		p.tracer = t
	}
}

// gitPublisher writes files in a working copy and records them with a git.Client
type gitPublisher struct {
	client       git.Client
	outputPath   string
	summaryPath  string
	commitPrefix string
	commit       bool
	push         bool
	tracer       trace.Tracer
}

// NewGitPublisher creates a publisher writing the merged document to
// outputPath and the summary to summaryPath
func NewGitPublisher(client git.Client, outputPath, summaryPath string, opts ...Option) Publisher {
	p := &gitPublisher{
		client:       client,
		outputPath:   outputPath,
		summaryPath:  summaryPath,
		commitPrefix: DefaultCommitPrefix,
		commit:       true,
		push:         true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes the documents, commits and pushes. A clean working tree
// after writing is not an error and the push still runs.
func (p *gitPublisher) Publish(ctx context.Context, merged *merge.Document, summary []byte) (err error) {
	ctx, span := rsotel.StartSpan(ctx, p.tracer, "publish.Publish")
	defer func() {
		var pubErr *PublishError
		if errors.As(err, &pubErr) {
			span.SetAttributes(rsotel.AttrPublishStage.String(string(pubErr.Stage)))
		}
		rsotel.RecordError(span, err)
		span.End()
	}()

	if merged == nil {
		return &PublishError{Stage: StageWriteDocument, Err: errors.New("merged document is required")}
	}

	if err := atomicfile.WriteFile(p.outputPath, merged.Content, 0644, atomicfile.WithCreateDir()); err != nil {
		return &PublishError{Stage: StageWriteDocument, Err: err}
	}
	if err := atomicfile.WriteFile(p.summaryPath, summary, 0644, atomicfile.WithCreateDir()); err != nil {
		return &PublishError{Stage: StageWriteDocument, Err: err}
	}
	slog.InfoContext(ctx, "Wrote documents",
		"output", p.outputPath,
		"output_bytes", len(merged.Content),
		"summary", p.summaryPath,
	)

	if !p.commit {
		slog.InfoContext(ctx, "Commit disabled, skipping commit and push")
		return nil
	}

	message := p.commitPrefix + merged.GeneratedAt.Format(merge.TimestampLayout)
	if err := p.client.CommitAll(ctx, message); err != nil {
		if !errors.Is(err, git.ErrNothingToCommit) {
			return &PublishError{Stage: StageCommit, Err: err}
		}
		slog.InfoContext(ctx, "No changes to commit")
	}

	if !p.push {
		slog.InfoContext(ctx, "Push disabled, skipping push")
		return nil
	}

	if err := p.client.Push(ctx); err != nil {
		return &PublishError{Stage: StagePush, Err: err}
	}
	return nil
}
