// Package publish stages, commits and pushes an added image as a best-effort
// pipeline. Failures are reported in the Result and never returned as errors:
// by the time publishing starts the asset and manifest are already in place.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/fulmenhq/picshelf/internal/gitctx"
	"github.com/fulmenhq/picshelf/pkg/ignore"
	"github.com/fulmenhq/picshelf/pkg/logger"
)

// DefaultMessageTemplate renders the commit message when none is supplied.
const DefaultMessageTemplate = "Add image: {{{filename}}}"

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrIgnoredPath   = errors.New("path is ignored by git")
)

// Step names one stage of the pipeline.
type Step string

const (
	StepCheck  Step = "check"
	StepStage  Step = "stage"
	StepCommit Step = "commit"
	StepPush   Step = "push"
)

// StepError is the version-control error kind: which step failed and why.
type StepError struct {
	Step            Step
	NothingToCommit bool
	Err             error
}

func (e *StepError) Error() string {
	if e.NothingToCommit {
		return "nothing to commit"
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Outcome summarizes how far the pipeline got.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeStageFailed
	OutcomeCommitFailed
	OutcomeNothingToCommit
	OutcomePushFailed
	OutcomeCommitted
	OutcomePublished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeStageFailed:
		return "stage-failed"
	case OutcomeCommitFailed:
		return "commit-failed"
	case OutcomeNothingToCommit:
		return "nothing-to-commit"
	case OutcomePushFailed:
		return "push-failed"
	case OutcomeCommitted:
		return "committed"
	case OutcomePublished:
		return "published"
	default:
		return "unknown"
	}
}

// Request describes one publish.
type Request struct {
	// Filename is the image reference, used by the default commit message.
	Filename string
	// Paths are the files to stage, relative to the publisher root.
	Paths []string
	// Message overrides the rendered commit message when non-empty.
	Message string
}

// Result reports the pipeline outcome.
type Result struct {
	Outcome Outcome
	Message string
	Repo    *gitctx.RepoContext
	Err     error
}

// OK reports whether the change was committed (and pushed when enabled).
func (r Result) OK() bool {
	return r.Outcome == OutcomePublished || r.Outcome == OutcomeCommitted
}

// Options configures a Publisher.
type Options struct {
	// Root is the directory request paths are relative to.
	Root            string
	Push            bool
	MessageTemplate string
	// Progress receives one line per step; nil discards.
	Progress io.Writer
}

// Publisher runs stage, commit and push against a Git collaborator.
type Publisher struct {
	git  Git
	opts Options
	tmpl *raymond.Template
}

// New parses the message template and returns a Publisher.
func New(git Git, opts Options) (*Publisher, error) {
	if opts.MessageTemplate == "" {
		opts.MessageTemplate = DefaultMessageTemplate
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	tmpl, err := raymond.Parse(opts.MessageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse commit message template: %w", err)
	}
	return &Publisher{git: git, opts: opts, tmpl: tmpl}, nil
}

// CommitMessage returns supplied when set, else the rendered template.
func (p *Publisher) CommitMessage(filename, supplied string) (string, error) {
	if strings.TrimSpace(supplied) != "" {
		return supplied, nil
	}
	out, err := p.tmpl.Exec(map[string]interface{}{"filename": filename})
	if err != nil {
		return "", fmt.Errorf("render commit message: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("commit message template rendered an empty message")
	}
	return out, nil
}

func (p *Publisher) progress(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.opts.Progress, format+"\n", args...)
}

// Publish stages req.Paths, commits them and pushes when enabled.
func (p *Publisher) Publish(ctx context.Context, req Request) Result {
	repo, err := p.git.Repository(ctx)
	if err != nil || repo == nil {
		if err == nil {
			err = ErrNotRepository
		}
		logger.Debug("Publish skipped", logger.Err(err))
		return Result{Outcome: OutcomeSkipped, Err: &StepError{Step: StepCheck, Err: err}}
	}

	msg, err := p.CommitMessage(req.Filename, req.Message)
	if err != nil {
		return Result{Outcome: OutcomeCommitFailed, Repo: repo, Err: &StepError{Step: StepCommit, Err: err}}
	}
	res := Result{Repo: repo, Message: msg}

	p.progress("📤 Publishing to git remote...")
	p.progress("  → Adding files to git...")
	if ignored := p.ignoredPaths(repo.Root, req.Paths); len(ignored) > 0 {
		res.Outcome = OutcomeStageFailed
		res.Err = &StepError{Step: StepStage, Err: fmt.Errorf("%w: %s", ErrIgnoredPath, strings.Join(ignored, ", "))}
		return res
	}
	if err := p.git.Add(ctx, req.Paths...); err != nil {
		res.Outcome = OutcomeStageFailed
		res.Err = &StepError{Step: StepStage, Err: err}
		return res
	}
	logger.Debug("Staged files", logger.Strings("paths", req.Paths))

	p.progress("  → Committing changes...")
	if err := p.git.Commit(ctx, msg, req.Paths...); err != nil {
		status, statusErr := p.git.Status(ctx, req.Paths...)
		if statusErr == nil && len(status) == 0 {
			res.Outcome = OutcomeNothingToCommit
			res.Err = &StepError{Step: StepCommit, NothingToCommit: true, Err: err}
			return res
		}
		res.Outcome = OutcomeCommitFailed
		res.Err = &StepError{Step: StepCommit, Err: err}
		return res
	}
	repo.Refresh()

	if !p.opts.Push {
		res.Outcome = OutcomeCommitted
		return res
	}

	p.progress("  → Pushing to remote...")
	if err := p.git.Push(ctx); err != nil {
		res.Outcome = OutcomePushFailed
		res.Err = &StepError{Step: StepPush, Err: err}
		return res
	}

	res.Outcome = OutcomePublished
	return res
}

// ignoredPaths returns the request paths git add would refuse: untracked
// paths matched by an ignore rule. Tracked files are staged regardless.
func (p *Publisher) ignoredPaths(repoRoot string, paths []string) []string {
	m, err := ignore.NewMatcher(repoRoot)
	if err != nil {
		return nil
	}

	byRel := make(map[string]string, len(paths))
	rels := make([]string, 0, len(paths))
	for _, path := range paths {
		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(p.opts.Root, path)
		}
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
		rel, err := filepath.Rel(repoRoot, abs)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		byRel[rel] = path
		rels = append(rels, rel)
	}

	candidates := m.Ignored(rels...)
	if len(candidates) == 0 {
		return nil
	}
	tracked := gitctx.Tracked(repoRoot, candidates...)

	var ignored []string
	for _, rel := range candidates {
		if tracked[rel] {
			logger.Debug("Ignored path is tracked, staging anyway", logger.String("path", rel))
			continue
		}
		ignored = append(ignored, byRel[rel])
	}
	return ignored
}
