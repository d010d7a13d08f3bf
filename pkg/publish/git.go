package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fulmenhq/picshelf/internal/gitctx"
	"github.com/fulmenhq/picshelf/pkg/logger"
)

// ErrGitOperationFailed is wrapped by every failed git invocation.
var ErrGitOperationFailed = errors.New("git operation failed")

// CommandError describes a failed git invocation with its captured stderr.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() []error { return []error{ErrGitOperationFailed, e.Err} }

// Runner executes git with args in dir and returns stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	logger.Trace("Running git", logger.Strings("args", args), logger.String("dir", dir))
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Git is the version-control collaborator used by the Publisher.
type Git interface {
	// Repository returns nil when the working directory is not inside a repository.
	Repository(ctx context.Context) (*gitctx.RepoContext, error)
	Add(ctx context.Context, paths ...string) error
	// Commit records only the given paths, leaving anything else staged untouched.
	Commit(ctx context.Context, message string, paths ...string) error
	Push(ctx context.Context) error
	// Status returns porcelain status entries restricted to paths.
	Status(ctx context.Context, paths ...string) (map[string]string, error)
}

// CLI implements Git by shelling out to the git binary in Dir.
type CLI struct {
	Dir    string
	Runner Runner
}

// NewCLI returns a git collaborator rooted at dir.
func NewCLI(dir string) *CLI {
	return &CLI{Dir: dir, Runner: ExecRunner{}}
}

// Repository implements Git.
func (g *CLI) Repository(_ context.Context) (*gitctx.RepoContext, error) {
	return gitctx.Detect(g.Dir)
}

// Add implements Git. Paths are passed after "--" so names never parse as flags.
func (g *CLI) Add(ctx context.Context, paths ...string) error {
	_, err := g.Runner.Run(ctx, g.Dir, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit implements Git.
func (g *CLI) Commit(ctx context.Context, message string, paths ...string) error {
	args := []string{"commit", "-m", message}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	_, err := g.Runner.Run(ctx, g.Dir, args...)
	return err
}

// Push implements Git.
func (g *CLI) Push(ctx context.Context) error {
	_, err := g.Runner.Run(ctx, g.Dir, "push")
	return err
}

// Status implements Git.
func (g *CLI) Status(ctx context.Context, paths ...string) (map[string]string, error) {
	out, err := g.Runner.Run(ctx, g.Dir, append([]string{"status", "--porcelain", "--"}, paths...)...)
	if err != nil {
		return nil, err
	}
	return gitctx.ParsePorcelain([]byte(out)), nil
}
