package gitctx

import (
	"bufio"
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
)

// RepoContext captures a minimal view of the repository holding a path.
type RepoContext struct {
	Root   string `json:"root"`
	Branch string `json:"branch,omitempty"`
	GitSHA string `json:"git_sha,omitempty"`
}

// ShortSHA returns the abbreviated head commit, or "" before the first commit.
func (c *RepoContext) ShortSHA() string {
	if len(c.GitSHA) > 8 {
		return c.GitSHA[:8]
	}
	return c.GitSHA
}

// Detect describes the repository containing target. Returns nil if target is
// not inside a repository or git is unavailable.
func Detect(target string) (*RepoContext, error) {
	// Prefer go-git for repo info
	if ctx := detectGoGit(target); ctx != nil {
		return ctx, nil
	}

	// CLI fallback covers layouts go-git cannot open (e.g. worktrees with odd gitdirs)
	if _, err := exec.LookPath("git"); err != nil {
		return nil, nil
	}
	if !isRepoCLI(target) {
		return nil, nil
	}
	ctx := &RepoContext{
		Root:   runGit(target, "rev-parse", "--show-toplevel"),
		Branch: runGit(target, "rev-parse", "--abbrev-ref", "HEAD"),
		GitSHA: runGit(target, "rev-parse", "--verify", "-q", "HEAD"),
	}
	if ctx.Root == "" {
		ctx.Root = target
	}
	return ctx, nil
}

// Refresh re-reads branch and head commit, e.g. after a commit was made.
func (c *RepoContext) Refresh() {
	if fresh, err := Detect(c.Root); err == nil && fresh != nil {
		*c = *fresh
	}
}

func detectGoGit(target string) *RepoContext {
	repo, err := git.PlainOpenWithOptions(target, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil
	}

	ctx := &RepoContext{Root: wt.Filesystem.Root()}

	// HEAD is symbolic even before the first commit, so the branch is known early.
	if ref, err := repo.Reference(plumbing.HEAD, false); err == nil {
		if ref.Type() == plumbing.SymbolicReference {
			ctx.Branch = ref.Target().Short()
		} else {
			ctx.Branch = "HEAD"
		}
	}
	if head, err := repo.Head(); err == nil {
		ctx.GitSHA = head.Hash().String()
	}
	return ctx
}

// Tracked returns the subset of paths (slash-separated, relative to the
// repository root) that are present in the index.
func Tracked(root string, paths ...string) map[string]bool {
	out := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return out
	}

	if repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		if idx, err := repo.Storer.Index(); err == nil {
			for _, p := range paths {
				if _, err := idx.Entry(p); err == nil {
					out[p] = true
				} else if err != index.ErrEntryNotFound {
					return trackedCLI(root, paths)
				}
			}
			return out
		}
	}
	return trackedCLI(root, paths)
}

func trackedCLI(root string, paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	args := append([]string{"ls-files", "-z", "--"}, paths...)
	for _, p := range strings.Split(string(runGitBytes(root, args...)), "\x00") {
		if p != "" {
			out[filepath.ToSlash(p)] = true
		}
	}
	return out
}

// ParsePorcelain parses `git status --porcelain` output into path -> XY status.
// Renames are keyed by their new path.
func ParsePorcelain(data []byte) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		status := line[:2]
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		path = strings.Trim(path, `"`)
		out[filepath.ToSlash(path)] = status
	}
	return out
}

func isRepoCLI(target string) bool {
	out := runGit(target, "rev-parse", "--is-inside-work-tree")
	return strings.TrimSpace(out) == "true"
}

func runGit(dir string, args ...string) string {
	b := runGitBytes(dir, args...)
	return strings.TrimSpace(string(b))
}

func runGitBytes(dir string, args ...string) []byte {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, _ := cmd.Output()
	return out
}
