// Package gitops versions file-backed projects with the git binary.
package gitops

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Author identifies who commits.
type Author struct {
	Name  string
	Email string
}

// Init initializes a new git repository at dir.
func Init(ctx context.Context, dir string) error {
	if out, err := git(ctx, dir, nil, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %s: %w", out, err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// HasChanges reports whether the work tree differs from HEAD, counting
// untracked files.
func HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := git(ctx, dir, nil, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %s: %w", out, err)
	}
	return out != "", nil
}

// CommitAll stages all files and creates a commit. Returns the short commit
// hash. Both author and committer are set to a, so no global git identity
// is needed.
func CommitAll(ctx context.Context, dir, message string, a Author) (string, error) {
	env := []string{
		"GIT_AUTHOR_NAME=" + a.Name,
		"GIT_AUTHOR_EMAIL=" + a.Email,
		"GIT_COMMITTER_NAME=" + a.Name,
		"GIT_COMMITTER_EMAIL=" + a.Email,
	}

	if out, err := git(ctx, dir, nil, "add", "-A"); err != nil {
		return "", fmt.Errorf("git add: %s: %w", out, err)
	}
	if out, err := git(ctx, dir, env, "commit", "--quiet", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}

	out, err := git(ctx, dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %s: %w", out, err)
	}
	return out, nil
}

// CommitIfChanged commits when the tree is dirty. It returns "" when there
// was nothing to commit.
func CommitIfChanged(ctx context.Context, dir, message string, a Author) (string, error) {
	dirty, err := HasChanges(ctx, dir)
	if err != nil || !dirty {
		return "", err
	}
	return CommitAll(ctx, dir, message, a)
}

// git runs a git subcommand in dir and returns its trimmed combined output.
func git(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
