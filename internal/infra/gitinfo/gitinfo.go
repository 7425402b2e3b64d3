// Package gitinfo captures version-control context via go-git.
package gitinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// Client implements domain.VCSInfo for a repository checkout.
type Client struct {
	repo     *git.Repository
	repoRoot string
}

// Open opens the repository at root. Returns ErrToolMissing when the
// directory is not a git checkout; callers degrade to weaker behavior with
// a logged warning instead of failing.
func Open(root string) (*Client, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", root, domain.ErrToolMissing)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Client{repo: repo, repoRoot: root}, nil
}

// Context returns the current branch name and the short commit id of HEAD.
func (c *Client) Context() (branch, shortCommit string, err error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", "", fmt.Errorf("resolve HEAD: %w", err)
	}
	branch = head.Name().Short()
	hash := head.Hash().String()
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return branch, hash, nil
}

// DirtyPaths returns worktree paths with uncommitted modifications,
// relative to the repository root, sorted.
func (c *Client) DirtyPaths() ([]string, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	var paths []string
	for path, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// ChangedLines counts the lines that differ from HEAD across the given
// paths. Files absent on either side (newly added, deleted, or an empty
// repository without a HEAD commit) diff against empty content.
func (c *Client) ChangedLines(paths []string) (int, error) {
	var headTree *object.Tree
	head, err := c.repo.Head()
	if err == nil {
		commit, err := c.repo.CommitObject(head.Hash())
		if err != nil {
			return 0, fmt.Errorf("resolve HEAD commit: %w", err)
		}
		headTree, err = commit.Tree()
		if err != nil {
			return 0, fmt.Errorf("resolve HEAD tree: %w", err)
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return 0, fmt.Errorf("resolve HEAD: %w", err)
	}

	dmp := diffmatchpatch.New()
	total := 0
	for _, rel := range paths {
		committed := ""
		if headTree != nil {
			file, err := headTree.File(rel)
			if err == nil {
				committed, err = file.Contents()
				if err != nil {
					return 0, fmt.Errorf("read %s from HEAD: %w", rel, err)
				}
			} else if !errors.Is(err, object.ErrFileNotFound) {
				return 0, fmt.Errorf("lookup %s in HEAD: %w", rel, err)
			}
		}

		current := ""
		content, err := os.ReadFile(filepath.Join(c.repoRoot, rel))
		if err == nil {
			current = string(content)
		} else if !os.IsNotExist(err) {
			return 0, fmt.Errorf("read %s: %w", rel, err)
		}

		if committed == current {
			continue
		}
		a, b, lines := dmp.DiffLinesToChars(committed, current)
		diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
		for _, d := range diffs {
			if d.Type != diffmatchpatch.DiffEqual {
				total += countLines(d.Text)
			}
		}
	}
	return total, nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

var _ domain.VCSInfo = (*Client)(nil)

// EnsureExcluded appends the state directory to .git/info/exclude so task
// namespaces never enter commit history. Idempotent.
func EnsureExcluded(repoRoot string) error {
	excludePath := filepath.Join(repoRoot, ".git", "info", "exclude")
	entry := domain.StateDirName + "/"

	content, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read exclude file: %w", err)
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(excludePath), 0o750); err != nil {
		return fmt.Errorf("create info dir: %w", err)
	}
	f, err := os.OpenFile(excludePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open exclude file: %w", err)
	}
	defer f.Close()
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return fmt.Errorf("append exclude entry: %w", err)
		}
	}
	if _, err := f.WriteString(entry + "\n"); err != nil {
		return fmt.Errorf("append exclude entry: %w", err)
	}
	return nil
}
