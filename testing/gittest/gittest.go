// Package gittest provides helpers for building git repository fixtures in
// tests.
package gittest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type RepoFile struct {
	Path    string
	Content string
}

// InitRepo initializes a git repository at path with the given files
// committed as an initial commit, and returns the repository and the commit
// hash.
func InitRepo(path string, files []RepoFile) (*git.Repository, string, error) {
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize git repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := AddRepoFiles(worktree, files); err != nil {
		return nil, "", fmt.Errorf("failed to add files to git repository: %w", err)
	}

	hash, err := worktree.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "John Doe",
			Email: "john@doe.org",
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to commit changes: %w", err)
	}

	return repo, hash.String(), nil
}

func AddRepoFiles(repoWorktree *git.Worktree, files []RepoFile) error {
	repoDir := repoWorktree.Filesystem.Root()

	for _, file := range files {
		filePath := filepath.Join(repoDir, file.Path)
		if err := os.WriteFile(filePath, []byte(file.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", file.Path, err)
		}
		if _, err := repoWorktree.Add(file.Path); err != nil {
			return fmt.Errorf("failed to add file %s to git: %w", file.Path, err)
		}
	}

	return nil
}
