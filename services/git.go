package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
)

// RevisionInfo identifies the source revision a run deploys.
type RevisionInfo struct {
	CommitHash string
	Branch     string
}

// ResolveRevision reads the checked-out revision at root, walking up to
// find the repository. Outside a work tree it falls back to the
// CI-provided environment variables; missing information stays empty
// rather than failing the run.
func ResolveRevision(root string, env EnvProvider) RevisionInfo {
	info := RevisionInfo{
		CommitHash: env.Getenv("GITHUB_SHA"),
		Branch:     env.Getenv("GITHUB_REF_NAME"),
	}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		slog.Debug("No git repository detected", "dir", root, "error", err)
		return info
	}

	head, err := repo.Head()
	if err != nil {
		slog.Debug("Failed to read git HEAD", "dir", root, "error", err)
		return info
	}

	info.CommitHash = head.Hash().String()
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	return info
}

// CommitInfo describes the commit a revision points at.
type CommitInfo struct {
	Hash    string
	Message string
	Author  string
	Date    time.Time
}

// GetCommitInfo returns commit details for the repository at root.
func GetCommitInfo(root string) (*CommitInfo, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		Hash:    commit.Hash.String(),
		Message: commit.Message,
		Author:  commit.Author.Name,
		Date:    commit.Author.When,
	}, nil
}
