package codebase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/go-github/v45/github"
	"golang.org/x/oauth2"

	"github.com/prdforge/prdforge/internal/errs"
)

// ErrTransient marks a repository-host error as retryable (network failure,
// 5xx, rate-limit). Authentication failures, invalid URLs, and missing
// branches are never wrapped with it, so the indexing job treats them as
// fatal per §4.2.
var ErrTransient = errors.New("transient repository host error")

// IsTransient reports whether err should be retried with backoff rather than
// failing the indexing job outright.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// TreeEntry is one entry from a repository tree listing (§4.2), before
// filtering down to the blob-only FileNodes the Merkle tree is built over.
type TreeEntry struct {
	Path string
	Mode string
	Type string // "blob" or "tree"
	SHA  string
	Size int64
}

// RepositoryHost is the §6 Repository Host port: fetch a branch's tree,
// detected languages, and file contents. The GitHub Trees API is the only
// concrete adapter in this build; any other git host implements the same
// four operations.
type RepositoryHost interface {
	ResolveBranchSHA(ctx context.Context, owner, repo, branch, token string) (string, error)
	FetchTree(ctx context.Context, owner, repo, sha, token string) ([]TreeEntry, error)
	FetchLanguages(ctx context.Context, owner, repo, token string) (map[string]int64, error)
	BatchFetchContents(ctx context.Context, owner, repo string, paths []string, ref, token string) (map[string]string, error)
}

var repoURLPattern = regexp.MustCompile(`^(?:https://github\.com/|git@github\.com:)([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)

// ParseRepositoryURL parses the two §4.2 accepted forms,
// https://github.com/<owner>/<repo>[.git] and git@github.com:<owner>/<repo>.git,
// into (owner, repo). Any other form fails validation.
func ParseRepositoryURL(repositoryURL string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(repositoryURL))
	if m == nil {
		return "", "", errs.New(errs.Validation, "repository URL must be https://github.com/<owner>/<repo> or git@github.com:<owner>/<repo>.git")
	}
	return m[1], m[2], nil
}

// GitHubHost implements RepositoryHost against the real GitHub API via
// google/go-github.
type GitHubHost struct{}

// NewGitHubHost constructs a GitHubHost.
func NewGitHubHost() *GitHubHost { return &GitHubHost{} }

func (h *GitHubHost) client(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// ResolveBranchSHA resolves the latest commit SHA for branch.
func (h *GitHubHost) ResolveBranchSHA(ctx context.Context, owner, repo, branch, token string) (string, error) {
	cl := h.client(ctx, token)
	b, resp, err := cl.Repositories.GetBranch(ctx, owner, repo, branch, true)
	if err != nil {
		return "", mapGitHubError(resp, err, fmt.Sprintf("resolve branch %q", branch))
	}
	return b.GetCommit().GetSHA(), nil
}

// FetchTree fetches the full recursive tree at sha.
func (h *GitHubHost) FetchTree(ctx context.Context, owner, repo, sha, token string) ([]TreeEntry, error) {
	cl := h.client(ctx, token)
	tree, resp, err := cl.Git.GetTree(ctx, owner, repo, sha, true)
	if err != nil {
		return nil, mapGitHubError(resp, err, "fetch tree")
	}
	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, TreeEntry{
			Path: e.GetPath(),
			Mode: e.GetMode(),
			Type: e.GetType(),
			SHA:  e.GetSHA(),
			Size: int64(e.GetSize()),
		})
	}
	return entries, nil
}

// FetchLanguages reports byte counts per detected language.
func (h *GitHubHost) FetchLanguages(ctx context.Context, owner, repo, token string) (map[string]int64, error) {
	cl := h.client(ctx, token)
	langs, resp, err := cl.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, mapGitHubError(resp, err, "fetch languages")
	}
	out := make(map[string]int64, len(langs))
	for k, v := range langs {
		out[k] = int64(v)
	}
	return out, nil
}

// BatchFetchContents fetches the content of each path concurrently. A
// per-file failure is returned alongside whatever succeeded so the caller can
// log and skip it without aborting the whole batch, per §4.2.
func (h *GitHubHost) BatchFetchContents(ctx context.Context, owner, repo string, paths []string, ref, token string) (map[string]string, error) {
	cl := h.client(ctx, token)
	out := make(map[string]string, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			fileContent, _, resp, err := cl.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = mapGitHubError(resp, err, fmt.Sprintf("fetch content %s", path))
				}
				mu.Unlock()
				return
			}
			if fileContent == nil {
				return
			}
			content, err := fileContent.GetContent()
			if err != nil {
				return
			}
			mu.Lock()
			out[path] = content
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return out, firstErr
}

func mapGitHubError(resp *github.Response, err error, context string) error {
	if err == nil {
		return nil
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %w: %v", context, ErrTransient, err)
	}
	if resp != nil {
		switch {
		case resp.StatusCode == 401 || resp.StatusCode == 403:
			return errs.Wrap(errs.Unauthorized, context+": authentication failed", err)
		case resp.StatusCode == 404:
			return errs.Wrap(errs.Validation, context+": repository or branch not found", err)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%s: %w: %v", context, ErrTransient, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", context, ErrTransient, err)
}
