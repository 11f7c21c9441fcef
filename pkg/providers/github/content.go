package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"
)

// GetContent returns the content of a file in a repository at the given ref.
// An empty ref reads from the default branch.
func (c *Client) GetContent(ctx context.Context, org, repo, path, ref string) (string, error) {
	var fileContent *github.RepositoryContent

	err := WithRetry(ctx, func() error {
		opts := &github.RepositoryContentGetOptions{Ref: ref}
		var err error
		fileContent, _, _, err = c.client.Repositories.GetContents(ctx, org, repo, path, opts)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("content %s in %s/%s", path, org, repo))
		}
		return nil
	}, c.retry)
	if err != nil {
		return "", err
	}

	if fileContent == nil {
		return "", NewGitHubError(ErrorTypeValidation,
			fmt.Sprintf("path %s in %s/%s is a directory", path, org, repo))
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode content of %s in %s/%s: %w", path, org, repo, err)
	}
	return content, nil
}

// UpdateContent creates or updates a file in a repository. The file is left
// untouched and false is returned when the content is already up to date.
// An empty branch commits to the default branch.
func (c *Client) UpdateContent(ctx context.Context, org, repo, path, branch, message string, content []byte) (bool, error) {
	resource := fmt.Sprintf("content %s in %s/%s", path, org, repo)

	var existing *github.RepositoryContent
	err := WithRetry(ctx, func() error {
		opts := &github.RepositoryContentGetOptions{Ref: branch}
		var err error
		existing, _, _, err = c.client.Repositories.GetContents(ctx, org, repo, path, opts)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil && !isNotFound(err) {
		return false, err
	}

	options := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	}
	if branch != "" {
		options.Branch = github.String(branch)
	}

	if existing != nil {
		current, decodeErr := existing.GetContent()
		if decodeErr == nil && current == string(content) {
			return false, nil
		}
		options.SHA = existing.SHA
	}

	err = WithRetry(ctx, func() error {
		var err error
		if existing != nil {
			_, _, err = c.client.Repositories.UpdateFile(ctx, org, repo, path, options)
		} else {
			_, _, err = c.client.Repositories.CreateFile(ctx, org, repo, path, options)
		}
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteRef deletes a git reference, e.g. 'heads/feature-x'. Returns false
// without error when the reference does not exist or cannot be deleted.
func (c *Client) DeleteRef(ctx context.Context, org, repo, ref string) (bool, error) {
	err := WithRetry(ctx, func() error {
		_, err := c.client.Git.DeleteRef(ctx, org, repo, ref)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("ref %s in %s/%s", ref, org, repo))
		}
		return nil
	}, c.retry)
	if err != nil {
		var ghErr *GitHubError
		if errors.As(err, &ghErr) {
			switch ghErr.Type {
			case ErrorTypeNotFound, ErrorTypeConflict, ErrorTypeValidation:
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

// GetBranchSHA returns the commit SHA a branch currently points at.
func (c *Client) GetBranchSHA(ctx context.Context, org, repo, branch string) (string, error) {
	var ref *github.Reference

	err := WithRetry(ctx, func() error {
		var err error
		ref, _, err = c.client.Git.GetRef(ctx, org, repo, "heads/"+branch)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("branch %s in %s/%s", branch, org, repo))
		}
		return nil
	}, c.retry)
	if err != nil {
		return "", err
	}
	return ref.GetObject().GetSHA(), nil
}

// CreateBranch creates a branch pointing at the given commit SHA.
func (c *Client) CreateBranch(ctx context.Context, org, repo, branch, sha string) error {
	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(sha)},
	}

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Git.CreateRef(ctx, org, repo, ref)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("branch %s in %s/%s", branch, org, repo))
		}
		return nil
	}, c.retry)
}

// ListPullRequestFiles returns the file paths changed by a pull request
func (c *Client) ListPullRequestFiles(ctx context.Context, org, repo string, number int) ([]string, error) {
	var files []string

	err := WithRetry(ctx, func() error {
		files = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			page, resp, err := c.client.PullRequests.ListFiles(ctx, org, repo, number, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("pull request %s/%s#%d", org, repo, number))
			}
			for _, file := range page {
				files = append(files, file.GetFilename())
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return files, err
}

// ListOpenPullRequests returns the open pull requests targeting the given
// base branch.
func (c *Client) ListOpenPullRequests(ctx context.Context, org, repo, base string) ([]*github.PullRequest, error) {
	var pulls []*github.PullRequest

	err := WithRetry(ctx, func() error {
		pulls = nil
		opts := &github.PullRequestListOptions{
			State:       "open",
			Base:        base,
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			page, resp, err := c.client.PullRequests.List(ctx, org, repo, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("pull requests in %s/%s", org, repo))
			}
			pulls = append(pulls, page...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return pulls, err
}

// CreatePullRequest opens a pull request merging head into base.
func (c *Client) CreatePullRequest(ctx context.Context, org, repo, title, head, base, body string) (*github.PullRequest, error) {
	var pr *github.PullRequest

	err := WithRetry(ctx, func() error {
		var err error
		pr, _, err = c.client.PullRequests.Create(ctx, org, repo, &github.NewPullRequest{
			Title: github.String(title),
			Head:  github.String(head),
			Base:  github.String(base),
			Body:  github.String(body),
		})
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("pull request in %s/%s", org, repo))
		}
		return nil
	}, c.retry)

	return pr, err
}

// UpsertIssueComment creates or updates a comment on an issue or pull
// request. An existing comment containing the marker is updated in place,
// otherwise a new comment is created.
func (c *Client) UpsertIssueComment(ctx context.Context, org, repo string, number int, marker, body string) error {
	resource := fmt.Sprintf("comment on %s/%s#%d", org, repo, number)

	var existingID int64
	err := WithRetry(ctx, func() error {
		existingID = 0
		opts := &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			comments, resp, err := c.client.Issues.ListComments(ctx, org, repo, number, opts)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			for _, comment := range comments {
				if marker != "" && strings.Contains(comment.GetBody(), marker) {
					existingID = comment.GetID()
				}
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)
	if err != nil {
		return err
	}

	comment := &github.IssueComment{Body: github.String(body)}
	return WithRetry(ctx, func() error {
		var err error
		if existingID != 0 {
			_, _, err = c.client.Issues.EditComment(ctx, org, repo, existingID, comment)
		} else {
			_, _, err = c.client.Issues.CreateComment(ctx, org, repo, number, comment)
		}
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
}

// CreateCommitStatus sets a commit status, state is one of pending, success,
// error or failure
func (c *Client) CreateCommitStatus(ctx context.Context, org, repo, sha, state, statusContext, description string) error {
	status := &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(statusContext),
		Description: github.String(description),
	}

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Repositories.CreateStatus(ctx, org, repo, sha, status)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("status for %s/%s@%s", org, repo, sha))
		}
		return nil
	}, c.retry)
}
