package jsonnet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// TemplateRef locates a base template, either as a plain local file or in
// the form '<repository-url>#<file>@<ref>' pointing into a git repository.
type TemplateRef struct {
	RepoURL string
	Path    string
	Ref     string
}

// ParseTemplateRef parses a template reference. References without a '#'
// separator are local file paths.
func ParseTemplateRef(s string) (*TemplateRef, error) {
	if s == "" {
		return nil, fmt.Errorf("empty template reference")
	}

	repoURL, rest, found := strings.Cut(s, "#")
	if !found {
		return &TemplateRef{Path: s}, nil
	}

	path, ref, found := strings.Cut(rest, "@")
	if !found {
		ref = "main"
	}
	if path == "" {
		return nil, fmt.Errorf("template reference '%s' misses the file part", s)
	}

	return &TemplateRef{RepoURL: repoURL, Path: path, Ref: ref}, nil
}

// IsLocal reports whether the reference points to a local file.
func (t *TemplateRef) IsLocal() bool {
	return t.RepoURL == ""
}

// checkoutDir derives a stable directory name for the template checkout.
func (t *TemplateRef) checkoutDir() string {
	name := strings.TrimSuffix(filepath.Base(t.RepoURL), ".git")
	return name + "@" + t.Ref
}

// TemplateSync keeps local checkouts of template repositories up to date.
type TemplateSync struct {
	baseDir string
	token   string
}

// NewTemplateSync creates a sync rooted at baseDir. The token is used for
// private template repositories and may be empty.
func NewTemplateSync(baseDir, token string) *TemplateSync {
	return &TemplateSync{baseDir: baseDir, token: token}
}

// Sync ensures the template is available locally and returns the path of the
// template file. Local references are returned as-is, repository references
// are cloned on first use and pulled afterwards. The ref must be a branch.
func (s *TemplateSync) Sync(ctx context.Context, ref *TemplateRef) (string, error) {
	if ref.IsLocal() {
		if _, err := os.Stat(ref.Path); err != nil {
			return "", fmt.Errorf("template file '%s' not found: %w", ref.Path, err)
		}
		return ref.Path, nil
	}

	repoPath := filepath.Join(s.baseDir, ref.checkoutDir())

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		if err := s.updateExisting(ctx, repoPath, ref); err != nil {
			return "", err
		}
	} else {
		if err := s.clone(ctx, repoPath, ref); err != nil {
			return "", err
		}
	}

	templatePath := filepath.Join(repoPath, filepath.FromSlash(ref.Path))
	if _, err := os.Stat(templatePath); err != nil {
		return "", fmt.Errorf("template file '%s' not found in '%s': %w", ref.Path, ref.RepoURL, err)
	}
	return templatePath, nil
}

func (s *TemplateSync) clone(ctx context.Context, repoPath string, ref *TemplateRef) error {
	if err := os.MkdirAll(filepath.Dir(repoPath), 0755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	cloneOptions := &git.CloneOptions{
		URL:           ref.RepoURL,
		ReferenceName: plumbing.ReferenceName("refs/heads/" + ref.Ref),
		SingleBranch:  true,
		Depth:         1,
		Auth:          s.auth(),
	}

	if _, err := git.PlainCloneContext(ctx, repoPath, false, cloneOptions); err != nil {
		return fmt.Errorf("failed to clone template repository %s: %w", ref.RepoURL, err)
	}
	return nil
}

func (s *TemplateSync) updateExisting(ctx context.Context, repoPath string, ref *TemplateRef) error {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open template checkout: %w", err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOptions := &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.ReferenceName("refs/heads/" + ref.Ref),
		SingleBranch:  true,
		Force:         true,
		Auth:          s.auth(),
	}

	if err := worktree.PullContext(ctx, pullOptions); err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to update template repository %s: %w", ref.RepoURL, err)
	}
	return nil
}

func (s *TemplateSync) auth() *http.BasicAuth {
	if s.token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "token", Password: s.token}
}
