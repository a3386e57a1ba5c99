package github

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/google/go-github/v81/github"

	"github.com/bull/pdf-rag/internal/loader"
)

// Fetcher lists and reads corpus files below a repository directory.
// It serves as a loader.Source; paths are relative to basePath.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
}

var _ loader.Source = (*Fetcher)(nil)

// NewFetcher creates a fetcher for owner/repo at basePath. An empty ref
// reads the default branch.
func NewFetcher(client *Client, owner, repo, basePath, ref string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		ref:      ref,
	}
}

func (f *Fetcher) Location() string {
	return fmt.Sprintf("github.com/%s/%s/%s", f.owner, f.repo, f.basePath)
}

func (f *Fetcher) options() *github.RepositoryContentGetOptions {
	if f.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}

// List recursively lists files whose extension is in exts.
func (f *Fetcher) List(ctx context.Context, exts []string) ([]string, error) {
	files, err := f.listRecursive(ctx, f.basePath, "", exts)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string, exts []string) ([]string, error) {
	var files []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if loader.MatchesExtension(*item.Name, exts) {
				files = append(files, itemRelPath)
			}

		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath, exts)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// Read fetches one file. Files too large for the contents API (over 1 MB)
// are downloaded through their raw URL.
func (f *Fetcher) Read(ctx context.Context, relativePath string) ([]byte, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	if fileContent.GetEncoding() == "none" || (fileContent.Content == nil && fileContent.GetSize() > 0) {
		return f.download(ctx, fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}
	return []byte(content), nil
}

func (f *Fetcher) download(ctx context.Context, fullPath string) ([]byte, error) {
	rc, _, err := f.client.Repositories.DownloadContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	return data, nil
}

// LatestCommitSHA returns the most recent commit touching basePath.
func (f *Fetcher) LatestCommitSHA(ctx context.Context) (string, error) {
	opts := &github.CommitsListOptions{
		Path:        f.basePath,
		SHA:         f.ref,
		ListOptions: github.ListOptions{PerPage: 1},
	}
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.owner, f.repo, opts)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
