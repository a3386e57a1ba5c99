// Package github reads corpus files from a GitHub repository.
package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Client wraps the GitHub API client with rate limiting support
type Client struct {
	*github.Client
}

// ClientConfig holds optional authentication and endpoint overrides.
type ClientConfig struct {
	// Token raises the rate limit from 60 to 5000 requests per hour.
	Token string
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string
}

// NewClient creates a GitHub client with optional authentication and rate limiting.
// Primary and secondary rate limits are waited out automatically.
func NewClient(cfg ClientConfig) (*Client, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	ghClient := github.NewClient(rateLimiter)

	if cfg.Token != "" {
		ghClient = ghClient.WithAuthToken(cfg.Token)
	}

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		ghClient.BaseURL = u
	}

	return &Client{Client: ghClient}, nil
}

// ParseRepo splits "owner/repo".
func ParseRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q, want owner/repo", s)
	}
	return owner, repo, nil
}
