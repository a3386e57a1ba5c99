// Package provision pulls the Ollama models the pipelines depend on.
package provision

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrOllamaUnreachable is returned when /api/tags never answers.
var ErrOllamaUnreachable = errors.New("ollama unreachable")

// Client talks to the Ollama native API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	// maxWait bounds how long ListModels waits for Ollama to come up.
	maxWait time.Duration
}

// NewClient creates a Client for the Ollama server at baseURL.
// A nil httpClient selects http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
		maxWait: 30 * time.Second,
	}
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type pullProgress struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// ListModels returns the names of locally available models, retrying while
// the server starts.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = c.maxWait

	var tags tagsResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("Ollama not ready", "error", err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("list models: status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&tags)
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOllamaUnreachable, err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// Pull downloads model, calling progress with each status line.
func (c *Client) Pull(ctx context.Context, model string, progress func(status string)) error {
	body, err := json.Marshal(map[string]string{"name": model})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pull %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var p pullProgress
		if err := json.Unmarshal(line, &p); err != nil {
			continue
		}
		if p.Error != "" {
			return fmt.Errorf("pull %s: %s", model, p.Error)
		}
		if p.Status != "" && progress != nil {
			progress(p.Status)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	return nil
}

// Ensure pulls every wanted model that is not available yet and returns the
// names it pulled.
func (c *Client) Ensure(ctx context.Context, wanted []string, progress func(model, status string)) ([]string, error) {
	existing, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Ollama models", "existing", existing, "wanted", wanted)

	missing := Missing(wanted, existing)
	for _, model := range missing {
		c.logger.Info("Pulling model", "model", model)
		err := c.Pull(ctx, model, func(status string) {
			if progress != nil {
				progress(model, status)
			}
		})
		if err != nil {
			return nil, err
		}
		c.logger.Info("Model ready", "model", model)
	}
	return missing, nil
}

// Missing returns the wanted models absent from existing. Tags are ignored,
// so "mistral" matches "mistral:latest".
func Missing(wanted, existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[baseName(name)] = true
	}
	var out []string
	for _, name := range wanted {
		if !have[baseName(name)] {
			out = append(out, name)
		}
	}
	return out
}

func baseName(model string) string {
	name, _, _ := strings.Cut(model, ":")
	return name
}
