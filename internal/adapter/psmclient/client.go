// Package psmclient provides an HTTP client for the /psm prompt file API,
// implementing the file store port against a remote server.
package psmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/PromptStruct/internal/domain"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
	"github.com/Strob0t/PromptStruct/internal/resilience"
)

// Ensure Client implements filestore.Store at compile time.
var _ filestore.Store = (*Client)(nil)

// Client talks to the /psm API of a PromptStruct server or of the web UI
// extension that serves the same routes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new /psm client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// IsCallerError reports errors that a healthy server answers with. A
// breaker should not count them as failures.
func IsCallerError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation)
}

// statusResponse is the {"status": ...} envelope of mutating endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type filePair struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type savePromptsRequest struct {
	File     string             `json:"file"`
	Positive []*prompttree.Node `json:"positive"`
	Negative []*prompttree.Node `json:"negative"`
}

type setConfigRequest struct {
	SaveDir string `json:"save_dir"`
	DevMode bool   `json:"dev_mode"`
}

// ListFiles returns the prompt file names on the server.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/psm/list-files", nil)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	var result struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	if result.Files == nil {
		result.Files = []string{}
	}
	return result.Files, nil
}

// GetPrompts loads both trees of file.
func (c *Client) GetPrompts(ctx context.Context, file string) (prompttree.Forest, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/psm/get-prompts?file="+url.QueryEscape(file), nil)
	if err != nil {
		return prompttree.Forest{}, fmt.Errorf("get prompts: %w", err)
	}
	var f prompttree.Forest
	if err := json.Unmarshal(resp, &f); err != nil {
		return prompttree.Forest{}, fmt.Errorf("unmarshal prompts: %w", err)
	}
	if f.Positive == nil {
		f.Positive = []*prompttree.Node{}
	}
	if f.Negative == nil {
		f.Negative = []*prompttree.Node{}
	}
	return f, nil
}

// SavePrompts replaces the contents of file on the server.
func (c *Client) SavePrompts(ctx context.Context, file string, prompts prompttree.Forest) error {
	return c.mutate(ctx, "save prompts", http.MethodPost, "/psm/save-prompts", savePromptsRequest{
		File:     file,
		Positive: prompts.Positive,
		Negative: prompts.Negative,
	})
}

func (c *Client) DuplicateFile(ctx context.Context, src, dst string) error {
	return c.mutate(ctx, "duplicate file", http.MethodPost, "/psm/duplicate-file", filePair{Src: src, Dst: dst})
}

func (c *Client) RenameFile(ctx context.Context, src, dst string) error {
	return c.mutate(ctx, "rename file", http.MethodPost, "/psm/rename-file", filePair{Src: src, Dst: dst})
}

// DeleteFile deletes file. The server answers a missing file with
// status "error", which maps to domain.ErrNotFound.
func (c *Client) DeleteFile(ctx context.Context, file string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/psm/delete-file?file="+url.QueryEscape(file), nil)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	var st statusResponse
	if err := json.Unmarshal(resp, &st); err == nil && st.Status == "error" {
		return fmt.Errorf("delete file %s: %w", file, domain.ErrNotFound)
	}
	return nil
}

// GetConfig returns the server's configuration.
func (c *Client) GetConfig(ctx context.Context) (filestore.Config, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/psm/get-config", nil)
	if err != nil {
		return filestore.Config{}, fmt.Errorf("get config: %w", err)
	}
	var cfg filestore.Config
	if err := json.Unmarshal(resp, &cfg); err != nil {
		return filestore.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Client) SetConfig(ctx context.Context, saveDir string, devMode bool) error {
	return c.mutate(ctx, "set config", http.MethodPost, "/psm/set-config", setConfigRequest{SaveDir: saveDir, DevMode: devMode})
}

// CheckPath reports whether path is an existing directory on the server.
func (c *Client) CheckPath(ctx context.Context, path string) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/psm/check-path?path="+url.QueryEscape(path), nil)
	if err != nil {
		return false, fmt.Errorf("check path: %w", err)
	}
	var result struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return false, fmt.Errorf("unmarshal check path: %w", err)
	}
	return result.Exists, nil
}

// mutate sends body and checks the {"status": ...} envelope of the answer.
func (c *Client) mutate(ctx context.Context, op, method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}
	resp, err := c.doRequest(ctx, method, path, data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var st statusResponse
	if err := json.Unmarshal(resp, &st); err == nil && st.Status == "error" {
		return fmt.Errorf("%s: server error: %s", op, st.Message)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if id := logger.RequestID(ctx); id != "" {
			req.Header.Set("X-Request-ID", id)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("psm API %s: %w", path, domain.ErrNotFound)
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
			return fmt.Errorf("psm API %s: %s: %w", path, bytes.TrimSpace(data), domain.ErrValidation)
		case resp.StatusCode >= 400:
			return fmt.Errorf("psm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
