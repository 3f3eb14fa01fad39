// Package httpclient submits executions to a running exec-service.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codeexec/internal/execution/sandbox"
	"codeexec/internal/execution/sandbox/result"
	appErr "codeexec/pkg/errors"
)

// ResponseInfo carries response details.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Client wraps HTTP requests for CLI.
type Client struct {
	baseURL string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo
	client := &http.Client{Timeout: c.timeout}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", c.baseURL, path), reader)
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read response body failed: %w", err)
	}
	info.Body = bodyBytes
	return info, nil
}

type executeBody struct {
	Language      string `json:"language"`
	SourceCode    string `json:"sourceCode"`
	Stdin         string `json:"stdin"`
	TimeLimitMs   int64  `json:"timeLimitMs,omitempty"`
	MemoryLimitKB int64  `json:"memoryLimitKB,omitempty"`
}

type envelope struct {
	Code    appErr.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Data    result.ExecutionResult `json:"data"`
}

// Execute posts one submission and decodes the result envelope.
// Service-side errors come back as coded errors.
func (c *Client) Execute(ctx context.Context, req sandbox.ExecutionRequest) (result.ExecutionResult, error) {
	body, err := json.Marshal(executeBody{
		Language:      req.Language,
		SourceCode:    req.SourceCode,
		Stdin:         req.Stdin,
		TimeLimitMs:   req.Limits.TimeLimitMs,
		MemoryLimitKB: req.Limits.MemoryLimitKB,
	})
	if err != nil {
		return result.ExecutionResult{}, fmt.Errorf("encode request failed: %w", err)
	}
	resp, err := c.Do(ctx, http.MethodPost, "/api/v1/executions", nil, body)
	if err != nil {
		return result.ExecutionResult{}, err
	}
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return result.ExecutionResult{}, fmt.Errorf("decode response failed (HTTP %d): %w", resp.StatusCode, err)
	}
	if env.Code != appErr.Success {
		return result.ExecutionResult{}, appErr.New(env.Code).WithMessage(env.Message)
	}
	return env.Data, nil
}
