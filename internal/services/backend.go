package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// maxBackendBody bounds how much of an upstream response is read.
const maxBackendBody = 4 << 20

// BackendClient talks to the assistant API. It forwards bodies and the
// caller's Authorization header unchanged and never interprets replies;
// mapping statuses to gateway responses is the handler's job.
//
// Every method returns the raw 2xx body, a *BackendError for any other
// status, or a *NetworkError when the backend could not be reached.
type BackendClient struct {
	httpClient *http.Client
	apiURL     string
	demoURL    string
	demoUserID string

	// HistoryRetry applies to history reads only. Chat posts are never
	// retried.
	HistoryRetry utils.RetryConfig
}

// NewBackendClient creates a client for the configured backend.
//
// Example:
//
//	backend := services.NewBackendClient(&cfg.Backend)
//	body, err := backend.History(ctx, r.Header.Get("Authorization"))
func NewBackendClient(cfg *config.BackendConfig) *BackendClient {
	retry := utils.ExternalAPIRetryConfig()
	retry.Retryable = IsNetworkError

	return &BackendClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		demoURL:      strings.TrimRight(cfg.DemoURL, "/"),
		demoUserID:   cfg.DemoUserID,
		HistoryRetry: retry,
	}
}

// APIURL returns the authenticated backend base URL.
func (c *BackendClient) APIURL() string {
	return c.apiURL
}

// DemoURL returns the anonymous demo backend base URL.
func (c *BackendClient) DemoURL() string {
	return c.demoURL
}

// Chat posts a chat message to {api}/chat/.
func (c *BackendClient) Chat(ctx context.Context, authorization string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, c.apiURL+"/chat/", authorization, body)
}

// History reads {api}/chat/history/, retrying transport failures with
// HistoryRetry.
func (c *BackendClient) History(ctx context.Context, authorization string) ([]byte, error) {
	return utils.RetryWithResult(ctx, c.HistoryRetry, func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, c.apiURL+"/chat/history/", authorization, nil)
	})
}

// Demo posts to the anonymous demo endpoint {demo}/ventas/chat. An empty
// userID falls back to the configured demo user.
func (c *BackendClient) Demo(ctx context.Context, userID string, body []byte) ([]byte, error) {
	if userID == "" {
		userID = c.demoUserID
	}
	target := c.demoURL + "/ventas/chat?user_id=" + url.QueryEscape(userID)
	return c.do(ctx, http.MethodPost, target, "", body)
}

// Ping reports whether the backend answers HTTP at all. Any status counts
// as reachable.
func (c *BackendClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.apiURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "ping backend", Err: err}
	}
	resp.Body.Close()
	return nil
}

func (c *BackendClient) do(ctx context.Context, method, target, authorization string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return nil, &NetworkError{Op: "read backend response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Str("method", method).
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Msg("Backend returned error status")
		return nil, &BackendError{Status: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}

// IsNetworkError reports whether err is (or wraps) a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
