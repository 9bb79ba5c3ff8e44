package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
)

const maxResponseBody = 4 << 20

// GatewayClient calls the gateway's chat proxy routes with the user's
// bearer token.
type GatewayClient struct {
	httpClient *http.Client
	baseURL    string

	// HistoryRetry applies to history reads only.
	HistoryRetry utils.RetryConfig
}

// NewGatewayClient creates a client for the gateway at baseURL.
//
// Example:
//
//	client := chat.NewGatewayClient("http://localhost:8080", 30*time.Second)
//	reply, err := client.Chat(ctx, sess.AccessToken, models.ChatRequest{Message: "Hola"})
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	retry := utils.ExternalAPIRetryConfig()
	retry.Retryable = services.IsNetworkError

	return &GatewayClient{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		HistoryRetry: retry,
	}
}

// Chat posts a message to /api/chat/.
func (c *GatewayClient) Chat(ctx context.Context, accessToken string, req models.ChatRequest) (*models.ChatReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/chat/", accessToken, body)
	if err != nil {
		return nil, err
	}

	var reply models.ChatReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode chat reply: %w", err)
	}
	return &reply, nil
}

// History reads /api/chat/history/.
func (c *GatewayClient) History(ctx context.Context, accessToken string) ([]models.HistoryItem, error) {
	data, err := utils.RetryWithResult(ctx, c.HistoryRetry, func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, "/api/chat/history/", accessToken, nil)
	})
	if err != nil {
		return nil, err
	}

	var items []models.HistoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	return items, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path, accessToken string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &services.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &services.NetworkError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &errBody)
		return nil, newHTTPError(resp.StatusCode, errBody.Error)
	}

	return data, nil
}
