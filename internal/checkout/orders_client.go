package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shakthiframing/storefront/internal/domain"
)

// OrdersClient submits order drafts to the orders service, forwarding
// the caller's bearer token.
type OrdersClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOrdersClient(baseURL string, httpClient *http.Client) *OrdersClient {
	return &OrdersClient{baseURL: baseURL, httpClient: httpClient}
}

func (c *OrdersClient) Submit(ctx context.Context, authorization string, draft OrderDraft) (string, error) {
	data, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("marshal order draft: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Success bool         `json:"success"`
		Message string       `json:"message"`
		Order   domain.Order `json:"order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("orders service returned status %d: %s", resp.StatusCode, body.Message)
	}

	return body.Order.ID, nil
}
