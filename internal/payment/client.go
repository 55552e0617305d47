package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type IntentStatus string

const (
	StatusSucceeded  IntentStatus = "succeeded"
	StatusProcessing IntentStatus = "processing"
	StatusFailed     IntentStatus = "failed"
)

// Intent is the terminal (or still-processing) outcome reported by the
// external payment gateway for a payment attempt.
type Intent struct {
	ID     string       `json:"id"`
	Status IntentStatus `json:"status"`
}

var ErrMissingIntentRef = errors.New("payment confirmation reference is missing")

// Client retrieves payment intents from the gateway. The order flow only
// branches on the tri-state outcome; everything else about the intent is
// opaque.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: httpClient,
	}
}

func (c *Client) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, ErrMissingIntentRef
	}

	url := fmt.Sprintf("%s/v1/payment_intents/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create intent request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned status %d for intent %s", resp.StatusCode, id)
	}

	var upstream struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, fmt.Errorf("decode payment intent %s: %w", id, err)
	}

	intent := &Intent{ID: upstream.ID}
	switch upstream.Status {
	case "succeeded":
		intent.Status = StatusSucceeded
	case "processing":
		intent.Status = StatusProcessing
	default:
		// requires_payment_method, canceled and anything unrecognized
		// all read as a failed attempt
		intent.Status = StatusFailed
	}
	return intent, nil
}
