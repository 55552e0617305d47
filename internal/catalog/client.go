package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shakthiframing/storefront/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Client looks up products from the catalog service. The checkout
// service uses it to snapshot name, price and image when an item is
// added to a cart.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	url := fmt.Sprintf("%s/products/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create product request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d for product %s", resp.StatusCode, id)
	}

	var body struct {
		Success bool           `json:"success"`
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", id, err)
	}

	return &body.Product, nil
}
