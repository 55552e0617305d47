package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shakthiframing/storefront/internal/domain"
)

// ConfirmationHandler turns order-created events into confirmation
// emails. The email is best effort: the order is already persisted, so
// a failed send is logged and the event is still committed rather than
// redelivered into a tight retry loop.
type ConfirmationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewConfirmationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *ConfirmationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to unmarshal order created event", "error", err)
		return nil
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "owner_id", event.OwnerID)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("confirmation email dispatched", "order_id", event.OrderID, "to", event.OwnerEmail)
	return nil
}

func (h *ConfirmationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderCreatedEvent) error {
	body := map[string]string{
		"to":      event.OwnerEmail,
		"subject": "Your Order Confirmation #" + event.OrderID,
		"body": fmt.Sprintf("Hi %s, thank you for your order. We have received your payment of %s and will start framing shortly.",
			event.OwnerName, event.TotalPrice.StringFixed(2)),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
