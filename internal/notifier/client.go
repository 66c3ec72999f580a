// Package notifier доставляет уведомления из outbox во внешний шлюз сообщений.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rgshop/shop-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие со шлюзом SMS/WhatsApp-сообщений.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент шлюза сообщений по указанному адресу.
// Повторы с экспоненциальной паузой и учёт Retry-After берёт на себя retryablehttp.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

type messageRequest struct {
	Channel     string         `json:"channel"`
	To          string         `json:"to"`
	TemplateKey string         `json:"template_key"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Send отправляет одно уведомление в шлюз. Любой ответ вне 2xx считается ошибкой.
func (c *Client) Send(ctx context.Context, n model.Notification) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notifier client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(messageRequest{
		Channel:     n.Channel,
		To:          n.ToAddress,
		TemplateKey: n.TemplateKey,
		Payload:     n.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+"/api/messages", body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
