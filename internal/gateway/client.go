// Package gateway содержит HTTP клиент шлюза мессенджера, через который
// бот отправляет исходящие сообщения.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

// Client клиент HTTP API шлюза.
type Client struct {
	sendURL    string
	token      string
	httpClient *http.Client
}

// NewClient создает новый клиент шлюза.
func NewClient(sendURL, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		sendURL:    sendURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send отправляет одно сообщение получателю. Шлюз отвечает 200 или 201
// при успешном приеме сообщения в очередь доставки.
func (c *Client) Send(ctx context.Context, msg models.OutgoingMessage) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(msg); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}
	return nil
}
