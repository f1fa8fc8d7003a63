// Package notify pushes outbound text messages (log reminders, daily
// digests) to farmers through the messaging gateway.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mnuel1/chat-fieldiq/internal/config"
)

// Client exposes the messaging operations the scheduler uses.
type Client interface {
	SendText(ctx context.Context, to, body string) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.NotifyConfig) *APIClient {
	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{httpClient: restyClient}
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText delivers one text message to the recipient.
func (c *APIClient) SendText(ctx context.Context, to, body string) error {
	gatewayErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(sendRequest{To: to, Body: body}).
		SetError(gatewayErr).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		code := resp.StatusCode()
		if gatewayErr.Error.Code != 0 {
			code = gatewayErr.Error.Code
		}
		return fmt.Errorf("notification gateway error: code=%d, message=%s", code, gatewayErr.Error.Message)
	}
	return nil
}
