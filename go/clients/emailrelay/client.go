// Package emailrelay talks to the HTTP email relay used for outbound mail.
package emailrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/outreach/go/clients"
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// SendRequest is the relay's send contract.
type SendRequest struct {
	Action   string            `json:"action"`
	To       string            `json:"to"`
	FromName string            `json:"from_name"`
	Subject  string            `json:"subject"`
	BodyHTML string            `json:"body_html"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SendResponse is the relay's reply. A non-2xx status may still carry one.
type SendResponse struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

type Client struct {
	*clients.BaseClient
}

func NewClient(cfg Config) *Client {
	base := clients.NewBaseClient(cfg.URL)
	base.SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		base.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{BaseClient: base}
}

// Send posts one message. The returned error covers transport and decoding
// problems; a relay-reported failure comes back as Success=false.
func (c *Client) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	req.Action = "send"
	payload, err := json.Marshal(req)
	if err != nil {
		return SendResponse{}, fmt.Errorf("failed to marshal send request: %w", err)
	}

	body, reqErr := c.PostJSON(ctx, "", bytes.NewReader(payload))

	var resp SendResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil && reqErr == nil {
			return SendResponse{}, fmt.Errorf("failed to decode relay response: %w", err)
		}
	}
	if reqErr != nil {
		if resp.Error == "" {
			return SendResponse{}, reqErr
		}
		resp.Success = false
	}
	return resp, nil
}
