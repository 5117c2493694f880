// Package telephony creates SMS messages through a Twilio-compatible REST API.
package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mcdev12/outreach/go/clients"
)

const defaultBaseURL = "https://api.twilio.com"

// ErrNoSender is returned when neither a messaging service nor a from-number
// is configured.
var ErrNoSender = errors.New("telephony: no messaging service or from number")

type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
}

type CreateMessageRequest struct {
	To                  string
	Body                string
	MessagingServiceSID string
	From                string
	StatusCallback      string
}

type Message struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	*clients.BaseClient
	accountSID string
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := clients.NewBaseClient(strings.TrimRight(baseURL, "/"))
	base.SetTimeout(cfg.Timeout)
	base.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	return &Client{BaseClient: base, accountSID: cfg.AccountSID}
}

// CreateMessage queues an SMS. A messaging service takes precedence over an
// explicit from-number.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (Message, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("Body", req.Body)
	switch {
	case req.MessagingServiceSID != "":
		form.Set("MessagingServiceSid", req.MessagingServiceSID)
	case req.From != "":
		form.Set("From", req.From)
	default:
		return Message{}, ErrNoSender
	}
	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
	}

	endpoint := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", url.PathEscape(c.accountSID))
	body, err := c.PostForm(ctx, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		var apiErr apiError
		if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return Message{}, fmt.Errorf("telephony error %d: %s", apiErr.Code, apiErr.Message)
		}
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode message response: %w", err)
	}
	return msg, nil
}
