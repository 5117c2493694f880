// Package delivery provides a uniform send contract over the email relay and
// the SMS provider.
package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/clients/emailrelay"
	"github.com/mcdev12/outreach/go/clients/telephony"
	"github.com/mcdev12/outreach/go/internal/models"
)

// Message is a fully resolved outbound message.
type Message struct {
	DeliveryID uuid.UUID
	OrgID      uuid.UUID
	Channel    models.Channel
	To         string
	Subject    string
	Body       string
	Config     models.SendConfig
	Metadata   map[string]string
}

// Result is the normalized provider response.
type Result struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

func failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Sender sends one message. Provider and transport problems are reported in
// the Result; Send never panics or returns an error value.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}

// EmailRelay defines what the email adapter needs from the relay client
type EmailRelay interface {
	Send(ctx context.Context, req emailrelay.SendRequest) (emailrelay.SendResponse, error)
}

// SMSProvider defines what the SMS adapter needs from the telephony client
type SMSProvider interface {
	CreateMessage(ctx context.Context, req telephony.CreateMessageRequest) (telephony.Message, error)
}

type EmailAdapter struct {
	relay EmailRelay
}

func NewEmailAdapter(relay EmailRelay) *EmailAdapter {
	return &EmailAdapter{relay: relay}
}

func (a *EmailAdapter) Send(ctx context.Context, msg Message) Result {
	metadata := map[string]string{
		"org_id": msg.OrgID.String(),
	}
	if msg.DeliveryID != uuid.Nil {
		metadata["delivery_id"] = msg.DeliveryID.String()
	}
	for k, v := range msg.Metadata {
		metadata[k] = v
	}

	resp, err := a.relay.Send(ctx, emailrelay.SendRequest{
		To:       msg.To,
		FromName: msg.Config.FromName,
		Subject:  msg.Subject,
		BodyHTML: msg.Body,
		ReplyTo:  msg.Config.ReplyTo,
		Metadata: metadata,
	})
	if err != nil {
		return failure("email relay: %v", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			return failure("email relay rejected message")
		}
		return failure("email relay: %s", resp.Error)
	}
	return Result{Success: true, ProviderMessageID: resp.ProviderMessageID}
}

type SMSAdapter struct {
	provider          SMSProvider
	statusCallbackURL string
}

func NewSMSAdapter(provider SMSProvider, statusCallbackURL string) *SMSAdapter {
	return &SMSAdapter{provider: provider, statusCallbackURL: statusCallbackURL}
}

func (a *SMSAdapter) Send(ctx context.Context, msg Message) Result {
	if msg.Config.SMSMessagingServiceID == "" && msg.Config.SMSFromNumber == "" {
		return failure("sms: no messaging service or from number configured")
	}

	sms, err := a.provider.CreateMessage(ctx, telephony.CreateMessageRequest{
		To:                  msg.To,
		Body:                msg.Body,
		MessagingServiceSID: msg.Config.SMSMessagingServiceID,
		From:                msg.Config.SMSFromNumber,
		StatusCallback:      a.statusCallbackURL,
	})
	if err != nil {
		return failure("sms: %v", err)
	}
	if sms.ErrorMessage != "" {
		return failure("sms: %s", sms.ErrorMessage)
	}
	return Result{Success: true, ProviderMessageID: sms.SID}
}

// Router dispatches by channel.
type Router struct {
	senders map[models.Channel]Sender
}

func NewRouter(email, sms Sender) *Router {
	return &Router{senders: map[models.Channel]Sender{
		models.ChannelEmail: email,
		models.ChannelSMS:   sms,
	}}
}

func (r *Router) Send(ctx context.Context, msg Message) (res Result) {
	sender, ok := r.senders[msg.Channel]
	if !ok || sender == nil {
		return failure("unsupported channel %q", msg.Channel)
	}
	defer func() {
		if p := recover(); p != nil {
			res = failure("%s adapter panic: %v", msg.Channel, p)
		}
	}()
	return sender.Send(ctx, msg)
}
