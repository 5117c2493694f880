package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyStat holds an organization's send counters for one calendar day (UTC).
type DailyStat struct {
	OrgID     uuid.UUID `json:"org_id"`
	StatDate  time.Time `json:"stat_date"`
	Sent      int       `json:"sent"`
	Delivered int       `json:"delivered"`
	Opened    int       `json:"opened"`
	Clicked   int       `json:"clicked"`
	Bounced   int       `json:"bounced"`
}

// StatColumn names a DailyStat counter.
type StatColumn string

const (
	StatSent      StatColumn = "sent"
	StatDelivered StatColumn = "delivered"
	StatOpened    StatColumn = "opened"
	StatClicked   StatColumn = "clicked"
	StatBounced   StatColumn = "bounced"
)

// SendConfig is an organization's sending identity and limits.
type SendConfig struct {
	OrgID                 uuid.UUID `json:"org_id" yaml:"-"`
	DailyLimit            int       `json:"daily_limit" yaml:"daily_limit"`
	WarmupEnabled         bool      `json:"warmup_enabled" yaml:"warmup_enabled"`
	FromName              string    `json:"from_name" yaml:"from_name"`
	FromEmail             string    `json:"from_email" yaml:"from_email"`
	ReplyTo               string    `json:"reply_to" yaml:"reply_to"`
	SMSMessagingServiceID string    `json:"sms_messaging_service_id" yaml:"sms_messaging_service_id"`
	SMSFromNumber         string    `json:"sms_from_number" yaml:"sms_from_number"`
}
