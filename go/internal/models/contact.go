package models

import (
	"github.com/google/uuid"
)

// Contact is the subset of the CRM contact record the delivery engine reads.
type Contact struct {
	ID               uuid.UUID  `json:"id"`
	OrgID            uuid.UUID  `json:"org_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Tags             []string   `json:"tags"`
	PipelineStage    string     `json:"pipeline_stage"`
	AssignedTo       *uuid.UUID `json:"assigned_to,omitempty"`
	AssigneeName     string     `json:"assignee_name"`
	OrganizationName string     `json:"organization_name"`
	EmailConsent     bool       `json:"email_consent"`
	SMSConsent       bool       `json:"sms_consent"`
	DoNotContact     bool       `json:"do_not_contact"`
	MergedIntoID     *uuid.UUID `json:"merged_into_id,omitempty"`
}

// Address returns the contact's address for the given channel.
func (c Contact) Address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.Phone
	}
	return ""
}

// Merged reports whether the record was folded into another contact.
func (c Contact) Merged() bool {
	return c.MergedIntoID != nil
}
