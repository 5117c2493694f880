// Package compliance decides whether a contact may legally be messaged.
package compliance

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/models"
)

// Reason explains why a contact cannot be messaged.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonDoNotContact Reason = "do_not_contact"
	ReasonDNCRegistry  Reason = "dnc_registry"
	ReasonMerged       Reason = "merged"
	ReasonNoConsent    Reason = "no_consent"
	ReasonNoAddress    Reason = "no_address"
)

// RegistryStore defines what the guard needs from the registry repository
type RegistryStore interface {
	AnyBlocked(ctx context.Context, orgID uuid.UUID, identifiers []string) (bool, error)
	ListIdentifiers(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// Guard combines the per-contact flag, the org registry and channel consent.
type Guard struct {
	store RegistryStore
}

func NewGuard(store RegistryStore) *Guard {
	return &Guard{store: store}
}

// IsBlocked returns true if the contact carries the do-not-contact flag or
// its email or phone is in the org registry.
func (g *Guard) IsBlocked(ctx context.Context, contact models.Contact) (bool, error) {
	reason, err := g.blockReason(ctx, contact)
	if err != nil {
		return false, err
	}
	return reason != ReasonNone, nil
}

// Check runs every dispatch-time rule for the channel and returns the first
// failing reason, or ReasonNone when the message may go out.
func (g *Guard) Check(ctx context.Context, contact models.Contact, ch models.Channel) (Reason, error) {
	reason, err := g.BlockReason(ctx, contact)
	if err != nil || reason != ReasonNone {
		return reason, err
	}
	return ChannelReason(contact, ch), nil
}

// BlockReason runs the rules that bar a contact on every channel: merged,
// do-not-contact and the org registry.
func (g *Guard) BlockReason(ctx context.Context, contact models.Contact) (Reason, error) {
	if contact.Merged() {
		return ReasonMerged, nil
	}
	return g.blockReason(ctx, contact)
}

// ChannelReason runs the per-channel rules: consent, then a usable address.
func ChannelReason(contact models.Contact, ch models.Channel) Reason {
	if !HasConsent(contact, ch) {
		return ReasonNoConsent
	}
	if strings.TrimSpace(contact.Address(ch)) == "" {
		return ReasonNoAddress
	}
	return ReasonNone
}

func (g *Guard) blockReason(ctx context.Context, contact models.Contact) (Reason, error) {
	if contact.DoNotContact {
		return ReasonDoNotContact, nil
	}
	blocked, err := g.store.AnyBlocked(ctx, contact.OrgID, Identifiers(contact))
	if err != nil {
		return ReasonNone, fmt.Errorf("compliance check for contact %s: %w", contact.ID, err)
	}
	if blocked {
		return ReasonDNCRegistry, nil
	}
	return ReasonNone, nil
}

// LoadRegistry snapshots an org's registry for bulk filtering.
func (g *Guard) LoadRegistry(ctx context.Context, orgID uuid.UUID) (Registry, error) {
	ids, err := g.store.ListIdentifiers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	reg := make(Registry, len(ids))
	for _, id := range ids {
		reg[NormalizeIdentifier(id)] = struct{}{}
	}
	return reg, nil
}

// Registry is an in-memory set of normalized identifiers.
type Registry map[string]struct{}

// Contains reports whether any of the contact's identifiers is registered.
func (r Registry) Contains(contact models.Contact) bool {
	for _, id := range Identifiers(contact) {
		if _, ok := r[id]; ok {
			return true
		}
	}
	return false
}

// HasConsent reports whether the contact opted in to the channel.
func HasConsent(contact models.Contact, ch models.Channel) bool {
	switch ch {
	case models.ChannelEmail:
		return contact.EmailConsent
	case models.ChannelSMS:
		return contact.SMSConsent
	}
	return false
}

// Identifiers returns the contact's normalized, non-empty email and phone.
func Identifiers(contact models.Contact) []string {
	var ids []string
	for _, raw := range []string{contact.Email, contact.Phone} {
		if id := NormalizeIdentifier(raw); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// NormalizeIdentifier lowercases emails and strips phone formatting, keeping
// a leading plus.
func NormalizeIdentifier(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "@") {
		return strings.ToLower(s)
	}
	var b strings.Builder
	for i, r := range s {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
