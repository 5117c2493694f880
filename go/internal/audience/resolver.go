// Package audience turns a campaign's filter criteria into the list of
// contacts that may legally receive it.
package audience

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/compliance"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/rs/zerolog/log"
)

// CampaignReader defines what the resolver needs to load a campaign
type CampaignReader interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

// ContactLister returns contacts passing the flag, consent, merge, address
// and filter criteria checks.
type ContactLister interface {
	ListEligible(ctx context.Context, orgID uuid.UUID, ch models.Channel, filter models.FilterCriteria) ([]models.Contact, error)
}

// RegistryLoader loads an org's do-not-contact registry.
type RegistryLoader interface {
	LoadRegistry(ctx context.Context, orgID uuid.UUID) (compliance.Registry, error)
}

// Audience is the resolved recipient list of one campaign.
type Audience struct {
	Campaign   *models.Campaign
	ContactIDs []uuid.UUID
	Excluded   int
}

// Resolver computes campaign audiences.
type Resolver struct {
	campaigns CampaignReader
	contacts  ContactLister
	registry  RegistryLoader
}

func NewResolver(campaigns CampaignReader, contacts ContactLister, registry RegistryLoader) *Resolver {
	return &Resolver{campaigns: campaigns, contacts: contacts, registry: registry}
}

// Launchable reports whether a campaign in status s may be (re)launched.
func Launchable(s models.CampaignStatus) bool {
	switch s {
	case models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusPaused:
		return true
	}
	return false
}

// Resolve loads the campaign and returns its eligible recipients. It returns
// apperrors.ErrNoEligibleRecipients when nobody survives filtering.
func (r *Resolver) Resolve(ctx context.Context, campaignID uuid.UUID) (*Audience, error) {
	campaign, err := r.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !Launchable(campaign.Status) {
		return nil, apperrors.InvalidState("campaign %s is %s", campaign.ID, campaign.Status)
	}

	candidates, err := r.contacts.ListEligible(ctx, campaign.OrgID, campaign.Channel, campaign.FilterCriteria)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible contacts: %w", err)
	}

	registry, err := r.registry.LoadRegistry(ctx, campaign.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dnc registry: %w", err)
	}

	aud := &Audience{Campaign: campaign, ContactIDs: make([]uuid.UUID, 0, len(candidates))}
	for _, c := range candidates {
		if !eligible(c, campaign.Channel) || registry.Contains(c) {
			aud.Excluded++
			continue
		}
		aud.ContactIDs = append(aud.ContactIDs, c.ID)
	}

	log.Debug().
		Str("campaign_id", campaign.ID.String()).
		Int("candidates", len(candidates)).
		Int("excluded", aud.Excluded).
		Msg("resolved campaign audience")

	if len(aud.ContactIDs) == 0 {
		return nil, apperrors.NoEligibleRecipients("campaign %s has no eligible recipients", campaign.ID)
	}
	return aud, nil
}

func eligible(c models.Contact, ch models.Channel) bool {
	return !c.DoNotContact && !c.Merged() && compliance.HasConsent(c, ch) && c.Address(ch) != ""
}
