package campaign

import (
	"github.com/mcdev12/outreach/go/internal/models"
)

// LaunchResult is returned by a successful launch.
type LaunchResult struct {
	CampaignID      string `json:"campaign_id"`
	TotalRecipients int    `json:"total_recipients"`
	TotalBatches    int    `json:"total_batches"`
}

// transitions lists the statuses a campaign may move to from each status.
// completed is terminal.
var transitions = map[models.CampaignStatus][]models.CampaignStatus{
	models.CampaignStatusDraft:     {models.CampaignStatusScheduled, models.CampaignStatusSending, models.CampaignStatusPaused},
	models.CampaignStatusScheduled: {models.CampaignStatusSending, models.CampaignStatusPaused, models.CampaignStatusFailed},
	models.CampaignStatusSending:   {models.CampaignStatusPaused, models.CampaignStatusCompleted, models.CampaignStatusFailed},
	models.CampaignStatusPaused:    {models.CampaignStatusSending, models.CampaignStatusDraft, models.CampaignStatusFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.CampaignStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TotalBatches returns ceil(total / batchSize).
func TotalBatches(total, batchSize int) int {
	if batchSize <= 0 || total <= 0 {
		return 0
	}
	return (total + batchSize - 1) / batchSize
}
