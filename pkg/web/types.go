// Package web provides HTTP request and response types for the ops API.
package web

import (
	"time"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/stats"
)

// InjectEventRequest represents the request body for publishing a business
// event onto the bus.
type InjectEventRequest struct {
	EventName   string         `json:"event_name"   validate:"required,min=1"`
	TenantID    string         `json:"tenant_id"    validate:"required"`
	RecipientID string         `json:"recipient_id" validate:"required"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// CampaignSummary is the list-view projection of a campaign.
type CampaignSummary struct {
	ID          string                `json:"id"`
	TenantID    string                `json:"tenant_id"`
	Name        string                `json:"name"`
	Status      models.CampaignStatus `json:"status"`
	TriggerKind models.TriggerKind    `json:"trigger_kind"`
	EventName   string                `json:"event_name,omitempty"`
	StepCount   int                   `json:"step_count"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// CampaignDetail is the detail view: the full definition plus the current
// counter snapshot.
type CampaignDetail struct {
	Campaign *models.Campaign `json:"campaign"`
	Stats    stats.Snapshot   `json:"stats"`
}

// TransformCampaignSummary projects a campaign into its list view.
func TransformCampaignSummary(campaign *models.Campaign) CampaignSummary {
	return CampaignSummary{
		ID:          campaign.ID,
		TenantID:    campaign.TenantID,
		Name:        campaign.Name,
		Status:      campaign.Status,
		TriggerKind: campaign.Trigger.Kind,
		EventName:   campaign.Trigger.EventName,
		StepCount:   len(campaign.Steps),
		CreatedAt:   campaign.CreatedAt,
		CompletedAt: campaign.CompletedAt,
	}
}
