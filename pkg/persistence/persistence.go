// Package persistence provides the data storage abstraction for campaigns
// and the read-only recipient/tenant attribute store.
package persistence

import (
	"context"
	"time"

	"github.com/careloop/outreach/pkg/models"
)

// CampaignRepository reads campaign definitions. The engine never edits a
// campaign; the single write is the scheduled-campaign completion
// transition.
type CampaignRepository interface {
	CampaignByID(ctx context.Context, id string) (*models.Campaign, error)

	// ActiveEventCampaigns returns ACTIVE campaigns of the tenant whose
	// trigger is the named business event.
	ActiveEventCampaigns(ctx context.Context, tenantID, eventName string) ([]*models.Campaign, error)

	// DueScheduledCampaigns returns ACTIVE scheduled campaigns with
	// fire_at <= before.
	DueScheduledCampaigns(ctx context.Context, before time.Time) ([]*models.Campaign, error)

	// ActiveRecurringCampaigns returns every ACTIVE recurring campaign.
	ActiveRecurringCampaigns(ctx context.Context) ([]*models.Campaign, error)

	// Campaigns lists campaigns of a tenant, newest first.
	Campaigns(ctx context.Context, tenantID string) ([]*models.Campaign, error)

	// MarkCompleted transitions an ACTIVE campaign to COMPLETED. The
	// transition happens at most once; completing an already completed
	// campaign is a no-op.
	MarkCompleted(ctx context.Context, id string, at time.Time) error

	// SaveCampaign creates or replaces a campaign definition together with
	// its steps. Authoring write, used by seeding tooling and by tests.
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
}

// RecipientRepository is the patient attribute store. The engine only
// reads; writes come from seeding tooling and from tests.
type RecipientRepository interface {
	RecipientByID(ctx context.Context, tenantID, id string) (*models.Recipient, error)
	RecipientsByTenant(ctx context.Context, tenantID string) ([]*models.Recipient, error)
	SaveRecipient(ctx context.Context, recipient *models.Recipient) error
}

// TenantRepository is the clinic attribute store.
type TenantRepository interface {
	TenantByID(ctx context.Context, id string) (*models.Tenant, error)
	SaveTenant(ctx context.Context, tenant *models.Tenant) error
}

// Persistence bundles the repositories behind one connection lifecycle.
type Persistence interface {
	Campaigns() CampaignRepository
	Recipients() RecipientRepository
	Tenants() TenantRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
