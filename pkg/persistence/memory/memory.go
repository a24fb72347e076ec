// Package memory provides an in-memory persistence layer used by tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/outreach/pkg/models"
	"github.com/careloop/outreach/pkg/persistence"
)

// Persistence keeps campaigns, recipients and tenants in process memory.
// Safe for concurrent use.
type Persistence struct {
	mu         sync.RWMutex
	campaigns  map[string]*models.Campaign
	recipients map[string]map[string]*models.Recipient
	tenants    map[string]*models.Tenant
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		campaigns:  make(map[string]*models.Campaign),
		recipients: make(map[string]map[string]*models.Recipient),
		tenants:    make(map[string]*models.Tenant),
	}
}

// Campaigns returns the campaign repository.
func (p *Persistence) Campaigns() persistence.CampaignRepository {
	return &campaignRepository{p: p}
}

// Recipients returns the recipient repository.
func (p *Persistence) Recipients() persistence.RecipientRepository {
	return &recipientRepository{p: p}
}

// Tenants returns the tenant repository.
func (p *Persistence) Tenants() persistence.TenantRepository {
	return &tenantRepository{p: p}
}

// HealthCheck always succeeds.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases all stored data.
func (p *Persistence) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.campaigns = make(map[string]*models.Campaign)
	p.recipients = make(map[string]map[string]*models.Recipient)
	p.tenants = make(map[string]*models.Tenant)

	return nil
}

type campaignRepository struct {
	p *Persistence
}

func (r *campaignRepository) CampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	campaign, ok := r.p.campaigns[id]
	if !ok {
		return nil, persistence.ErrCampaignNotFound
	}

	return campaign, nil
}

func (r *campaignRepository) ActiveEventCampaigns(ctx context.Context, tenantID, eventName string) ([]*models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool {
		return c.TenantID == tenantID &&
			c.Status == models.CampaignStatusActive &&
			c.Trigger.Kind == models.TriggerKindEvent &&
			c.Trigger.EventName == eventName
	}), nil
}

func (r *campaignRepository) DueScheduledCampaigns(ctx context.Context, before time.Time) ([]*models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool {
		return c.Status == models.CampaignStatusActive &&
			c.Trigger.Kind == models.TriggerKindScheduled &&
			c.Trigger.FireAt != nil &&
			!c.Trigger.FireAt.After(before)
	}), nil
}

func (r *campaignRepository) ActiveRecurringCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool {
		return c.Status == models.CampaignStatusActive &&
			c.Trigger.Kind == models.TriggerKindRecurring
	}), nil
}

func (r *campaignRepository) Campaigns(ctx context.Context, tenantID string) ([]*models.Campaign, error) {
	campaigns := r.filter(func(c *models.Campaign) bool {
		return c.TenantID == tenantID
	})

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})

	return campaigns, nil
}

func (r *campaignRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	campaign, ok := r.p.campaigns[id]
	if !ok {
		return persistence.NewCampaignError("mark_completed", id, persistence.ErrCampaignNotFound)
	}

	if campaign.Status != models.CampaignStatusActive {
		return nil
	}

	campaign.Status = models.CampaignStatusCompleted
	completedAt := at
	campaign.CompletedAt = &completedAt
	campaign.UpdatedAt = at

	return nil
}

func (r *campaignRepository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	if campaign.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		campaign.ID = id.String()
	}

	for _, step := range campaign.Steps {
		step.CampaignID = campaign.ID
	}

	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.campaigns[campaign.ID] = campaign

	return nil
}

func (r *campaignRepository) filter(keep func(*models.Campaign) bool) []*models.Campaign {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	campaigns := make([]*models.Campaign, 0)

	for _, campaign := range r.p.campaigns {
		if keep(campaign) {
			campaigns = append(campaigns, campaign)
		}
	}

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].ID < campaigns[j].ID
	})

	return campaigns
}

type recipientRepository struct {
	p *Persistence
}

func (r *recipientRepository) RecipientByID(ctx context.Context, tenantID, id string) (*models.Recipient, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	recipient, ok := r.p.recipients[tenantID][id]
	if !ok {
		return nil, persistence.ErrRecipientNotFound
	}

	return recipient, nil
}

func (r *recipientRepository) RecipientsByTenant(ctx context.Context, tenantID string) ([]*models.Recipient, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	recipients := make([]*models.Recipient, 0, len(r.p.recipients[tenantID]))
	for _, recipient := range r.p.recipients[tenantID] {
		recipients = append(recipients, recipient)
	}

	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].ID < recipients[j].ID
	})

	return recipients, nil
}

func (r *recipientRepository) SaveRecipient(ctx context.Context, recipient *models.Recipient) error {
	if recipient.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		recipient.ID = id.String()
	}

	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if r.p.recipients[recipient.TenantID] == nil {
		r.p.recipients[recipient.TenantID] = make(map[string]*models.Recipient)
	}

	r.p.recipients[recipient.TenantID][recipient.ID] = recipient

	return nil
}

type tenantRepository struct {
	p *Persistence
}

func (r *tenantRepository) TenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tenant, ok := r.p.tenants[id]
	if !ok {
		return nil, persistence.ErrTenantNotFound
	}

	return tenant, nil
}

func (r *tenantRepository) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.tenants[tenant.ID] = tenant

	return nil
}
