package models

// ExecutionContext is the ephemeral per-recipient, per-run bag used for
// predicate evaluation and template interpolation. It is rebuilt from fresh
// recipient/tenant lookups plus the persisted trigger data on every drain;
// it is never stored.
type ExecutionContext struct {
	CampaignID  string
	TenantID    string
	RecipientID string
	StepID      string

	// TriggerData is immutable, closed over when the workflow started.
	TriggerData map[string]any

	recipient *Recipient
	tenant    *Tenant
	variables map[string]any
}

// NewExecutionContext builds a context for one step of one recipient's run.
func NewExecutionContext(campaign *Campaign, recipient *Recipient, tenant *Tenant, stepID string, triggerData map[string]any) *ExecutionContext {
	return &ExecutionContext{
		CampaignID:  campaign.ID,
		TenantID:    campaign.TenantID,
		RecipientID: recipient.ID,
		StepID:      stepID,
		TriggerData: triggerData,
		recipient:   recipient,
		tenant:      tenant,
	}
}

// Recipient returns the recipient record the context was built for.
func (c *ExecutionContext) Recipient() *Recipient {
	return c.recipient
}

// Variables returns the merged variable bag, built lazily on first use.
// Later sources win: tenant attributes, then recipient attributes, then
// trigger data under "trigger", plus identity keys.
func (c *ExecutionContext) Variables() map[string]any {
	if c.variables != nil {
		return c.variables
	}

	vars := make(map[string]any)

	if c.tenant != nil {
		vars["tenant"] = c.tenant.Variables()
	}

	if c.recipient != nil {
		vars["recipient"] = c.recipient.Variables()

		for k, v := range c.recipient.Attributes {
			vars[k] = v
		}
	}

	if c.TriggerData != nil {
		vars["trigger"] = c.TriggerData

		for k, v := range c.TriggerData {
			vars[k] = v
		}
	}

	vars["campaign_id"] = c.CampaignID

	c.variables = vars

	return vars
}
