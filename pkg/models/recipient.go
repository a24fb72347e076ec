package models

// Channel is a message delivery channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Valid reports whether the channel is one of the known delivery channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp:
		return true
	default:
		return false
	}
}

// RecipientStatus is the patient's standing with the tenant.
type RecipientStatus string

const (
	RecipientStatusActive   RecipientStatus = "active"
	RecipientStatusInactive RecipientStatus = "inactive"
	RecipientStatusArchived RecipientStatus = "archived"
)

// Recipient is the engine's read-only view of a patient record: contact
// details, opt-in state, and free-form attributes used in variable bags.
// Inconsistent records (opted out but active, say) are evaluated
// field-by-field; cross-field rules belong to campaign authoring.
type Recipient struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	Status     RecipientStatus `json:"status"`
	Phone      string          `json:"phone,omitempty"`
	Email      string          `json:"email,omitempty"`
	PushToken  string          `json:"push_token,omitempty"`
	OptedIn    bool            `json:"opted_in"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

// HasChannel reports whether the recipient can be reached on the channel.
// In-app delivery needs no contact detail.
func (r *Recipient) HasChannel(ch Channel) bool {
	switch ch {
	case ChannelSMS:
		return r.Phone != ""
	case ChannelEmail:
		return r.Email != ""
	case ChannelPush:
		return r.PushToken != ""
	case ChannelInApp:
		return true
	default:
		return false
	}
}

// Variables returns the recipient's contribution to an execution context's
// variable bag.
func (r *Recipient) Variables() map[string]any {
	vars := map[string]any{
		"id":       r.ID,
		"status":   string(r.Status),
		"phone":    r.Phone,
		"email":    r.Email,
		"opted_in": r.OptedIn,
	}

	for k, v := range r.Attributes {
		vars[k] = v
	}

	return vars
}

// Tenant is the engine's read-only view of the owning clinic.
type Tenant struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Variables returns the tenant's contribution to a variable bag.
func (t *Tenant) Variables() map[string]any {
	vars := map[string]any{
		"id":   t.ID,
		"name": t.Name,
	}

	for k, v := range t.Attributes {
		vars[k] = v
	}

	return vars
}
