package models

// AudienceCriteria is a closed set of typed predicates over recipient
// records. Keys combine conjunctively; values within a list-valued key
// combine disjunctively. An empty criteria set matches everyone.
type AudienceCriteria struct {
	// Statuses matches recipients whose status is in the set.
	Statuses []RecipientStatus `json:"statuses,omitempty"`

	// Channels matches recipients reachable on at least one listed channel.
	Channels []Channel `json:"channels,omitempty"`

	// OptedIn, when set, matches recipients with that exact opt-in flag.
	OptedIn *bool `json:"opted_in,omitempty"`
}

// Empty reports whether no criterion is configured.
func (c AudienceCriteria) Empty() bool {
	return len(c.Statuses) == 0 && len(c.Channels) == 0 && c.OptedIn == nil
}

// Matches evaluates every configured criterion against the recipient.
func (c AudienceCriteria) Matches(r *Recipient) bool {
	if len(c.Statuses) > 0 {
		found := false

		for _, status := range c.Statuses {
			if r.Status == status {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	if len(c.Channels) > 0 {
		found := false

		for _, ch := range c.Channels {
			if r.HasChannel(ch) {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	if c.OptedIn != nil && r.OptedIn != *c.OptedIn {
		return false
	}

	return true
}
