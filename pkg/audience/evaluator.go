// Package audience decides whether a recipient matches a campaign's
// inclusion and exclusion criteria.
package audience

import "github.com/careloop/outreach/pkg/models"

// Matches evaluates the two criteria sets against a recipient record. It is
// a pure function of its arguments: no lookups, no side effects.
//
// Exclude criteria are evaluated first and win unconditionally: a recipient
// matching any configured exclude set is out regardless of the include set.
// An absent or empty include set matches everyone.
func Matches(recipient *models.Recipient, include, exclude models.AudienceCriteria) bool {
	if recipient == nil {
		return false
	}

	if !exclude.Empty() && exclude.Matches(recipient) {
		return false
	}

	if include.Empty() {
		return true
	}

	return include.Matches(recipient)
}
