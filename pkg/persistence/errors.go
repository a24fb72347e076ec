// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrCampaignNotFound indicates a campaign was not found by the given identifier.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrRecipientNotFound indicates a recipient was not found by the given identifier.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrTenantNotFound indicates a tenant was not found by the given identifier.
	ErrTenantNotFound = errors.New("tenant not found")
)

// CampaignError wraps campaign-related storage errors with operation context.
type CampaignError struct {
	Op         string // Operation being performed (e.g., "CampaignByID", "MarkCompleted")
	CampaignID string
	Err        error
}

func (e *CampaignError) Error() string {
	return fmt.Sprintf("%s operation failed for campaign %s: %v", e.Op, e.CampaignID, e.Err)
}

func (e *CampaignError) Unwrap() error {
	return e.Err
}

func (e *CampaignError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCampaignError creates a new campaign error with context.
func NewCampaignError(op, campaignID string, err error) *CampaignError {
	return &CampaignError{Op: op, CampaignID: campaignID, Err: err}
}

// IsCampaignNotFound checks if an error indicates a campaign was not found.
func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

// IsRecipientNotFound checks if an error indicates a recipient was not found.
func IsRecipientNotFound(err error) bool {
	return errors.Is(err, ErrRecipientNotFound)
}

// IsTenantNotFound checks if an error indicates a tenant was not found.
func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}
