// Package grievance implements the support ticket flow of the consent
// dashboard: principals raise tickets about how their data is handled and
// track them to resolution.
package grievance

import (
	"time"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Category classifies what the ticket is about.
type Category string

const (
	CategoryDataAccess     Category = "data_access"
	CategoryDataCorrection Category = "data_correction"
	CategoryDataDeletion   Category = "data_deletion"
	CategoryConsentDispute Category = "consent_dispute"
	CategoryOther          Category = "other"
)

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryDataAccess, CategoryDataCorrection, CategoryDataDeletion, CategoryConsentDispute, CategoryOther:
		return Category(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid grievance category: "+s)
	}
}

// Status is the ticket workflow state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// canTransition encodes the forward-only ticket workflow.
func canTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusInProgress || to == StatusResolved
	case StatusInProgress:
		return to == StatusResolved
	default:
		return false
	}
}

// Ticket is one grievance raised by a principal.
type Ticket struct {
	ID          id.TicketID    `json:"id"`
	PrincipalID id.PrincipalID `json:"principalId"`
	Category    Category       `json:"category"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Resolution  string         `json:"resolution,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
